package xunique

// Retention 是保留策略：额外持有最近产生的值的强引用，
// 减少短生命周期请求反复重建同一个值。保留只影响性能，不影响正确性。
//
// 所有方法都在 Factory 的锁内调用，实现无需自行加锁，
// 但严禁在方法内释放引用（会死锁）：应把要丢弃的引用返回给 Factory，
// 由 Factory 在解锁后释放。
type Retention[V any] interface {
	// Observe 在每次 Get 成功时调用，ref 是即将返回给调用方的引用。
	// 策略如需保留该值，应调用 ref.Clone 持有自己的引用，不得保存 ref 本身。
	// 返回本次被移出保留集合、需要释放的引用。
	Observe(ref *Ref[V]) []*Ref[V]

	// Clear 清空保留集合并返回其中全部引用。Factory 关闭时调用。
	Clear() []*Ref[V]
}

type keepNothing[V any] struct{}

// KeepNothing 返回不保留任何值的策略（默认）：
// 外部引用全部释放后，值立即从缓存中消失。
func KeepNothing[V any]() Retention[V] {
	return keepNothing[V]{}
}

func (keepNothing[V]) Observe(*Ref[V]) []*Ref[V] { return nil }
func (keepNothing[V]) Clear() []*Ref[V]          { return nil }

// keepLast 保留最多 n 个值的工作集。
type keepLast[V any] struct {
	n   int
	set map[*cell[V]]*Ref[V]
}

// KeepLast 返回保留最近 n 个值的策略。
//
// 工作集达到 n 个值后，下一个新值加入前整个工作集被一次性清空，
// 而不是逐个淘汰最旧的值。已在工作集中的值再次出现时不做任何变更。
// n <= 0 时等价于 [KeepNothing]。
func KeepLast[V any](n int) Retention[V] {
	if n <= 0 {
		return KeepNothing[V]()
	}
	return &keepLast[V]{
		n:   n,
		set: make(map[*cell[V]]*Ref[V], n),
	}
}

func (k *keepLast[V]) Observe(ref *Ref[V]) []*Ref[V] {
	if _, ok := k.set[ref.c]; ok {
		return nil
	}
	var dropped []*Ref[V]
	if len(k.set) >= k.n {
		dropped = k.Clear()
	}
	held, err := ref.Clone()
	if err != nil {
		return dropped
	}
	k.set[ref.c] = held
	return dropped
}

func (k *keepLast[V]) Clear() []*Ref[V] {
	if len(k.set) == 0 {
		return nil
	}
	dropped := make([]*Ref[V], 0, len(k.set))
	for _, r := range k.set {
		dropped = append(dropped, r)
	}
	clear(k.set)
	return dropped
}
