package xunique

import "sync/atomic"

// cell 是一个缓存值的共享状态，所有指向同一值的 Ref 共用一个 cell。
type cell[V any] struct {
	value V
	key   Key
	refs  atomic.Int64
	// owner 为 nil 表示已孤立（Factory 先于该值关闭），释放时不再触碰 Factory。
	owner     atomic.Pointer[Factory[V]]
	entry     *entry[V]
	onRelease func(Key, V)
}

func newCell[V any](f *Factory[V], key Key, value V) *cell[V] {
	c := &cell[V]{
		value:     value,
		key:       key,
		onRelease: f.opts.onRelease,
	}
	c.refs.Store(1)
	c.owner.Store(f)
	return c
}

// tryRetain 仅在引用计数大于 0 时加一。
// 计数已归零的值正在释放，不得被重新取出。
func (c *cell[V]) tryRetain() bool {
	for {
		n := c.refs.Load()
		if n <= 0 {
			return false
		}
		if c.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// live 报告是否仍有强引用。
func (c *cell[V]) live() bool {
	return c.refs.Load() > 0
}

// release 减少引用计数，归零时从 Factory 移除条目并调用 onRelease。
// 调用方不得持有 Factory 的锁。
func (c *cell[V]) release() {
	n := c.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		panic("xunique: reference count below zero")
	}
	if f := c.owner.Load(); f != nil {
		f.detach(c.entry)
	}
	if c.onRelease != nil {
		c.onRelease(c.key, c.value)
	}
}

// orphan 断开与 Factory 的关联，不触发释放逻辑。
func (c *cell[V]) orphan() {
	c.owner.Store(nil)
}

// Ref 是对缓存值的一个强引用。
//
// 每次 Get 都返回新的 Ref；指向同一值的 Ref 共享引用计数。
// 最后一个 Ref 被 Release 时，对应条目从 Factory 中移除。
// Release 是幂等的：第一次调用返回 nil，后续调用返回 [ErrReleased]。
//
// Ref 可以跨 goroutine 读取；同一个 Ref 的 Clone 与 Release 不应并发调用。
type Ref[V any] struct {
	c        *cell[V]
	released atomic.Bool
}

// Value 返回引用的值。Release 之后不应再使用返回值。
func (r *Ref[V]) Value() V {
	return r.c.value
}

// Key 返回创建该值时使用的键。
func (r *Ref[V]) Key() Key {
	return r.c.key
}

// Same 报告两个 Ref 是否指向同一个值实例。
func (r *Ref[V]) Same(other *Ref[V]) bool {
	return r != nil && other != nil && r.c == other.c
}

// Clone 返回指向同一值的新强引用，需要单独 Release。
// 当前 Ref 已释放时返回 [ErrReleased]。
func (r *Ref[V]) Clone() (*Ref[V], error) {
	if r.released.Load() || !r.c.tryRetain() {
		return nil, ErrReleased
	}
	return &Ref[V]{c: r.c}, nil
}

// Release 释放该引用。
func (r *Ref[V]) Release() error {
	if !r.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	r.c.release()
	return nil
}

// releaseAll 释放一组引用，忽略已释放的引用。
func releaseAll[V any](refs []*Ref[V]) {
	for _, r := range refs {
		if r != nil {
			_ = r.Release()
		}
	}
}
