package xunique

import (
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"strings"
	"weak"

	"github.com/cespare/xxhash/v2"
)

// Kind 表示键组件的持有方式。
type Kind uint8

const (
	// KindPlain 普通值，按值比较和哈希。
	KindPlain Kind = iota
	// KindStrong 强引用，键存续期间缓存持有被引用对象。
	KindStrong
	// KindWeak 弱引用，缓存不持有被引用对象，对象被回收后组件失效。
	KindWeak
)

// String 返回 Kind 的可读名称。
func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindStrong:
		return "strong"
	case KindWeak:
		return "weak"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// hashSeed 进程级哈希种子，所有 Key 共用，保证同值同哈希。
var hashSeed = maphash.MakeSeed()

// Component 是复合键的一个组件。
//
// 只能通过 [Plain]、[Strong]、[Weak]、[WeakPointer] 构造。
// 组件相等性按解引用后的值判断，与组件种类和指针地址无关。
type Component interface {
	// Kind 返回组件的持有方式。
	Kind() Kind

	// Alive 报告组件当前是否存活。普通值和强引用总是存活。
	Alive() bool

	// Value 返回解引用后的值。弱引用对象已被回收时返回 (nil, false)。
	Value() (any, bool)

	// hash 返回解引用值的哈希；组件已失效时返回 false。
	hash(seed maphash.Seed) (uint64, bool)
}

type plainComponent[T comparable] struct {
	v T
}

// Plain 创建按值比较的普通组件。
func Plain[T comparable](v T) Component {
	return plainComponent[T]{v: v}
}

func (plainComponent[T]) Kind() Kind  { return KindPlain }
func (plainComponent[T]) Alive() bool { return true }
func (c plainComponent[T]) Value() (any, bool) {
	return c.v, true
}

func (c plainComponent[T]) hash(seed maphash.Seed) (uint64, bool) {
	return maphash.Comparable(seed, c.v), true
}

type strongComponent[T comparable] struct {
	p *T
}

// Strong 创建强引用组件：缓存中的键会持有 p，直到对应条目被移除。
// 比较时使用 *p 的值而非地址。p 为 nil 时 panic。
func Strong[T comparable](p *T) Component {
	if p == nil {
		panic(ErrNilReference)
	}
	return strongComponent[T]{p: p}
}

func (strongComponent[T]) Kind() Kind  { return KindStrong }
func (strongComponent[T]) Alive() bool { return true }
func (c strongComponent[T]) Value() (any, bool) {
	return *c.p, true
}

func (c strongComponent[T]) hash(seed maphash.Seed) (uint64, bool) {
	return maphash.Comparable(seed, *c.p), true
}

type weakComponent[T comparable] struct {
	p weak.Pointer[T]
}

// Weak 创建弱引用组件：缓存不会让 p 保持存活。
// p 被 GC 回收后，包含该组件的键失效，对应条目在下次访问时被清理。
// 比较时使用 *p 的值而非地址。p 为 nil 时 panic。
//
// 注意：极小的对象（不含指针且小于 16 字节）可能与其他对象共享内存块，
// 回收时机不确定，不适合作为弱引用目标。
func Weak[T comparable](p *T) Component {
	if p == nil {
		panic(ErrNilReference)
	}
	return weakComponent[T]{p: weak.Make(p)}
}

// WeakPointer 基于已有的 weak.Pointer 创建弱引用组件。
// 对象已被回收时，用它构造 Key 会 panic（见 [NewKey]）。
func WeakPointer[T comparable](wp weak.Pointer[T]) Component {
	return weakComponent[T]{p: wp}
}

func (weakComponent[T]) Kind() Kind { return KindWeak }

func (c weakComponent[T]) Alive() bool {
	return c.p.Value() != nil
}

func (c weakComponent[T]) Value() (any, bool) {
	p := c.p.Value()
	if p == nil {
		return nil, false
	}
	return *p, true
}

func (c weakComponent[T]) hash(seed maphash.Seed) (uint64, bool) {
	p := c.p.Value()
	if p == nil {
		return 0, false
	}
	return maphash.Comparable(seed, *p), true
}

// Key 是定长的复合缓存键，由若干 [Component] 按顺序组成。
//
// Key 是不可变值，可以安全复制和跨 goroutine 共享。
// 两个 Key 相等当且仅当组件数相同且每个位置解引用后的值相等。
// 只要任一弱引用组件失效，Key 即失效，且不再与任何 Key 相等。
type Key struct {
	comps []Component
	hash  uint64
}

// NewKey 由组件构造复合键。
//
// 若某个弱引用组件的对象在构造时已被回收，NewKey 以包装了
// [ErrDeadComponent] 的 error 值 panic：这是调用方的编程错误，
// 与构造函数失败不同，不应通过返回值处理。
func NewKey(components ...Component) Key {
	comps := make([]Component, len(components))
	copy(comps, components)

	d := xxhash.New()
	var buf [8]byte
	for i, c := range comps {
		if c == nil {
			panic(fmt.Errorf("%w: index %d", ErrNilReference, i))
		}
		h, ok := c.hash(hashSeed)
		if !ok {
			panic(fmt.Errorf("%w: index %d", ErrDeadComponent, i))
		}
		binary.LittleEndian.PutUint64(buf[:], h)
		_, _ = d.Write(buf[:])
	}
	return Key{comps: comps, hash: d.Sum64()}
}

// KeyOf 创建只含一个普通组件的键，等价于 NewKey(Plain(v))。
func KeyOf[T comparable](v T) Key {
	return NewKey(Plain(v))
}

// Len 返回组件数。
func (k Key) Len() int {
	return len(k.comps)
}

// At 返回第 i 个组件。i 越界时 panic。
func (k Key) At(i int) Component {
	return k.comps[i]
}

// Hash 返回构造时计算的哈希值。
func (k Key) Hash() uint64 {
	return k.hash
}

// Alive 报告键的所有组件是否都存活。
func (k Key) Alive() bool {
	for _, c := range k.comps {
		if !c.Alive() {
			return false
		}
	}
	return true
}

// Values 返回所有组件解引用后的值。任一组件失效时返回 (nil, false)。
//
// 返回的值是快照：弱引用组件的对象之后仍可能被回收。
func (k Key) Values() ([]any, bool) {
	vals := make([]any, len(k.comps))
	for i, c := range k.comps {
		v, ok := c.Value()
		if !ok {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

// Equal 报告两个键是否相等。任一键已失效时返回 false。
func (k Key) Equal(other Key) bool {
	k, other = k.normalized(), other.normalized()
	if len(k.comps) != len(other.comps) || k.hash != other.hash {
		return false
	}
	a, ok := k.Values()
	if !ok {
		return false
	}
	b, ok := other.Values()
	if !ok {
		return false
	}
	return valuesEqual(a, b)
}

// String 返回键的可读表示，已失效的组件显示为 <dead>。
func (k Key) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, c := range k.comps {
		if i > 0 {
			sb.WriteString(", ")
		}
		v, ok := c.Value()
		if !ok {
			sb.WriteString("<dead>")
			continue
		}
		fmt.Fprintf(&sb, "%v", v)
	}
	sb.WriteByte(')')
	return sb.String()
}

// emptyKey 是零组件键；零值 Key 与之等价。
var emptyKey = NewKey()

func (k Key) normalized() Key {
	if k.comps == nil {
		return emptyKey
	}
	return k
}

// resolve 解析键的所有组件，失效时按 NewKey 的约定 panic。
func (k Key) resolve() []any {
	vals := make([]any, len(k.comps))
	for i, c := range k.comps {
		v, ok := c.Value()
		if !ok {
			panic(fmt.Errorf("%w: index %d", ErrDeadComponent, i))
		}
		vals[i] = v
	}
	return vals
}

func valuesEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
