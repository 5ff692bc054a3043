package xunique

import (
	"context"
	"errors"
	"sync"

	"github.com/omeyang/xunique/pkg/observability/xlog"
	"github.com/omeyang/xunique/pkg/observability/xmetrics"
	"github.com/omeyang/xunique/pkg/util/xkeylock"
)

const component = "xunique"

// 观测事件名称。
const (
	EventHit    = "hit"
	EventMiss   = "miss"
	EventEvict  = "evict"
	EventOrphan = "orphan"
)

// 淘汰原因。
const (
	ReasonReleased = "released"
	ReasonPurged   = "purged"
)

// entry 是键与值之间的关联。
type entry[V any] struct {
	key  Key
	cell *cell[V]
	// pin 仅在 WeakKeys 模式下非 nil：键存活期间持有值。
	pin *Ref[V]
}

// Factory 是进程内的唯一实例缓存：同一个存活的键在任意时刻至多对应一个存活的值，
// 并且在外部不再引用该值时自动遗忘它。
//
// 必须通过 [New] 创建，零值不可用。Factory 不可复制：
// 已发出的 Ref 持有指向它的指针。所有方法都是并发安全的。
type Factory[V any] struct {
	mu      sync.Mutex
	buckets map[uint64][]*entry[V]
	size    int
	closed  bool
	misses  int

	cfg    Config
	opts   options[V]
	logger xlog.Logger
	locker xkeylock.Locker
}

// New 创建 Factory。
// 配置无效时返回 [ErrInvalidRetain]、[ErrRetainExceedsMax] 或 [ErrInvalidSweepInterval]。
func New[V any](cfg Config, opts ...Option[V]) (*Factory[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options[V]{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.retention == nil {
		o.retention = KeepLast[V](cfg.Retain)
	}
	if o.logger == nil {
		o.logger = xlog.Default()
	}
	if o.observer == nil {
		o.observer = xmetrics.NoopObserver{}
	}

	f := &Factory[V]{
		buckets: make(map[uint64][]*entry[V]),
		cfg:     cfg,
		opts:    o,
		logger:  o.logger.With(xlog.Component(component), xlog.Factory(cfg.Name)),
	}

	if cfg.KeyLock {
		var lockOpts []xkeylock.Option
		if o.keyLockShards > 0 {
			lockOpts = append(lockOpts, xkeylock.WithShardCount(o.keyLockShards))
		}
		locker, err := xkeylock.New(lockOpts...)
		if err != nil {
			return nil, err
		}
		f.locker = locker
	}
	return f, nil
}

// Name 返回配置中的名称。
func (f *Factory[V]) Name() string {
	return f.cfg.Name
}

// Get 返回 key 对应值的新强引用。
//
// 缓存中没有 key 对应的存活值时，调用 create 构造一个并缓存。
// 同一个键的并发调用至多触发一次 create，所有调用拿到同一个值。
// create 返回的错误原样返回，且不会留下任何条目，之后的 Get 会重新尝试构造。
//
// ctx 只用于日志和观测，Get 不可取消。
//
// 默认配置下 create 在 Factory 的锁内执行，严禁在 create 中调用同一
// Factory 的方法或释放它发出的 Ref（会死锁）；需要这样做时请开启 Config.KeyLock。
//
// key 中的弱引用组件在调用时已失效属于编程错误，会以包装了
// [ErrDeadComponent] 的 error 值 panic。
func (f *Factory[V]) Get(ctx context.Context, key Key, create func() (V, error)) (*Ref[V], error) {
	if create == nil {
		return nil, ErrNilCreate
	}
	return f.GetWithKey(ctx, key, func(Key) (V, error) { return create() })
}

// GetWithKey 与 Get 相同，但 create 接收查询使用的键。
func (f *Factory[V]) GetWithKey(ctx context.Context, key Key, create func(Key) (V, error)) (*Ref[V], error) {
	if create == nil {
		return nil, ErrNilCreate
	}
	if ctx == nil {
		ctx = context.Background()
	}
	key = key.normalized()
	vals := key.resolve()

	// 被淘汰的引用必须在解锁后释放，释放会回调 detach。
	var drop []*Ref[V]
	defer func() { releaseAll(drop) }()

	var (
		ref *Ref[V]
		hit bool
		err error
	)
	if f.locker != nil {
		ref, hit, err = f.getKeyLocked(ctx, key, vals, create, &drop)
	} else {
		ref, hit, err = f.getLocked(ctx, key, vals, create, &drop)
	}
	if err != nil {
		return nil, err
	}

	name := EventMiss
	if hit {
		name = EventHit
	}
	f.record(ctx, name)
	return ref, nil
}

// getLocked 在一把锁内完成查找、构造和插入。
func (f *Factory[V]) getLocked(ctx context.Context, key Key, vals []any,
	create func(Key) (V, error), drop *[]*Ref[V]) (*Ref[V], bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, false, ErrClosed
	}
	if ref := f.lookupLocked(key, vals, drop); ref != nil {
		*drop = append(*drop, f.opts.retention.Observe(ref)...)
		return ref, true, nil
	}

	v, err := f.construct(ctx, key, create)
	if err != nil {
		return nil, false, err
	}
	return f.insertLocked(key, v, drop), false, nil
}

// getKeyLocked 持有键锁完成整个调用，Factory 的锁只在查找和插入时持有，
// create 执行期间不持有。
func (f *Factory[V]) getKeyLocked(ctx context.Context, key Key, vals []any,
	create func(Key) (V, error), drop *[]*Ref[V]) (*Ref[V], bool, error) {
	h, err := f.locker.Acquire(context.WithoutCancel(ctx), key.hash)
	if err != nil {
		if errors.Is(err, xkeylock.ErrClosed) {
			return nil, false, ErrClosed
		}
		return nil, false, err
	}
	defer func() { _ = h.Unlock() }()

	ref, err := func() (*Ref[V], error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.closed {
			return nil, ErrClosed
		}
		ref := f.lookupLocked(key, vals, drop)
		if ref != nil {
			*drop = append(*drop, f.opts.retention.Observe(ref)...)
		}
		return ref, nil
	}()
	if err != nil {
		return nil, false, err
	}
	if ref != nil {
		return ref, true, nil
	}

	v, err := f.construct(ctx, key, create)
	if err != nil {
		return nil, false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		// 构造期间 Factory 已关闭：值不入缓存，按孤立值释放以触发 onRelease。
		c := newCell(f, key, v)
		c.orphan()
		*drop = append(*drop, &Ref[V]{c: c})
		return nil, false, ErrClosed
	}
	return f.insertLocked(key, v, drop), false, nil
}

// construct 调用 create 并记录观测数据。
func (f *Factory[V]) construct(ctx context.Context, key Key, create func(Key) (V, error)) (v V, err error) {
	ctx, span := xmetrics.Start(ctx, f.opts.observer, xmetrics.SpanOptions{
		Component: component,
		Operation: "construct",
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{xmetrics.String("factory", f.cfg.Name)},
	})
	// create panic 时 err 为 nil，显式标记失败。
	completed := false
	defer func() {
		if !completed {
			span.End(xmetrics.Result{Status: xmetrics.StatusError})
		}
	}()

	v, err = create(key)
	completed = true
	span.End(xmetrics.Result{Err: err})
	if err != nil {
		f.logger.Debug(ctx, "construct failed", xlog.CacheKey(key.String()), xlog.Err(err))
	}
	return v, err
}

// lookupLocked 在 key 所在的桶中查找存活条目，并清理途经的失效条目。
// 命中时返回新的强引用。调用方必须持有 f.mu。
func (f *Factory[V]) lookupLocked(key Key, vals []any, drop *[]*Ref[V]) *Ref[V] {
	bucket, ok := f.buckets[key.hash]
	if !ok {
		return nil
	}

	var found *Ref[V]
	kept := bucket[:0]
	for _, e := range bucket {
		evals, alive := e.key.Values()
		if !alive || !e.cell.live() {
			f.purgeLocked(e, drop)
			continue
		}
		if found == nil && valuesEqual(evals, vals) {
			if !e.cell.tryRetain() {
				f.purgeLocked(e, drop)
				continue
			}
			found = &Ref[V]{c: e.cell}
		}
		kept = append(kept, e)
	}
	f.storeBucket(key.hash, bucket, kept)
	return found
}

// insertLocked 为新构造的值创建条目。调用方必须持有 f.mu。
func (f *Factory[V]) insertLocked(key Key, v V, drop *[]*Ref[V]) *Ref[V] {
	c := newCell(f, key, v)
	e := &entry[V]{key: key, cell: c}
	c.entry = e
	ref := &Ref[V]{c: c}
	if f.cfg.WeakKeys {
		c.refs.Add(1)
		e.pin = &Ref[V]{c: c}
	}

	f.buckets[key.hash] = append(f.buckets[key.hash], e)
	f.size++
	*drop = append(*drop, f.opts.retention.Observe(ref)...)

	f.misses++
	if f.cfg.SweepInterval > 0 && f.misses >= f.cfg.SweepInterval {
		f.misses = 0
		if n := f.sweepLocked(drop); n > 0 {
			f.logger.Debug(context.Background(), "sweep purged entries", xlog.Count(int64(n)))
		}
	}
	return ref
}

// purgeLocked 记录一个已从桶中摘除的失效条目。调用方必须持有 f.mu。
func (f *Factory[V]) purgeLocked(e *entry[V], drop *[]*Ref[V]) {
	f.size--
	if e.pin != nil {
		*drop = append(*drop, e.pin)
		e.pin = nil
	}
	f.record(context.Background(), EventEvict, xmetrics.String("reason", ReasonPurged))
}

// sweepLocked 清理整个存储中的失效条目，返回清理数量。调用方必须持有 f.mu。
func (f *Factory[V]) sweepLocked(drop *[]*Ref[V]) int {
	n := 0
	for h, bucket := range f.buckets {
		kept := bucket[:0]
		for _, e := range bucket {
			if !e.cell.live() || !e.key.Alive() {
				f.purgeLocked(e, drop)
				n++
				continue
			}
			kept = append(kept, e)
		}
		f.storeBucket(h, bucket, kept)
	}
	return n
}

// storeBucket 写回压缩后的桶，并清空尾部槽位以免残留指针。
func (f *Factory[V]) storeBucket(h uint64, bucket, kept []*entry[V]) {
	clear(bucket[len(kept):])
	if len(kept) == 0 {
		delete(f.buckets, h)
		return
	}
	f.buckets[h] = kept
}

// detach 由值的最后一次释放调用，移除该值对应的条目（若仍在存储中）。
func (f *Factory[V]) detach(e *entry[V]) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.buckets == nil {
		return
	}
	bucket := f.buckets[e.key.hash]
	for i, x := range bucket {
		if x != e {
			continue
		}
		kept := append(bucket[:i], bucket[i+1:]...)
		f.storeBucket(e.key.hash, bucket, kept)
		f.size--
		f.record(context.Background(), EventEvict, xmetrics.String("reason", ReasonReleased))
		return
	}
}

// Purge 立即清理整个存储中的失效条目，返回清理数量。
// 通常不需要调用：失效条目会在访问时以及每 SweepInterval 次未命中时被清理。
func (f *Factory[V]) Purge() int {
	var drop []*Ref[V]
	defer func() { releaseAll(drop) }()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0
	}
	return f.sweepLocked(&drop)
}

// Len 返回当前条目数，可能包含尚未被清理的失效条目。
func (f *Factory[V]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Close 关闭 Factory。
//
// 关闭分两个阶段：先清空保留集合和 WeakKeys 模式下的持有引用；
// 再把仍被外部引用的值从 Factory 上孤立出来，之后它们的释放不再触碰 Factory。
// 孤立过程不会调用任何释放逻辑，已发出的 Ref 在关闭后仍然完全可用。
//
// 关闭时仍有值被外部引用不是错误，但说明 Factory 的生命周期短于它创建的值，
// 会记录一条 Warn 日志。
//
// Close 后 Get/GetWithKey 返回 [ErrClosed]；重复调用 Close 返回 [ErrClosed]。
func (f *Factory[V]) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.closed = true
	drop := f.opts.retention.Clear()
	for _, bucket := range f.buckets {
		for _, e := range bucket {
			if e.pin != nil {
				drop = append(drop, e.pin)
				e.pin = nil
			}
		}
	}
	f.mu.Unlock()

	releaseAll(drop)

	f.mu.Lock()
	residual := 0
	for _, bucket := range f.buckets {
		for _, e := range bucket {
			if e.cell.live() {
				residual++
			}
			e.cell.orphan()
		}
	}
	f.buckets = nil
	f.size = 0
	f.mu.Unlock()

	if f.locker != nil {
		_ = f.locker.Close()
	}

	if residual > 0 {
		ctx := context.Background()
		f.logger.Warn(ctx, "factory closed while values are still referenced; "+
			"they stay usable but are no longer tracked",
			xlog.Count(int64(residual)))
		f.record(ctx, EventOrphan, xmetrics.Int("count", residual))
	}
	return nil
}

func (f *Factory[V]) record(ctx context.Context, name string, attrs ...xmetrics.Attr) {
	xmetrics.Record(ctx, f.opts.observer, xmetrics.Event{
		Component: component,
		Name:      name,
		Attrs:     append([]xmetrics.Attr{xmetrics.String("factory", f.cfg.Name)}, attrs...),
	})
}
