package xkeylock

import (
	"context"
	"sync"
	"sync/atomic"
)

// keyLock 是 Locker 的分片实现。
type keyLock struct {
	shards   []shard
	mask     uint64
	maxKeys  int64
	closed   atomic.Bool
	keyCount atomic.Int64
	done     chan struct{}
}

type shard struct {
	mu      sync.Mutex
	entries map[uint64]*lockEntry
}

// lockEntry 表示一个 key 的锁条目。
// ch 是 size=1 的 channel，用作互斥量：
//   - 发送成功 = 获取锁
//   - 发送阻塞 = 锁被占用
//   - 接收 = 释放锁
type lockEntry struct {
	ch chan struct{}
	// refcnt 是引用此条目的 goroutine 数量（持有者 + 等待者），归零时删除条目。
	// 只在所属分片的锁内修改。
	refcnt int32
}

type handle struct {
	kl    *keyLock
	key   uint64
	entry *lockEntry
	done  atomic.Bool
}

func newKeyLock(o *options) *keyLock {
	shards := make([]shard, o.shardCount)
	for i := range shards {
		shards[i].entries = make(map[uint64]*lockEntry)
	}
	return &keyLock{
		shards:  shards,
		mask:    uint64(o.shardCount - 1),
		maxKeys: int64(o.maxKeys),
		done:    make(chan struct{}),
	}
}

// getShard 折叠高低 32 位后取模，小整数 key 与哈希 key 都能均匀分布。
func (kl *keyLock) getShard(key uint64) *shard {
	return &kl.shards[(key^key>>32)&kl.mask]
}

// getOrCreate 获取或创建 lockEntry，并增加引用计数。
func (kl *keyLock) getOrCreate(key uint64) (*lockEntry, error) {
	s := kl.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if kl.closed.Load() {
		return nil, ErrClosed
	}

	e, ok := s.entries[key]
	if !ok {
		if kl.maxKeys > 0 {
			// CAS 严格限制 key 数量，避免跨分片并发突破上限。
			for {
				cur := kl.keyCount.Load()
				if cur >= kl.maxKeys {
					return nil, ErrMaxKeysExceeded
				}
				if kl.keyCount.CompareAndSwap(cur, cur+1) {
					break
				}
			}
		} else {
			kl.keyCount.Add(1)
		}
		e = &lockEntry{ch: make(chan struct{}, 1)}
		s.entries[key] = e
	}
	e.refcnt++
	return e, nil
}

// releaseRef 减少引用计数，归零时从 map 删除。
func (kl *keyLock) releaseRef(key uint64, e *lockEntry) {
	s := kl.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e.refcnt--
	if e.refcnt == 0 {
		delete(s.entries, key)
		kl.keyCount.Add(-1)
	}
}

func (kl *keyLock) Acquire(ctx context.Context, key uint64) (Handle, error) {
	if ctx == nil {
		panic("xkeylock: nil Context")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := kl.getOrCreate(key)
	if err != nil {
		return nil, err
	}
	select {
	case e.ch <- struct{}{}:
		return &handle{kl: kl, key: key, entry: e}, nil
	case <-ctx.Done():
		kl.releaseRef(key, e)
		return nil, ctx.Err()
	case <-kl.done:
		kl.releaseRef(key, e)
		return nil, ErrClosed
	}
}

func (kl *keyLock) TryAcquire(key uint64) (Handle, error) {
	e, err := kl.getOrCreate(key)
	if err != nil {
		return nil, err
	}
	select {
	case e.ch <- struct{}{}:
		return &handle{kl: kl, key: key, entry: e}, nil
	default:
		kl.releaseRef(key, e)
		return nil, nil
	}
}

func (kl *keyLock) Len() int {
	return int(max(kl.keyCount.Load(), 0))
}

func (kl *keyLock) Keys() []uint64 {
	keys := make([]uint64, 0, kl.Len())
	for i := range kl.shards {
		s := &kl.shards[i]
		s.mu.Lock()
		for k := range s.entries {
			keys = append(keys, k)
		}
		s.mu.Unlock()
	}
	return keys
}

func (kl *keyLock) Close() error {
	if !kl.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(kl.done)
	return nil
}

func (h *handle) Unlock() error {
	if !h.done.CompareAndSwap(false, true) {
		return ErrLockNotHeld
	}
	<-h.entry.ch
	h.kl.releaseRef(h.key, h.entry)
	return nil
}

func (h *handle) Key() uint64 {
	return h.key
}

// 编译期接口检查。
var (
	_ Locker = (*keyLock)(nil)
	_ Handle = (*handle)(nil)
)
