package xkeylock

import (
	"context"
	"io"
)

// Handle 表示一次成功的锁获取。
// Unlock 是幂等的：第一次调用释放锁并返回 nil，后续调用返回 [ErrLockNotHeld]。
type Handle interface {
	// Unlock 释放锁。
	Unlock() error

	// Key 返回锁的 key。Unlock 之后仍返回原始值。
	Key() uint64
}

// Locker 提供基于 key 的进程内互斥锁。
// 所有方法都是并发安全的。
type Locker interface {
	io.Closer

	// Acquire 阻塞式获取锁。
	// ctx 取消时返回 [context.Canceled] 或 [context.DeadlineExceeded]；
	// Locker 已关闭时返回 [ErrClosed]。ctx 为 nil 时 panic。
	//
	// 若 Close 与 ctx 取消同时发生，两种错误都可能返回。
	// 锁不可重入：同一 goroutine 对同一 key 重复 Acquire 会永久阻塞。
	Acquire(ctx context.Context, key uint64) (Handle, error)

	// TryAcquire 非阻塞获取锁。
	// 锁被占用时返回 (nil, nil)；Locker 已关闭时返回 (nil, [ErrClosed])。
	TryAcquire(key uint64) (Handle, error)

	// Len 返回当前活跃的 key 数量（持有者或等待者不为零的 key）。
	// Close 后仍可调用，返回值随已持有 Handle 的释放逐渐归零。
	Len() int

	// Keys 返回当前活跃的 key 快照，仅用于调试，不保证跨分片原子性。
	Keys() []uint64
}

// New 创建一个新的 Locker 实例。
// 分片数无效时返回包装了 [ErrInvalidShardCount] 的错误。
func New(opts ...Option) (Locker, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return newKeyLock(&o), nil
}
