package xunique

import (
	"github.com/omeyang/xunique/pkg/observability/xlog"
	"github.com/omeyang/xunique/pkg/observability/xmetrics"
)

// Option 定义 Factory 可选配置函数类型。
type Option[V any] func(*options[V])

type options[V any] struct {
	retention     Retention[V]
	onRelease     func(key Key, value V)
	logger        xlog.Logger
	observer      xmetrics.Observer
	keyLockShards int
}

// WithRetention 设置保留策略，优先于 Config.Retain。
// r 为 nil 时忽略。
func WithRetention[V any](r Retention[V]) Option[V] {
	return func(o *options[V]) {
		if r != nil {
			o.retention = r
		}
	}
}

// WithKeepLast 等价于 WithRetention(KeepLast[V](n))。
func WithKeepLast[V any](n int) Option[V] {
	return WithRetention(KeepLast[V](n))
}

// WithOnRelease 设置值被最终释放时的回调。
//
// 回调在最后一个引用的 Release 调用中同步执行，此时条目已从 Factory 移除；
// Factory 关闭后仍持有的值在释放时同样会触发回调。
// 回调可以安全地调用 Factory 的方法。
func WithOnRelease[V any](fn func(key Key, value V)) Option[V] {
	return func(o *options[V]) {
		o.onRelease = fn
	}
}

// WithLogger 设置日志实例，默认使用 xlog.Default()。
func WithLogger[V any](l xlog.Logger) Option[V] {
	return func(o *options[V]) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 设置观测实例，默认不做观测。
func WithObserver[V any](obs xmetrics.Observer) Option[V] {
	return func(o *options[V]) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithKeyLockShards 设置按键加锁模式下的分片数（2 的幂）。
// 仅在 Config.KeyLock 为 true 时生效。
func WithKeyLockShards[V any](n int) Option[V] {
	return func(o *options[V]) {
		o.keyLockShards = n
	}
}
