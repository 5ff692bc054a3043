package xunique

import "errors"

var (
	// ErrClosed 表示 Factory 已关闭。
	// Close 后调用 Get/GetWithKey 返回此错误，重复 Close 也返回此错误。
	ErrClosed = errors.New("xunique: factory closed")

	// ErrReleased 表示引用已释放。
	// Release 第二次及后续调用、对已释放引用调用 Clone 时返回此错误。
	ErrReleased = errors.New("xunique: reference already released")

	// ErrNilCreate 表示构造函数为 nil。
	ErrNilCreate = errors.New("xunique: nil create function")

	// ErrDeadComponent 表示弱引用组件的对象已被回收。
	// 用已失效的组件构造或查询 Key 属于编程错误，以 panic 形式报告。
	ErrDeadComponent = errors.New("xunique: weak key component is dead")

	// ErrNilReference 表示引用组件的指针为 nil。
	ErrNilReference = errors.New("xunique: nil reference component")

	// ErrInvalidRetain 表示保留集合大小配置为负数。
	ErrInvalidRetain = errors.New("xunique: retain must not be negative")

	// ErrRetainExceedsMax 表示保留集合大小超过上限 (16,777,216)。
	ErrRetainExceedsMax = errors.New("xunique: retain must not exceed 16777216")

	// ErrInvalidSweepInterval 表示全量清理间隔配置为负数。
	ErrInvalidSweepInterval = errors.New("xunique: sweep interval must not be negative")

	// ErrInvalidConfig 表示配置数据无法加载或解析。
	ErrInvalidConfig = errors.New("xunique: invalid config")
)
