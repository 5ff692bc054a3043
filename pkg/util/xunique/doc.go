// Package xunique 提供进程内的唯一实例缓存（unique factory）。
//
// 对同一个存活的键，[Factory.Get] 在任意时刻至多构造一次值，并发调用方拿到的是同一个实例。
// 值通过带引用计数的 [Ref] 交给调用方；最后一个 Ref 被 Release 时，
// 条目立即从缓存中移除，缓存本身不会让值继续存活（保留策略除外）。
//
// # 复合键
//
// [Key] 由若干组件按顺序组成：
//   - [Plain]：普通值，按值比较；
//   - [Strong]：强引用，键存续期间持有被引用对象；
//   - [Weak]：弱引用，不持有被引用对象，对象被回收后键失效，
//     失效条目在下次访问或定期清理时移除，不会再被命中。
//
// 引用组件按解引用后的值比较，不比较地址，也不区分组件种类。
// 用已经失效的弱引用构造键或查询属于编程错误，会 panic（见 [ErrDeadComponent]）。
//
// # 保留策略
//
// [KeepNothing]（默认）不额外持有值；[KeepLast] 持有最近 N 个值，
// 集合满后在加入下一个新值之前整体清空。Config.Retain 与 [WithRetention] 用于选择策略。
//
// # 加锁模式
//
// 默认整个 Get（包括构造函数）在一把锁内完成。开启 Config.KeyLock 后改为按键加锁，
// 不同键的构造可以并发，构造函数中也可以调用同一个 Factory。
//
// # 关闭
//
// [Factory.Close] 总是安全的：仍被外部持有的值被孤立出来，照常可用，
// 之后的释放不再触碰 Factory。这种情况会记录一条 Warn 日志。
//
// # 观测
//
// 日志使用 xlog，指标和跨度通过 xmetrics.Observer 上报：
// 构造过程是一个跨度，命中、未命中、淘汰、孤立是事件。
package xunique
