// Package xkeylock 提供基于 key 的进程内互斥锁。
//
// key 为 uint64，通常是业务键的哈希值。不同业务键的哈希冲突只会让它们
// 共用一把锁（额外的串行化），不会破坏互斥语义。
//
// # 特性
//
//   - Context 支持：Acquire 支持超时和取消（ctx 不得为 nil，否则 panic）
//   - TryAcquire：非阻塞获取，锁被占用时返回 (nil, nil)
//   - Handle 语义：Unlock 幂等（首次返回 nil，后续返回 ErrLockNotHeld）
//   - 分片 map：默认 32 分片，减少管理锁争用
//   - 内存安全：WithMaxKeys(n) 可限制最大 key 数，条目在最后一个持有者/等待者离开时删除
//   - 关闭语义：Close() 拒绝新请求并唤醒所有等待中的 Acquire，已持有的锁不受影响
package xkeylock
