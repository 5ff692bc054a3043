// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xkeylock: 基于 key 的进程内互斥锁，支持 context 超时和非阻塞获取
//   - xunique: 唯一实例缓存，引用计数、弱引用键、可选保留策略
//
// 设计原则：
//   - 并发安全，零值或默认配置即可使用
//   - 编程错误 panic，运行时错误通过 error 返回
package util
