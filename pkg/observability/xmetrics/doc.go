// Package xmetrics 提供统一的观测接口，默认实现基于 OpenTelemetry。
//
// 两类观测：
//   - 跨度（[Start]）：有起止的操作，如值的构造。OTel 实现产生 span，
//     并记录操作计数和耗时。
//   - 事件（[Record]）：瞬时发生的事情，如命中、未命中、淘汰。
//     OTel 实现只记录计数器，开销足够低，可以在持锁的路径上调用。
//
// 库代码接受 [Observer] 接口，未配置时使用 [NoopObserver]。
package xmetrics
