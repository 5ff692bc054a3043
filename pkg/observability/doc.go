// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持按大小轮转
//   - xmetrics: 统一可观测性接口（指标、跨度、事件），默认实现基于 OpenTelemetry
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 日志与观测接口都以 context 为第一个参数
//   - 未配置时退化为无开销的空实现
package observability
