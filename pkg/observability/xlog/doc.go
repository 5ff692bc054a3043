// Package xlog 基于 log/slog 的结构化日志库。
//
// # 创建 Logger
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetRotation("/var/log/app.log", xlog.WithMaxSize(100)).
//		Build()
//	if err != nil {
//		return err
//	}
//	defer cleanup()
//
// Builder 遇到第一个配置错误后由 Build 返回，之后的错误被忽略。
// 日志轮转基于 lumberjack，清理函数关闭日志文件，可重复调用。
//
// # 全局 Logger
//
// [Default] 惰性创建（stderr、Info、text），[SetDefault] 替换，
// [Debug]、[Info]、[Warn]、[Error] 是对应的全局便利函数。
//
// # 派生 Logger
//
// [Logger.With] 和 [Logger.WithGroup] 返回的 Logger 共享父级的 LevelVar，
// 可通过类型断言为 [LoggerWithLevel] 获取级别控制。
package xlog
