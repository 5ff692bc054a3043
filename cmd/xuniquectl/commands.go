package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xunique/pkg/observability/xlog"
	"github.com/omeyang/xunique/pkg/util/xunique"
)

func createRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "并发执行 Get/Release 负载并输出统计",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Factory 配置文件（.yaml/.yml/.json）"},
			&cli.StringFlag{Name: "config-path", Usage: "配置在文档中的路径，如 cache.unique"},
			&cli.IntFlag{Name: "retain", Aliases: []string{"r"}, Usage: "保留集合大小，覆盖配置文件"},
			&cli.BoolFlag{Name: "key-lock", Usage: "按键加锁，覆盖配置文件"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "并发 worker 数", Value: 4},
			&cli.IntFlag{Name: "keys", Aliases: []string{"k"}, Usage: "不同键的数量", Value: 64},
			&cli.IntFlag{Name: "ops", Aliases: []string{"n"}, Usage: "每个 worker 的 Get 次数", Value: 10000},
			&cli.IntFlag{Name: "hold", Usage: "每个 worker 持有的引用数，0 表示立即释放"},
			&cli.IntFlag{Name: "leak", Usage: "结束时故意不释放的引用数，用于观察关闭时的孤立告警"},
			&cli.Uint64Flag{Name: "seed", Usage: "随机种子，0 表示使用固定默认值"},
			&cli.StringFlag{Name: "log-level", Usage: "日志级别 (debug/info/warn/error)", Value: "info"},
			&cli.StringFlag{Name: "log-format", Usage: "日志格式 (text/json)", Value: "text"},
			&cli.StringFlag{Name: "log-file", Usage: "日志文件路径（按大小轮转），默认输出到 stderr"},
		},
		OnUsageError: onUsageError,
		Action:       cmdRun,
	}
}

func cmdRun(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadFactoryConfig(cmd)
	if err != nil {
		return err
	}
	wl := workload{
		Workers: cmd.Int("workers"),
		Keys:    cmd.Int("keys"),
		Ops:     cmd.Int("ops"),
		Hold:    cmd.Int("hold"),
		Leak:    cmd.Int("leak"),
		Seed:    cmd.Uint64("seed"),
	}
	if err := wl.validate(); err != nil {
		return err
	}

	logger, cleanup, err := buildLogger(cmd)
	if err != nil {
		return usagef("%v", err)
	}
	defer func() { _ = cleanup() }()

	st, err := runWorkload(ctx, cfg, wl, logger)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, st)
	return err
}

// loadFactoryConfig 读取配置文件（若指定），再用命令行参数覆盖。
func loadFactoryConfig(cmd *cli.Command) (xunique.Config, error) {
	cfg := xunique.DefaultConfig()
	cfg.Name = "xuniquectl"
	if file := cmd.String("config"); file != "" {
		loaded, err := xunique.LoadConfigFile(file, cmd.String("config-path"))
		if err != nil {
			return xunique.Config{}, usagef("%v", err)
		}
		cfg = loaded
	}
	if cmd.IsSet("retain") {
		cfg.Retain = cmd.Int("retain")
	}
	if cmd.IsSet("key-lock") {
		cfg.KeyLock = cmd.Bool("key-lock")
	}
	if err := cfg.Validate(); err != nil {
		return xunique.Config{}, usagef("%v", err)
	}
	return cfg, nil
}

func buildLogger(cmd *cli.Command) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetOutput(cmd.Root().ErrWriter).
		SetLevelString(cmd.String("log-level")).
		SetFormat(cmd.String("log-format"))
	if file := cmd.String("log-file"); file != "" {
		b = b.SetRotation(file, xlog.WithMaxSize(100), xlog.WithMaxBackups(3))
	}
	return b.Build()
}
