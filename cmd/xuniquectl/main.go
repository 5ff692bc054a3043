// xuniquectl 在进程内对 xunique.Factory 施加并发负载，用于观察命中率、
// 保留策略效果和关闭时的残留情况。
//
// 用法:
//
//	xuniquectl run [选项]
//	xuniquectl version
//
// 退出码:
//
//	0: 成功
//	1: 运行失败
//	2: 参数错误
//
// 示例:
//
//	xuniquectl run --workers 8 --keys 64 --ops 100000 --retain 16
//	xuniquectl run --config unique.yaml --key-lock --hold 4 --log-level debug
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// 版本信息，通过 -ldflags "-X main.Version=..." 注入。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// usageError 表示参数错误，对应退出码 2。
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xuniquectl",
		Usage:     "xunique 唯一实例缓存的负载驱动工具",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Writer:    stdout,
		ErrWriter: stderr,
		Commands: []*cli.Command{
			createRunCommand(),
			createVersionCommand(),
		},
		OnUsageError: onUsageError,
		// 由 run() 统一映射退出码，禁止 urfave/cli 直接 os.Exit。
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

func onUsageError(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return &usageError{err: err}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	err := createApp(stdout, stderr).Run(ctx, args)
	if err == nil {
		return 0
	}
	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "参数错误: %v\n", ue)
		return 2
	}
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return 1
}

func createVersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "显示版本信息",
		Action: func(_ context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintf(cmd.Root().Writer, "xuniquectl %s\ncommit: %s\nbuilt: %s\n",
				Version, GitCommit, BuildTime)
			return err
		},
	}
}
