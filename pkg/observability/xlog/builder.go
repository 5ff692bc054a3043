package xlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ReplaceAttrFunc 属性替换函数，用于字段重命名、脱敏和过滤。
// 返回空 Key 的 Attr 时该属性会被移除。
type ReplaceAttrFunc func(groups []string, a slog.Attr) slog.Attr

// Builder 日志配置构建器。
//
// 遇到第一个配置错误后，后续 Set 操作的错误被忽略，Build 返回该错误。
type Builder struct {
	output      io.Writer
	levelVar    *slog.LevelVar
	format      string
	addSource   bool
	replaceAttr ReplaceAttrFunc
	rotator     io.Closer
	onError     func(error)
	err         error
}

// New 创建配置构建器：stderr、Info 级别、text 格式。
func New() *Builder {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	return &Builder{
		output:   os.Stderr,
		levelVar: levelVar,
		format:   "text",
	}
}

func (b *Builder) setErr(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// SetOutput 设置日志输出目标
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if w == nil {
		return b.setErr(errors.New("xlog: nil output"))
	}
	b.output = w
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level Level) *Builder {
	b.levelVar.Set(slog.Level(level))
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	level, err := ParseLevel(s)
	if err != nil {
		return b.setErr(err)
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json，空值视为 text。
func (b *Builder) SetFormat(format string) *Builder {
	normalized := strings.ToLower(strings.TrimSpace(format))
	switch normalized {
	case "":
		b.format = "text"
	case "text", "json":
		b.format = normalized
	default:
		return b.setErr(fmt.Errorf("xlog: unknown format %q", format))
	}
	return b
}

// SetAddSource 是否在日志中添加源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetRotation 输出到按大小轮转的日志文件。
// 清理函数会关闭该文件。
func (b *Builder) SetRotation(filename string, opts ...RotateOption) *Builder {
	rotator, err := newRotator(filename, opts...)
	if err != nil {
		return b.setErr(err)
	}
	b.rotator = rotator
	b.output = rotator
	return b
}

// SetReplaceAttr 设置属性替换函数
func (b *Builder) SetReplaceAttr(fn ReplaceAttrFunc) *Builder {
	b.replaceAttr = fn
	return b
}

// SetOnError 设置内部错误回调（Handler.Handle 失败时调用）。
// 回调在日志调用的 goroutine 中同步执行，应保持轻量。
func (b *Builder) SetOnError(fn func(error)) *Builder {
	b.onError = fn
	return b
}

// Build 构建 Logger 实例，同时返回释放资源的清理函数。
func (b *Builder) Build() (LoggerWithLevel, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	opts := &slog.HandlerOptions{
		Level:       b.levelVar,
		AddSource:   b.addSource,
		ReplaceAttr: b.replaceAttr,
	}
	var handler slog.Handler
	if b.format == "json" {
		handler = slog.NewJSONHandler(b.output, opts)
	} else {
		handler = slog.NewTextHandler(b.output, opts)
	}

	logger := &xlogger{
		handler:    handler,
		levelVar:   b.levelVar,
		addSource:  b.addSource,
		onError:    b.onError,
		errorCount: new(atomic.Uint64),
	}

	rotator := b.rotator
	cleanup := sync.OnceValue(func() error {
		if rotator == nil {
			return nil
		}
		return rotator.Close()
	})
	return logger, cleanup, nil
}

// RotateOption 日志轮转配置
type RotateOption func(*lumberjack.Logger)

// 轮转默认值
const (
	DefaultMaxSizeMB  = 500
	DefaultMaxBackups = 7
	DefaultMaxAgeDays = 30
)

// WithMaxSize 设置单个日志文件最大大小（MB）
func WithMaxSize(mb int) RotateOption {
	return func(l *lumberjack.Logger) { l.MaxSize = mb }
}

// WithMaxBackups 设置保留的备份文件数量，0 表示不限制
func WithMaxBackups(n int) RotateOption {
	return func(l *lumberjack.Logger) { l.MaxBackups = n }
}

// WithMaxAge 设置保留备份的天数，0 表示不按天数清理
func WithMaxAge(days int) RotateOption {
	return func(l *lumberjack.Logger) { l.MaxAge = days }
}

// WithCompress 设置是否 gzip 压缩备份文件
func WithCompress(compress bool) RotateOption {
	return func(l *lumberjack.Logger) { l.Compress = compress }
}

func newRotator(filename string, opts ...RotateOption) (*lumberjack.Logger, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, errors.New("xlog: empty rotation filename")
	}
	l := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAge:     DefaultMaxAgeDays,
		Compress:   true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.MaxSize <= 0 || l.MaxBackups < 0 || l.MaxAge < 0 {
		return nil, fmt.Errorf("xlog: invalid rotation settings (size=%dMB backups=%d age=%dd)",
			l.MaxSize, l.MaxBackups, l.MaxAge)
	}
	return l, nil
}
