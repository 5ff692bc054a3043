package xunique

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// maxRetain 保留集合大小上限。
const maxRetain = 1 << 24 // 16,777,216

// DefaultSweepInterval 默认每 1024 次未命中做一次全量清理。
const DefaultSweepInterval = 1024

// Config 定义 Factory 配置，创建后不可修改。
type Config struct {
	// Name 用于日志和指标中区分不同的 Factory。
	Name string `koanf:"name"`

	// Retain 保留集合大小。0 表示不保留（KeepNothing），
	// N > 0 表示保留最近 N 个值（KeepLast）。不允许负值，上限 16,777,216。
	Retain int `koanf:"retain"`

	// SweepInterval 每隔多少次未命中做一次全量清理，
	// 回收从未再被访问到的失效条目。0 表示只在访问时清理。
	SweepInterval int `koanf:"sweep_interval"`

	// KeyLock 为 true 时按键加锁：同一键的构造仍然互斥，
	// 不同键的构造可以并发执行。默认整个 Get 在一把锁内完成。
	KeyLock bool `koanf:"key_lock"`

	// WeakKeys 为 true 时，条目在键存活期间强持有值，
	// 键中任一弱引用组件失效后才释放。不含弱引用组件的键会一直保留其值，直到 Close。
	WeakKeys bool `koanf:"weak_keys"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		Name:          "default",
		SweepInterval: DefaultSweepInterval,
	}
}

// Validate 校验配置。
func (c Config) Validate() error {
	if c.Retain < 0 {
		return ErrInvalidRetain
	}
	if c.Retain > maxRetain {
		return ErrRetainExceedsMax
	}
	if c.SweepInterval < 0 {
		return ErrInvalidSweepInterval
	}
	return nil
}

// Format 定义配置数据格式。
type Format string

const (
	// FormatYAML YAML 格式。
	FormatYAML Format = "yaml"
	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// LoadConfig 从 YAML/JSON 数据加载配置。
//
// path 为配置在文档中的路径（如 "cache.unique"），为空时读取整个文档。
// 文档中未出现的字段保留 [DefaultConfig] 的值。返回前会调用 Validate。
func LoadConfig(data []byte, format Format, path string) (Config, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return Config{}, fmt.Errorf("%w: unsupported format %q", ErrInvalidConfig, format)
	}

	k := koanf.New(".")
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf(path, &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile 从文件加载配置，按扩展名（.yaml/.yml/.json）识别格式。
func LoadConfigFile(file, path string) (Config, error) {
	var format Format
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".json":
		format = FormatJSON
	default:
		return Config{}, fmt.Errorf("%w: unknown extension %q", ErrInvalidConfig, ext)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return LoadConfig(data, format, path)
}
