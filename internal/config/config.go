package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"leopard/internal/bench"
	"leopard/internal/logger"
	"leopard/internal/psort"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr               = ":8080"
	DefaultMaxConcurrentSorts = 4
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Engine  EngineConfig  `yaml:"engine" json:"engine"`
	Bench   BenchConfig   `yaml:"bench" json:"bench"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Log     LogConfig     `yaml:"log" json:"log"`
	History HistoryConfig `yaml:"history" json:"history"`
}

// EngineConfig はソートエンジン設定
type EngineConfig struct {
	Workers             int `yaml:"workers" json:"workers"`
	SequentialThreshold int `yaml:"sequential_threshold" json:"sequential_threshold"`
}

// BenchConfig はベンチ設定。Preset を基にして指定した項目だけ上書きする
type BenchConfig struct {
	Preset       string `yaml:"preset" json:"preset"`
	Size         int    `yaml:"size" json:"size"`
	Runs         int    `yaml:"runs" json:"runs"`
	Distribution string `yaml:"distribution" json:"distribution"`
	Seed         uint64 `yaml:"seed" json:"seed"`
	Baseline     *bool  `yaml:"baseline" json:"baseline"`
	Verbose      bool   `yaml:"verbose" json:"verbose"`
}

// ServerConfig は HTTP サーバー設定
type ServerConfig struct {
	Addr               string `yaml:"addr" json:"addr"`
	MaxConcurrentSorts int    `yaml:"max_concurrent_sorts" json:"max_concurrent_sorts"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// HistoryConfig は履歴ストア設定。Path が空なら保存しない
type HistoryConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// ToSortConfig は FileConfig を psort.Config に変換する
func (f *FileConfig) ToSortConfig() psort.Config {
	config := psort.DefaultConfig()
	if f.Engine.Workers > 0 {
		config.WorkerCount = f.Engine.Workers
	}
	if f.Engine.SequentialThreshold > 0 {
		config.SequentialThreshold = f.Engine.SequentialThreshold
	}
	return config
}

// ToBenchConfig は FileConfig を bench.Config に変換する
func (f *FileConfig) ToBenchConfig() (bench.Config, error) {
	bc := f.Bench

	// デフォルト値の設定
	config := bench.DefaultConfig()
	if bc.Preset != "" {
		preset, ok := bench.GetPreset(bc.Preset)
		if !ok {
			return config, fmt.Errorf("unknown preset: %s", bc.Preset)
		}
		config = preset
	}

	if bc.Size > 0 {
		config.Size = bc.Size
	}
	if bc.Runs > 0 {
		config.Runs = bc.Runs
	}
	if bc.Distribution != "" {
		d, err := bench.ParseDistribution(bc.Distribution)
		if err != nil {
			return config, err
		}
		config.Distribution = d
	}
	if bc.Seed != 0 {
		config.Seed = bc.Seed
	}
	if bc.Baseline != nil {
		config.Baseline = *bc.Baseline
	}
	config.Verbose = bc.Verbose

	// Engine設定
	if f.Engine.Workers > 0 {
		config.Workers = f.Engine.Workers
	}
	if f.Engine.SequentialThreshold > 0 {
		config.SequentialThreshold = f.Engine.SequentialThreshold
	}

	return config, nil
}

// LogLevel はログレベルを返す
func (f *FileConfig) LogLevel() (logger.Level, error) {
	return logger.ParseLevel(f.Log.Level)
}

// ServerAddr は待ち受けアドレスを返す
func (f *FileConfig) ServerAddr() string {
	if f.Server.Addr == "" {
		return DefaultAddr
	}
	return f.Server.Addr
}

// MaxConcurrentSorts は同時に実行するソート数の上限を返す
func (f *FileConfig) MaxConcurrentSorts() int {
	if f.Server.MaxConcurrentSorts <= 0 {
		return DefaultMaxConcurrentSorts
	}
	return f.Server.MaxConcurrentSorts
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	if f.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must be non-negative")
	}

	if f.Engine.SequentialThreshold < 0 {
		return fmt.Errorf("engine.sequential_threshold must be non-negative")
	}

	if f.Bench.Size < 0 {
		return fmt.Errorf("bench.size must be non-negative")
	}

	if f.Bench.Runs < 0 {
		return fmt.Errorf("bench.runs must be non-negative")
	}

	if f.Bench.Preset != "" {
		if _, ok := bench.GetPreset(f.Bench.Preset); !ok {
			return fmt.Errorf("bench.preset %q is not a known preset", f.Bench.Preset)
		}
	}

	if _, err := bench.ParseDistribution(f.Bench.Distribution); err != nil {
		return fmt.Errorf("bench.distribution: %w", err)
	}

	if f.Server.MaxConcurrentSorts < 0 {
		return fmt.Errorf("server.max_concurrent_sorts must be non-negative")
	}

	if _, err := f.LogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}
