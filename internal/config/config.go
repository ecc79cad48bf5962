package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/fuzzbridge/internal/bridge"
	"github.com/loykin/fuzzbridge/internal/env"
	"github.com/loykin/fuzzbridge/internal/input"
	"github.com/loykin/fuzzbridge/internal/logger"
)

// EnvPrefix prefixes every environment override, e.g. FUZZBRIDGE_TARGET_COMMAND.
const EnvPrefix = "FUZZBRIDGE"

// DefaultHistoryDSN is used when history is enabled without a DSN.
const DefaultHistoryDSN = "sqlite://fuzzbridge-history.db"

// ErrInvalid marks a configuration that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the top-level TOML structure.
type Config struct {
	Input   InputConfig   `toml:"input" mapstructure:"input"`
	Target  TargetConfig  `toml:"target" mapstructure:"target"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`
	History HistoryConfig `toml:"history" mapstructure:"history"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`
}

type InputConfig struct {
	MaxBytes int `toml:"max_bytes" mapstructure:"max_bytes"`
}

type TargetConfig struct {
	Command  string        `toml:"command" mapstructure:"command"`
	Args     []string      `toml:"args" mapstructure:"args"`
	WorkDir  string        `toml:"workdir" mapstructure:"workdir"`
	Env      []string      `toml:"env" mapstructure:"env"`
	EnvFiles []string      `toml:"env_files" mapstructure:"env_files"`
	Timeout  time.Duration `toml:"timeout" mapstructure:"timeout"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Format     string `toml:"format" mapstructure:"format"`
	Color      string `toml:"color" mapstructure:"color"`
	File       string `toml:"file" mapstructure:"file"`
	TargetDir  string `toml:"target_dir" mapstructure:"target_dir"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	DSN     string `toml:"dsn" mapstructure:"dsn"`
}

type MetricsConfig struct {
	Textfile       string        `toml:"textfile" mapstructure:"textfile"`
	PushURL        string        `toml:"push_url" mapstructure:"push_url"`
	Job            string        `toml:"job" mapstructure:"job"`
	SampleInterval time.Duration `toml:"sample_interval" mapstructure:"sample_interval"`
}

// NewViper returns a viper instance with defaults and FUZZBRIDGE_ environment
// overrides registered. Callers may bind flags on it before Load; viper then
// resolves flag > env > file > default.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("input.max_bytes", input.DefaultMaxCapacity)
	v.SetDefault("target.command", bridge.DefaultCommand)
	v.SetDefault("target.args", []string{bridge.DefaultScript})
	v.SetDefault("target.workdir", "")
	v.SetDefault("target.env", []string{})
	v.SetDefault("target.env_files", []string{})
	v.SetDefault("target.timeout", time.Duration(0))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.color", "auto")
	v.SetDefault("log.file", "")
	v.SetDefault("log.target_dir", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.dsn", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.push_url", "")
	v.SetDefault("metrics.job", "fuzzbridge")
	v.SetDefault("metrics.sample_interval", time.Duration(0))
	return v
}

// Load reads path (when non-empty) into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile is Load with a fresh viper instance.
func LoadFile(path string) (*Config, error) {
	return Load(NewViper(), path)
}

// Validate rejects settings the harness cannot act on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Target.Command) == "" {
		return fmt.Errorf("%w: target.command is empty", ErrInvalid)
	}
	if c.Target.Timeout < 0 {
		return fmt.Errorf("%w: target.timeout %s is negative", ErrInvalid, c.Target.Timeout)
	}
	if c.Metrics.SampleInterval < 0 {
		return fmt.Errorf("%w: metrics.sample_interval %s is negative", ErrInvalid, c.Metrics.SampleInterval)
	}
	if c.Input.MaxBytes < 0 {
		return fmt.Errorf("%w: input.max_bytes %d is negative", ErrInvalid, c.Input.MaxBytes)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q (want text or json)", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Logger maps the [log] section onto logger.Config.
func (c *Config) Logger() logger.Config {
	return logger.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		Color:  c.Log.Color,
		File: logger.FileConfig{
			Path:       c.Log.File,
			Dir:        c.Log.TargetDir,
			MaxSizeMB:  c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAgeDays: c.Log.MaxAgeDays,
			Compress:   c.Log.Compress,
		},
	}
}

// TargetEnv returns the target's environment, or nil to inherit ours
// unchanged when neither env nor env_files is configured.
func (c *Config) TargetEnv() ([]string, error) {
	if len(c.Target.Env) == 0 && len(c.Target.EnvFiles) == 0 {
		return nil, nil
	}
	e := env.New()
	if err := e.LoadFiles(c.Target.EnvFiles...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return e.Merge(c.Target.Env), nil
}

// BridgeTarget builds the target description without output capture; the
// caller attaches writers from Logger().TargetWriters.
func (c *Config) BridgeTarget() (bridge.Target, error) {
	envList, err := c.TargetEnv()
	if err != nil {
		return bridge.Target{}, err
	}
	return bridge.Target{
		Command: c.Target.Command,
		Args:    append([]string(nil), c.Target.Args...),
		Dir:     c.Target.WorkDir,
		Env:     envList,
		Timeout: c.Target.Timeout,
	}, nil
}

// HistoryDSN is the sink DSN, or "" when history is off. A DSN set without
// enabled=true still turns history on.
func (c *Config) HistoryDSN() string {
	if c.History.DSN != "" {
		return c.History.DSN
	}
	if c.History.Enabled {
		return DefaultHistoryDSN
	}
	return ""
}
