// Package config loads logminer settings from defaults, an optional YAML
// file, LOGMINER_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/logminer/logminer-go/pkg/logminer"
	"github.com/logminer/logminer-go/pkg/logminer/pattern"
)

// EnvPrefix prefixes environment overrides: log.level is LOGMINER_LOG_LEVEL.
const EnvPrefix = "LOGMINER"

// Config is the complete set of settings.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Output     OutputConfig     `mapstructure:"output"`
	Parse      ParseConfig      `mapstructure:"parse"`
	Analyze    AnalyzeConfig    `mapstructure:"analyze"`
	CloudWatch CloudWatchConfig `mapstructure:"cloudwatch"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
}

type ParseConfig struct {
	Include          []string      `mapstructure:"include"`
	IncludeUnmatched bool          `mapstructure:"include_unmatched"`
	MaxLineBytes     int           `mapstructure:"max_line_bytes"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
}

type AnalyzeConfig struct {
	Include       []string      `mapstructure:"include"`
	Exclude       []string      `mapstructure:"exclude"`
	Placeholder   string        `mapstructure:"placeholder"`
	Format        string        `mapstructure:"format"`
	Plugins       []string      `mapstructure:"plugins"`
	PluginTimeout time.Duration `mapstructure:"plugin_timeout"`
}

type CloudWatchConfig struct {
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("output.format", "jsonl")
	v.SetDefault("parse.include", []string{"*"})
	v.SetDefault("parse.include_unmatched", false)
	v.SetDefault("parse.max_line_bytes", logminer.DefaultMaxLineBytes)
	v.SetDefault("parse.poll_interval", 2*time.Second)
	v.SetDefault("analyze.include", []string{})
	v.SetDefault("analyze.exclude", []string{})
	v.SetDefault("analyze.placeholder", logminer.DefaultPlaceholderGroup)
	v.SetDefault("analyze.format", "")
	v.SetDefault("analyze.plugins", []string{})
	v.SetDefault("analyze.plugin_timeout", 200*time.Millisecond)
	v.SetDefault("cloudwatch.region", "")
	v.SetDefault("cloudwatch.profile", "")
	v.SetDefault("metrics.textfile", "")
}

// New returns a viper instance with defaults and environment overrides.
// When file is empty, .logminer.yaml is looked up in the home and working
// directories and may be absent; a named file must exist.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		return v, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")
	v.SetConfigName(".logminer")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Validate checks every setting and reports the first problem.
func Validate(cfg *Config) error {
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: invalid level %q (must be debug, info, warn or error)", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: invalid format %q (must be text or json)", cfg.Log.Format)
	}
	switch cfg.Output.Format {
	case "jsonl", "pretty", "text":
	default:
		return fmt.Errorf("output.format: invalid format %q (must be jsonl, pretty or text)", cfg.Output.Format)
	}

	if cfg.Parse.MaxLineBytes <= 0 {
		return fmt.Errorf("parse.max_line_bytes: must be positive, got %d", cfg.Parse.MaxLineBytes)
	}
	if cfg.Parse.PollInterval <= 0 {
		return fmt.Errorf("parse.poll_interval: must be positive, got %s", cfg.Parse.PollInterval)
	}

	if _, err := logminer.NewCompiler(cfg.Analyze.Placeholder); err != nil {
		return fmt.Errorf("analyze.placeholder: %w", err)
	}
	if _, ok := pattern.ParseFormat(cfg.Analyze.Format); !ok {
		return fmt.Errorf("analyze.format: invalid format %q (must be pipe or yaml)", cfg.Analyze.Format)
	}
	if cfg.Analyze.PluginTimeout <= 0 {
		return fmt.Errorf("analyze.plugin_timeout: must be positive, got %s", cfg.Analyze.PluginTimeout)
	}
	for i, p := range cfg.Analyze.Plugins {
		if _, _, err := ParsePlugin(p); err != nil {
			return fmt.Errorf("analyze.plugins[%d]: %w", i, err)
		}
	}
	return nil
}

// ParsePlugin splits a plugin entry of the form "ext=path", e.g.
// ".kt=plugins/kotlin.wasm", into the source extension and the module path.
func ParsePlugin(entry string) (ext, path string, err error) {
	ext, path, ok := strings.Cut(entry, "=")
	ext = strings.TrimSpace(ext)
	path = strings.TrimSpace(path)
	if !ok || ext == "" || path == "" {
		return "", "", fmt.Errorf("invalid plugin %q (want ext=path)", entry)
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.ToLower(ext), path, nil
}
