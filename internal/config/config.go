// Package config loads mhd settings from an optional YAML file and MHD_* environment variables.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"golang.org/x/text/language"

	"github.com/DaDevFox/task-systems/mhd-core/internal/notify"
	"github.com/DaDevFox/task-systems/mhd-core/internal/repository"
	"github.com/DaDevFox/task-systems/mhd-core/internal/scheduler"
)

// EnvPrefix marks environment variables read by Load.
const EnvPrefix = "MHD_"

// Config is the process configuration
type Config struct {
	Storage   StorageConfig   `koanf:"storage"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Logging   LoggingConfig   `koanf:"logging"`
	Notify    NotifyConfig    `koanf:"notify"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Locale    string          `koanf:"locale"`
}

type StorageConfig struct {
	Path string `koanf:"path"`
	Type string `koanf:"type"`
}

type SchedulerConfig struct {
	Interval time.Duration `koanf:"interval"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// NotifyConfig selects delivery channels. Method may list several, comma separated.
type NotifyConfig struct {
	Method    string `koanf:"method"`
	NtfyHost  string `koanf:"ntfy_host"`
	NtfyTopic string `koanf:"ntfy_topic"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Path: "./data/mhd",
			Type: string(repository.DatabaseTypeBolt),
		},
		Scheduler: SchedulerConfig{Interval: scheduler.DefaultInterval},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Notify: NotifyConfig{
			Method:   string(notify.MethodLog),
			NtfyHost: "ntfy.sh",
		},
		Locale: "de",
	}
}

// Load builds the configuration. Precedence, highest first:
//
//	MHD_* environment variables (MHD_STORAGE_PATH -> storage.path)
//	the YAML file at path, if path is set and the file exists
//	Default()
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, errors.Wrapf(err, "failed to parse config file %s", path)
			}
		case !os.IsNotExist(err):
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment variables")
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return &cfg, nil
}

// envKey maps MHD_SECTION_FIELD_NAME to section.field_name
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	dbType, err := repository.ParseDatabaseType(c.Storage.Type)
	if err != nil {
		return err
	}
	if dbType != repository.DatabaseTypeMemory && strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path must not be empty")
	}
	if c.Scheduler.Interval <= 0 {
		return errors.Errorf("scheduler.interval must be positive, got %s", c.Scheduler.Interval)
	}
	if _, err := c.LanguageTag(); err != nil {
		return err
	}
	for _, method := range c.NotifyMethods() {
		switch method {
		case notify.MethodLog, notify.MethodNone:
		case notify.MethodNtfy:
			if strings.TrimSpace(c.Notify.NtfyTopic) == "" {
				return errors.New("notify.ntfy_topic is required for ntfy notifications")
			}
		default:
			return errors.Errorf("unknown notify.method %q", method)
		}
	}
	return nil
}

// DatabaseType parses Storage.Type
func (c *Config) DatabaseType() (repository.DatabaseType, error) {
	return repository.ParseDatabaseType(c.Storage.Type)
}

// LanguageTag parses Locale
func (c *Config) LanguageTag() (language.Tag, error) {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Und, errors.Wrapf(err, "invalid locale %q", c.Locale)
	}
	return tag, nil
}

// NotifyMethods splits Notify.Method into its channels
func (c *Config) NotifyMethods() []notify.Method {
	var methods []notify.Method
	for _, part := range strings.Split(c.Notify.Method, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			methods = append(methods, notify.Method(part))
		}
	}
	return methods
}

// NotifyOptions converts the notify section for notify.New
func (c *Config) NotifyOptions() notify.Options {
	return notify.Options{
		Methods:   c.NotifyMethods(),
		NtfyHost:  c.Notify.NtfyHost,
		NtfyTopic: c.Notify.NtfyTopic,
	}
}
