// Package config loads trackwise CLI settings with viper from a YAML file
// and TRACKWISE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	authsession "github.com/trackwise/authsession"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// ErrInvalid wraps every validation failure from Load.
var ErrInvalid = errors.New("invalid trackwise configuration")

// Config is the complete CLI configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type APIConfig struct {
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// StoreConfig selects where the sealed session lives. Passphrase, when set,
// derives the sealing key; otherwise a random key is kept in KeyFile.
type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	Namespace  string `mapstructure:"namespace"`
	RedisAddr  string `mapstructure:"redis_addr"`
	Passphrase string `mapstructure:"passphrase"`
	KeyFile    string `mapstructure:"key_file"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type OutputConfig struct {
	Colors bool `mapstructure:"colors"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads cfgFile, or .trackwise.yaml from the working directory and
// $HOME/.config/trackwise when cfgFile is empty. A missing file is not an
// error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".trackwise")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/trackwise")
	}

	v.SetEnvPrefix("TRACKWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	dir := DefaultDir()

	v.SetDefault("api.url", "http://localhost:8000/api/v1")
	v.SetDefault("api.timeout", authsession.DefaultConfig().HTTP.Timeout)
	v.SetDefault("api.user_agent", "trackwise-cli/1.0")

	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.path", filepath.Join(dir, "session.db"))
	v.SetDefault("store.namespace", "default")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.passphrase", "")
	v.SetDefault("store.key_file", filepath.Join(dir, "session.key"))

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")

	v.SetDefault("output.colors", true)
	v.SetDefault("metrics.enabled", true)
}

// DefaultDir is the per-user directory for the session database and key.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "trackwise")
	}
	return ".trackwise"
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.Store.Path) == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite backend"))
		}
	case BackendRedis:
		if strings.TrimSpace(c.Store.RedisAddr) == "" {
			errs = append(errs, errors.New("store.redis_addr is required for the redis backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("store.backend %q must be sqlite, redis, or memory", c.Store.Backend))
	}
	if c.Store.Passphrase == "" && c.Store.Backend != BackendMemory && strings.TrimSpace(c.Store.KeyFile) == "" {
		errs = append(errs, errors.New("store.key_file is required without store.passphrase"))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}

	sess := c.Session()
	if err := sess.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrInvalid}, errs...)...)
}

// Session maps the CLI settings onto the library configuration.
func (c *Config) Session() authsession.Config {
	cfg := authsession.DefaultConfig()
	cfg.BaseURL = c.API.URL
	if c.API.Timeout != 0 {
		cfg.HTTP.Timeout = c.API.Timeout
	}
	cfg.HTTP.UserAgent = c.API.UserAgent
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Enabled
	return cfg
}
