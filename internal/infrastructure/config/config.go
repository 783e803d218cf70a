package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"hazard-notification-sse/internal/infrastructure/logger"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Stream StreamConfig `mapstructure:"stream"`
	Poll   PollConfig   `mapstructure:"poll"`
	Client ClientConfig `mapstructure:"client"`
	Store  StoreConfig  `mapstructure:"store"`
	Push   PushConfig   `mapstructure:"push"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StreamConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type PollConfig struct {
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

type ClientConfig struct {
	StreamURL     string        `mapstructure:"stream_url"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	ReadMarkDelay time.Duration `mapstructure:"read_mark_delay"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"` // postgres, sqlite
	DSN    string `mapstructure:"dsn"`
}

type PushConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`

	Environment string            `mapstructure:"environment"`
	Version     string            `mapstructure:"version"`
	Node        string            `mapstructure:"node"`
	Fields      map[string]string `mapstructure:"fields"`
}

// Load reads an optional config file plus HAZARD_* environment overrides.
// An empty path means defaults and environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("hazard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("stream.heartbeat_interval", 30*time.Second)
	v.SetDefault("stream.write_timeout", 10*time.Second)

	v.SetDefault("poll.query_timeout", 5*time.Second)

	v.SetDefault("client.stream_url", "http://localhost:8080/api/notifications/stream")
	v.SetDefault("client.retry_delay", 5*time.Second)
	v.SetDefault("client.read_mark_delay", 5*time.Second)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "file:hazard.db?_pragma=busy_timeout(5000)")

	v.SetDefault("push.enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.environment", "")
	v.SetDefault("log.version", "")
	v.SetDefault("log.node", "")
}

func (c Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Stream.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("stream.heartbeat_interval must be positive"))
	}
	if c.Stream.WriteTimeout < 0 {
		errs = append(errs, errors.New("stream.write_timeout cannot be negative"))
	}
	if c.Client.RetryDelay <= 0 {
		errs = append(errs, errors.New("client.retry_delay must be positive"))
	}
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be postgres or sqlite", c.Store.Driver))
	}
	if c.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn is required"))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// Logger converts the log section into the logger package's config, with
// service naming the binary.
func (c Config) Logger(service string) *logger.Config {
	lc := logger.NewConfig(logger.Instance{
		Service:     service,
		Environment: c.Log.Environment,
		Version:     c.Log.Version,
		Node:        c.Log.Node,
	}, c.Log.Fields)

	lc.Level, _ = logger.ParseLevel(c.Log.Level)
	lc.Format = c.Log.Format
	lc.Output = c.Log.Output
	lc.FilePath = c.Log.FilePath
	lc.Rotation = logger.Rotation{
		MaxSizeMB:  c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAge,
		Compress:   c.Log.Compress,
	}
	return lc
}
