// Package config binds server settings from flags, MEMGRID_* environment
// variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mcoot/memorygrid/internal/api"
	"github.com/mcoot/memorygrid/internal/factory"
	"github.com/mcoot/memorygrid/internal/services/auth"
	redisstorage "github.com/mcoot/memorygrid/internal/storage/redis"
	"github.com/mcoot/memorygrid/internal/transport/ws"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "MEMGRID"

// Config holds the server's settings
type Config struct {
	Bind            string
	Port            int
	Storage         string
	RedisURL        string
	SessionTTL      time.Duration
	TokenTTL        time.Duration
	JanitorInterval time.Duration
	Keepalive       time.Duration
	LogLevel        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// RegisterFlags defines the server flags on fs, writing into cfg
func RegisterFlags(flags *pflag.FlagSet, cfg *Config) {
	flags.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	flags.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: MEMGRID_BIND)")
	flags.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: MEMGRID_PORT)")
	flags.StringVar(&cfg.Storage, "storage", factory.StorageTypeMemory, "session store: memory or redis (env: MEMGRID_STORAGE)")
	flags.StringVar(&cfg.RedisURL, "redis-url", "redis://localhost:6379", "redis connection URL (env: MEMGRID_REDIS_URL)")
	flags.DurationVar(&cfg.SessionTTL, "session-ttl", 6*time.Hour, "idle time before a session is purged (env: MEMGRID_SESSION_TTL)")
	flags.DurationVar(&cfg.TokenTTL, "token-ttl", 24*time.Hour, "lifetime of issued bearer tokens (env: MEMGRID_TOKEN_TTL)")
	flags.DurationVar(&cfg.JanitorInterval, "janitor-interval", time.Minute, "how often expired sessions and tokens are purged (env: MEMGRID_JANITOR_INTERVAL)")
	flags.DurationVar(&cfg.Keepalive, "keepalive", ws.DefaultConfig().KeepaliveInterval, "interval between keepalive frames (env: MEMGRID_KEEPALIVE)")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "debug, info, warn or error (env: MEMGRID_LOG_LEVEL)")
	flags.DurationVar(&cfg.ReadTimeout, "read-timeout", api.DefaultServerConfig().ReadTimeout, "HTTP read timeout (env: MEMGRID_READ_TIMEOUT)")
	flags.DurationVar(&cfg.WriteTimeout, "write-timeout", api.DefaultServerConfig().WriteTimeout, "HTTP write timeout (env: MEMGRID_WRITE_TIMEOUT)")
	flags.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", api.DefaultServerConfig().ShutdownTimeout, "grace period for in-flight requests on shutdown (env: MEMGRID_SHUTDOWN_TIMEOUT)")
}

// ApplyEnv loads envFile when it exists, then overrides every flag not set
// on the command line from its MEMGRID_* variable
func ApplyEnv(flags *pflag.FlagSet, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if err := flags.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
			}
		}
	})
	return errors.Join(errs...)
}

// Validate checks the settings are usable
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.Storage {
	case factory.StorageTypeMemory:
	case factory.StorageTypeRedis:
		if c.RedisURL == "" {
			return errors.New("--redis-url is required with --storage=redis")
		}
	default:
		return fmt.Errorf("invalid storage %q: must be memory or redis", c.Storage)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	for name, d := range map[string]time.Duration{
		"session-ttl":      c.SessionTTL,
		"token-ttl":        c.TokenTTL,
		"janitor-interval": c.JanitorInterval,
		"keepalive":        c.Keepalive,
	} {
		if d <= 0 {
			return fmt.Errorf("--%s must be positive", name)
		}
	}
	return nil
}

// Level parses the configured log level
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

// Logger builds the JSON logger the server writes to w
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Factory returns the application wiring settings
func (c *Config) Factory(logger *slog.Logger) factory.Config {
	wsCfg := ws.DefaultConfig()
	wsCfg.KeepaliveInterval = c.Keepalive
	wsCfg.PongWait = 4 * c.Keepalive

	cfg := factory.Config{
		AuthConfig:  auth.Config{TokenDuration: c.TokenTTL},
		WebSocket:   wsCfg,
		Logger:      logger,
		StorageType: c.Storage,
	}
	if c.Storage == factory.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.RedisURL
		redisCfg.SessionTTL = c.SessionTTL
		redisCfg.GuestIdentityTTL = c.TokenTTL
		cfg.RedisConfig = &redisCfg
	}
	return cfg
}

// Server returns the HTTP server settings
func (c *Config) Server() api.ServerConfig {
	return api.ServerConfig{
		Host:            c.Bind,
		Port:            c.Port,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		ShutdownTimeout: c.ShutdownTimeout,
	}
}
