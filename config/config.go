package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Poller    PollerConfig    `mapstructure:"poller"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	PoolSize  int           `mapstructure:"pool_size"`
	OpTimeout time.Duration `mapstructure:"op_timeout"` // read/write deadline per command
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

// GatewayConfig configures the mobile money provider client.
type GatewayConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	PublicKey     string        `mapstructure:"public_key"`
	PrivateKey    string        `mapstructure:"private_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	CallbackURL   string        `mapstructure:"callback_url"`
	ReturnURL     string        `mapstructure:"return_url"`
	LinkTimeout   time.Duration `mapstructure:"link_timeout"`
	ChargeTimeout time.Duration `mapstructure:"charge_timeout"`
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
	MaxRetries    uint64        `mapstructure:"max_retries"`
	RetryWait     time.Duration `mapstructure:"retry_wait"` // first backoff interval
}

// CallBudget is the longest one gateway call can take when every attempt
// uses its full timeout and every backoff wait hits its upper bound.
func (g GatewayConfig) CallBudget(timeout time.Duration) time.Duration {
	budget := time.Duration(g.MaxRetries+1) * timeout
	wait := g.RetryWait
	for i := uint64(0); i < g.MaxRetries; i++ {
		// Exponential backoff: multiplier 1.5, jitter up to +50%, interval capped at 60s.
		budget += wait + wait/2
		wait = min(wait+wait/2, time.Minute)
	}
	return budget
}

// ShutdownGrace is how long the server waits for in-flight requests, sized
// so a gateway call detached from its request can finish all its retries.
func (g GatewayConfig) ShutdownGrace() time.Duration {
	return max(g.CallBudget(g.LinkTimeout), g.CallBudget(g.ChargeTimeout)) + 5*time.Second
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// PollerConfig drives the `watch` command.
type PollerConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type SchedulerConfig struct {
	GrantSweepInterval time.Duration `mapstructure:"grant_sweep_interval"`
}

type RateLimitConfig struct {
	PurchasesPerMinute int64 `mapstructure:"purchases_per_minute"`
	ChargesPerMinute   int64 `mapstructure:"charges_per_minute"`
	StatusPerMinute    int64 `mapstructure:"status_per_minute"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: LXP_.
// Nested keys use underscore: LXP_DATABASE_HOST, LXP_GATEWAY_WEBHOOK_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "lexpay")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.op_timeout", "500ms")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.public_key", "")
	v.SetDefault("gateway.private_key", "")
	v.SetDefault("gateway.webhook_secret", "")
	v.SetDefault("gateway.callback_url", "")
	v.SetDefault("gateway.return_url", "")
	v.SetDefault("gateway.link_timeout", "30s")
	v.SetDefault("gateway.charge_timeout", "45s")
	v.SetDefault("gateway.health_timeout", "5s")
	v.SetDefault("gateway.max_retries", 2)
	v.SetDefault("gateway.retry_wait", "500ms")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "lexpay")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("poller.base_url", "http://localhost:8080")
	v.SetDefault("poller.interval", "10s")
	v.SetDefault("poller.max_attempts", 30)
	v.SetDefault("scheduler.grant_sweep_interval", "1h")
	v.SetDefault("ratelimit.purchases_per_minute", 20)
	v.SetDefault("ratelimit.charges_per_minute", 10)
	v.SetDefault("ratelimit.status_per_minute", 120)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: LXP_DATABASE_HOST -> database.host
	v.SetEnvPrefix("LXP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configurations that cannot run in release mode.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unknown server mode %q", c.Server.Mode)
	}
	if c.Server.Mode != "release" {
		return nil
	}
	var errs []error
	if c.Gateway.PublicKey == "" || c.Gateway.PrivateKey == "" {
		errs = append(errs, errors.New("gateway keys are required"))
	}
	if c.Gateway.BaseURL == "" {
		errs = append(errs, errors.New("gateway base url is required"))
	}
	if c.Gateway.WebhookSecret == "" {
		errs = append(errs, errors.New("gateway webhook secret is required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if c.Storage.Driver == "memory" {
		errs = append(errs, errors.New("memory storage is not allowed in release mode"))
	}
	return errors.Join(errs...)
}
