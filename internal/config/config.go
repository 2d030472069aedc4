package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fjod/go_cart/storefront/pkg/logger"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	API      APIConfig      `mapstructure:"api"`
	Cart     CartConfig     `mapstructure:"cart"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Session  SessionConfig  `mapstructure:"session"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port               string        `mapstructure:"port"`
	Mode               string        `mapstructure:"mode"` // debug / release
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`
}

// APIConfig describes the upstream storefront API.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// AuthScheme prefixes the token in the Authorization header. Empty sends
	// the raw token.
	AuthScheme string `mapstructure:"auth_scheme"`
	UserAgent  string `mapstructure:"user_agent"`
}

type CartConfig struct {
	MinQty          int `mapstructure:"min_qty"`
	MaxQty          int `mapstructure:"max_qty"`
	JoinConcurrency int `mapstructure:"join_concurrency"`
}

type CheckoutConfig struct {
	SuccessDelay time.Duration `mapstructure:"success_delay"`
}

type SessionConfig struct {
	Backend string        `mapstructure:"backend"` // memory / redis
	Key     string        `mapstructure:"key"`
	TTL     time.Duration `mapstructure:"ttl"` // used when the token carries no exp
}

type CatalogConfig struct {
	Cache           string        `mapstructure:"cache"` // memory / redis / none
	ProductCacheTTL time.Duration `mapstructure:"product_cache_ttl"`
	Breaker         BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	OpenTimeout         time.Duration `mapstructure:"open_timeout"`
	Interval            time.Duration `mapstructure:"interval"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ToLoggerOptions converts the log section plus the server mode.
func (c Config) ToLoggerOptions() logger.Options {
	return logger.Options{
		Mode:       c.Server.Mode,
		Dir:        c.Log.Dir,
		Filename:   c.Log.Filename,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

// UsesRedis reports whether any component is configured with the redis backend.
func (c Config) UsesRedis() bool {
	return strings.EqualFold(c.Session.Backend, "redis") || strings.EqualFold(c.Catalog.Cache, "redis")
}

// Load reads config.yml from the usual locations (or the explicit path) and
// applies STOREFRONT_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./etc")
		v.AddConfigPath("../")
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("config: api.timeout must be positive")
	}
	if c.Cart.MinQty < 1 || c.Cart.MaxQty < c.Cart.MinQty {
		return fmt.Errorf("config: invalid quantity bounds [%d, %d]", c.Cart.MinQty, c.Cart.MaxQty)
	}
	if c.Checkout.SuccessDelay < 0 {
		return errors.New("config: checkout.success_delay must not be negative")
	}
	switch strings.ToLower(c.Session.Backend) {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown session.backend %q", c.Session.Backend)
	}
	switch strings.ToLower(c.Catalog.Cache) {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("config: unknown catalog.cache %q", c.Catalog.Cache)
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		return errors.New("config: redis.addr is required by the redis backend")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 35*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_request_body_size", 1<<20)

	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.auth_scheme", "Bearer")
	v.SetDefault("api.user_agent", "storefront/1.0")

	v.SetDefault("cart.min_qty", 1)
	v.SetDefault("cart.max_qty", 10)
	v.SetDefault("cart.join_concurrency", 8)

	v.SetDefault("checkout.success_delay", 3*time.Second)

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.key", "jwt_token")
	v.SetDefault("session.ttl", 24*time.Hour)

	v.SetDefault("catalog.cache", "memory")
	v.SetDefault("catalog.product_cache_ttl", 5*time.Minute)
	v.SetDefault("catalog.breaker.consecutive_failures", 5)
	v.SetDefault("catalog.breaker.open_timeout", 30*time.Second)
	v.SetDefault("catalog.breaker.interval", time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "storefront:")

	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "storefront.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
