package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LIBRARY_API_BASE_URL.
const EnvPrefix = "LIBRARY"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	API     APIConfig     `mapstructure:"api"`
	Session SessionConfig `mapstructure:"session"`
	Orders  OrdersConfig  `mapstructure:"orders"`
	Events  EventsConfig  `mapstructure:"events"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" split_words:"true"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" split_words:"true"`
	RateLimit       float64       `mapstructure:"rate_limit" split_words:"true"`
	Burst           int           `mapstructure:"burst" split_words:"true"`
	// AllowOrigins lists the UI origins for CORS; "*" allows any
	AllowOrigins    []string      `mapstructure:"allow_origins" split_words:"true"`
}

type APIConfig struct {
	BaseURL         string        `mapstructure:"base_url" split_words:"true"`
	Timeout         time.Duration `mapstructure:"timeout" split_words:"true"`
	RateLimit       float64       `mapstructure:"rate_limit" split_words:"true"`
	Burst           int           `mapstructure:"burst" split_words:"true"`
	BreakerFailures int           `mapstructure:"breaker_failures" split_words:"true"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout" split_words:"true"`
}

type SessionConfig struct {
	// Store is file, memory or redis
	Store    string        `mapstructure:"store" split_words:"true"`
	Path     string        `mapstructure:"path" split_words:"true"`
	ID       string        `mapstructure:"id" split_words:"true"`
	RedisURL string        `mapstructure:"redis_url" split_words:"true"`
	TTL      time.Duration `mapstructure:"ttl" split_words:"true"`
	// Token and Roles seed the store at startup when set
	Token string `mapstructure:"token" split_words:"true"`
	Roles string `mapstructure:"roles" split_words:"true"`
}

type OrdersConfig struct {
	ConfirmDelay time.Duration `mapstructure:"confirm_delay" split_words:"true"`
	CancelMode   string        `mapstructure:"cancel_mode" split_words:"true"`
	NewPoll      time.Duration `mapstructure:"new_poll" split_words:"true"`
	ActivePoll   time.Duration `mapstructure:"active_poll" split_words:"true"`
	FeedLimit    int           `mapstructure:"feed_limit" split_words:"true"`
}

type EventsConfig struct {
	Enabled    bool          `mapstructure:"enabled" split_words:"true"`
	Channel    string        `mapstructure:"channel" split_words:"true"`
	RedisURL   string        `mapstructure:"redis_url" split_words:"true"`
	InstanceID string        `mapstructure:"instance_id" split_words:"true"`
	RetryDelay time.Duration `mapstructure:"retry_delay" split_words:"true"`
}

type LogConfig struct {
	Level string `mapstructure:"level" split_words:"true"`
	JSON  bool   `mapstructure:"json" split_words:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("server.burst", 100)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.rate_limit", 10)
	v.SetDefault("api.burst", 20)
	v.SetDefault("api.breaker_failures", 5)
	v.SetDefault("api.breaker_timeout", 30*time.Second)

	v.SetDefault("session.store", "file")
	v.SetDefault("session.path", "session.json")
	v.SetDefault("session.id", "default")
	v.SetDefault("session.ttl", 24*time.Hour)

	v.SetDefault("orders.confirm_delay", 2*time.Second)
	v.SetDefault("orders.cancel_mode", "reject")
	v.SetDefault("orders.new_poll", 2*time.Second)
	v.SetDefault("orders.active_poll", 100*time.Second)
	v.SetDefault("orders.feed_limit", 100)

	v.SetDefault("events.channel", "library.orders.transitions")
	v.SetDefault("events.retry_delay", time.Second)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml from paths (or the usual locations), then
// applies LIBRARY_ environment overrides. A missing file is not an error.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	switch c.Session.Store {
	case "file", "memory":
	case "redis":
		if c.Session.RedisURL == "" {
			return errors.New("session.redis_url is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown session store %q", c.Session.Store)
	}
	switch c.Orders.CancelMode {
	case "reject", "delete":
	default:
		return fmt.Errorf("unknown cancel mode %q", c.Orders.CancelMode)
	}
	if c.Events.Enabled && c.Events.RedisURL == "" {
		return errors.New("events.redis_url is required when events are enabled")
	}
	return nil
}
