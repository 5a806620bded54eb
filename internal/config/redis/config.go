// Package redis provides configuration for the change-notification stream
// publish hook.
package redis

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config represents Redis configuration for the change-notification stream.
type Config struct {
	// Enabled toggles publishing committed change batches to the stream.
	Enabled bool `yaml:"enabled"`
	// Addr is the Redis server address (e.g., "localhost:6379").
	Addr string `yaml:"addr"`
	// Password for Redis AUTH, empty if unauthenticated.
	Password string `yaml:"password"`
	// DB selects the Redis logical database.
	DB int `yaml:"db"`
	// Stream is the stream key change batches are XADD'd to.
	Stream string `yaml:"stream"`
	// MaxLen approximately caps the stream length (XADD MAXLEN ~).
	MaxLen int64 `yaml:"max_len"`
	// PublishTimeout bounds a single XADD call.
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	// FailSilently continues a run even if publishing fails.
	FailSilently bool `yaml:"fail_silently"`
}

const (
	defaultAddr           = "localhost:6379"
	defaultStream         = "sitewatch:changes"
	defaultMaxLen         = 10000
	defaultPublishTimeout = 5 * time.Second
)

// NewConfig returns a new Redis configuration with default values.
func NewConfig() *Config {
	return &Config{
		Enabled:        false,
		Addr:           defaultAddr,
		DB:             0,
		Stream:         defaultStream,
		MaxLen:         defaultMaxLen,
		PublishTimeout: defaultPublishTimeout,
		FailSilently:   true,
	}
}

// LoadFromViper loads Redis configuration from Viper with environment
// variable overrides.
func LoadFromViper(v *viper.Viper) *Config {
	cfg := NewConfig()

	if v.IsSet("redis.enabled") {
		cfg.Enabled = v.GetBool("redis.enabled")
	}
	if v.IsSet("redis.addr") {
		cfg.Addr = v.GetString("redis.addr")
	}
	if v.IsSet("redis.password") {
		cfg.Password = v.GetString("redis.password")
	}
	if v.IsSet("redis.db") {
		cfg.DB = v.GetInt("redis.db")
	}
	if v.IsSet("redis.stream") {
		cfg.Stream = v.GetString("redis.stream")
	}
	if v.IsSet("redis.max_len") {
		cfg.MaxLen = v.GetInt64("redis.max_len")
	}
	if v.IsSet("redis.publish_timeout") {
		cfg.PublishTimeout = v.GetDuration("redis.publish_timeout")
	}
	if v.IsSet("redis.fail_silently") {
		cfg.FailSilently = v.GetBool("redis.fail_silently")
	}

	if v.IsSet("REDIS_ADDR") {
		cfg.Addr = v.GetString("REDIS_ADDR")
	}
	if v.IsSet("REDIS_PASSWORD") {
		cfg.Password = v.GetString("REDIS_PASSWORD")
	}

	return cfg
}

// Validate validates the Redis configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return errors.New("redis addr required when enabled")
	}
	if c.Stream == "" {
		return errors.New("redis stream required when enabled")
	}
	if c.PublishTimeout <= 0 {
		return errors.New("redis publish_timeout must be greater than 0")
	}
	return nil
}
