// Package firecrawl provides configuration for the optional Firecrawl
// integration: an alternative URL enumerator and content fingerprinter
// for sites that opt into firecrawl_mode instead of the sitemap/fetcher
// pipeline.
package firecrawl

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config represents Firecrawl API configuration.
type Config struct {
	// Enabled toggles the Firecrawl client's construction. A site must
	// also set firecrawl_mode to actually route through it.
	Enabled bool `yaml:"enabled"`
	// APIKey authenticates requests to the Firecrawl API.
	APIKey string `yaml:"api_key"`
	// BaseURL is the Firecrawl API origin.
	BaseURL string `yaml:"base_url"`
	// RequestTimeout bounds a single crawl submission or poll request.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// PollInterval is the delay between crawl-job status polls.
	PollInterval time.Duration `yaml:"poll_interval"`
	// MaxPollAttempts bounds how long a crawl job is polled before giving up.
	MaxPollAttempts int `yaml:"max_poll_attempts"`
}

const (
	defaultBaseURL         = "https://api.firecrawl.dev"
	defaultRequestTimeout  = 30 * time.Second
	defaultPollInterval    = 2 * time.Second
	defaultMaxPollAttempts = 30
)

// NewConfig returns a new Firecrawl configuration with default values.
func NewConfig() *Config {
	return &Config{
		Enabled:         false,
		BaseURL:         defaultBaseURL,
		RequestTimeout:  defaultRequestTimeout,
		PollInterval:    defaultPollInterval,
		MaxPollAttempts: defaultMaxPollAttempts,
	}
}

// LoadFromViper loads Firecrawl configuration from Viper with environment
// variable overrides.
func LoadFromViper(v *viper.Viper) *Config {
	cfg := NewConfig()

	if v.IsSet("firecrawl.enabled") {
		cfg.Enabled = v.GetBool("firecrawl.enabled")
	}
	if v.IsSet("firecrawl.api_key") {
		cfg.APIKey = v.GetString("firecrawl.api_key")
	}
	if v.IsSet("firecrawl.base_url") {
		cfg.BaseURL = v.GetString("firecrawl.base_url")
	}
	if v.IsSet("firecrawl.request_timeout") {
		cfg.RequestTimeout = v.GetDuration("firecrawl.request_timeout")
	}
	if v.IsSet("firecrawl.poll_interval") {
		cfg.PollInterval = v.GetDuration("firecrawl.poll_interval")
	}
	if v.IsSet("firecrawl.max_poll_attempts") {
		cfg.MaxPollAttempts = v.GetInt("firecrawl.max_poll_attempts")
	}

	if v.IsSet("FIRECRAWL_API_KEY") {
		cfg.APIKey = v.GetString("FIRECRAWL_API_KEY")
	}

	return cfg
}

// Validate validates the Firecrawl configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.APIKey == "" {
		return errors.New("firecrawl api_key required when enabled")
	}
	if c.BaseURL == "" {
		return errors.New("firecrawl base_url required when enabled")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("firecrawl request_timeout must be greater than 0")
	}
	if c.PollInterval <= 0 {
		return errors.New("firecrawl poll_interval must be greater than 0")
	}
	if c.MaxPollAttempts <= 0 {
		return errors.New("firecrawl max_poll_attempts must be greater than 0")
	}
	return nil
}
