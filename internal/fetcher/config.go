package fetcher

import "time"

// Default configuration values, mirroring spec.md §4.1's recommended
// defaults.
const (
	defaultUserAgent        = "sitewatch/1.0"
	defaultRequestTimeout   = 15 * time.Second
	defaultMaxConcurrent    = 20
	defaultRedirectCap      = 10
	defaultPerHostInterval  = 100 * time.Millisecond
	defaultRetryMaxAttempts = 3
	defaultRetryInitialWait = 1 * time.Second
	defaultRetryMaxWait     = 10 * time.Second
	defaultRetryMultiplier  = 2.0
)

// Config holds Fetcher configuration.
type Config struct {
	UserAgent       string        `yaml:"user_agent"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxConcurrent   int           `yaml:"max_concurrent_fetches"`
	RedirectCap     int           `yaml:"redirect_cap"`
	PerHostInterval time.Duration `yaml:"per_host_interval"`

	// RetryMaxAttempts, RetryInitialWait, RetryMaxWait, and RetryMultiplier
	// drive the transient-failure backoff described in spec.md §7: a
	// Failure whose Retryable() is true is re-attempted with exponential
	// backoff plus jitter, up to RetryMaxAttempts total attempts.
	RetryMaxAttempts int           `yaml:"retry_max_attempts"`
	RetryInitialWait time.Duration `yaml:"retry_initial_wait"`
	RetryMaxWait     time.Duration `yaml:"retry_max_wait"`
	RetryMultiplier  float64       `yaml:"retry_multiplier"`
}

// WithDefaults returns a copy of the config with default values applied for
// zero-value fields.
func (c Config) WithDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.RedirectCap <= 0 {
		c.RedirectCap = defaultRedirectCap
	}
	if c.PerHostInterval <= 0 {
		c.PerHostInterval = defaultPerHostInterval
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = defaultRetryMaxAttempts
	}
	if c.RetryInitialWait <= 0 {
		c.RetryInitialWait = defaultRetryInitialWait
	}
	if c.RetryMaxWait <= 0 {
		c.RetryMaxWait = defaultRetryMaxWait
	}
	if c.RetryMultiplier <= 0 {
		c.RetryMultiplier = defaultRetryMultiplier
	}
	return c
}
