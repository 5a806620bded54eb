// Package proxy provides configuration for the Fetcher's optional Tor/SOCKS
// proxy mode.
package proxy

import (
	"errors"
	"time"
)

// Config represents the Fetcher's proxy mode configuration.
type Config struct {
	// Provider selects the proxy mode. Empty string means direct
	// connections only; "tor" routes fetches through a local SOCKS5
	// endpoint.
	Provider string `yaml:"provider"`
	// SOCKSAddr is the local SOCKS5 listener address (e.g. "127.0.0.1:9050").
	SOCKSAddr string `yaml:"socks_addr"`
	// RotateEvery requests a new circuit after this many successful
	// fetches. Zero disables rotation.
	RotateEvery int `yaml:"rotate_every"`
	// ControlAddr is the Tor control port address used to request a new
	// circuit (e.g. "127.0.0.1:9051").
	ControlAddr string `yaml:"control_addr"`
	// ControlPassword authenticates to the Tor control port.
	ControlPassword string `yaml:"control_password"`
	// AllowDirectFallback permits falling back to a direct connection when
	// a dial through the proxy fails. When false, proxy failure surfaces as
	// ConnectionRefused and the run aborts.
	AllowDirectFallback bool `yaml:"allow_direct_fallback"`
	// DialTimeout bounds establishing the SOCKS connection.
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

const (
	// ProviderTor selects Tor/SOCKS proxy mode.
	ProviderTor = "tor"
	// DefaultRotateEvery is the recommended identity rotation interval.
	DefaultRotateEvery = 10
	defaultDialTimeout  = 30 * time.Second
)

// NewConfig returns a Config with direct-connection defaults.
func NewConfig() *Config {
	return &Config{
		RotateEvery: DefaultRotateEvery,
		DialTimeout: defaultDialTimeout,
	}
}

// Enabled reports whether proxy mode is configured.
func (c *Config) Enabled() bool {
	return c != nil && c.Provider == ProviderTor
}

// Validate checks the proxy configuration.
func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.SOCKSAddr == "" {
		return errors.New("proxy: socks_addr required when provider is tor")
	}
	if c.RotateEvery > 0 && c.ControlAddr == "" {
		return errors.New("proxy: control_addr required when rotate_every is set")
	}
	if c.DialTimeout <= 0 {
		return errors.New("proxy: dial_timeout must be positive")
	}
	return nil
}
