// Package config provides configuration management for sitewatch.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jonesrussell/sitewatch/internal/config/database"
	"github.com/jonesrussell/sitewatch/internal/config/elasticsearch"
	"github.com/jonesrussell/sitewatch/internal/config/firecrawl"
	"github.com/jonesrussell/sitewatch/internal/config/minio"
	"github.com/jonesrussell/sitewatch/internal/config/proxy"
	"github.com/jonesrussell/sitewatch/internal/config/redis"
	"github.com/jonesrussell/sitewatch/internal/config/server"
	"github.com/jonesrussell/sitewatch/internal/config/site"
	"github.com/jonesrussell/sitewatch/internal/logger"
)

// Interface exposes the loaded configuration to the rest of the
// application. It is implemented by *Config.
type Interface interface {
	Sites() []site.SiteConfig
	SiteByID(id string) (site.SiteConfig, bool)
	Global() site.GlobalOptions
	Server() server.Config
	Validate() error
}

// Config is the top-level, immutable configuration snapshot for a
// sitewatch process. It is loaded once at startup; the orchestrator never
// mutates it.
type Config struct {
	SitesList     []site.SiteConfig    `yaml:"sites"        mapstructure:"sites"`
	GlobalOptions site.GlobalOptions   `yaml:"global"       mapstructure:"global"`
	Logger        logger.Config        `yaml:"logger"       mapstructure:"logger"`
	ServerConfig  server.Config        `yaml:"server"       mapstructure:"server"`
	Elasticsearch elasticsearch.Config `yaml:"elasticsearch" mapstructure:"elasticsearch"`
	Database      database.Config      `yaml:"database"     mapstructure:"database"`
	Minio         minio.Config         `yaml:"minio"        mapstructure:"minio"`
	Redis         redis.Config         `yaml:"redis"        mapstructure:"redis"`
	Proxy         proxy.Config         `yaml:"proxy"        mapstructure:"proxy"`
	Firecrawl     firecrawl.Config     `yaml:"firecrawl"    mapstructure:"firecrawl"`
}

var _ Interface = (*Config)(nil)

// Sites returns the configured sites in document order.
func (c *Config) Sites() []site.SiteConfig { return c.SitesList }

// SiteByID looks up a site by its stable id.
func (c *Config) SiteByID(id string) (site.SiteConfig, bool) {
	for _, s := range c.SitesList {
		if s.ID == id {
			return s, true
		}
	}
	return site.SiteConfig{}, false
}

// Global returns the run-wide options, with defaults applied.
func (c *Config) Global() site.GlobalOptions { return c.GlobalOptions.WithDefaults() }

// Server returns the HTTP server configuration.
func (c *Config) Server() server.Config { return c.ServerConfig }

// Validate checks every site and sub-configuration, collecting the first
// error encountered.
func (c *Config) Validate() error {
	if len(c.SitesList) == 0 {
		return &ValidationError{Field: "sites", Value: nil, Reason: "at least one site is required"}
	}
	seen := make(map[string]bool, len(c.SitesList))
	for i := range c.SitesList {
		s := &c.SitesList[i]
		if err := s.Validate(); err != nil {
			return &ValidationError{Field: "sites", Value: s.ID, Reason: err.Error()}
		}
		if seen[s.ID] {
			return &ValidationError{Field: "sites", Value: s.ID, Reason: "duplicate site id"}
		}
		seen[s.ID] = true
	}
	if err := c.ServerConfig.Validate(); err != nil {
		return &ValidationError{Field: "server", Value: nil, Reason: err.Error()}
	}
	if err := c.Elasticsearch.Validate(); err != nil {
		return &ValidationError{Field: "elasticsearch", Value: nil, Reason: err.Error()}
	}
	if err := c.Minio.Validate(); err != nil {
		return &ValidationError{Field: "minio", Value: nil, Reason: err.Error()}
	}
	if err := c.Redis.Validate(); err != nil {
		return &ValidationError{Field: "redis", Value: nil, Reason: err.Error()}
	}
	if err := c.Proxy.Validate(); err != nil {
		return &ValidationError{Field: "proxy", Value: nil, Reason: err.Error()}
	}
	if err := c.Firecrawl.Validate(); err != nil {
		return &ValidationError{Field: "firecrawl", Value: nil, Reason: err.Error()}
	}
	return nil
}

// Load reads the sites document from cfgFile (or the default search path
// when empty), applies environment variable overrides, and returns a
// validated Config. Unknown top-level keys are rejected rather than
// silently ignored, per the strict-decode design note.
func Load(cfgFile string) (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("sitewatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/sitewatch")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &LoadError{File: cfgFile, Err: err}
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg, yamlTagDecoder); err != nil {
		return nil, &ParseError{Field: "root", Value: cfgFile, Err: err}
	}

	cfg.Database = *database.LoadFromViper(v)
	cfg.Minio = *minio.LoadFromViper(v)
	cfg.Redis = *redis.LoadFromViper(v)
	cfg.Firecrawl = *firecrawl.LoadFromViper(v)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigValidationFailed, err)
	}

	return &cfg, nil
}

// yamlTagDecoder points viper's mapstructure decode at the config tree's
// yaml struct tags rather than its bare field names, mirroring the
// teacher's converter.Convert TagName override.
func yamlTagDecoder(dc *mapstructure.DecoderConfig) {
	dc.TagName = "yaml"
}

// setDefaults installs production-safe defaults, mirroring the way the
// teacher's cmd/root.go seeds nested viper.SetDefault maps before reading
// the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global", map[string]any{
		"max_concurrent_fetches": site.DefaultMaxConcurrentFetches,
		"fetch_timeout":          site.DefaultFetchTimeout.String(),
		"run_deadline":           site.DefaultRunDeadline.String(),
		"batch_size":             site.DefaultBatchSize,
		"retention_count":        site.DefaultRetentionCount,
		"output_root":            site.DefaultOutputRoot,
		"lock_wait":              site.DefaultLockWait.String(),
		"redirect_cap":           site.DefaultRedirectCap,
		"per_host_interval":      site.DefaultPerHostInterval.String(),
	})
	v.SetDefault("logger", map[string]any{
		"level":        "info",
		"development":  false,
		"encoding":     "json",
		"output_paths": []string{"stdout"},
	})
	v.SetDefault("server", map[string]any{
		"address":          ":8080",
		"read_timeout":     15 * time.Second,
		"write_timeout":    15 * time.Second,
		"idle_timeout":     60 * time.Second,
		"security_enabled": false,
	})
	v.SetDefault("elasticsearch", map[string]any{
		"addresses": []string{elasticsearch.DefaultAddresses},
		"index_name": elasticsearch.DefaultIndexName,
		"bulk_size":      elasticsearch.DefaultBulkSize,
		"flush_interval": elasticsearch.DefaultFlushInterval.String(),
	})
	v.SetDefault("minio", map[string]any{
		"enabled": false,
	})
	v.SetDefault("redis", map[string]any{
		"enabled": false,
	})
	v.SetDefault("proxy", map[string]any{
		"provider": "",
	})
}
