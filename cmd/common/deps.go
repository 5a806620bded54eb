// Package common provides shared dependency wiring for command
// implementations, grounded on the teacher's cmd/common/deps.go and
// cmd/httpd/deps.go CommandDeps pattern.
package common

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/sitewatch/internal/archive"
	"github.com/jonesrussell/sitewatch/internal/baseline"
	"github.com/jonesrussell/sitewatch/internal/config"
	"github.com/jonesrussell/sitewatch/internal/config/database"
	"github.com/jonesrussell/sitewatch/internal/eschangeindex"
	"github.com/jonesrussell/sitewatch/internal/firecrawl"
	"github.com/jonesrussell/sitewatch/internal/logger"
	"github.com/jonesrussell/sitewatch/internal/metrics"
	"github.com/jonesrussell/sitewatch/internal/notify"
	"github.com/jonesrussell/sitewatch/internal/orchestrator"
	"github.com/jonesrussell/sitewatch/internal/runregistry"
)

var (
	errLoggerRequired = errors.New("common: logger is required")
	errConfigRequired = errors.New("common: config is required")
)

// CommandDeps holds the dependencies every sitewatch subcommand needs.
type CommandDeps struct {
	Logger       logger.Interface
	Config       config.Interface
	Orchestrator *orchestrator.Orchestrator
}

// Validate ensures all required dependencies are present.
func (d *CommandDeps) Validate() error {
	if d.Logger == nil {
		return errLoggerRequired
	}
	if d.Config == nil {
		return errConfigRequired
	}
	return nil
}

// NewCommandDeps loads configuration from cfgFile, builds a logger, and
// wires every optional side-channel sink (archive, run registry, change
// index, notification publisher, Firecrawl) into a single Orchestrator.
// Each sink is independently optional: a deployment can run with none,
// some, or all of them configured.
func NewCommandDeps(cfgFile string) (*CommandDeps, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("common: load config: %w", err)
	}

	log, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("common: create logger: %w", err)
	}

	archiver, err := archive.NewArchiver(&cfg.Minio, log)
	if err != nil {
		return nil, fmt.Errorf("common: create archiver: %w", err)
	}

	global := cfg.GlobalOptions.WithDefaults()
	orch := &orchestrator.Orchestrator{
		Store:    baseline.New(filepath.Join(global.OutputRoot, "baselines")),
		Archiver: archiver,
		Metrics:  metrics.New(nil),
		Log:      log,
		Global:   cfg.GlobalOptions,
		Proxy:    &cfg.Proxy,
	}

	if cfg.Database.Host != "" {
		db, connErr := database.Connect(cfg.Database)
		if connErr != nil {
			log.Warn("common: run registry database unavailable, continuing without it", "error", connErr)
		} else {
			orch.Runs = runregistry.New(db)
		}
	}

	if len(cfg.Elasticsearch.Addresses) > 0 {
		client, esErr := eschangeindex.NewClient(&cfg.Elasticsearch)
		if esErr != nil {
			log.Warn("common: change index elasticsearch unavailable, continuing without it", "error", esErr)
		} else {
			orch.ESIndex = eschangeindex.New(client, &cfg.Elasticsearch)
		}
	}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		orch.Notifier = notify.New(rdb, &cfg.Redis, log)
	}

	orch.Firecrawl = firecrawl.New(&cfg.Firecrawl, log)

	return &CommandDeps{Logger: log, Config: cfg, Orchestrator: orch}, nil
}
