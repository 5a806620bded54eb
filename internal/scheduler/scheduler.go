// Package scheduler runs each active site's detection on its own
// poll_interval, using robfig/cron/v3's "@every" schedule so a site's
// period is a plain time.Duration rather than a 5-field cron expression.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/sitewatch/internal/config"
	"github.com/jonesrussell/sitewatch/internal/config/site"
	"github.com/jonesrussell/sitewatch/internal/logger"
	"github.com/jonesrussell/sitewatch/internal/orchestrator"
)

// Scheduler periodically triggers the orchestrator for every active,
// scheduled site. Concurrent runs against the same site are already
// serialized by the Baseline Store's per-site lock, so entries never skip
// a tick even if the previous run is still in flight; they block inside
// Orchestrator.Run for up to the global lock wait and then fail with
// baseline.ErrBusySite if the lock is still held.
type Scheduler struct {
	log    logger.Interface
	orch   *orchestrator.Orchestrator
	cron   *cron.Cron
	cfg    config.Interface
	ctx    context.Context
	cancel context.CancelFunc

	entriesMu sync.RWMutex
	entries   map[string]cron.EntryID
}

// New constructs a Scheduler. Start must be called to begin firing ticks.
func New(log logger.Interface, orch *orchestrator.Orchestrator, cfg config.Interface) *Scheduler {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Scheduler{
		log:     log,
		orch:    orch,
		cron:    c,
		cfg:     cfg,
		entries: make(map[string]cron.EntryID),
	}
}

// Start registers every active site's poll interval as a cron entry and
// starts the underlying cron.Cron.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, sc := range s.cfg.Sites() {
		if !sc.Active {
			continue
		}
		if err := s.scheduleSite(sc); err != nil {
			return fmt.Errorf("scheduler: schedule site %q: %w", sc.ID, err)
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started", "active_sites", len(s.entries))
	return nil
}

// Stop cancels the context handed to scheduled runs, stops the cron
// scheduler, and waits for in-flight ticks to return. Runs started through
// TriggerNow use the caller's context and are not cancelled.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()
}

func (s *Scheduler) scheduleSite(sc site.SiteConfig) error {
	spec := fmt.Sprintf("@every %s", sc.PollInterval)
	siteID := sc.ID

	entryID, err := s.cron.AddFunc(spec, func() {
		s.runSite(siteID)
	})
	if err != nil {
		return fmt.Errorf("add cron entry: %w", err)
	}

	s.entriesMu.Lock()
	s.entries[siteID] = entryID
	s.entriesMu.Unlock()

	s.log.Info("site scheduled", "site_id", siteID, "poll_interval", sc.PollInterval)
	return nil
}

func (s *Scheduler) runSite(siteID string) {
	sc, ok := s.cfg.SiteByID(siteID)
	if !ok {
		s.log.Warn("scheduled site no longer present in config", "site_id", siteID)
		return
	}

	start := time.Now()
	s.log.Info("scheduled run starting", "site_id", siteID)

	result, err := s.orch.Run(s.ctx, sc)
	if err != nil {
		s.log.Error("scheduled run failed", "site_id", siteID, "error", err.Error(), "duration", time.Since(start))
		return
	}

	s.log.Info("scheduled run finished", "site_id", siteID, "methods", len(result.Reports), "duration", time.Since(start))
}

// TriggerNow runs siteID immediately, outside its cron schedule. Used by
// the HTTP surface's trigger endpoint.
func (s *Scheduler) TriggerNow(ctx context.Context, siteID string) (*orchestrator.RunResult, error) {
	sc, ok := s.cfg.SiteByID(siteID)
	if !ok {
		return nil, fmt.Errorf("scheduler: unknown site %q", siteID)
	}
	return s.orch.Run(ctx, sc)
}
