// Package notify publishes committed change batches onto a Redis
// Stream so downstream consumers (outside this module) can react to a
// detection run without polling the baseline store. It is the publish
// half of the stream shape the teacher's internal/events package
// consumes; this project has no consumer side.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/sitewatch/internal/baseline"
	redisconfig "github.com/jonesrussell/sitewatch/internal/config/redis"
	"github.com/jonesrussell/sitewatch/internal/logger"
)

// ChangeBatch is the payload published for one site's detection run.
type ChangeBatch struct {
	SiteID     string                   `json:"site_id"`
	BaselineID string                   `json:"baseline_id"`
	DetectedAt time.Time                `json:"detected_at"`
	Summary    baseline.ChangeSummary   `json:"change_summary"`
	Changes    []baseline.ChangeRecord  `json:"changes"`
}

// Publisher XADDs committed change batches to a Redis stream.
type Publisher struct {
	client *redis.Client
	cfg    *redisconfig.Config
	log    logger.Interface
}

// New constructs a Publisher. Returns nil if cfg is nil or disabled,
// mirroring the teacher's NewConsumer nil-on-unusable-input shape.
func New(client *redis.Client, cfg *redisconfig.Config, log logger.Interface) *Publisher {
	if cfg == nil || !cfg.Enabled || client == nil {
		return nil
	}
	return &Publisher{client: client, cfg: cfg, log: log}
}

// Publish XADDs batch to the configured stream, capped to MaxLen via
// approximate trimming. If cfg.FailSilently is set, a publish error is
// logged and swallowed rather than propagated to the caller, so a
// notification outage never fails a detection run.
func (p *Publisher) Publish(ctx context.Context, batch ChangeBatch) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("notify: encode batch: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.cfg.Stream,
		MaxLen: p.cfg.MaxLen,
		Approx: true,
		Values: map[string]any{"event": string(body)},
	}).Err()
	if err != nil {
		if p.cfg.FailSilently {
			if p.log != nil {
				p.log.Error("notify: publish failed, continuing", "site_id", batch.SiteID, "error", err)
			}
			return nil
		}
		return fmt.Errorf("notify: publish: %w", err)
	}

	if p.log != nil {
		p.log.Info("notify: published change batch", "site_id", batch.SiteID, "baseline_id", batch.BaselineID)
	}
	return nil
}
