package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/sitewatch/internal/baseline"
	redisconfig "github.com/jonesrussell/sitewatch/internal/config/redis"
	"github.com/jonesrussell/sitewatch/internal/logger"
	"github.com/jonesrussell/sitewatch/internal/notify"
)

func TestNew_DisabledConfig_ReturnsNil(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	cfg := redisconfig.NewConfig()
	cfg.Enabled = false

	assert.Nil(t, notify.New(client, cfg, logger.NewNoOp()))
}

func TestNew_NilConfig_ReturnsNil(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	assert.Nil(t, notify.New(client, nil, logger.NewNoOp()))
}

func TestPublish_NilPublisherIsNoOp(t *testing.T) {
	t.Parallel()

	var p *notify.Publisher
	err := p.Publish(context.Background(), notify.ChangeBatch{SiteID: "site-1"})
	require.NoError(t, err)
}

func TestPublish_WritesToStream(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skip("Redis not available")
	}
	defer client.Close()

	stream := "sitewatch:changes:test-" + time.Now().Format("20060102150405")
	defer client.Del(context.Background(), stream)

	cfg := redisconfig.NewConfig()
	cfg.Enabled = true
	cfg.Stream = stream
	cfg.PublishTimeout = 2 * time.Second

	pub := notify.New(client, cfg, logger.NewNoOp())
	require.NotNil(t, pub)

	batch := notify.ChangeBatch{
		SiteID:     "site-1",
		BaselineID: "baseline-1",
		DetectedAt: time.Now(),
		Summary:    baseline.ChangeSummary{New: 1},
		Changes: []baseline.ChangeRecord{
			{URL: "https://example.com/a", Kind: baseline.ChangeNewPage, DetectedAt: time.Now()},
		},
	}

	require.NoError(t, pub.Publish(context.Background(), batch))

	entries, err := client.XRange(context.Background(), stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Values["event"], "site-1")
}

func TestPublish_FailSilently_SwallowsError(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "localhost:1"})
	defer client.Close()

	cfg := redisconfig.NewConfig()
	cfg.Enabled = true
	cfg.FailSilently = true
	cfg.PublishTimeout = 200 * time.Millisecond

	pub := notify.New(client, cfg, logger.NewNoOp())
	require.NotNil(t, pub)

	err := pub.Publish(context.Background(), notify.ChangeBatch{SiteID: "site-1"})
	assert.NoError(t, err)
}

func TestPublish_FailLoudly_PropagatesError(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "localhost:1"})
	defer client.Close()

	cfg := redisconfig.NewConfig()
	cfg.Enabled = true
	cfg.FailSilently = false
	cfg.PublishTimeout = 200 * time.Millisecond

	pub := notify.New(client, cfg, logger.NewNoOp())
	require.NotNil(t, pub)

	err := pub.Publish(context.Background(), notify.ChangeBatch{SiteID: "site-1"})
	assert.Error(t, err)
}
