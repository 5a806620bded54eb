package firecrawl_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	firecrawlconfig "github.com/jonesrussell/sitewatch/internal/config/firecrawl"
	"github.com/jonesrussell/sitewatch/internal/firecrawl"
	"github.com/jonesrussell/sitewatch/internal/logger"
)

func testConfig(baseURL string) *firecrawlconfig.Config {
	cfg := firecrawlconfig.NewConfig()
	cfg.Enabled = true
	cfg.APIKey = "test-key"
	cfg.BaseURL = baseURL
	cfg.PollInterval = time.Millisecond
	cfg.MaxPollAttempts = 5
	return cfg
}

func TestNew_DisabledConfig_ReturnsNil(t *testing.T) {
	t.Parallel()

	cfg := firecrawlconfig.NewConfig()
	assert.Nil(t, firecrawl.New(cfg, logger.NewNoOp()))
}

func TestNew_MissingAPIKey_ReturnsNil(t *testing.T) {
	t.Parallel()

	cfg := firecrawlconfig.NewConfig()
	cfg.Enabled = true
	assert.Nil(t, firecrawl.New(cfg, logger.NewNoOp()))
}

func TestCrawl_CompletesOnFirstPoll(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/crawl":
			require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-1", "success": true})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/crawl/job-1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "completed",
				"data": []map[string]string{
					{"url": "https://example.com/a", "markdown": "hello"},
					{"url": "https://example.com/b", "markdown": "world"},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := firecrawl.New(testConfig(srv.URL), logger.NewNoOp())
	require.NotNil(t, client)

	pages, err := client.Crawl(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "https://example.com/a", pages[0].URL)
	assert.NotEmpty(t, pages[0].Hash)
	assert.Equal(t, len("hello"), pages[0].Length)
}

func TestCrawl_PollsUntilCompleted(t *testing.T) {
	t.Parallel()

	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/crawl":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-2", "success": true})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/crawl/job-2":
			polls++
			if polls < 3 {
				_ = json.NewEncoder(w).Encode(map[string]any{"status": "scraping"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "completed",
				"data":   []map[string]string{{"url": "https://example.com/a", "markdown": "x"}},
			})
		}
	}))
	defer srv.Close()

	client := firecrawl.New(testConfig(srv.URL), logger.NewNoOp())
	require.NotNil(t, client)

	pages, err := client.Crawl(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.GreaterOrEqual(t, polls, 3)
}

func TestCrawl_JobFailed_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/crawl":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-3", "success": true})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/crawl/job-3":
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "failed", "error": "site unreachable"})
		}
	}))
	defer srv.Close()

	client := firecrawl.New(testConfig(srv.URL), logger.NewNoOp())
	require.NotNil(t, client)

	_, err := client.Crawl(context.Background(), "https://example.com")
	assert.Error(t, err)
}

func TestCrawl_SubmissionRejected_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
	}))
	defer srv.Close()

	client := firecrawl.New(testConfig(srv.URL), logger.NewNoOp())
	require.NotNil(t, client)

	_, err := client.Crawl(context.Background(), "https://example.com")
	assert.Error(t, err)
}
