package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/sitewatch/internal/baseline"
	"github.com/jonesrussell/sitewatch/internal/config/server"
	"github.com/jonesrussell/sitewatch/internal/config/site"
	"github.com/jonesrussell/sitewatch/internal/httpapi"
	"github.com/jonesrussell/sitewatch/internal/logger"
	"github.com/jonesrussell/sitewatch/internal/orchestrator"
	"github.com/jonesrussell/sitewatch/internal/scheduler"
)

type fakeConfig struct {
	sites []site.SiteConfig
}

func (f *fakeConfig) Sites() []site.SiteConfig { return f.sites }

func (f *fakeConfig) SiteByID(id string) (site.SiteConfig, bool) {
	for _, s := range f.sites {
		if s.ID == id {
			return s, true
		}
	}
	return site.SiteConfig{}, false
}

func (f *fakeConfig) Global() site.GlobalOptions { return site.GlobalOptions{}.WithDefaults() }
func (f *fakeConfig) Server() server.Config      { return server.Config{} }
func (f *fakeConfig) Validate() error            { return nil }

func newTestServer(t *testing.T, cfg *fakeConfig, store *baseline.Store) *httpapi.Server {
	t.Helper()
	orch := &orchestrator.Orchestrator{
		Store:  store,
		Log:    logger.NewNoOp(),
		Global: site.GlobalOptions{RunDeadline: time.Second, LockWait: time.Second},
	}
	sched := scheduler.New(logger.NewNoOp(), orch, cfg)
	return &httpapi.Server{
		Scheduler: sched,
		Store:     store,
		Config:    cfg,
		Log:       logger.NewNoOp(),
		ServerCfg: server.Config{},
	}
}

func TestTriggerSite_UnknownSite_Returns404(t *testing.T) {
	t.Parallel()

	cfg := &fakeConfig{}
	router := httpapi.NewRouter(newTestServer(t, cfg, baseline.New(t.TempDir())))

	req := httptest.NewRequest(http.MethodPost, "/trigger/unknown", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTriggerSite_KnownSite_Returns202WithRunID(t *testing.T) {
	t.Parallel()

	cfg := &fakeConfig{sites: []site.SiteConfig{
		{ID: "site-1", Name: "site-1", RootURL: "https://example.com", SitemapURL: "https://example.com/sitemap.xml", Methods: []site.Method{site.MethodSitemap}, PollInterval: time.Hour, Active: true},
	}}
	router := httpapi.NewRouter(newTestServer(t, cfg, baseline.New(t.TempDir())))

	req := httptest.NewRequest(http.MethodPost, "/trigger/site-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["run_id"])
	assert.Equal(t, "site-1", body["site_id"])
}

func TestTriggerAll_OnlyTriggersActiveSites(t *testing.T) {
	t.Parallel()

	cfg := &fakeConfig{sites: []site.SiteConfig{
		{ID: "active", RootURL: "https://a.example.com", SitemapURL: "https://a.example.com/sitemap.xml", Methods: []site.Method{site.MethodSitemap}, PollInterval: time.Hour, Active: true},
		{ID: "inactive", RootURL: "https://b.example.com", SitemapURL: "https://b.example.com/sitemap.xml", Methods: []site.Method{site.MethodSitemap}, PollInterval: time.Hour, Active: false},
	}}
	router := httpapi.NewRouter(newTestServer(t, cfg, baseline.New(t.TempDir())))

	req := httptest.NewRequest(http.MethodPost, "/trigger/all", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["count"])
}

func TestGetSite_UnknownSite_Returns404(t *testing.T) {
	t.Parallel()

	cfg := &fakeConfig{}
	router := httpapi.NewRouter(newTestServer(t, cfg, baseline.New(t.TempDir())))

	req := httptest.NewRequest(http.MethodGet, "/sites/unknown", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSite_ReturnsLatestBaseline(t *testing.T) {
	t.Parallel()

	store := baseline.New(t.TempDir())
	_, err := store.Save(&baseline.Baseline{SiteID: "site-1", CreatedAt: time.Now(), URLs: []string{"https://example.com/a"}})
	require.NoError(t, err)

	cfg := &fakeConfig{sites: []site.SiteConfig{{ID: "site-1", Name: "site-1", Active: true}}}
	router := httpapi.NewRouter(newTestServer(t, cfg, store))

	req := httptest.NewRequest(http.MethodGet, "/sites/site-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotNil(t, body["baseline"])
}

func TestGetBaselines_ListsHistoryNewestFirst(t *testing.T) {
	t.Parallel()

	store := baseline.New(t.TempDir())
	_, err := store.Save(&baseline.Baseline{SiteID: "site-1", CreatedAt: time.Now().Add(-time.Hour), URLs: []string{"https://example.com/a"}})
	require.NoError(t, err)
	_, err = store.Save(&baseline.Baseline{SiteID: "site-1", CreatedAt: time.Now(), URLs: []string{"https://example.com/a", "https://example.com/b"}})
	require.NoError(t, err)

	cfg := &fakeConfig{sites: []site.SiteConfig{{ID: "site-1", Active: true}}}
	router := httpapi.NewRouter(newTestServer(t, cfg, store))

	req := httptest.NewRequest(http.MethodGet, "/baselines/site-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Baselines []map[string]any `json:"baselines"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Baselines, 2)
	assert.Equal(t, float64(2), body.Baselines[0]["url_count"])
}

func TestRollback_RestoresNamedBaseline(t *testing.T) {
	t.Parallel()

	store := baseline.New(t.TempDir())
	oldID, err := store.Save(&baseline.Baseline{SiteID: "site-1", CreatedAt: time.Now().Add(-time.Hour), URLs: []string{"https://example.com/a"}})
	require.NoError(t, err)
	_, err = store.Save(&baseline.Baseline{SiteID: "site-1", CreatedAt: time.Now(), URLs: []string{"https://example.com/a", "https://example.com/b"}})
	require.NoError(t, err)

	cfg := &fakeConfig{sites: []site.SiteConfig{{ID: "site-1", Active: true}}}
	router := httpapi.NewRouter(newTestServer(t, cfg, store))

	payload, _ := json.Marshal(map[string]string{"baseline_id": oldID})
	req := httptest.NewRequest(http.MethodPost, "/baselines/site-1/rollback", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	latest, err := store.Latest("site-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a"}, latest.URLs)
	assert.Equal(t, baseline.EvolutionManualRollback, latest.EvolutionType)
}

func TestRollback_UnknownBaseline_Returns404(t *testing.T) {
	t.Parallel()

	store := baseline.New(t.TempDir())
	_, err := store.Save(&baseline.Baseline{SiteID: "site-1", CreatedAt: time.Now(), URLs: []string{"https://example.com/a"}})
	require.NoError(t, err)

	cfg := &fakeConfig{sites: []site.SiteConfig{{ID: "site-1", Active: true}}}
	router := httpapi.NewRouter(newTestServer(t, cfg, store))

	payload, _ := json.Marshal(map[string]string{"baseline_id": "does-not-exist"})
	req := httptest.NewRequest(http.MethodPost, "/baselines/site-1/rollback", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIKeyMiddleware_RejectsMissingKey(t *testing.T) {
	t.Parallel()

	cfg := &fakeConfig{sites: []site.SiteConfig{{ID: "site-1", Active: true}}}
	srv := newTestServer(t, cfg, baseline.New(t.TempDir()))
	srv.ServerCfg = server.Config{SecurityEnabled: true, APIKey: "id:secret"}
	router := httpapi.NewRouter(srv)

	req := httptest.NewRequest(http.MethodGet, "/sites/site-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIKeyMiddleware_AllowsHealthUnauthenticated(t *testing.T) {
	t.Parallel()

	cfg := &fakeConfig{}
	srv := newTestServer(t, cfg, baseline.New(t.TempDir()))
	srv.ServerCfg = server.Config{SecurityEnabled: true, APIKey: "id:secret"}
	router := httpapi.NewRouter(srv)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
