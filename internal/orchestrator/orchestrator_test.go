package orchestrator_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/sitewatch/internal/baseline"
	"github.com/jonesrussell/sitewatch/internal/config/site"
	"github.com/jonesrussell/sitewatch/internal/logger"
	"github.com/jonesrussell/sitewatch/internal/orchestrator"
)

func sitemapXML(urls ...string) string {
	var entries string
	for _, u := range urls {
		entries += fmt.Sprintf("<url><loc>%s</loc></url>", u)
	}
	return `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + entries + `</urlset>`
}

func newTestOrchestrator(t *testing.T, outputRoot string) *orchestrator.Orchestrator {
	t.Helper()
	return &orchestrator.Orchestrator{
		Store: baseline.New(t.TempDir()),
		Log:   logger.NewNoOp(),
		Global: site.GlobalOptions{
			RunDeadline:          5 * time.Second,
			LockWait:             time.Second,
			FetchTimeout:         2 * time.Second,
			MaxConcurrentFetches: 4,
			OutputRoot:           outputRoot,
		},
	}
}

func TestRun_InactiveSite_ReturnsErrNoActiveRun(t *testing.T) {
	t.Parallel()

	orch := newTestOrchestrator(t, t.TempDir())
	sc := site.SiteConfig{ID: "site-1", Name: "site-1", Active: false, Methods: []site.Method{site.MethodSitemap}}

	_, err := orch.Run(t.Context(), sc)
	require.ErrorIs(t, err, orchestrator.ErrNoActiveRun)
}

func TestRun_SitemapMethod_CreatesInitialBaseline(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, sitemapXML(srv.URL+"/a", srv.URL+"/b"))
	})

	orch := newTestOrchestrator(t, t.TempDir())
	sc := site.SiteConfig{
		ID:         "site-1",
		Name:       "site-1",
		RootURL:    srv.URL,
		SitemapURL: srv.URL + "/sitemap.xml",
		Active:     true,
		Methods:    []site.Method{site.MethodSitemap},
	}

	result, err := orch.Run(t.Context(), sc)
	require.NoError(t, err)
	require.Len(t, result.Reports, 1)

	report := result.Reports[0]
	assert.Equal(t, site.MethodSitemap, report.Method)
	assert.True(t, report.Committed)
	assert.Equal(t, 2, report.Summary.New)
	assert.NotEmpty(t, report.BaselineID)

	latest, err := orch.Store.Latest(sc.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.ElementsMatch(t, []string{srv.URL + "/a", srv.URL + "/b"}, latest.URLs)
}

func TestRun_HybridMethod_FingerprintsContentAndDetectsChange(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pageBody := "version one"
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, sitemapXML(srv.URL+"/page"))
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><p>"+pageBody+"</p></body></html>")
	})

	orch := newTestOrchestrator(t, t.TempDir())
	sc := site.SiteConfig{
		ID:         "site-1",
		Name:       "site-1",
		RootURL:    srv.URL,
		SitemapURL: srv.URL + "/sitemap.xml",
		Active:     true,
		Methods:    []site.Method{site.MethodHybrid},
	}

	first, err := orch.Run(t.Context(), sc)
	require.NoError(t, err)
	require.Len(t, first.Reports, 1)
	assert.Equal(t, 1, first.Reports[0].Summary.New)

	pageBody = "version two, now with different content entirely"
	second, err := orch.Run(t.Context(), sc)
	require.NoError(t, err)
	require.Len(t, second.Reports, 1)
	assert.Equal(t, 1, second.Reports[0].Summary.Modified)
	assert.Equal(t, 0, second.Reports[0].Summary.New)
}

func TestRun_SitemapUnavailable_ReturnsError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	// No handler registered for /sitemap.xml: the server 404s it.

	orch := newTestOrchestrator(t, t.TempDir())
	sc := site.SiteConfig{
		ID:         "site-1",
		Name:       "site-1",
		RootURL:    srv.URL,
		SitemapURL: srv.URL + "/sitemap.xml",
		Active:     true,
		Methods:    []site.Method{site.MethodSitemap},
	}

	_, err := orch.Run(t.Context(), sc)
	assert.Error(t, err)
}
