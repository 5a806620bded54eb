package sitemap_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/sitewatch/internal/fetcher"
	"github.com/jonesrussell/sitewatch/internal/sitemap"
)

func newFetcher(t *testing.T) *fetcher.Fetcher {
	t.Helper()
	f, err := fetcher.New(fetcher.Config{MaxConcurrent: 4}, nil, nil, nil, nil)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestResolve_PlainSitemap(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<urlset><url><loc>https://example.com/b</loc></url><url><loc>https://example.com/a</loc></url></urlset>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res, err := sitemap.Resolve(context.Background(), newFetcher(t), srv.URL+"/sitemap.xml", 2)
	require.NoError(t, err)

	assert.False(t, res.IsIndex)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, res.URLs)
}

func TestResolve_SitemapIndex_UnionsChildren(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/a.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<urlset><url><loc>https://example.com/1</loc></url></urlset>`))
	})
	mux.HandleFunc("/b.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<urlset><url><loc>https://example.com/2</loc></url></urlset>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/index.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<sitemapindex>
  <sitemap><loc>` + srv.URL + `/a.xml</loc></sitemap>
  <sitemap><loc>` + srv.URL + `/b.xml</loc></sitemap>
</sitemapindex>`))
	})

	res, err := sitemap.Resolve(context.Background(), newFetcher(t), srv.URL+"/index.xml", 2)
	require.NoError(t, err)

	assert.True(t, res.IsIndex)
	assert.Equal(t, 2, res.ChildCount)
	assert.ElementsMatch(t, []string{"https://example.com/1", "https://example.com/2"}, res.URLs)
	for _, c := range res.Children {
		assert.Equal(t, "ok", c.Status)
	}
}

func TestResolve_PartialChildFailure_StillSucceeds(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/good.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<urlset><url><loc>https://example.com/ok</loc></url></urlset>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/index.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<sitemapindex>
  <sitemap><loc>` + srv.URL + `/good.xml</loc></sitemap>
  <sitemap><loc>` + srv.URL + `/missing.xml</loc></sitemap>
</sitemapindex>`))
	})

	res, err := sitemap.Resolve(context.Background(), newFetcher(t), srv.URL+"/index.xml", 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/ok"}, res.URLs)

	var sawError bool
	for _, c := range res.Children {
		if c.Status == "error" {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestResolve_EntryUnavailable_ReturnsErrSitemapUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := sitemap.Resolve(context.Background(), newFetcher(t), srv.URL, 2)
	assert.ErrorIs(t, err, sitemap.ErrSitemapUnavailable)
}
