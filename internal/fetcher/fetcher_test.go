package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/sitewatch/internal/fetcher"
)

// fastRetry keeps retry-path tests from sleeping through real backoff delays.
var fastRetry = fetcher.Config{
	MaxConcurrent:    2,
	RetryMaxAttempts: 3,
	RetryInitialWait: time.Millisecond,
	RetryMaxWait:     5 * time.Millisecond,
	RetryMultiplier:  2,
}

func newFetcher(t *testing.T, cfg fetcher.Config) *fetcher.Fetcher {
	t.Helper()
	f, err := fetcher.New(cfg, nil, nil, nil, nil)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestFetch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>hi</html>"))
	}))
	defer srv.Close()

	f := newFetcher(t, fetcher.Config{MaxConcurrent: 2})
	result, failure := f.Fetch(context.Background(), srv.URL)

	require.Nil(t, failure)
	require.NotNil(t, result)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "text/html", result.ContentType)
	assert.Contains(t, string(result.Body), "hi")
}

func TestFetch_ClientError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newFetcher(t, fetcher.Config{MaxConcurrent: 2})
	result, failure := f.Fetch(context.Background(), srv.URL)

	assert.Nil(t, result)
	require.NotNil(t, failure)
	assert.Equal(t, fetcher.FailureHTTPClientError, failure.Kind)
	assert.Equal(t, http.StatusNotFound, failure.StatusCode)
	assert.False(t, failure.Retryable())
}

func TestFetch_ServerError_IsRetryable(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newFetcher(t, fastRetry)
	_, failure := f.Fetch(context.Background(), srv.URL)

	require.NotNil(t, failure)
	assert.Equal(t, fetcher.FailureHTTPServerError, failure.Kind)
	assert.True(t, failure.Retryable())
	assert.Equal(t, int32(3), requests.Load(), "a persistently failing retryable fetch should be attempted RetryMaxAttempts times")
}

func TestFetch_ClientError_IsNotRetried(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newFetcher(t, fastRetry)
	_, failure := f.Fetch(context.Background(), srv.URL)

	require.NotNil(t, failure)
	assert.Equal(t, fetcher.FailureHTTPClientError, failure.Kind)
	assert.Equal(t, int32(1), requests.Load(), "a non-retryable failure should not be re-attempted")
}

func TestFetch_TransientFailureThenSuccess_Retries(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f := newFetcher(t, fastRetry)
	result, failure := f.Fetch(context.Background(), srv.URL)

	require.Nil(t, failure)
	require.NotNil(t, result)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, int32(3), requests.Load())
}

func TestFetch_InvalidURL_PayloadDecodeFailed(t *testing.T) {
	t.Parallel()

	f := newFetcher(t, fetcher.Config{MaxConcurrent: 2})
	_, failure := f.Fetch(context.Background(), "://not-a-url")

	require.NotNil(t, failure)
	assert.Equal(t, fetcher.FailurePayloadDecodeFailed, failure.Kind)
}

func TestFetch_ContextCanceled_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	f := newFetcher(t, fetcher.Config{MaxConcurrent: 2})
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	_, failure := f.Fetch(ctx, srv.URL)
	require.NotNil(t, failure)
}
