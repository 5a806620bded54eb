// Package fetcher implements the bounded-concurrency HTTP client described
// in spec.md §4.1: a global semaphore over in-flight requests, soft
// per-host pacing, a finite redirect cap, robots.txt compliance, and an
// optional Tor/SOCKS proxy mode with identity rotation.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	proxycfg "github.com/jonesrussell/sitewatch/internal/config/proxy"
	"github.com/jonesrussell/sitewatch/internal/logger"
)

// maxResponseBodyBytes limits the size of fetched page responses. A
// response that exceeds this limit surfaces as FailureTooLarge rather than
// being silently truncated.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

// Result is a successful fetch outcome.
type Result struct {
	StatusCode  int
	Body        []byte
	ContentType string
	FinalURL    string
}

// Recorder observes fetch outcomes for the metrics component. A nil
// Recorder is a valid no-op.
type Recorder interface {
	RecordFetch(host, outcome string, duration time.Duration)
}

// Fetcher is a handle that owns its semaphore and HTTP client. Per
// spec.md §9's redesign flag for "scoped async fetcher context", a
// Fetcher is created per run and released (via Close) on every exit path.
type Fetcher struct {
	cfg       Config
	client    *http.Client
	sem       chan struct{}
	robots    *RobotsChecker
	log       logger.Interface
	metrics   Recorder
	proxy     *proxycfg.Config
	torCtl    *torController
	successes atomic.Int64

	hostMu       sync.Mutex
	hostLimiters map[string]*rate.Limiter
}

// New constructs a Fetcher. robots and metrics may be nil.
func New(cfg Config, proxyCfg *proxycfg.Config, robots *RobotsChecker, metrics Recorder, log logger.Interface) (*Fetcher, error) {
	cfg = cfg.WithDefaults()

	transport, torCtl, err := NewHTTPTransport(proxyCfg)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout:       cfg.RequestTimeout,
		Transport:     transport,
		CheckRedirect: redirectChecker(cfg.RedirectCap),
	}

	return &Fetcher{
		cfg:          cfg,
		client:       client,
		sem:          make(chan struct{}, cfg.MaxConcurrent),
		robots:       robots,
		log:          log,
		metrics:      metrics,
		proxy:        proxyCfg,
		torCtl:       torCtl,
		hostLimiters: make(map[string]*rate.Limiter),
	}, nil
}

// redirectChecker enforces maxHops and surfaces the overflow as a regular
// http.Client error wrapping ErrTooManyRedirects, which doFetch reports as
// a non-retryable FailureHTTPClientError with status 508 (Loop Detected).
func redirectChecker(maxHops int) func(*http.Request, []*http.Request) error {
	return RedirectPolicy(maxHops)
}

// Close releases resources held by the Fetcher. Safe to call once per run.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}

// Fetch retrieves rawURL, honoring ctx's deadline in addition to the
// Fetcher's own per-request timeout. It blocks until the global semaphore
// and the URL's host-pacing limiter both admit the request.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, *Failure) {
	parsed, parseErr := url.Parse(rawURL)
	if parseErr != nil {
		return nil, &Failure{Kind: FailurePayloadDecodeFailed, Err: fmt.Errorf("parse url: %w", parseErr)}
	}
	host := strings.ToLower(parsed.Host)

	if f.robots != nil {
		allowed, err := f.robots.IsAllowed(ctx, rawURL)
		if err == nil && !allowed {
			return nil, &Failure{Kind: FailureHTTPClientError, StatusCode: http.StatusForbidden, Err: fmt.Errorf("disallowed by robots.txt")}
		}
	}

	select {
	case f.sem <- struct{}{}:
		defer func() { <-f.sem }()
	case <-ctx.Done():
		return nil, &Failure{Kind: FailureTimeout, Err: ctx.Err()}
	}

	result, failure := f.fetchWithRetry(ctx, host, rawURL)

	if failure == nil {
		f.maybeRotate(ctx)
	}

	return result, failure
}

// fetchWithRetry runs doFetch up to cfg.RetryMaxAttempts times, re-attempting
// only failures Retryable() marks transient (timeouts, connection refusals,
// 408/429, and 5xx), per spec.md §7. Each attempt still waits on the host's
// pacing limiter, so a retry never bypasses per-host politeness.
func (f *Fetcher) fetchWithRetry(ctx context.Context, host, rawURL string) (*Result, *Failure) {
	var failure *Failure

	for attempt := 1; attempt <= f.cfg.RetryMaxAttempts; attempt++ {
		if err := f.hostLimiter(host).Wait(ctx); err != nil {
			return nil, &Failure{Kind: FailureTimeout, Err: err}
		}

		start := time.Now()
		var result *Result
		result, failure = f.doFetch(ctx, rawURL)
		f.record(host, start, failure)

		if failure == nil {
			return result, nil
		}
		if !failure.Retryable() || attempt == f.cfg.RetryMaxAttempts {
			return nil, failure
		}

		if f.log != nil {
			f.log.Warn("fetch: retrying after transient failure", "url", rawURL, "attempt", attempt, "kind", string(failure.Kind))
		}

		select {
		case <-ctx.Done():
			return nil, &Failure{Kind: FailureTimeout, Err: ctx.Err()}
		case <-time.After(f.retryDelay(attempt)):
		}
	}

	return nil, failure
}

// retryDelay computes the attempt-th backoff delay: InitialWait *
// Multiplier^(attempt-1), capped at MaxWait, with ±25% jitter applied on
// top per spec.md §7.
func (f *Fetcher) retryDelay(attempt int) time.Duration {
	delay := float64(f.cfg.RetryInitialWait) * math.Pow(f.cfg.RetryMultiplier, float64(attempt-1))
	if capMs := float64(f.cfg.RetryMaxWait); delay > capMs {
		delay = capMs
	}

	jitter := 1 + (rand.Float64()*0.5 - 0.25) // +/-25%
	return time.Duration(delay * jitter)
}

func (f *Fetcher) record(host string, start time.Time, failure *Failure) {
	if f.metrics == nil {
		return
	}
	outcome := "success"
	if failure != nil {
		outcome = string(failure.Kind)
	}
	f.metrics.RecordFetch(host, outcome, time.Since(start))
}

func (f *Fetcher) maybeRotate(ctx context.Context) {
	if f.torCtl == nil || f.proxy == nil || f.proxy.RotateEvery <= 0 {
		return
	}
	n := f.successes.Add(1)
	if n%int64(f.proxy.RotateEvery) != 0 {
		return
	}
	if err := f.torCtl.Rotate(ctx); err != nil && f.log != nil {
		f.log.Warn("tor circuit rotation failed", "error", err.Error())
	}
}

// hostLimiter returns the rate.Limiter for host, creating it on first use.
func (f *Fetcher) hostLimiter(host string) *rate.Limiter {
	f.hostMu.Lock()
	defer f.hostMu.Unlock()

	if lim, ok := f.hostLimiters[host]; ok {
		return lim
	}

	interval := f.cfg.PerHostInterval
	if f.robots != nil {
		if delay := f.robots.CrawlDelay(host); delay > interval {
			interval = delay
		}
	}

	lim := rate.NewLimiter(rate.Every(interval), 1)
	f.hostLimiters[host] = lim
	return lim
}

// doFetch performs the HTTP GET request and classifies the outcome.
func (f *Fetcher) doFetch(ctx context.Context, rawURL string) (*Result, *Failure) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if reqErr != nil {
		return nil, &Failure{Kind: FailurePayloadDecodeFailed, Err: fmt.Errorf("create request: %w", reqErr)}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, doErr := f.client.Do(req)
	if doErr != nil {
		if isRedirectOverflow(doErr) {
			return nil, &Failure{Kind: FailureHTTPClientError, StatusCode: http.StatusLoopDetected, Err: doErr}
		}
		return nil, classifyTransportError(doErr)
	}
	defer resp.Body.Close()

	if failure := statusFailure(resp.StatusCode); failure != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodyBytes)) //nolint:errcheck // draining, outcome already decided
		return nil, failure
	}

	limited := io.LimitReader(resp.Body, maxResponseBodyBytes+1)
	body, readErr := io.ReadAll(limited)
	if readErr != nil {
		return nil, &Failure{Kind: FailurePayloadDecodeFailed, Err: fmt.Errorf("read body: %w", readErr)}
	}
	if len(body) > maxResponseBodyBytes {
		return nil, &Failure{Kind: FailureTooLarge, Err: fmt.Errorf("response exceeds %d bytes", maxResponseBodyBytes)}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    finalURL,
	}, nil
}

func isRedirectOverflow(err error) bool {
	return err != nil && strings.Contains(err.Error(), ErrTooManyRedirects.Error())
}
