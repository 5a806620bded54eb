// Package orchestrator implements the per-site detection run described in
// spec.md's control-flow overview: method dispatch, URL enumeration,
// fingerprinting, classification, and baseline evolution, culminating in a
// change report and state snapshot written to the output store.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/sitewatch/internal/archive"
	"github.com/jonesrussell/sitewatch/internal/baseline"
	"github.com/jonesrussell/sitewatch/internal/classifier"
	"github.com/jonesrussell/sitewatch/internal/config/proxy"
	"github.com/jonesrussell/sitewatch/internal/config/site"
	"github.com/jonesrussell/sitewatch/internal/eschangeindex"
	"github.com/jonesrussell/sitewatch/internal/evolution"
	"github.com/jonesrussell/sitewatch/internal/fetcher"
	"github.com/jonesrussell/sitewatch/internal/firecrawl"
	"github.com/jonesrussell/sitewatch/internal/fingerprint"
	"github.com/jonesrussell/sitewatch/internal/logger"
	"github.com/jonesrussell/sitewatch/internal/metrics"
	"github.com/jonesrussell/sitewatch/internal/notify"
	"github.com/jonesrussell/sitewatch/internal/runregistry"
	"github.com/jonesrussell/sitewatch/internal/sitemap"
)

// MethodReport is the change report produced for one enabled method.
type MethodReport struct {
	Site       string                  `json:"site"`
	Method     site.Method             `json:"method"`
	DetectedAt time.Time               `json:"detected_at"`
	Changes    []baseline.ChangeRecord `json:"changes"`
	Summary    baseline.ChangeSummary  `json:"summary"`
	Committed  bool                    `json:"committed"`
	BaselineID string                  `json:"baseline_id"`
	SourceMeta SourceMetadata          `json:"source_metadata"`
}

// SourceMetadata carries method-specific provenance into the report.
type SourceMetadata struct {
	SitemapIsIndex  bool                  `json:"sitemap_is_index,omitempty"`
	SitemapChildren []sitemap.ChildResult `json:"sitemap_children,omitempty"`
	URLCount        int                   `json:"url_count"`
}

// RunResult is the outcome of one site's detection run: one MethodReport
// per enabled method.
type RunResult struct {
	SiteID  string
	Reports []MethodReport
}

// Orchestrator runs per-site detection: it owns the baseline store and the
// process-wide dependencies a run needs (archive, metrics, logging).
type Orchestrator struct {
	Store     *baseline.Store
	Archiver  *archive.Archiver
	Metrics   *metrics.Metrics
	Log       logger.Interface
	Global    site.GlobalOptions
	Proxy     *proxy.Config
	UserAgent string

	// Notifier, Runs, and ESIndex are optional side-channel sinks. Each is
	// nil-safe at the call site, so a deployment can opt into none, some,
	// or all of them independently.
	Notifier  *notify.Publisher
	Runs      *runregistry.Registry
	ESIndex   *eschangeindex.Indexer
	Firecrawl *firecrawl.Client
}

// ErrNoActiveRun is returned when a site is configured but inactive.
var ErrNoActiveRun = errors.New("orchestrator: site is not active")

// Run executes one detection run for s, enforcing the site's exclusive
// lock and the run's overall deadline. The baseline history is mutated as
// a side effect via the Store.
func (o *Orchestrator) Run(ctx context.Context, s site.SiteConfig) (*RunResult, error) {
	if !s.Active {
		return nil, ErrNoActiveRun
	}

	global := o.Global.WithDefaults()
	runCtx, cancel := context.WithTimeout(ctx, global.RunDeadline)
	defer cancel()

	started := time.Now()
	if o.Metrics != nil {
		o.Metrics.RecordRunStarted()
	}

	var result *RunResult
	lockErr := o.Store.WithLock(runCtx, s.ID, global.LockWait, func() error {
		r, err := o.runLocked(runCtx, s, global)
		result = r
		return err
	})

	outcome := "success"
	if lockErr != nil {
		outcome = "error"
		if errors.Is(lockErr, baseline.ErrBusySite) {
			outcome = "busy"
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			outcome = "deadline_exceeded"
			o.recordAbort(s.ID)
		}
	}
	if o.Metrics != nil {
		o.Metrics.RecordRunFinished(s.ID, outcome, time.Since(started))
	}

	if lockErr != nil {
		return nil, lockErr
	}
	return result, nil
}

func (o *Orchestrator) recordAbort(siteID string) {
	_ = o.Store.AppendEvent(&baseline.BaselineEvent{
		SiteID:    siteID,
		Timestamp: time.Now(),
		Kind:      baseline.EventRunAborted,
	})
}

// runLocked performs the detection work while the site's lock is held. It
// runs every enabled method independently, feeding each method's committed
// baseline forward as the next method's comparison point, per spec.md's
// "one change report per method" default.
func (o *Orchestrator) runLocked(ctx context.Context, s site.SiteConfig, global site.GlobalOptions) (*RunResult, error) {
	robots, err := fetcher.NewRobotsCheckerWithProxy(o.Proxy, o.userAgent(), global.FetchTimeout, 0)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create robots checker: %w", err)
	}

	fetchCfg := fetcher.Config{
		UserAgent:       o.userAgent(),
		RequestTimeout:  global.FetchTimeout,
		MaxConcurrent:   global.MaxConcurrentFetches,
		RedirectCap:     global.RedirectCap,
		PerHostInterval: global.PerHostInterval,
	}
	var recorder fetcher.Recorder
	if o.Metrics != nil {
		recorder = o.Metrics
	}
	f, err := fetcher.New(fetchCfg, o.Proxy, robots, recorder, o.Log)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create fetcher: %w", err)
	}
	defer f.Close()

	result := &RunResult{SiteID: s.ID}

	for _, method := range s.Methods {
		prev, err := o.Store.Latest(s.ID)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: load latest baseline: %w", err)
		}

		report, err := o.runMethod(ctx, f, s, method, global, prev)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: method %s: %w", method, err)
		}

		if err := writeReport(global.OutputRoot, s.Name, string(method), report); err != nil {
			return nil, fmt.Errorf("orchestrator: write report: %w", err)
		}

		result.Reports = append(result.Reports, *report)
	}

	return result, nil
}

func (o *Orchestrator) runMethod(
	ctx context.Context,
	f *fetcher.Fetcher,
	s site.SiteConfig,
	method site.Method,
	global site.GlobalOptions,
	prev *baseline.Baseline,
) (*MethodReport, error) {
	var urls []string
	var meta SourceMetadata
	var obs classifier.Observation

	if s.FirecrawlMode && o.Firecrawl != nil {
		fobs, err := o.runFirecrawl(ctx, s)
		if err != nil {
			return nil, err
		}
		obs = fobs
		urls = obs.URLs
		meta.URLCount = len(urls)
	} else {
		if method == site.MethodSitemap || method == site.MethodHybrid {
			res, err := sitemap.Resolve(ctx, f, s.SitemapURL, global.MaxConcurrentFetches)
			if err != nil {
				return nil, err
			}
			urls = res.URLs
			meta.SitemapIsIndex = res.IsIndex
			meta.SitemapChildren = res.Children
		} else if prev != nil {
			urls = append([]string(nil), prev.URLs...)
		}
		meta.URLCount = len(urls)

		obs = classifier.Observation{URLs: urls}
		if method == site.MethodContent || method == site.MethodHybrid {
			fps, err := fingerprint.FingerprintAll(ctx, fingerprint.Batch{
				Fetch:       f,
				Concurrency: global.MaxConcurrentFetches,
				BatchSize:   global.BatchSize,
			}, urls, nil)
			if err != nil {
				return nil, err
			}

			hashes := make(map[string]baseline.ContentHash, len(fps))
			ignored := make(map[string]string)
			for _, fp := range fps {
				if fp.IgnoredFile {
					ignored[fp.URL] = strings.TrimPrefix(path.Ext(fp.URL), ".")
					continue
				}
				if fp.Hash != "" {
					hashes[fp.URL] = baseline.ContentHash{Hash: fp.Hash, Length: fp.Length}
				}
				if o.Archiver != nil && fp.Hash != "" {
					o.archiveURL(ctx, f, s, fp)
				}
			}
			obs.Hashes = hashes
			obs.Ignored = ignored
		}
	}

	detectedAt := time.Now()
	changes := classifier.Classify(prev, obs, detectedAt)

	evoResult, err := evolution.Evolve(o.Store, evolution.Request{
		SiteID:     s.ID,
		SiteName:   s.Name,
		Previous:   prev,
		Current:    obs,
		Changes:    changes,
		DetectedAt: detectedAt,
	})
	if err != nil {
		return nil, err
	}

	summary := classifier.Summarize(prev, obs, changes)
	if o.Metrics != nil {
		o.Metrics.RecordChanges(s.ID, map[string]int{
			"new": summary.New, "deleted": summary.Deleted, "modified": summary.Modified,
		})
	}

	report := &MethodReport{
		Site:       s.ID,
		Method:     method,
		DetectedAt: detectedAt,
		Changes:    changes,
		Summary:    summary,
		Committed:  evoResult.Committed,
		BaselineID: evoResult.BaselineID,
		SourceMeta: meta,
	}

	o.notifySinks(ctx, s, method, report)

	return report, nil
}

// notifySinks fans the completed report out to the optional side
// channels. Each sink failure is logged, not propagated: a detection
// run's result is the committed baseline, not these mirrors of it.
func (o *Orchestrator) notifySinks(ctx context.Context, s site.SiteConfig, method site.Method, report *MethodReport) {
	if o.Notifier != nil {
		batch := notify.ChangeBatch{
			SiteID:     s.ID,
			BaselineID: report.BaselineID,
			DetectedAt: report.DetectedAt,
			Summary:    report.Summary,
			Changes:    report.Changes,
		}
		if err := o.Notifier.Publish(ctx, batch); err != nil && o.Log != nil {
			o.Log.Error("orchestrator: notify publish failed", "site_id", s.ID, "error", err)
		}
	}

	if o.ESIndex != nil && len(report.Changes) > 0 {
		if err := o.ESIndex.IndexChanges(ctx, s.ID, string(method), report.Changes); err != nil && o.Log != nil {
			o.Log.Error("orchestrator: change index failed", "site_id", s.ID, "error", err)
		}
	}

	if o.Runs != nil {
		rec := &runregistry.RunRecord{
			ID:         uuid.New().String(),
			SiteID:     s.ID,
			Method:     string(method),
			StartedAt:  report.DetectedAt,
			FinishedAt: time.Now(),
			Outcome:    "success",
			BaselineID: report.BaselineID,
		}
		rec.New, rec.Deleted, rec.Modified, rec.Ignored, rec.Unchanged = runregistry.FromSummary(report.Summary)
		if err := o.Runs.Record(ctx, rec); err != nil && o.Log != nil {
			o.Log.Error("orchestrator: run registry record failed", "site_id", s.ID, "error", err)
		}
	}
}

// runFirecrawl enumerates and fingerprints a firecrawl_mode site via the
// Firecrawl crawl API in one round trip, standing in for the Sitemap
// Resolver + Content Fingerprinter pair regardless of which method is
// enabled: Firecrawl's crawl API always returns rendered page content, so
// there is no separate sitemap-only pass.
func (o *Orchestrator) runFirecrawl(ctx context.Context, s site.SiteConfig) (classifier.Observation, error) {
	pages, err := o.Firecrawl.Crawl(ctx, s.RootURL)
	if err != nil {
		return classifier.Observation{}, err
	}

	urls := make([]string, 0, len(pages))
	hashes := make(map[string]baseline.ContentHash, len(pages))
	for _, p := range pages {
		urls = append(urls, p.URL)
		hashes[p.URL] = baseline.ContentHash{Hash: p.Hash, Length: p.Length}
	}

	return classifier.Observation{URLs: urls, Hashes: hashes}, nil
}

// archiveURL re-fetches and archives a page's body. The Content
// Fingerprinter discards the raw body after hashing, so archiving is a
// second fetch — acceptable since it only runs for URLs already known to
// be textual and successfully hashed.
func (o *Orchestrator) archiveURL(ctx context.Context, f *fetcher.Fetcher, s site.SiteConfig, fp fingerprint.Fingerprint) {
	result, failure := f.Fetch(ctx, fp.URL)
	if failure != nil || result == nil {
		return
	}
	_ = o.Archiver.Archive(ctx, &archive.UploadTask{
		HTML:       result.Body,
		URL:        fp.URL,
		SourceName: s.ID,
		StatusCode: result.StatusCode,
		Headers:    map[string]string{"Content-Type": result.ContentType},
		Timestamp:  fp.FetchedAt,
		Ctx:        ctx,
	})
}

func (o *Orchestrator) userAgent() string {
	if o.UserAgent != "" {
		return o.UserAgent
	}
	return "sitewatch/1.0 (+https://github.com/jonesrussell/sitewatch)"
}

func writeReport(outputRoot, siteName, method string, report *MethodReport) error {
	stamp := report.DetectedAt.UTC().Format("20060102_150405")
	dir := filepath.Join(outputRoot, stamp)
	name := fmt.Sprintf("%s_%s_%s.json", siteName, method, stamp)
	return writeJSONFile(filepath.Join(dir, name), report)
}

// writeJSONFile writes v as indented JSON to filePath, creating parent
// directories as needed.
func writeJSONFile(filePath string, v any) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return os.WriteFile(filePath, data, 0o644)
}
