package sitemap

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/jonesrussell/sitewatch/internal/fetcher"
)

// ErrSitemapUnavailable is returned when the entry sitemap cannot be
// fetched at all, or when every child of a sitemap index fails.
var ErrSitemapUnavailable = fmt.Errorf("sitemap unavailable")

// ChildResult records the outcome of fetching one child sitemap. Status is
// "ok" or "error"; Reason is populated only for "error".
type ChildResult struct {
	URL    string
	Status string
	Reason string
}

// Result is the Sitemap Resolver's output: a deduplicated, sorted URL set
// plus structural metadata about how it was produced.
type Result struct {
	URLs       []string
	IsIndex    bool
	ChildCount int
	Children   []ChildResult
}

// Resolve fetches entryURL and expands it into a deduplicated, sorted URL
// set per spec.md §4.2. When entryURL is a sitemap index, its children are
// fetched concurrently under concurrency (typically the Fetcher's own
// semaphore size).
func Resolve(ctx context.Context, f *fetcher.Fetcher, entryURL string, concurrency int) (*Result, error) {
	body, status, err := fetchText(ctx, f, entryURL)
	if err != nil {
		return nil, fmt.Errorf("%w: entry fetch failed: %v", ErrSitemapUnavailable, err)
	}
	_ = status

	if childLocs, indexErr := ParseSitemapIndex(body); indexErr == nil && len(childLocs) > 0 {
		return resolveIndex(ctx, f, childLocs, concurrency)
	}

	urls, parseErr := ParseSitemap(body, 0)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrSitemapUnavailable, parseErr)
	}

	return &Result{URLs: dedupSortLocs(urls), IsIndex: false}, nil
}

// resolveIndex fetches each child sitemap concurrently, tolerating
// per-child failures, and unions the surviving URL sets.
func resolveIndex(ctx context.Context, f *fetcher.Fetcher, childLocs []string, concurrency int) (*Result, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	urlSet := make(map[string]struct{})
	children := make([]ChildResult, len(childLocs))
	okCount := 0

	for i, loc := range childLocs {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, loc string) {
			defer wg.Done()
			defer func() { <-sem }()

			body, _, fetchErr := fetchText(ctx, f, loc)
			if fetchErr != nil {
				children[i] = ChildResult{URL: loc, Status: "error", Reason: fetchErr.Error()}
				return
			}

			urls, parseErr := ParseSitemap(body, 0)
			if parseErr != nil {
				children[i] = ChildResult{URL: loc, Status: "error", Reason: parseErr.Error()}
				return
			}

			mu.Lock()
			for _, u := range urls {
				addCanonical(urlSet, u.Loc)
			}
			okCount++
			mu.Unlock()
			children[i] = ChildResult{URL: loc, Status: "ok"}
		}(i, loc)
	}
	wg.Wait()

	if okCount == 0 {
		return nil, fmt.Errorf("%w: all %d child sitemaps failed", ErrSitemapUnavailable, len(childLocs))
	}

	urls := make([]string, 0, len(urlSet))
	for u := range urlSet {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	return &Result{
		URLs:       urls,
		IsIndex:    true,
		ChildCount: len(childLocs),
		Children:   children,
	}, nil
}

// fetchText fetches rawURL and returns its body as a string along with the
// HTTP status code.
func fetchText(ctx context.Context, f *fetcher.Fetcher, rawURL string) (string, int, error) {
	result, failure := f.Fetch(ctx, rawURL)
	if failure != nil {
		return "", failure.StatusCode, failure
	}
	return string(result.Body), result.StatusCode, nil
}

// dedupSortLocs strips fragments, skips empty locs, deduplicates, and
// sorts lexicographically per spec.md §4.2's ordering rule.
func dedupSortLocs(entries []SitemapURL) []string {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		addCanonical(set, e.Loc)
	}

	urls := make([]string, 0, len(set))
	for u := range set {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// addCanonical normalizes loc (fragment-stripped, per spec.md §9's
// resolution of the canonicalization open question) and adds it to set,
// skipping empty values.
func addCanonical(set map[string]struct{}, loc string) {
	if loc == "" {
		return
	}
	parsed, err := url.Parse(loc)
	if err != nil {
		set[loc] = struct{}{}
		return
	}
	parsed.Fragment = ""
	set[parsed.String()] = struct{}{}
}
