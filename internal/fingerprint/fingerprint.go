// Package fingerprint implements the Content Fingerprinter: the
// canonicalization pipeline and hashing contract from spec.md §4.3. Given
// a fetched page it produces a deterministic {hash, length} pair, or a
// sentinel when the page cannot be meaningfully compared.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/sitewatch/internal/fetcher"
)

// Fingerprint is the {hash, length} pair produced for one URL. A URL whose
// Hash is empty is either unreachable (Status != 2xx) or an ignored file
// (IgnoredFile == true); the Classifier treats both as "unknown", never as
// a modification.
type Fingerprint struct {
	URL         string
	Hash        string
	Length      int
	Status      int
	IgnoredFile bool
	FetchedAt   time.Time
}

// ignoredExtensions are file extensions excluded from textual comparison.
var ignoredExtensions = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".svg": true, ".webp": true, ".doc": true, ".docx": true, ".xls": true,
	".xlsx": true, ".zip": true,
}

// boilerplateSelector matches elements removed before hashing: structural
// chrome plus anything whose class or id names navigation, a menu, a
// footer, or a cookie banner.
const boilerplateSelector = `script, style, nav, header, footer, [role="navigation"],
	[class*="nav"], [class*="menu"], [class*="footer"], [class*="cookie"],
	[id*="nav"], [id*="menu"], [id*="footer"], [id*="cookie"]`

var whitespaceRun = regexp.MustCompile(`\s+`)

// Batch holds the dependencies the Fingerprinter needs to process a set of
// URLs concurrently.
type Batch struct {
	Fetch       *fetcher.Fetcher
	Concurrency int
	BatchSize   int
}

// DefaultBatchSize is the default fingerprinting batch size from spec.md
// §4.3.
const DefaultBatchSize = 20

// Progress is invoked at each batch boundary with the cumulative count of
// URLs processed so far.
type Progress func(processed, total int)

// FingerprintAll fetches and fingerprints every URL in urls, preserving
// input order in the returned slice. Concurrency within a batch is bounded
// by b.Concurrency (typically the Fetcher's own semaphore size); batches
// of b.BatchSize (or DefaultBatchSize) run sequentially so progress can be
// reported between them.
func FingerprintAll(ctx context.Context, b Batch, urls []string, report Progress) ([]Fingerprint, error) {
	batchSize := b.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	results := make([]Fingerprint, len(urls))
	processed := 0

	for start := 0; start < len(urls); start += batchSize {
		end := min(start+batchSize, len(urls))
		if err := fingerprintBatch(ctx, b, urls[start:end], results[start:end]); err != nil {
			return nil, err
		}
		processed = end
		if report != nil {
			report(processed, len(urls))
		}
	}

	return results, nil
}

func fingerprintBatch(ctx context.Context, b Batch, urls []string, out []Fingerprint) error {
	if len(urls) == 0 {
		return nil
	}

	concurrency := b.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, u := range urls {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		}

		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			defer func() { <-sem }()
			out[i] = One(ctx, b.Fetch, u)
		}(i, u)
	}

	wg.Wait()
	return ctx.Err()
}

// One fingerprints a single URL, applying the canonicalization pipeline
// from spec.md §4.3 step by step.
func One(ctx context.Context, f *fetcher.Fetcher, rawURL string) Fingerprint {
	result, failure := f.Fetch(ctx, rawURL)
	if failure != nil {
		status := failure.StatusCode
		return Fingerprint{URL: rawURL, Status: status, FetchedAt: time.Now()}
	}

	if isIgnoredContentType(result.ContentType, rawURL) {
		return Fingerprint{
			URL: rawURL, Status: result.StatusCode, IgnoredFile: true, FetchedAt: time.Now(),
		}
	}

	canonical, err := canonicalize(result.Body)
	if err != nil {
		return Fingerprint{URL: rawURL, Status: result.StatusCode, FetchedAt: time.Now()}
	}

	hash := sha256.Sum256([]byte(canonical))
	return Fingerprint{
		URL:       rawURL,
		Hash:      hex.EncodeToString(hash[:]),
		Length:    len(canonical),
		Status:    result.StatusCode,
		FetchedAt: time.Now(),
	}
}

// isIgnoredContentType reports whether the page's MIME type or URL
// extension marks it as a non-textual file excluded from comparison.
func isIgnoredContentType(contentType, rawURL string) bool {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		isTextlike := strings.HasPrefix(mediaType, "text/") ||
			mediaType == "application/xhtml+xml" || mediaType == "application/xml"
		if err == nil && !isTextlike {
			return true
		}
	}

	ext := strings.ToLower(path.Ext(rawURL))
	return ignoredExtensions[ext]
}

// canonicalize strips boilerplate, collapses whitespace, and joins the
// remaining visible text in document order by a single newline.
func canonicalize(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(boilerplateSelector).Remove()

	var lines []string
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		collectText(s, &lines)
	})
	if len(lines) == 0 {
		collectText(doc.Selection, &lines)
	}

	return strings.Join(lines, "\n"), nil
}

// collectText walks s depth-first, appending the collapsed, trimmed text
// of each leaf text node.
func collectText(s *goquery.Selection, lines *[]string) {
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			text := strings.TrimSpace(whitespaceRun.ReplaceAllString(child.Text(), " "))
			if text != "" {
				*lines = append(*lines, text)
			}
			return
		}
		collectText(child, lines)
	})
}
