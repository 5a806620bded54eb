package baseline

import (
	"fmt"
	"time"
)

// Validate checks b against the invariants in spec.md §3. A baseline
// validation error aborts the commit only; it never aborts the run, and
// the previous baseline remains latest.
func Validate(b *Baseline, predecessor *Baseline) ValidationResult {
	var res ValidationResult

	if b.SiteID == "" {
		res.Errors = append(res.Errors, "missing site-id")
	}

	seen := make(map[string]bool, len(b.URLs))
	for _, u := range b.URLs {
		if seen[u] {
			res.Errors = append(res.Errors, fmt.Sprintf("duplicate url %q", u))
		}
		seen[u] = true
	}

	// A content/hybrid run may legitimately omit a hash for a URL it never
	// fetched successfully (spec.md §4.6): a newly discovered URL whose
	// fetch failed still belongs in URLs, just without an entry in
	// ContentHashes. What must never happen is a hash key for a URL that
	// isn't in the baseline at all.
	for u := range b.ContentHashes {
		if !seen[u] {
			res.Errors = append(res.Errors, fmt.Sprintf("content_hashes has url %q not present in urls", u))
		}
	}

	for u, ch := range b.ContentHashes {
		if ch.Hash == "" && ch.Length != 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("url %q: empty hash with non-zero length", u))
		}
	}

	if predecessor != nil {
		if b.PreviousCreatedAt != nil && b.PreviousCreatedAt.After(time.Now()) {
			res.Warnings = append(res.Warnings, "predecessor timestamp is in the future")
		}

		prevCount := len(predecessor.URLs)
		newCount := len(b.URLs)
		if prevCount > 0 {
			delta := abs(newCount-prevCount) * 100 / prevCount
			if delta > 50 {
				res.Warnings = append(res.Warnings, fmt.Sprintf(
					"url count changed by %d%% relative to predecessor (%d -> %d)", delta, prevCount, newCount))
			}
		}
	}

	return res
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
