// Package classifier implements the Change Classifier from spec.md §4.5: a
// pure, total function comparing a baseline against a current observation.
package classifier

import (
	"sort"
	"time"

	"github.com/jonesrussell/sitewatch/internal/baseline"
)

// Observation is the current run's URL set and, for content methods,
// fingerprints — produced by the Sitemap Resolver and Content
// Fingerprinter before comparison.
type Observation struct {
	URLs    []string
	Hashes  map[string]baseline.ContentHash
	Ignored map[string]string // url -> file type (extension), for short-circuited fingerprints
}

// Classify compares b (nil is treated as an empty baseline with no known
// URLs) against obs and returns the classified change records, sorted by
// (kind, URL) for deterministic output. It never fails: missing
// fingerprints surface as suppressed modifications, not errors.
func Classify(b *baseline.Baseline, obs Observation, detectedAt time.Time) []baseline.ChangeRecord {
	bURLs, bHash := baselineSets(b)
	cURLs := toSet(obs.URLs)

	var records []baseline.ChangeRecord

	for u := range cURLs {
		if _, known := bURLs[u]; known {
			continue
		}
		rec := baseline.ChangeRecord{URL: u, Kind: baseline.ChangeNewPage, DetectedAt: detectedAt}
		if ch, ok := obs.Hashes[u]; ok && ch.Hash != "" {
			rec.NewHash = ch.Hash
		}
		if fileType, ignored := obs.Ignored[u]; ignored {
			rec.FileType = fileType
		}
		records = append(records, rec)
	}

	for u := range bURLs {
		if _, known := cURLs[u]; known {
			continue
		}
		rec := baseline.ChangeRecord{URL: u, Kind: baseline.ChangeDeletedPage, DetectedAt: detectedAt}
		if ch, ok := bHash[u]; ok {
			rec.PrevHash = ch.Hash
		}
		records = append(records, rec)
	}

	for u := range bURLs {
		if _, stillPresent := cURLs[u]; !stillPresent {
			continue
		}
		if _, ignored := obs.Ignored[u]; ignored {
			continue // ignored URLs are excluded from modified_content
		}

		prev, havePrev := bHash[u]
		cur, haveCur := obs.Hashes[u]
		if !havePrev || !haveCur || prev.Hash == "" || cur.Hash == "" {
			continue // missing hash on either side suppresses modified_content
		}
		if prev.Hash == cur.Hash {
			continue // unchanged
		}

		records = append(records, baseline.ChangeRecord{
			URL: u, Kind: baseline.ChangeModifiedContent, DetectedAt: detectedAt,
			PrevHash: prev.Hash, NewHash: cur.Hash,
		})
	}

	// Ignored URLs that are new were already recorded as new_page above
	// (with FileType attached). URLs ignored but already known get their
	// own ignored_file record, since they are excluded from
	// modified_content above.
	for u, fileType := range obs.Ignored {
		if _, known := bURLs[u]; !known {
			continue
		}
		if _, stillCurrent := cURLs[u]; !stillCurrent {
			continue
		}
		records = append(records, baseline.ChangeRecord{
			URL: u, Kind: baseline.ChangeIgnoredFile, DetectedAt: detectedAt, FileType: fileType,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Kind != records[j].Kind {
			return records[i].Kind < records[j].Kind
		}
		return records[i].URL < records[j].URL
	})

	return records
}

// Summarize counts the outcomes of a classification, including the
// unchanged count that Classify itself never surfaces as a record.
func Summarize(b *baseline.Baseline, obs Observation, changes []baseline.ChangeRecord) baseline.ChangeSummary {
	var s baseline.ChangeSummary
	for _, c := range changes {
		switch c.Kind {
		case baseline.ChangeNewPage:
			s.New++
		case baseline.ChangeDeletedPage:
			s.Deleted++
		case baseline.ChangeModifiedContent:
			s.Modified++
		case baseline.ChangeIgnoredFile:
			s.Ignored++
		}
	}

	bURLs, bHash := baselineSets(b)
	cURLs := toSet(obs.URLs)
	for u := range bURLs {
		if _, stillPresent := cURLs[u]; !stillPresent {
			continue
		}
		if _, ignored := obs.Ignored[u]; ignored {
			continue
		}
		prev, havePrev := bHash[u]
		cur, haveCur := obs.Hashes[u]
		if havePrev && haveCur && prev.Hash != "" && cur.Hash != "" && prev.Hash == cur.Hash {
			s.Unchanged++
		}
	}
	return s
}

func baselineSets(b *baseline.Baseline) (map[string]struct{}, map[string]baseline.ContentHash) {
	if b == nil {
		return map[string]struct{}{}, map[string]baseline.ContentHash{}
	}
	return toSet(b.URLs), b.ContentHashes
}

func toSet(urls []string) map[string]struct{} {
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set
}
