// Package baseline implements the Baseline Store from spec.md §4.4: the
// sole mutator of a site's baseline history, backed by atomic
// temp-file-then-rename writes and per-site flock-based locking.
package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// EvolutionType classifies how a Baseline came to exist.
type EvolutionType string

const (
	EvolutionInitial         EvolutionType = "initial"
	EvolutionAutomaticUpdate EvolutionType = "automatic-update"
	EvolutionManualRollback  EvolutionType = "manual-rollback"
)

// ChangeKind classifies a single ChangeRecord.
type ChangeKind string

const (
	ChangeNewPage         ChangeKind = "new_page"
	ChangeModifiedContent ChangeKind = "modified_content"
	ChangeDeletedPage     ChangeKind = "deleted_page"
	ChangeIgnoredFile     ChangeKind = "ignored_file"
)

// ContentHash is the persisted fingerprint for one URL within a baseline.
type ContentHash struct {
	Hash   string `json:"hash"`
	Length int    `json:"length"`
}

// ChangeSummary counts each ChangeKind observed in the run that produced a
// baseline.
type ChangeSummary struct {
	New       int `json:"new"`
	Deleted   int `json:"deleted"`
	Modified  int `json:"modified"`
	Ignored   int `json:"ignored"`
	Unchanged int `json:"unchanged"`
}

// Baseline is a persisted snapshot of a site's known URLs and, optionally,
// their content fingerprints. It is the sole reference for the next run's
// comparison.
type Baseline struct {
	SiteID            string                 `json:"site_id"`
	SiteName          string                 `json:"site_name"`
	CreatedAt         time.Time              `json:"created_at"`
	PreviousCreatedAt *time.Time             `json:"previous_created_at,omitempty"`
	Version           string                 `json:"version"`
	EvolutionType     EvolutionType          `json:"evolution_type"`
	URLs              []string               `json:"urls"`
	ContentHashes     map[string]ContentHash `json:"content_hashes,omitempty"`
	ChangeSummary     ChangeSummary          `json:"change_summary"`
	Metadata          map[string]any         `json:"metadata,omitempty"`
}

// ChangeRecord is a single classified change, emitted per run into the
// change-report file.
type ChangeRecord struct {
	URL        string     `json:"url"`
	Kind       ChangeKind `json:"kind"`
	DetectedAt time.Time  `json:"detected_at"`
	PrevHash   string     `json:"prev_hash,omitempty"`
	NewHash    string     `json:"new_hash,omitempty"`
	FileType   string     `json:"file_type,omitempty"`
	Detail     string     `json:"detail,omitempty"`
}

// EventKind classifies a BaselineEvent.
type EventKind string

const (
	EventCreated          EventKind = "created"
	EventUpdated          EventKind = "updated"
	EventValidated        EventKind = "validated"
	EventRolledBack       EventKind = "rolled-back"
	EventValidationFailed EventKind = "validation_failed"
	EventRunAborted       EventKind = "run_aborted"
)

// BaselineEvent is appended to a site's event log on every baseline
// transition.
type BaselineEvent struct {
	EventID            string        `json:"event_id"`
	SiteID             string        `json:"site_id"`
	Timestamp          time.Time     `json:"timestamp"`
	Kind               EventKind     `json:"kind"`
	ChangeSummary      ChangeSummary `json:"change_summary"`
	PreviousBaselineID string        `json:"previous_baseline_id,omitempty"`
	NewBaselineID      string        `json:"new_baseline_id"`
}

// ID returns the baseline's identifier: its creation timestamp in a
// sortable, filename-safe form, plus a short content hash so that two
// baselines created within the same nanosecond never collide on
// identifier. Ties in timestamp are broken lexicographically on this
// identifier, per spec.md §3's tie-break rule.
func (b *Baseline) ID() string {
	ts := b.CreatedAt.UTC().Format("20060102T150405.000000000Z")
	return ts + "_" + b.contentHash()
}

// contentHash returns an 8-character hex digest of the fields that make a
// baseline unique, so ID() is stable across repeated calls on the same
// value without persisting the hash as a struct field.
func (b *Baseline) contentHash() string {
	digestInput, _ := json.Marshal(struct {
		SiteID        string                 `json:"site_id"`
		URLs          []string               `json:"urls"`
		ContentHashes map[string]ContentHash `json:"content_hashes,omitempty"`
		EvolutionType EvolutionType          `json:"evolution_type"`
	}{b.SiteID, b.URLs, b.ContentHashes, b.EvolutionType})

	sum := sha256.Sum256(digestInput)
	return hex.EncodeToString(sum[:])[:8]
}
