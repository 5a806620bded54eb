// Package evolution implements the Evolution Engine from spec.md §4.6: it
// merges a previous baseline, the current observation, and the classified
// change records into a proposed next baseline, then commits it through the
// Baseline Store.
package evolution

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/sitewatch/internal/baseline"
	"github.com/jonesrussell/sitewatch/internal/classifier"
)

// Store is the subset of baseline.Store the engine commits through.
type Store interface {
	Save(b *baseline.Baseline) (string, error)
	AppendEvent(ev *baseline.BaselineEvent) error
}

// Request bundles the inputs to one evolution.
type Request struct {
	SiteID     string
	SiteName   string
	Previous   *baseline.Baseline // nil on first run for this site
	Current    classifier.Observation
	Changes    []baseline.ChangeRecord
	Revalidate bool // caller explicitly requested a commit even with no changes
	DetectedAt time.Time
}

// Result is what Evolve produced.
type Result struct {
	Committed  bool
	Baseline   *baseline.Baseline // the baseline now latest (next if committed, previous otherwise)
	BaselineID string
	Validation baseline.ValidationResult
}

// Evolve merges req into a proposed next baseline and commits it via store,
// per spec.md §4.6. It is idempotent: identical inputs produce a
// byte-identical baseline modulo CreatedAt.
func Evolve(store Store, req Request) (Result, error) {
	if req.Previous == nil {
		return evolveInitial(store, req)
	}

	if len(req.Changes) == 0 && !req.Revalidate {
		return Result{Committed: false, Baseline: req.Previous, BaselineID: req.Previous.ID()}, nil
	}

	next := merge(req)

	validation := baseline.Validate(next, req.Previous)
	if !validation.OK() {
		event := &baseline.BaselineEvent{
			EventID:            uuid.NewString(),
			SiteID:             req.SiteID,
			Timestamp:          req.DetectedAt,
			Kind:               baseline.EventValidationFailed,
			ChangeSummary:      next.ChangeSummary,
			PreviousBaselineID: req.Previous.ID(),
		}
		if err := store.AppendEvent(event); err != nil {
			return Result{}, fmt.Errorf("evolution: append validation_failed event: %w", err)
		}
		return Result{
			Committed:  false,
			Baseline:   req.Previous,
			BaselineID: req.Previous.ID(),
			Validation: validation,
		}, nil
	}

	id, err := store.Save(next)
	if err != nil {
		return Result{}, fmt.Errorf("evolution: save baseline: %w", err)
	}

	event := &baseline.BaselineEvent{
		EventID:            uuid.NewString(),
		SiteID:             req.SiteID,
		Timestamp:          req.DetectedAt,
		Kind:               baseline.EventUpdated,
		ChangeSummary:      next.ChangeSummary,
		PreviousBaselineID: req.Previous.ID(),
		NewBaselineID:      id,
	}
	if err := store.AppendEvent(event); err != nil {
		return Result{}, fmt.Errorf("evolution: append updated event: %w", err)
	}

	return Result{Committed: true, Baseline: next, BaselineID: id, Validation: validation}, nil
}

func evolveInitial(store Store, req Request) (Result, error) {
	next := &baseline.Baseline{
		SiteID:        req.SiteID,
		SiteName:      req.SiteName,
		CreatedAt:     req.DetectedAt,
		Version:       "1",
		EvolutionType: baseline.EvolutionInitial,
		URLs:          append([]string(nil), req.Current.URLs...),
		ContentHashes: cloneHashes(req.Current.Hashes),
	}

	id, err := store.Save(next)
	if err != nil {
		return Result{}, fmt.Errorf("evolution: save initial baseline: %w", err)
	}

	event := &baseline.BaselineEvent{
		EventID:       uuid.NewString(),
		SiteID:        req.SiteID,
		Timestamp:     req.DetectedAt,
		Kind:          baseline.EventCreated,
		NewBaselineID: id,
	}
	if err := store.AppendEvent(event); err != nil {
		return Result{}, fmt.Errorf("evolution: append created event: %w", err)
	}

	return Result{Committed: true, Baseline: next, BaselineID: id}, nil
}

// RollbackRequest bundles the inputs to a manual rollback: restoring a
// prior baseline as the site's latest.
type RollbackRequest struct {
	SiteID  string
	Current *baseline.Baseline // latest baseline before the rollback, nil if none
	Target  *baseline.Baseline // the baseline being restored
	At      time.Time
}

// Rollback commits target's URL set and hashes as a new baseline entry
// (preserving target's own file in history) and appends a rolled-back
// event. Per spec.md §6, rollback sets the target as latest rather than
// deleting the baselines written since.
func Rollback(store Store, req RollbackRequest) (Result, error) {
	prevCreated := req.Target.CreatedAt
	next := &baseline.Baseline{
		SiteID:            req.Target.SiteID,
		SiteName:          req.Target.SiteName,
		CreatedAt:         req.At,
		PreviousCreatedAt: &prevCreated,
		Version:           req.Target.Version,
		EvolutionType:     baseline.EvolutionManualRollback,
		URLs:              append([]string(nil), req.Target.URLs...),
		ContentHashes:     cloneHashes(req.Target.ContentHashes),
	}

	id, err := store.Save(next)
	if err != nil {
		return Result{}, fmt.Errorf("evolution: save rollback baseline: %w", err)
	}

	var prevBaselineID string
	if req.Current != nil {
		prevBaselineID = req.Current.ID()
	}

	event := &baseline.BaselineEvent{
		EventID:            uuid.NewString(),
		SiteID:             req.SiteID,
		Timestamp:          req.At,
		Kind:               baseline.EventRolledBack,
		PreviousBaselineID: prevBaselineID,
		NewBaselineID:      id,
	}
	if err := store.AppendEvent(event); err != nil {
		return Result{}, fmt.Errorf("evolution: append rolled-back event: %w", err)
	}

	return Result{Committed: true, Baseline: next, BaselineID: id}, nil
}

// merge implements the §4.6 merge rules.
func merge(req Request) *baseline.Baseline {
	deleted := make(map[string]bool)
	newHash := make(map[string]string)
	for _, c := range req.Changes {
		switch c.Kind {
		case baseline.ChangeDeletedPage:
			deleted[c.URL] = true
		case baseline.ChangeModifiedContent, baseline.ChangeNewPage:
			if c.NewHash != "" {
				newHash[c.URL] = c.NewHash
			}
		}
	}

	union := make(map[string]bool, len(req.Previous.URLs)+len(req.Current.URLs))
	for _, u := range req.Previous.URLs {
		union[u] = true
	}
	for _, u := range req.Current.URLs {
		union[u] = true
	}

	urls := make([]string, 0, len(union))
	hashes := make(map[string]baseline.ContentHash, len(union))
	for u := range union {
		if deleted[u] {
			continue
		}
		urls = append(urls, u)

		if h, ok := newHash[u]; ok {
			hashes[u] = baseline.ContentHash{Hash: h, Length: req.Current.Hashes[u].Length}
			continue
		}
		if prev, ok := req.Previous.ContentHashes[u]; ok {
			hashes[u] = prev
			continue
		}
		if cur, ok := req.Current.Hashes[u]; ok && cur.Hash != "" {
			hashes[u] = cur
		}
	}
	sort.Strings(urls)

	prevCreated := req.Previous.CreatedAt
	next := &baseline.Baseline{
		SiteID:            req.SiteID,
		SiteName:          req.SiteName,
		CreatedAt:         req.DetectedAt,
		PreviousCreatedAt: &prevCreated,
		Version:           req.Previous.Version,
		EvolutionType:     baseline.EvolutionAutomaticUpdate,
		URLs:              urls,
		ContentHashes:     hashes,
		ChangeSummary:     classifier.Summarize(req.Previous, req.Current, req.Changes),
	}
	return next
}

func cloneHashes(src map[string]baseline.ContentHash) map[string]baseline.ContentHash {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]baseline.ContentHash, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

