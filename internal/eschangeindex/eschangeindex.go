// Package eschangeindex mirrors classified change records into
// Elasticsearch as a non-authoritative, queryable history. The Baseline
// Store remains the sole source of truth; this index exists only to let
// operators search past changes without replaying baseline files.
package eschangeindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/sitewatch/internal/baseline"
	"github.com/jonesrussell/sitewatch/internal/config/elasticsearch"
)

// Indexer writes change records to a change-history index.
type Indexer struct {
	client *es.Client
	index  string
}

// New constructs an Indexer from cfg's index name.
func New(client *es.Client, cfg *elasticsearch.Config) *Indexer {
	return &Indexer{client: client, index: cfg.IndexName}
}

// changeDoc is the Elasticsearch document shape for one ChangeRecord.
type changeDoc struct {
	SiteID     string              `json:"site_id"`
	Method     string              `json:"method"`
	URL        string              `json:"url"`
	Kind       baseline.ChangeKind `json:"kind"`
	DetectedAt string              `json:"detected_at"`
	PrevHash   string              `json:"prev_hash,omitempty"`
	NewHash    string              `json:"new_hash,omitempty"`
	FileType   string              `json:"file_type,omitempty"`
}

// IndexChanges writes one document per change record. Failures are
// collected and returned together so a partial index failure on one
// record doesn't hide the rest.
func (idx *Indexer) IndexChanges(ctx context.Context, siteID, method string, records []baseline.ChangeRecord) error {
	var errs []error
	for i := range records {
		rec := &records[i]
		doc := changeDoc{
			SiteID:     siteID,
			Method:     method,
			URL:        rec.URL,
			Kind:       rec.Kind,
			DetectedAt: rec.DetectedAt.UTC().Format("2006-01-02T15:04:05.000000000Z"),
			PrevHash:   rec.PrevHash,
			NewHash:    rec.NewHash,
			FileType:   rec.FileType,
		}
		if err := idx.indexDoc(ctx, doc); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rec.URL, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("eschangeindex: %d of %d records failed: %w", len(errs), len(records), errs[0])
	}
	return nil
}

func (idx *Indexer) indexDoc(ctx context.Context, doc changeDoc) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	res, err := idx.client.Index(
		idx.index,
		bytes.NewReader(body),
		idx.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index document: %s", res.String())
	}
	return nil
}
