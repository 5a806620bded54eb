// Package firecrawl implements the optional alternative URL enumerator
// and content fingerprinter described in spec.md §9's redesign flag: a
// thin REST client for the Firecrawl crawl API, injected behind the
// orchestrator's own enumeration/fingerprinting step for sites with
// firecrawl_mode enabled. No published Firecrawl Go SDK appears in the
// example corpus, so this client is built on net/http directly rather
// than a vendor library.
package firecrawl

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	firecrawlconfig "github.com/jonesrussell/sitewatch/internal/config/firecrawl"
	"github.com/jonesrussell/sitewatch/internal/logger"
)

// Page is one crawled page's content hash, standing in for the
// Fetcher+Content Fingerprinter pair's {hash, length} output.
type Page struct {
	URL    string
	Hash   string
	Length int
}

// Client is a thin REST client for the Firecrawl crawl API.
type Client struct {
	httpClient *http.Client
	cfg        *firecrawlconfig.Config
	log        logger.Interface
}

// New returns a Client, or nil if cfg is nil, disabled, or missing an
// API key. Nil-on-unusable-input mirrors internal/notify.New.
func New(cfg *firecrawlconfig.Config, log logger.Interface) *Client {
	if cfg == nil || !cfg.Enabled || cfg.APIKey == "" {
		return nil
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        cfg,
		log:        log,
	}
}

type crawlSubmitRequest struct {
	URL          string `json:"url"`
	ScrapeOptions struct {
		Formats []string `json:"formats"`
	} `json:"scrapeOptions"`
}

type crawlSubmitResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

type crawlStatusResponse struct {
	Status string       `json:"status"`
	Data   []crawlPage  `json:"data"`
	Error  string       `json:"error"`
	Next   string       `json:"next,omitempty"`
}

type crawlPage struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
}

// Crawl submits rootURL to Firecrawl, polls until the job completes, and
// returns one Page per crawled URL. This replaces both the Sitemap
// Resolver's enumeration and the Content Fingerprinter's hashing for a
// firecrawl_mode site: Firecrawl's crawl API already returns rendered
// page content, so there is no separate fetch-then-fingerprint step.
func (c *Client) Crawl(ctx context.Context, rootURL string) ([]Page, error) {
	jobID, err := c.submit(ctx, rootURL)
	if err != nil {
		return nil, fmt.Errorf("firecrawl: submit crawl: %w", err)
	}

	var pages []crawlPage
	for attempt := 0; attempt < c.cfg.MaxPollAttempts; attempt++ {
		status, err := c.poll(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("firecrawl: poll crawl %s: %w", jobID, err)
		}

		switch status.Status {
		case "completed":
			pages = status.Data
			attempt = c.cfg.MaxPollAttempts
		case "failed", "cancelled":
			return nil, fmt.Errorf("firecrawl: crawl %s ended with status %q: %s", jobID, status.Status, status.Error)
		default:
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.PollInterval):
			}
		}
	}

	if pages == nil {
		return nil, fmt.Errorf("firecrawl: crawl %s did not complete within %d polls", jobID, c.cfg.MaxPollAttempts)
	}

	result := make([]Page, 0, len(pages))
	for _, p := range pages {
		if p.URL == "" {
			continue
		}
		sum := sha256.Sum256([]byte(p.Markdown))
		result = append(result, Page{
			URL:    p.URL,
			Hash:   hex.EncodeToString(sum[:]),
			Length: len(p.Markdown),
		})
	}
	return result, nil
}

func (c *Client) submit(ctx context.Context, rootURL string) (string, error) {
	reqBody := crawlSubmitRequest{URL: rootURL}
	reqBody.ScrapeOptions.Formats = []string{"markdown"}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	var submitResp crawlSubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/crawl", body, &submitResp); err != nil {
		return "", err
	}
	if !submitResp.Success || submitResp.ID == "" {
		return "", fmt.Errorf("firecrawl: crawl submission rejected")
	}
	return submitResp.ID, nil
}

func (c *Client) poll(ctx context.Context, jobID string) (*crawlStatusResponse, error) {
	var status crawlStatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/crawl/"+jobID, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("firecrawl: %s %s returned %d: %s", method, path, resp.StatusCode, string(data))
	}
	return json.Unmarshal(data, out)
}
