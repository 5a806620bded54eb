package eschangeindex

import (
	"crypto/tls"
	"fmt"
	"net/http"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/sitewatch/internal/config/elasticsearch"
)

// NewClient builds and pings an Elasticsearch client from cfg, grounded on
// the teacher's internal/storage/client.go (CreateTransport/
// CreateClientConfig split, API-key-then-basic-auth precedence, cloud ID
// override).
func NewClient(cfg *elasticsearch.Config) (*es.Client, error) {
	clientConfig := clientConfig(cfg, transport(cfg))

	client, err := es.NewClient(*clientConfig)
	if err != nil {
		return nil, fmt.Errorf("eschangeindex: create client: %w", err)
	}

	res, err := client.Ping()
	if err != nil {
		return nil, fmt.Errorf("eschangeindex: ping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("eschangeindex: ping returned %s", res.String())
	}

	return client, nil
}

func transport(cfg *elasticsearch.Config) *http.Transport {
	t := &http.Transport{}
	if cfg.TLS != nil && cfg.TLS.Enabled {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.TLS.InsecureSkipVerify} //nolint:gosec
		if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
			if cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile); err == nil {
				t.TLSClientConfig.Certificates = []tls.Certificate{cert}
			}
		}
	}
	return t
}

func clientConfig(cfg *elasticsearch.Config, t *http.Transport) *es.Config {
	c := es.Config{Addresses: cfg.Addresses, Transport: t}

	if cfg.APIKey != "" {
		c.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		c.Username = cfg.Username
		c.Password = cfg.Password
	}

	if cfg.Cloud.ID != "" {
		c.CloudID = cfg.Cloud.ID
	}
	if cfg.Cloud.APIKey != "" {
		c.APIKey = cfg.Cloud.APIKey
	}

	return &c
}
