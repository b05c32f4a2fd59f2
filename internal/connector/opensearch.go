package connector

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/hunthawk-systems/hunthawk/internal/config"
	"github.com/hunthawk-systems/hunthawk/internal/logging"
	"github.com/hunthawk-systems/hunthawk/internal/models"
)

// OpenSearchConnector runs analytics as OpenSearch query-string searches and
// aggregates hits per host. The analytic query is the query_string body.
type OpenSearchConnector struct {
	client   *opensearch.Client
	index    string
	recorder ErrorRecorder
	// maxHosts caps the per-host aggregation size; aligned with the
	// campaign max-hosts ceiling so the guard sees the breach.
	maxHosts int
	log      *logging.Logger
}

func NewOpenSearchConnector(cfg config.OpenSearchConnectorConfig, maxHosts int, recorder ErrorRecorder, log *logging.Logger) (*OpenSearchConnector, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.Insecure,
			},
		},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &OpenSearchConnector{
		client:   client,
		index:    cfg.Index,
		recorder: recorder,
		maxHosts: maxHosts,
		log:      log,
	}, nil
}

type osAggResponse struct {
	Aggregations struct {
		Hosts struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int64  `json:"doc_count"`
				Sites    struct {
					Buckets []struct {
						Key string `json:"key"`
					} `json:"buckets"`
				} `json:"sites"`
			} `json:"buckets"`
		} `json:"hosts"`
	} `json:"aggregations"`
}

func (c *OpenSearchConnector) Query(ctx context.Context, a *models.Analytic, from, to time.Time) ([]Row, error) {
	body := map[string]any{
		"size": 0,
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{"query_string": map[string]any{"query": a.Query}},
					map[string]any{"range": map[string]any{
						"@timestamp": map[string]any{
							"gte": from.UTC().Format(time.RFC3339),
							"lt":  to.UTC().Format(time.RFC3339),
						},
					}},
				},
			},
		},
		"aggs": map[string]any{
			"hosts": map[string]any{
				"terms": map[string]any{"field": "host.name", "size": c.maxHosts},
				"aggs": map[string]any{
					"sites": map[string]any{
						"terms": map[string]any{"field": "host.group", "size": 1},
					},
				},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search body: %w", err)
	}

	res, err := c.client.Search(
		c.client.Search.WithContext(ctx),
		c.client.Search.WithIndex(c.index),
		c.client.Search.WithBody(strings.NewReader(string(payload))),
	)
	if err != nil {
		return nil, fmt.Errorf("opensearch query failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		// A rejected query is the analytic's fault, not an outage: record
		// the error on the analytic and degrade to a zero-hit result.
		raw, _ := io.ReadAll(res.Body)
		msg := fmt.Sprintf("opensearch rejected query: %s: %s", res.Status(), string(raw))
		c.log.WarnContext(ctx, "analytic query rejected", "analytic", a.Name, "status", res.Status())
		if c.recorder != nil {
			if rerr := c.recorder.RecordQueryError(ctx, a, msg); rerr != nil {
				return nil, fmt.Errorf("failed to record query error: %w", rerr)
			}
		}
		return nil, nil
	}

	var parsed osAggResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode opensearch response: %w", err)
	}

	rows := make([]Row, 0, len(parsed.Aggregations.Hosts.Buckets))
	for _, bucket := range parsed.Aggregations.Hosts.Buckets {
		site := ""
		if len(bucket.Sites.Buckets) > 0 {
			site = bucket.Sites.Buckets[0].Key
		}
		rows = append(rows, Row{
			Hostname:   bucket.Key,
			Site:       site,
			EventCount: bucket.DocCount,
		})
	}
	return rows, nil
}
