// Package search talks to an Elasticsearch-compatible cluster over its
// documented _bulk/_search JSON surface. No Elasticsearch client is
// present anywhere in the example corpus; this adapter is a direct
// net/http implementation behind a narrow Store interface, mirrored on
// the query shape manshu's HybridSearchService builds by hand (see
// DESIGN.md).
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Document is one indexed passage.
type Document struct {
	ID       string    `json:"id"`
	FileMD5  string    `json:"file_md5"`
	ChunkID  int       `json:"chunk_id"`
	Content  string    `json:"content"`
	Vector   []float32 `json:"vector"`
	Model    string    `json:"model"`
	UserID   string    `json:"user_id"`
	OrgTag   string    `json:"org_tag"`
	IsPublic bool      `json:"is_public"`
}

// Hit is one scored search result.
type Hit struct {
	Document Document
	Score    float64
}

// Query describes a hybrid (vector + lexical) permissioned search.
type Query struct {
	Text           string
	Vector         []float32
	K              int
	NumCandidates  int
	Size           int
	OwnerUserID    string
	EffectiveTags  []string
	AllowPublic    bool
	RescoreWindow  int
	QueryWeight    float64
	RescoreWeight  float64
	MinScoreLexOnly float64
}

// Store is the contract the rest of the service depends on.
type Store interface {
	BulkIndex(ctx context.Context, documents []Document) error
	Search(ctx context.Context, q Query) ([]Hit, error)
	TextOnlySearch(ctx context.Context, q Query) ([]Hit, error)
}

type Config struct {
	Endpoint string
	Index    string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BulkIndex upserts documents by their (deterministic) id so
// redelivery of an ingestion task never creates duplicates. Grounded
// on manshu's ElasticsearchService.bulkIndex.
func (c *Client) BulkIndex(ctx context.Context, documents []Document) error {
	if len(documents) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, doc := range documents {
		action := map[string]any{"index": map[string]any{"_index": c.cfg.Index, "_id": doc.ID}}
		actionLine, err := json.Marshal(action)
		if err != nil {
			return fmt.Errorf("marshal bulk action failed: %w", err)
		}
		docLine, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal bulk document failed: %w", err)
		}
		buf.Write(actionLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/_bulk"), &buf)
	if err != nil {
		return fmt.Errorf("build bulk request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bulk index request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("bulk index status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

// Search performs a hybrid kNN + lexical search with a rescore phase,
// restricted to documents the caller owns, has an effective tag match
// on, or that are public. Grounded on
// manshu's HybridSearchService.search.
func (c *Client) Search(ctx context.Context, q Query) ([]Hit, error) {
	k := q.K
	if k <= 0 {
		k = 10
	}
	numCandidates := q.NumCandidates
	if numCandidates <= 0 {
		numCandidates = k * 10
	}
	size := q.Size
	if size <= 0 {
		size = k
	}
	rescoreWindow := q.RescoreWindow
	if rescoreWindow <= 0 {
		rescoreWindow = size * 2
	}
	queryWeight := q.QueryWeight
	if queryWeight == 0 {
		queryWeight = 0.3
	}
	rescoreWeight := q.RescoreWeight
	if rescoreWeight == 0 {
		rescoreWeight = 0.7
	}

	should := []map[string]any{
		{"term": map[string]any{"user_id": q.OwnerUserID}},
	}
	for _, tag := range q.EffectiveTags {
		should = append(should, map[string]any{"term": map[string]any{"org_tag": tag}})
	}
	if q.AllowPublic {
		should = append(should, map[string]any{"term": map[string]any{"is_public": true}})
	}

	body := map[string]any{
		"size": size,
		"knn": map[string]any{
			"field":          "vector",
			"query_vector":   q.Vector,
			"k":              k,
			"num_candidates": numCandidates,
			"filter": map[string]any{
				"bool": map[string]any{"should": should, "minimum_should_match": 1},
			},
		},
		"query": map[string]any{
			"bool": map[string]any{
				"must":   []map[string]any{{"match": map[string]any{"content": q.Text}}},
				"filter": []map[string]any{{"bool": map[string]any{"should": should, "minimum_should_match": 1}}},
			},
		},
		"rescore": map[string]any{
			"window_size": rescoreWindow,
			"query": map[string]any{
				"rescore_query": map[string]any{
					"match": map[string]any{
						"content": map[string]any{"query": q.Text, "operator": "AND"},
					},
				},
				"query_weight":   queryWeight,
				"rescore_query_weight": rescoreWeight,
			},
		},
	}
	return c.doSearch(ctx, body)
}

// TextOnlySearch is used when no embedding is available (e.g. the
// embedding provider is degraded); falls back to a plain lexical
// match with a minimum score floor. Grounded on manshu's
// HybridSearchService.textOnlySearch.
func (c *Client) TextOnlySearch(ctx context.Context, q Query) ([]Hit, error) {
	size := q.Size
	if size <= 0 {
		size = 10
	}
	minScore := q.MinScoreLexOnly
	if minScore == 0 {
		minScore = 0.3
	}

	should := []map[string]any{
		{"term": map[string]any{"user_id": q.OwnerUserID}},
	}
	for _, tag := range q.EffectiveTags {
		should = append(should, map[string]any{"term": map[string]any{"org_tag": tag}})
	}
	if q.AllowPublic {
		should = append(should, map[string]any{"term": map[string]any{"is_public": true}})
	}

	body := map[string]any{
		"size":      size,
		"min_score": minScore,
		"query": map[string]any{
			"bool": map[string]any{
				"must":   []map[string]any{{"match": map[string]any{"content": q.Text}}},
				"filter": []map[string]any{{"bool": map[string]any{"should": should, "minimum_should_match": 1}}},
			},
		},
	}
	return c.doSearch(ctx, body)
}

func (c *Client) doSearch(ctx context.Context, body map[string]any) ([]Hit, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body failed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/_search"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build search request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64  `json:"_score"`
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response failed: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{Document: h.Source, Score: h.Score})
	}
	return hits, nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.Endpoint, "/") + "/" + strings.TrimLeft(c.cfg.Index, "/") + path
}
