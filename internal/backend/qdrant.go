package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultVectorName  = "dense"
	qdrantMaxRetries   = 3
	qdrantInitialDelay = 1 * time.Second
)

// Payload keys tried, in order, to extract a document identity from a hit.
var (
	idPayloadKeys   = []string{"recipe_id", "id"}
	namePayloadKeys = []string{"recipe_name", "name"}
)

// QdrantConfig holds connection parameters for a Qdrant instance.
// Either URL (remote, optionally with APIKey) or Host+Port (local) is set.
type QdrantConfig struct {
	URL        string
	Host       string
	Port       int
	APIKey     string
	Collection string
	// VectorName is the named dense vector to query. Defaults to "dense".
	VectorName string
	Timeout    time.Duration
}

// QdrantClient talks to the Qdrant REST API. It is safe for concurrent use:
// all state is set at construction and the underlying http.Client pools
// connections.
type QdrantClient struct {
	baseURL    string
	apiKey     string
	collection string
	vectorName string
	client     *http.Client
}

// NewQdrantClient creates a client from connection config.
func NewQdrantClient(cfg QdrantConfig) (*QdrantClient, error) {
	baseURL := cfg.URL
	if baseURL == "" {
		host := cfg.Host
		if host == "" {
			host = "localhost"
		}
		port := cfg.Port
		if port == 0 {
			port = 6333
		}
		baseURL = fmt.Sprintf("http://%s:%d", host, port)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	vectorName := cfg.VectorName
	if vectorName == "" {
		vectorName = defaultVectorName
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &QdrantClient{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		vectorName: vectorName,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// queryRequest is the points/query request body. Query is either a raw
// vector (dense) or a fusionQuery (hybrid, fusing the prefetch lists).
type queryRequest struct {
	Prefetch    []prefetchQuery `json:"prefetch,omitempty"`
	Query       any             `json:"query"`
	Using       string          `json:"using,omitempty"`
	Limit       int             `json:"limit"`
	WithPayload bool            `json:"with_payload"`
}

type prefetchQuery struct {
	Query []float32 `json:"query"`
	Using string    `json:"using"`
	Limit int       `json:"limit"`
}

type fusionQuery struct {
	Fusion string `json:"fusion"`
}

// queryResponse is the points/query response body.
type queryResponse struct {
	Result struct {
		Points []struct {
			ID      json.RawMessage        `json:"id"`
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"points"`
	} `json:"result"`
	Status json.RawMessage `json:"status"`
}

// collectionResponse is the GET /collections/{name} response body. The
// vectors config is either a single params object or a map of named vectors.
type collectionResponse struct {
	Result struct {
		PointsCount int64 `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors json.RawMessage `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

// Search queries the collection and returns candidates in backend order
// with 1-based ranks assigned.
func (c *QdrantClient) Search(ctx context.Context, vector []float32, topK int, mode SearchMode) ([]Candidate, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	if topK <= 0 {
		topK = 10
	}

	body, err := json.Marshal(c.buildQuery(vector, topK, mode))
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/query", c.baseURL, c.collection)
	respBody, err := c.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}

	candidates := make([]Candidate, 0, len(resp.Result.Points))
	for i, p := range resp.Result.Points {
		cand := Candidate{
			Score: p.Score,
			Rank:  i + 1,
		}
		cand.DocumentID = payloadString(p.Payload, idPayloadKeys)
		if cand.DocumentID == "" {
			// Fall back to the point's own ID (number or string).
			cand.DocumentID = strings.Trim(string(p.ID), `"`)
		}
		cand.Name = payloadString(p.Payload, namePayloadKeys)
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// buildQuery assembles the points/query body for the mode. Only dense
// query vectors are produced upstream, so sparse degrades to a plain
// dense query; hybrid sends the dense list as a prefetch and lets the
// server fuse with RRF, keeping the body shape open to more prefetch
// vectors.
func (c *QdrantClient) buildQuery(vector []float32, topK int, mode SearchMode) queryRequest {
	switch mode {
	case ModeHybrid:
		return queryRequest{
			Prefetch: []prefetchQuery{
				{Query: vector, Using: c.vectorName, Limit: topK},
			},
			Query:       fusionQuery{Fusion: "rrf"},
			Limit:       topK,
			WithPayload: true,
		}
	default:
		return queryRequest{
			Query:       vector,
			Using:       c.vectorName,
			Limit:       topK,
			WithPayload: true,
		}
	}
}

// CollectionInfo fetches vector size, distance metric and point count.
func (c *QdrantClient) CollectionInfo(ctx context.Context) (*CollectionInfo, error) {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	respBody, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var resp collectionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode collection response: %w", err)
	}

	params, err := c.vectorConfig(resp.Result.Config.Params.Vectors)
	if err != nil {
		return nil, err
	}

	return &CollectionInfo{
		VectorSize: params.Size,
		Distance:   params.Distance,
		PointCount: resp.Result.PointsCount,
	}, nil
}

// vectorConfig extracts the dense vector params from either a flat params
// object or a named-vectors map.
func (c *QdrantClient) vectorConfig(raw json.RawMessage) (*vectorParams, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("collection %s has no vector config", c.collection)
	}

	var flat vectorParams
	if err := json.Unmarshal(raw, &flat); err == nil && flat.Size > 0 {
		return &flat, nil
	}

	var named map[string]vectorParams
	if err := json.Unmarshal(raw, &named); err == nil {
		if p, ok := named[c.vectorName]; ok && p.Size > 0 {
			return &p, nil
		}
		for _, p := range named {
			if p.Size > 0 {
				return &p, nil
			}
		}
	}

	return nil, fmt.Errorf("collection %s: cannot parse vector config", c.collection)
}

// Healthy probes the instance. Any failure here means the whole run would
// be meaningless, so errors wrap ErrUnavailable.
func (c *QdrantClient) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// do performs one request with bounded retry on transport errors, 429 and
// 5xx. Auth rejections and exhausted connection retries wrap ErrUnavailable
// so callers can distinguish fatal from case-scoped failures.
func (c *QdrantClient) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var lastErr error
	transportFailures := 0

	for attempt := 0; attempt < qdrantMaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * qdrantInitialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		c.setHeaders(req)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			transportFailures++
			lastErr = fmt.Errorf("qdrant request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return respBody, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: authentication rejected (%d)", ErrUnavailable, resp.StatusCode)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("qdrant returned %d: %s", resp.StatusCode, truncate(respBody, 200))
			continue
		default:
			return nil, fmt.Errorf("qdrant returned %d: %s", resp.StatusCode, truncate(respBody, 200))
		}
	}

	if transportFailures == qdrantMaxRetries {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	return nil, fmt.Errorf("max retries (%d) exceeded: %w", qdrantMaxRetries, lastErr)
}

func (c *QdrantClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
}

func payloadString(payload map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if v, ok := payload[key]; ok {
			switch s := v.(type) {
			case string:
				if s != "" {
					return s
				}
			case float64:
				return fmt.Sprintf("%.0f", s)
			}
		}
	}
	return ""
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
