package embedding

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
	defaultBGEM3URL      = "http://localhost"
	defaultBGEM3Port     = 8000
	defaultBGEM3Endpoint = "/embed"
	bgem3MaxRetries      = 3
	bgem3InitialDelay    = 1 * time.Second
)

// BGEM3Client embeds queries via a self-hosted BGE-M3 HTTP endpoint.
type BGEM3Client struct {
	apiURL string
	client *http.Client
}

type bgem3Request struct {
	Inputs []string `json:"inputs"`
}

type bgem3Response struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewBGEM3Client creates a client for a self-hosted BGE-M3 server.
// If the configured URL already carries a port, the port setting is ignored.
func NewBGEM3Client(cfg Config) *BGEM3Client {
	baseURL := cfg.BGEM3URL
	if baseURL == "" {
		baseURL = defaultBGEM3URL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	// "http://host:8000" keeps its port; "http://host" gets one appended.
	if strings.Count(baseURL, ":") < 2 {
		port := cfg.BGEM3Port
		if port == 0 {
			port = defaultBGEM3Port
		}
		baseURL = fmt.Sprintf("%s:%d", baseURL, port)
	}

	endpoint := cfg.BGEM3Endpoint
	if endpoint == "" {
		endpoint = defaultBGEM3Endpoint
	}

	timeout := 60 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &BGEM3Client{
		apiURL: baseURL + endpoint,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *BGEM3Client) Dimension() int { return BGEM3Dim }
func (c *BGEM3Client) Model() string  { return "bge-m3" }

// EmbedQuery embeds a single search query.
func (c *BGEM3Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("empty query text")
	}

	body, err := json.Marshal(bgem3Request{Inputs: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < bgem3MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * bgem3InitialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("bge-m3 API error (%d): %s", resp.StatusCode, string(respBody))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return nil, lastErr
		}

		var parsed bgem3Response
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if len(parsed.Embeddings) == 0 || len(parsed.Embeddings[0]) == 0 {
			return nil, fmt.Errorf("no embeddings returned")
		}
		return parsed.Embeddings[0], nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", bgem3MaxRetries, lastErr)
}
