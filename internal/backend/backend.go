package backend

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the search backend cannot be reached or refuses
// authentication after retries. A run cannot produce meaningful results in
// this state, so callers treat it as fatal.
var ErrUnavailable = errors.New("search backend unavailable")

// SearchMode selects how the query body is built.
type SearchMode string

const (
	// ModeDense queries the dense vector directly.
	ModeDense SearchMode = "dense"
	// ModeSparse queries a sparse vector. Without a sparse encoder the
	// client degrades it to a dense query.
	ModeSparse SearchMode = "sparse"
	// ModeHybrid prefetches per-vector result lists and fuses them
	// server-side with reciprocal rank fusion.
	ModeHybrid SearchMode = "hybrid"
)

// Candidate is a single search hit as returned by the backend, in backend
// order. Rank is the 1-based position in the result list; the client never
// re-sorts.
type Candidate struct {
	DocumentID string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
}

// CollectionInfo describes the collection a run validates against.
type CollectionInfo struct {
	VectorSize int    `json:"vector_size"`
	Distance   string `json:"distance"`
	PointCount int64  `json:"point_count"`
}

// Searcher is the query-only view of a vector-search backend.
// Implementations: QdrantClient (REST).
type Searcher interface {
	// Search returns the top-K candidates for the vector, best match first.
	// An empty mode means dense.
	Search(ctx context.Context, vector []float32, topK int, mode SearchMode) ([]Candidate, error)

	// CollectionInfo returns vector size, distance metric and point count.
	CollectionInfo(ctx context.Context) (*CollectionInfo, error)

	// Healthy checks that the backend answers at all.
	Healthy(ctx context.Context) error
}
