package validate

import (
	"context"
	"errors"
	"fmt"

	"github.com/poker26/qdrant-search-tester/internal/backend"
	"github.com/poker26/qdrant-search-tester/internal/embedding"
)

// ErrDimensionMismatch indicates the embedder's vector size does not match
// the collection's. Caught before any case executes.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Preflight verifies the backend is reachable and the embedder produces
// vectors of the collection's size. Returns the collection info on success
// so callers can log it.
func Preflight(ctx context.Context, embedder embedding.Embedder, searcher backend.Searcher, expectedSize int) (*backend.CollectionInfo, error) {
	if err := searcher.Healthy(ctx); err != nil {
		return nil, err
	}

	info, err := searcher.CollectionInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("collection info: %w", err)
	}

	if expectedSize > 0 && info.VectorSize != expectedSize {
		return info, fmt.Errorf("%w: configured vector size %d, collection has %d",
			ErrDimensionMismatch, expectedSize, info.VectorSize)
	}
	if dim := embedder.Dimension(); dim != info.VectorSize {
		return info, fmt.Errorf("%w: model %s produces %d dims, collection has %d",
			ErrDimensionMismatch, embedder.Model(), dim, info.VectorSize)
	}

	return info, nil
}
