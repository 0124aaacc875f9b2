package validate

import (
	"context"
	"errors"
	"sync"

	"github.com/poker26/qdrant-search-tester/internal/backend"
)

// Common test errors
var (
	ErrMockEmbed  = errors.New("mock embedding error")
	ErrMockSearch = errors.New("mock search error")
)

// MockEmbedder implements embedding.Embedder for testing.
type MockEmbedder struct {
	mu          sync.Mutex
	EmbedFunc   func(ctx context.Context, text string) ([]float32, error)
	CallCount   int
	LastText    string
	FailOnCall  int // Fail on Nth call and after (0 = never fail)
	FixedVector []float32
	Dim         int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		FixedVector: make([]float32, 1024),
		Dim:         1024,
	}
}

func (m *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.LastText = text

	if m.FailOnCall > 0 && m.CallCount >= m.FailOnCall {
		return nil, ErrMockEmbed
	}
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return m.FixedVector, nil
}

func (m *MockEmbedder) Dimension() int { return m.Dim }
func (m *MockEmbedder) Model() string  { return "mock" }

// MockSearcher implements backend.Searcher for testing.
type MockSearcher struct {
	mu          sync.Mutex
	Candidates  []backend.Candidate
	SearchFunc  func(ctx context.Context, vector []float32, topK int) ([]backend.Candidate, error)
	Info        backend.CollectionInfo
	SearchCount int
	LastTopK    int
	LastMode    backend.SearchMode
	SearchErr   error
}

func NewMockSearcher(candidates ...backend.Candidate) *MockSearcher {
	return &MockSearcher{
		Candidates: candidates,
		Info:       backend.CollectionInfo{VectorSize: 1024, Distance: "Cosine", PointCount: 100},
	}
}

func (m *MockSearcher) Search(ctx context.Context, vector []float32, topK int, mode backend.SearchMode) ([]backend.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SearchCount++
	m.LastTopK = topK
	m.LastMode = mode

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, vector, topK)
	}
	if topK < len(m.Candidates) {
		return m.Candidates[:topK], nil
	}
	return m.Candidates, nil
}

func (m *MockSearcher) CollectionInfo(ctx context.Context) (*backend.CollectionInfo, error) {
	info := m.Info
	return &info, nil
}

func (m *MockSearcher) Healthy(ctx context.Context) error {
	return nil
}

// candidates builds a ranked result list from document IDs and scores.
func candidates(ids []string, scores []float64) []backend.Candidate {
	out := make([]backend.Candidate, len(ids))
	for i, id := range ids {
		out[i] = backend.Candidate{DocumentID: id, Score: scores[i], Rank: i + 1}
	}
	return out
}
