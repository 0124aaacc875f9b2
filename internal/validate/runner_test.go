package validate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poker26/qdrant-search-tester/internal/backend"
	"github.com/poker26/qdrant-search-tester/internal/cases"
)

// collectSink records results under a mutex, like the report builder does.
type collectSink struct {
	mu      sync.Mutex
	results []CaseResult
}

func (s *collectSink) Add(r CaseResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

func (s *collectSink) all() []CaseResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CaseResult, len(s.results))
	copy(out, s.results)
	return out
}

func makeCases(n int) []cases.TestCase {
	tcs := make([]cases.TestCase, n)
	for i := range tcs {
		tcs[i] = cases.TestCase{
			ID:         fmt.Sprintf("case-%03d", i),
			Query:      fmt.Sprintf("query %d", i),
			ExpectedID: "doc-1",
		}
	}
	return tcs
}

func TestRunnerEveryCaseRecorded(t *testing.T) {
	for _, concurrency := range []int{1, 4, 64} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			searcher := NewMockSearcher(candidates([]string{"doc-1"}, []float64{0.9})...)
			v := NewValidator(NewMockEmbedder(), searcher, Config{})
			r := NewRunner(v, RunnerConfig{Concurrency: concurrency})

			sink := &collectSink{}
			if err := r.Run(context.Background(), makeCases(30), sink); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			results := sink.all()
			if len(results) != 30 {
				t.Fatalf("got %d results, want 30", len(results))
			}
			seen := make(map[string]bool)
			for _, res := range results {
				if seen[res.CaseID] {
					t.Errorf("case %s recorded twice", res.CaseID)
				}
				seen[res.CaseID] = true
				if res.Outcome != OutcomePass {
					t.Errorf("case %s outcome = %s, want pass", res.CaseID, res.Outcome)
				}
			}
		})
	}
}

func TestRunnerTimeoutRecordsErrors(t *testing.T) {
	// Searches block until cancelled; every case must still be recorded,
	// as an error with a timeout detail.
	searcher := NewMockSearcher()
	searcher.SearchFunc = func(ctx context.Context, vector []float32, topK int) ([]backend.Candidate, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	v := NewValidator(NewMockEmbedder(), searcher, Config{CaseTimeout: time.Minute})
	r := NewRunner(v, RunnerConfig{
		Concurrency: 2,
		RunTimeout:  50 * time.Millisecond,
		ErrorStreak: 100,
	})

	sink := &collectSink{}
	if err := r.Run(context.Background(), makeCases(6), sink); err != nil {
		t.Fatalf("timed-out run must still return nil, got: %v", err)
	}

	results := sink.all()
	if len(results) != 6 {
		t.Fatalf("got %d results, want 6", len(results))
	}
	for _, res := range results {
		if res.Outcome != OutcomeError {
			t.Errorf("case %s outcome = %s, want error", res.CaseID, res.Outcome)
		}
	}
}

func TestRunnerFatalBackendAborts(t *testing.T) {
	searcher := NewMockSearcher()
	searcher.SearchErr = fmt.Errorf("%w: connection refused", backend.ErrUnavailable)
	v := NewValidator(NewMockEmbedder(), searcher, Config{})
	r := NewRunner(v, RunnerConfig{Concurrency: 2})

	sink := &collectSink{}
	err := r.Run(context.Background(), makeCases(10), sink)
	if !errors.Is(err, backend.ErrUnavailable) {
		t.Fatalf("error = %v, want backend unavailable", err)
	}
}

func TestRunnerErrorStreakEscalates(t *testing.T) {
	searcher := NewMockSearcher()
	searcher.SearchErr = ErrMockSearch
	v := NewValidator(NewMockEmbedder(), searcher, Config{})
	r := NewRunner(v, RunnerConfig{Concurrency: 1, ErrorStreak: 3})

	sink := &collectSink{}
	err := r.Run(context.Background(), makeCases(20), sink)
	if !errors.Is(err, backend.ErrUnavailable) {
		t.Fatalf("error = %v, want backend unavailable after error streak", err)
	}
}

func TestRunnerEmptyCases(t *testing.T) {
	v := NewValidator(NewMockEmbedder(), NewMockSearcher(), Config{})
	r := NewRunner(v, RunnerConfig{})
	if err := r.Run(context.Background(), nil, &collectSink{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
