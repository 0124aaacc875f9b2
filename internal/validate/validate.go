// Package validate executes search relevance test cases against a vector
// backend and classifies each outcome.
package validate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poker26/qdrant-search-tester/internal/backend"
	"github.com/poker26/qdrant-search-tester/internal/cases"
	"github.com/poker26/qdrant-search-tester/internal/embedding"
)

// Outcome classifies one executed test case.
type Outcome string

const (
	OutcomePass         Outcome = "pass"
	OutcomeNotFound     Outcome = "fail_not_found"
	OutcomeRankExceeded Outcome = "fail_rank_exceeded"
	OutcomeScoreBelow   Outcome = "fail_score_below_threshold"
	OutcomeError        Outcome = "error"
)

// Failed reports whether the outcome is anything other than a pass.
func (o Outcome) Failed() bool { return o != OutcomePass }

// CaseResult is the immutable record of one executed test case.
type CaseResult struct {
	CaseID   string   `json:"test_id"`
	Name     string   `json:"test_name,omitempty"`
	Query    string   `json:"query"`
	Category string   `json:"category,omitempty"`
	Outcome  Outcome  `json:"outcome"`
	Rank     *int     `json:"rank,omitempty"`
	Score    *float64 `json:"score,omitempty"`
	FoundID  string   `json:"found_id,omitempty"`
	Detail   string   `json:"detail,omitempty"`
	// TopResults keeps the first few candidates for report drill-down.
	TopResults []backend.Candidate `json:"top_results,omitempty"`
	DurationMs int64               `json:"duration_ms"`
}

const topResultsKept = 5

// Config holds the run-wide pass criteria and limits.
type Config struct {
	// MaxRank is the default highest acceptable rank for the expected
	// document. Overridden per case.
	MaxRank int
	// MinScore is the default minimum similarity score. Overridden per
	// case. Nil means 0.3; a pointer to zero accepts any score.
	MinScore *float64
	// TopK is the number of candidates requested per search. The effective
	// limit is raised to the case's max rank when that is larger.
	TopK int
	// SearchMode is the default query mode. Overridden per case.
	SearchMode backend.SearchMode
	// CaseTimeout bounds one case's embed+search round trip.
	CaseTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRank <= 0 {
		c.MaxRank = 3
	}
	if c.MinScore == nil {
		minScore := 0.3
		c.MinScore = &minScore
	}
	if c.TopK <= 0 {
		c.TopK = 10
	}
	if c.SearchMode == "" {
		c.SearchMode = backend.ModeDense
	}
	if c.CaseTimeout <= 0 {
		c.CaseTimeout = 30 * time.Second
	}
	return c
}

// Validator runs single test cases. It holds no per-case state and is safe
// for concurrent use.
type Validator struct {
	embedder embedding.Embedder
	searcher backend.Searcher
	cfg      Config
}

// NewValidator builds a validator over the given adapters.
func NewValidator(embedder embedding.Embedder, searcher backend.Searcher, cfg Config) *Validator {
	return &Validator{
		embedder: embedder,
		searcher: searcher,
		cfg:      cfg.withDefaults(),
	}
}

// RunCase executes one test case: embed the query, search, scan for the
// expected document, classify. The returned error is non-nil only for
// failures that invalidate the whole run (backend.ErrUnavailable); every
// other failure is recorded in the result itself.
func (v *Validator) RunCase(ctx context.Context, tc cases.TestCase) (CaseResult, error) {
	result := CaseResult{
		CaseID:   tc.ID,
		Name:     tc.Name,
		Query:    tc.Query,
		Category: tc.Category,
	}

	maxRank := v.cfg.MaxRank
	if tc.MaxRank != nil {
		maxRank = *tc.MaxRank
	}
	minScore := *v.cfg.MinScore
	if tc.MinScore != nil {
		minScore = *tc.MinScore
	}
	topK := v.cfg.TopK
	if maxRank > topK {
		topK = maxRank
	}
	mode := v.cfg.SearchMode
	if tc.SearchMode != "" {
		mode = backend.SearchMode(tc.SearchMode)
	}

	start := time.Now()
	defer func() {
		result.DurationMs = time.Since(start).Milliseconds()
	}()

	caseCtx, cancel := context.WithTimeout(ctx, v.cfg.CaseTimeout)
	defer cancel()

	vector, err := v.embedder.EmbedQuery(caseCtx, tc.Query)
	if err != nil {
		result.Outcome = OutcomeError
		result.Detail = errDetail(ctx, "embed query", err)
		return result, nil
	}

	candidates, err := v.searcher.Search(caseCtx, vector, topK, mode)
	if err != nil {
		result.Outcome = OutcomeError
		result.Detail = errDetail(ctx, "search", err)
		if isFatal(err) {
			return result, err
		}
		return result, nil
	}

	if len(candidates) > topResultsKept {
		result.TopResults = candidates[:topResultsKept]
	} else {
		result.TopResults = candidates
	}

	expected := make(map[string]bool)
	for _, id := range tc.Expected() {
		expected[id] = true
	}

	for _, cand := range candidates {
		if !expected[cand.DocumentID] {
			continue
		}
		rank := cand.Rank
		score := cand.Score
		result.Rank = &rank
		result.Score = &score
		result.FoundID = cand.DocumentID

		// Rank tolerance is checked before score: a hit outside the rank
		// budget is unusable no matter how similar it is.
		switch {
		case rank > maxRank:
			result.Outcome = OutcomeRankExceeded
			result.Detail = fmt.Sprintf("rank %d exceeds max %d", rank, maxRank)
		case score < minScore:
			result.Outcome = OutcomeScoreBelow
			result.Detail = fmt.Sprintf("score %.3f below min %.3f", score, minScore)
		default:
			result.Outcome = OutcomePass
			result.Detail = fmt.Sprintf("rank %d, score %.3f", rank, score)
		}
		return result, nil
	}

	result.Outcome = OutcomeNotFound
	result.Detail = fmt.Sprintf("expected %v not in top %d", tc.Expected(), topK)
	return result, nil
}

// errDetail labels a case error, calling out run-deadline expiry so timed
// out cases are distinguishable in reports.
func errDetail(runCtx context.Context, op string, err error) string {
	if runCtx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("%s: run timeout exceeded: %v", op, err)
	}
	return fmt.Sprintf("%s: %v", op, err)
}

func isFatal(err error) bool {
	return errors.Is(err, backend.ErrUnavailable)
}
