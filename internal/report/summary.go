// Package report aggregates case results into run summaries and writes
// them out for external consumers.
package report

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/poker26/qdrant-search-tester/internal/validate"
)

// CategoryStats holds pass statistics for one test category.
type CategoryStats struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	PassRate float64 `json:"pass_rate"`
}

// RunSummary is the sealed record of one complete run. Counts always sum
// to Total.
type RunSummary struct {
	RunID       string                       `json:"run_id"`
	Collection  string                       `json:"collection,omitempty"`
	Model       string                       `json:"model,omitempty"`
	StartedAt   time.Time                    `json:"started_at"`
	FinishedAt  time.Time                    `json:"finished_at"`
	Total       int                          `json:"total"`
	Passed      int                          `json:"passed"`
	FailCounts  map[validate.Outcome]int     `json:"fail_counts"`
	PerCategory map[string]CategoryStats     `json:"per_category,omitempty"`
	SuccessRate float64                      `json:"success_rate"`
	Success     bool                         `json:"success"`
	Results     []validate.CaseResult        `json:"results"`
}

// Builder collects case results as they complete. It is the single piece
// of shared mutable state in a run; all methods are mutex-guarded.
type Builder struct {
	mu      sync.Mutex
	runID   string
	started time.Time
	results []validate.CaseResult
	sealed  bool
}

// NewBuilder starts a summary for a new run.
func NewBuilder() *Builder {
	return &Builder{
		runID:   uuid.New().String(),
		started: time.Now(),
	}
}

// RunID returns the run's identifier.
func (b *Builder) RunID() string { return b.runID }

// Add records one completed case. Safe for concurrent use; ignored after
// Seal.
func (b *Builder) Add(result validate.CaseResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return
	}
	b.results = append(b.results, result)
}

// Seal closes the run and computes the summary. Aggregation is pure
// counting over the collected set, so arrival order never changes the
// outcome; results are sorted by case ID for stable reports.
func (b *Builder) Seal() *RunSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true

	results := make([]validate.CaseResult, len(b.results))
	copy(results, b.results)
	sort.Slice(results, func(i, j int) bool {
		return results[i].CaseID < results[j].CaseID
	})

	s := &RunSummary{
		RunID:       b.runID,
		StartedAt:   b.started,
		FinishedAt:  time.Now(),
		Total:       len(results),
		FailCounts:  make(map[validate.Outcome]int),
		PerCategory: make(map[string]CategoryStats),
		Results:     results,
	}

	catTotal := make(map[string]int)
	catPassed := make(map[string]int)

	for _, r := range results {
		if r.Outcome == validate.OutcomePass {
			s.Passed++
		} else {
			s.FailCounts[r.Outcome]++
		}
		if r.Category != "" {
			catTotal[r.Category]++
			if r.Outcome == validate.OutcomePass {
				catPassed[r.Category]++
			}
		}
	}

	for cat, total := range catTotal {
		s.PerCategory[cat] = CategoryStats{
			Total:    total,
			Passed:   catPassed[cat],
			PassRate: float64(catPassed[cat]) / float64(total),
		}
	}

	if s.Total > 0 {
		s.SuccessRate = float64(s.Passed) / float64(s.Total) * 100
	}
	s.Success = s.Total > 0 && s.Passed == s.Total
	return s
}

// FormatText renders a human-readable summary block for the CLI.
func FormatText(s *RunSummary) string {
	var b strings.Builder

	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Run %s\n", s.RunID)
	fmt.Fprintf(&b, "Results: %d tests | passed %d | failed %d | %.0f%%\n",
		s.Total, s.Passed, s.Total-s.Passed, s.SuccessRate)
	b.WriteString(strings.Repeat("=", 60) + "\n")

	if len(s.FailCounts) > 0 {
		outcomes := make([]string, 0, len(s.FailCounts))
		for o := range s.FailCounts {
			outcomes = append(outcomes, string(o))
		}
		sort.Strings(outcomes)
		for _, o := range outcomes {
			fmt.Fprintf(&b, "  %-28s %d\n", o+":", s.FailCounts[validate.Outcome(o)])
		}
	}

	if len(s.PerCategory) > 0 {
		b.WriteString("\nPer category:\n")
		cats := make([]string, 0, len(s.PerCategory))
		for c := range s.PerCategory {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			st := s.PerCategory[c]
			fmt.Fprintf(&b, "  %-20s %d/%d (%.0f%%)\n", c+":", st.Passed, st.Total, st.PassRate*100)
		}
	}

	return b.String()
}
