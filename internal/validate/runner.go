package validate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poker26/qdrant-search-tester/internal/backend"
	"github.com/poker26/qdrant-search-tester/internal/cases"
)

// Sink receives case results as they complete. Completions arrive from
// multiple workers; implementations must tolerate concurrent calls.
type Sink interface {
	Add(CaseResult)
}

// RunnerConfig bounds a run.
type RunnerConfig struct {
	// Concurrency is the number of cases in flight at once. Defaults to 4.
	Concurrency int
	// RunTimeout is the hard ceiling for the whole run. Cases still
	// executing when it elapses are recorded as errors. 0 disables it.
	RunTimeout time.Duration
	// ErrorStreak is the number of consecutive case errors after which the
	// backend is considered down and the run aborts. Defaults to 5.
	ErrorStreak int

	Logger *slog.Logger
}

// Runner dispatches test cases to a bounded worker pool.
type Runner struct {
	validator *Validator
	cfg       RunnerConfig
	logger    *slog.Logger
}

// NewRunner builds a runner over the validator.
func NewRunner(validator *Validator, cfg RunnerConfig) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ErrorStreak <= 0 {
		cfg.ErrorStreak = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "runner")
	}
	return &Runner{validator: validator, cfg: cfg, logger: logger}
}

// Run executes all cases and feeds every result to the sink, including
// cases cut short by the run timeout. The returned error is non-nil only
// when the run aborted on a fatal backend failure; a timed-out run still
// returns nil so partial results get reported.
func (r *Runner) Run(ctx context.Context, tcs []cases.TestCase, sink Sink) error {
	if len(tcs) == 0 {
		return nil
	}

	runCtx := ctx
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}
	runCtx, abort := context.WithCancelCause(runCtx)
	defer abort(nil)

	sem := make(chan struct{}, r.cfg.Concurrency)
	var wg sync.WaitGroup

	var mu sync.Mutex
	errStreak := 0
	var fatalErr error

	for _, tc := range tcs {
		wg.Add(1)
		go func(tc cases.TestCase) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-runCtx.Done():
				sink.Add(r.cancelledResult(runCtx, tc))
				return
			}

			result, err := r.validator.RunCase(runCtx, tc)
			sink.Add(result)
			r.logger.Debug("case finished",
				"case", tc.ID, "outcome", string(result.Outcome), "duration_ms", result.DurationMs)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if fatalErr == nil {
					fatalErr = err
					abort(err)
				}
				return
			}
			if result.Outcome == OutcomeError {
				errStreak++
				if errStreak >= r.cfg.ErrorStreak && fatalErr == nil {
					fatalErr = fmt.Errorf("%w: %d consecutive case errors", backend.ErrUnavailable, errStreak)
					abort(fatalErr)
				}
			} else {
				errStreak = 0
			}
		}(tc)
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return fatalErr
}

// cancelledResult records a case the run deadline (or a fatal abort)
// prevented from executing. Never dropped silently.
func (r *Runner) cancelledResult(runCtx context.Context, tc cases.TestCase) CaseResult {
	detail := "run cancelled before case started"
	if runCtx.Err() == context.DeadlineExceeded {
		detail = "run timeout exceeded before case started"
	} else if cause := context.Cause(runCtx); cause != nil && cause != runCtx.Err() {
		detail = fmt.Sprintf("run aborted: %v", cause)
	}
	return CaseResult{
		CaseID:   tc.ID,
		Name:     tc.Name,
		Query:    tc.Query,
		Category: tc.Category,
		Outcome:  OutcomeError,
		Detail:   detail,
	}
}
