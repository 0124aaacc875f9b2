package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/poker26/qdrant-search-tester/internal/backend"
	"github.com/poker26/qdrant-search-tester/internal/cases"
	"github.com/poker26/qdrant-search-tester/internal/embedding"
	"github.com/poker26/qdrant-search-tester/internal/history"
	"github.com/poker26/qdrant-search-tester/internal/report"
	"github.com/poker26/qdrant-search-tester/internal/validate"
)

var (
	passMark = color.New(color.FgGreen).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
)

func runCmd() *cobra.Command {
	var (
		runCaseIDs []string
		noHistory  bool
		noReports  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all test cases against the configured collection",
		Long: `Run the relevance test suite: embed each query, search the collection
and check that the expected document appears within its rank and score
tolerances. Writes reports and records the run in the history database.

Examples:
  qst run
  qst run --case q1 --case q2
  qst run --no-history --no-reports`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidation(runCaseIDs, noHistory, noReports)
		},
	}

	cmd.Flags().StringSliceVar(&runCaseIDs, "case", nil, "run only these test case ids")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "skip recording the run in the history db")
	cmd.Flags().BoolVar(&noReports, "no-reports", false, "skip writing report files")
	cmd.SilenceUsage = true
	return cmd
}

func runValidation(caseIDs []string, noHistory, noReports bool) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	registry, err := cases.Load(cfg.TestsFile)
	if err != nil {
		return fmt.Errorf("load test cases: %w", err)
	}

	tcs := registry.All()
	if len(caseIDs) > 0 {
		tcs, err = registry.Filter(caseIDs)
		if err != nil {
			return err
		}
	}
	if len(tcs) == 0 {
		return fmt.Errorf("no test cases in %s", cfg.TestsFile)
	}

	embedder, err := embedding.New(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OpenAIAPIKey:   cfg.Embedding.OpenAIAPIKey,
		OpenAIBaseURL:  cfg.Embedding.OpenAIBaseURL,
		BGEM3URL:       cfg.Embedding.BGEM3URL,
		BGEM3Port:      cfg.Embedding.BGEM3Port,
		BGEM3Endpoint:  cfg.Embedding.BGEM3Endpoint,
		TimeoutSeconds: cfg.Run.TestTimeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}

	searcher, err := backend.NewQdrantClient(backend.QdrantConfig{
		URL:        cfg.Qdrant.URL,
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		VectorName: cfg.Qdrant.VectorName,
		Timeout:    time.Duration(cfg.Run.TestTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("search backend: %w", err)
	}

	ctx := context.Background()
	logger := slog.Default().With("component", "cli")

	info, err := validate.Preflight(ctx, embedder, searcher, cfg.Qdrant.ExpectedVectorSize)
	if err != nil {
		return fmt.Errorf("preflight: %w", err)
	}
	logger.Info("preflight ok",
		"collection", cfg.Qdrant.Collection,
		"vector_size", info.VectorSize,
		"distance", info.Distance,
		"points", info.PointCount,
		"model", embedder.Model())

	validator := validate.NewValidator(embedder, searcher, validate.Config{
		MaxRank:     cfg.Run.MaxRank,
		MinScore:    &cfg.Run.MinScore,
		TopK:        cfg.Run.TopK,
		SearchMode:  backend.SearchMode(cfg.Run.SearchMode),
		CaseTimeout: time.Duration(cfg.Run.TestTimeoutSeconds) * time.Second,
	})
	runner := validate.NewRunner(validator, validate.RunnerConfig{
		Concurrency: cfg.Run.Concurrency,
		RunTimeout:  time.Duration(cfg.Run.RunTimeoutSeconds) * time.Second,
		ErrorStreak: cfg.Run.ErrorStreak,
	})

	builder := report.NewBuilder()
	sink := &printingSink{builder: builder}

	if err := runner.Run(ctx, tcs, sink); err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}

	summary := builder.Seal()
	summary.Collection = cfg.Qdrant.Collection
	summary.Model = embedder.Model()

	fmt.Println()
	fmt.Print(report.FormatText(summary))

	if !noReports {
		formats, err := report.ParseFormats(cfg.Report.Formats)
		if err != nil {
			return err
		}
		writer, err := report.NewWriter(cfg.Report.Dir)
		if err != nil {
			return err
		}
		paths, err := writer.Write(summary, formats)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Printf("report written: %s\n", p)
		}
		writer.Prune(cfg.Report.RetentionDays)
	}

	if !noHistory {
		store, err := history.NewStore(cfg.HistoryDB)
		if err != nil {
			logger.Warn("history store unavailable", "error", err)
		} else {
			defer store.Close()
			if err := store.SaveRun(summary); err != nil {
				logger.Warn("history save failed", "error", err)
			}
		}
	}

	if !summary.Success {
		return errCasesFailed
	}
	return nil
}

// printingSink forwards results to the aggregator and prints a one-line
// status per case as it completes.
type printingSink struct {
	builder *report.Builder
}

func (p *printingSink) Add(r validate.CaseResult) {
	p.builder.Add(r)

	name := r.Name
	if name == "" {
		name = r.CaseID
	}

	switch r.Outcome {
	case validate.OutcomePass:
		fmt.Fprintf(os.Stdout, "%s %s: %s\n", passMark("PASS"), name, r.Detail)
	case validate.OutcomeRankExceeded, validate.OutcomeScoreBelow:
		fmt.Fprintf(os.Stdout, "%s %s: %s\n", warnMark("WARN"), name, r.Detail)
	default:
		fmt.Fprintf(os.Stdout, "%s %s: %s\n", failMark("FAIL"), name, r.Detail)
	}
}
