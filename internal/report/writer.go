package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Format is a report output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormats validates a list of format names.
func ParseFormats(names []string) ([]Format, error) {
	if len(names) == 0 {
		return []Format{FormatJSON}, nil
	}
	out := make([]Format, 0, len(names))
	for _, n := range names {
		switch Format(strings.ToLower(n)) {
		case FormatJSON:
			out = append(out, FormatJSON)
		case FormatCSV:
			out = append(out, FormatCSV)
		default:
			return nil, fmt.Errorf("unknown report format %q", n)
		}
	}
	return out, nil
}

// Writer serializes run summaries into the report directory.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates the report directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "reports"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &Writer{dir: dir, logger: slog.Default().With("component", "report")}, nil
}

// Write emits the summary in each requested format. File names are
// timestamp-qualified plus the run's short ID so concurrent runs never
// collide. Returns the written paths.
func (w *Writer) Write(s *RunSummary, formats []Format) ([]string, error) {
	stamp := s.FinishedAt.Format("20060102_150405")
	shortID := s.RunID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	base := fmt.Sprintf("run_%s_%s", stamp, shortID)

	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		path := filepath.Join(w.dir, base+"."+string(f))
		var err error
		switch f {
		case FormatJSON:
			err = w.writeJSON(path, s)
		case FormatCSV:
			err = w.writeCSV(path, s)
		default:
			err = fmt.Errorf("unknown format %q", f)
		}
		if err != nil {
			return paths, fmt.Errorf("write %s report: %w", f, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (w *Writer) writeJSON(path string, s *RunSummary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// writeCSV emits one row per case result; summary fields are repeated in
// dedicated columns so the file is self-contained for spreadsheet use.
func (w *Writer) writeCSV(path string, s *RunSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	header := []string{"run_id", "test_id", "test_name", "query", "category", "outcome", "rank", "score", "found_id", "detail", "duration_ms"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range s.Results {
		rank, score := "", ""
		if r.Rank != nil {
			rank = fmt.Sprintf("%d", *r.Rank)
		}
		if r.Score != nil {
			score = fmt.Sprintf("%.3f", *r.Score)
		}
		row := []string{
			s.RunID, r.CaseID, r.Name, r.Query, r.Category, string(r.Outcome),
			rank, score, r.FoundID, r.Detail, fmt.Sprintf("%d", r.DurationMs),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Prune removes report files older than retentionDays. Best effort: every
// failure is logged and skipped, never fatal. Runs once per run.
func (w *Writer) Prune(retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("retention scan failed", "dir", w.dir, "error", err)
		return
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "run_") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			w.logger.Warn("retention stat failed", "file", e.Name(), "error", err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(w.dir, e.Name())); err != nil {
			w.logger.Warn("retention delete failed", "file", e.Name(), "error", err)
			continue
		}
		w.logger.Info("pruned old report", "file", e.Name())
	}
}
