package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/poker26/qdrant-search-tester/internal/history"
	"github.com/poker26/qdrant-search-tester/internal/report"
	"github.com/poker26/qdrant-search-tester/internal/validate"
)

func newTestServer(t *testing.T) (*Server, *history.Store) {
	t.Helper()
	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return NewServer(store), store
}

func seedRun(t *testing.T, store *history.Store, runID string) {
	t.Helper()
	err := store.SaveRun(&report.RunSummary{
		RunID:      runID,
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
		Total:      1,
		Passed:     1,
		Success:    true,
		Results:    []validate.CaseResult{{CaseID: "q1", Outcome: validate.OutcomePass}},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func doGet(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doGet(t, s, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestListRunsEndpoint(t *testing.T) {
	s, store := newTestServer(t)
	seedRun(t, store, "run-1")

	rec := doGet(t, s, "/api/runs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Count int                 `json:"count"`
		Runs  []history.RunRecord `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 1 || body.Runs[0].RunID != "run-1" {
		t.Errorf("body = %+v", body)
	}
}

func TestListRunsBadLimit(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doGet(t, s, "/api/runs?limit=zero")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetRunEndpoint(t *testing.T) {
	s, store := newTestServer(t)
	seedRun(t, store, "run-7")

	rec := doGet(t, s, "/api/runs/run-7")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var summary report.RunSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.RunID != "run-7" || len(summary.Results) != 1 {
		t.Errorf("summary = %+v", summary)
	}

	if rec := doGet(t, s, "/api/runs/absent"); rec.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", rec.Code)
	}
}

func TestLatestEndpoint(t *testing.T) {
	s, store := newTestServer(t)

	if rec := doGet(t, s, "/api/summary/latest"); rec.Code != http.StatusNotFound {
		t.Errorf("empty history status = %d, want 404", rec.Code)
	}

	seedRun(t, store, "run-9")
	rec := doGet(t, s, "/api/summary/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
