package cases

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeSuite(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeSuite(t, "tests.json", `{
		"version": "1.0",
		"tests": [
			{"id": "q1", "name": "cake", "query": "chocolate cake", "expected_result_id": "doc-42", "max_rank": 3, "min_score": 0.3, "category": "dessert"},
			{"id": "q2", "query": "tomato soup", "expected_result_ids": ["doc-7", "doc-8"]}
		]
	}`)

	r, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	all := r.All()
	if len(all) != 2 {
		t.Fatalf("got %d cases, want 2", len(all))
	}
	if all[0].MaxRank == nil || *all[0].MaxRank != 3 {
		t.Errorf("max_rank = %v, want 3", all[0].MaxRank)
	}
	if all[1].MaxRank != nil {
		t.Error("q2 must have no max_rank override")
	}
	if got := all[1].Expected(); len(got) != 2 || got[0] != "doc-7" {
		t.Errorf("expected ids = %v", got)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeSuite(t, "tests.yaml", `
version: "1.0"
tests:
  - id: q1
    query: chocolate cake
    expected_result_id: doc-42
`)
	r, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.All()) != 1 {
		t.Fatalf("got %d cases, want 1", len(r.All()))
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	path := writeSuite(t, "tests.json", `{
		"tests": [
			{"id": "q1", "query": "a", "expected_result_id": "d1"},
			{"id": "q1", "query": "b", "expected_result_id": "d2"}
		]
	}`)

	_, err := Load(path)
	if !errors.Is(err, ErrDuplicateCase) {
		t.Fatalf("error = %v, want ErrDuplicateCase", err)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing id", `{"tests": [{"query": "a", "expected_result_id": "d"}]}`},
		{"empty query", `{"tests": [{"id": "q1", "expected_result_id": "d"}]}`},
		{"no expected id", `{"tests": [{"id": "q1", "query": "a"}]}`},
		{"empty expected entry", `{"tests": [{"id": "q1", "query": "a", "expected_result_ids": [""]}]}`},
		{"max_rank zero", `{"tests": [{"id": "q1", "query": "a", "expected_result_id": "d", "max_rank": 0}]}`},
		{"unknown search_mode", `{"tests": [{"id": "q1", "query": "a", "expected_result_id": "d", "search_mode": "fuzzy"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSuite(t, "tests.json", tt.body)
			if _, err := Load(path); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadMissingFileYieldsEmptyRegistry(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.All()) != 0 {
		t.Errorf("got %d cases, want 0", len(r.All()))
	}
}

func TestAddDeleteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tests.json")
	r, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	tc := TestCase{Query: "chocolate cake", ExpectedID: "doc-42", Category: "dessert"}
	if err := r.Add(tc); err != nil {
		t.Fatal(err)
	}
	added := r.All()[0]
	if added.ID == "" {
		t.Fatal("add must generate an id")
	}
	if added.CreatedAt == "" || added.UpdatedAt == "" {
		t.Error("add must stamp created/updated times")
	}

	// Reload from disk and confirm persistence.
	r2, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := r2.Get(added.ID)
	if !ok {
		t.Fatalf("case %s not persisted", added.ID)
	}
	if got.Query != "chocolate cake" {
		t.Errorf("query = %q", got.Query)
	}

	if err := r2.Delete(added.ID); err != nil {
		t.Fatal(err)
	}
	r3, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(r3.All()) != 0 {
		t.Error("delete not persisted")
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tests.json")
	r, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Add(TestCase{ID: "q1", Query: "tomato soup", ExpectedID: "doc-7"}); err != nil {
		t.Fatal(err)
	}
	created := r.All()[0].CreatedAt

	updated, _ := r.Get("q1")
	updated.Query = "gazpacho"
	updated.SearchMode = "hybrid"
	if err := r.Update(updated); err != nil {
		t.Fatal(err)
	}

	r2, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := r2.Get("q1")
	if !ok {
		t.Fatal("case q1 not persisted")
	}
	if got.Query != "gazpacho" || got.SearchMode != "hybrid" {
		t.Errorf("update not persisted: %+v", got)
	}
	if got.CreatedAt != created {
		t.Errorf("created stamp changed: %s -> %s", created, got.CreatedAt)
	}
	if got.UpdatedAt == "" {
		t.Error("update must refresh the updated stamp")
	}

	if err := r.Update(TestCase{ID: "nope", Query: "a", ExpectedID: "d"}); err == nil {
		t.Error("updating a missing case must fail")
	}
	if err := r.Update(TestCase{ID: "q1", Query: "", ExpectedID: "d"}); err == nil {
		t.Error("update must reject an invalid case")
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tests.json")
	r, _ := Load(path)

	if err := r.Add(TestCase{ID: "q1", Query: "a", ExpectedID: "d"}); err != nil {
		t.Fatal(err)
	}
	err := r.Add(TestCase{ID: "q1", Query: "b", ExpectedID: "d"})
	if !errors.Is(err, ErrDuplicateCase) {
		t.Fatalf("error = %v, want ErrDuplicateCase", err)
	}
}

func TestFilter(t *testing.T) {
	path := writeSuite(t, "tests.json", `{
		"tests": [
			{"id": "q1", "query": "a", "expected_result_id": "d"},
			{"id": "q2", "query": "b", "expected_result_id": "d"},
			{"id": "q3", "query": "c", "expected_result_id": "d"}
		]
	}`)
	r, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Filter([]string{"q3", "q1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "q1" || got[1].ID != "q3" {
		t.Errorf("filter kept wrong cases: %v", got)
	}

	if _, err := r.Filter([]string{"q1", "nope"}); err == nil {
		t.Error("unknown id must fail")
	}
}
