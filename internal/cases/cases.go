// Package cases loads and manages the search test cases a run validates.
package cases

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrDuplicateCase indicates two test cases share an ID. Rejected at load
// time, before any network call.
var ErrDuplicateCase = errors.New("duplicate test case id")

// TestCase pairs a query with its known-correct expected result and
// optional per-case tolerances. Immutable for the duration of a run.
type TestCase struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Query       string   `json:"query" yaml:"query"`
	ExpectedID  string   `json:"expected_result_id,omitempty" yaml:"expected_result_id,omitempty"`
	ExpectedIDs []string `json:"expected_result_ids,omitempty" yaml:"expected_result_ids,omitempty"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`
	// SearchMode is "dense", "sparse" or "hybrid". Empty uses the run default.
	SearchMode  string   `json:"search_mode,omitempty" yaml:"search_mode,omitempty"`
	// MaxRank and MinScore override the run defaults when set.
	MaxRank     *int     `json:"max_rank,omitempty" yaml:"max_rank,omitempty"`
	MinScore    *float64 `json:"min_score,omitempty" yaml:"min_score,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Expected returns all accepted document IDs for this case.
func (tc TestCase) Expected() []string {
	ids := make([]string, 0, 1+len(tc.ExpectedIDs))
	if tc.ExpectedID != "" {
		ids = append(ids, tc.ExpectedID)
	}
	ids = append(ids, tc.ExpectedIDs...)
	return ids
}

// suiteFile is the on-disk test suite shape.
type suiteFile struct {
	Version   string     `json:"version" yaml:"version"`
	UpdatedAt string     `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Tests     []TestCase `json:"tests" yaml:"tests"`
}

// Registry holds the loaded test cases and persists edits back to the
// suite file.
type Registry struct {
	path  string
	cases []TestCase
}

// Load reads a JSON or YAML test suite, validates every case and rejects
// duplicate IDs. A missing file yields an empty registry so new suites can
// be built up through Add.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("read test suite: %w", err)
	}

	var suite suiteFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &suite)
	default:
		err = json.Unmarshal(data, &suite)
	}
	if err != nil {
		return nil, fmt.Errorf("parse test suite %s: %w", path, err)
	}

	seen := make(map[string]bool, len(suite.Tests))
	for i, tc := range suite.Tests {
		if err := validate(tc); err != nil {
			return nil, fmt.Errorf("test case %d: %w", i, err)
		}
		if seen[tc.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCase, tc.ID)
		}
		seen[tc.ID] = true
	}

	r.cases = suite.Tests
	return r, nil
}

func validate(tc TestCase) error {
	if tc.ID == "" {
		return fmt.Errorf("missing id")
	}
	if tc.Query == "" {
		return fmt.Errorf("%s: empty query", tc.ID)
	}
	if tc.ExpectedID == "" && len(tc.ExpectedIDs) == 0 {
		return fmt.Errorf("%s: no expected result id", tc.ID)
	}
	for _, id := range tc.ExpectedIDs {
		if id == "" {
			return fmt.Errorf("%s: empty entry in expected_result_ids", tc.ID)
		}
	}
	switch tc.SearchMode {
	case "", "dense", "sparse", "hybrid":
	default:
		return fmt.Errorf("%s: unknown search_mode %q", tc.ID, tc.SearchMode)
	}
	if tc.MaxRank != nil && *tc.MaxRank < 1 {
		return fmt.Errorf("%s: max_rank must be >= 1", tc.ID)
	}
	return nil
}

// All returns the cases in file order.
func (r *Registry) All() []TestCase {
	return r.cases
}

// Get returns the case with the given ID, or false.
func (r *Registry) Get(id string) (TestCase, bool) {
	for _, tc := range r.cases {
		if tc.ID == id {
			return tc, true
		}
	}
	return TestCase{}, false
}

// Filter returns the cases whose IDs appear in ids, keeping file order.
// Unknown IDs are reported as an error so a typo fails loudly.
func (r *Registry) Filter(ids []string) ([]TestCase, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]TestCase, 0, len(ids))
	for _, tc := range r.cases {
		if want[tc.ID] {
			out = append(out, tc)
			delete(want, tc.ID)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for id := range want {
			missing = append(missing, id)
		}
		return nil, fmt.Errorf("unknown test case ids: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Add appends a new case and saves. An empty ID gets generated.
func (r *Registry) Add(tc TestCase) error {
	if tc.ID == "" {
		tc.ID = "test_" + uuid.New().String()[:8]
	}
	now := time.Now().Format(time.RFC3339)
	if tc.CreatedAt == "" {
		tc.CreatedAt = now
	}
	tc.UpdatedAt = now

	if err := validate(tc); err != nil {
		return err
	}
	if _, exists := r.Get(tc.ID); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCase, tc.ID)
	}

	r.cases = append(r.cases, tc)
	return r.save()
}

// Update replaces an existing case by ID and saves. The creation stamp is
// kept; the update stamp is refreshed.
func (r *Registry) Update(tc TestCase) error {
	for i, existing := range r.cases {
		if existing.ID != tc.ID {
			continue
		}
		if tc.CreatedAt == "" {
			tc.CreatedAt = existing.CreatedAt
		}
		tc.UpdatedAt = time.Now().Format(time.RFC3339)
		if err := validate(tc); err != nil {
			return err
		}
		r.cases[i] = tc
		return r.save()
	}
	return fmt.Errorf("test case not found: %s", tc.ID)
}

// Delete removes a case by ID and saves.
func (r *Registry) Delete(id string) error {
	for i, tc := range r.cases {
		if tc.ID == id {
			r.cases = append(r.cases[:i], r.cases[i+1:]...)
			return r.save()
		}
	}
	return fmt.Errorf("test case not found: %s", id)
}

// save rewrites the suite file atomically (write temp, rename).
func (r *Registry) save() error {
	suite := suiteFile{
		Version:   "1.0",
		UpdatedAt: time.Now().Format(time.RFC3339),
		Tests:     r.cases,
	}

	var data []byte
	var err error
	switch ext := strings.ToLower(filepath.Ext(r.path)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(suite)
	default:
		data, err = json.MarshalIndent(suite, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal test suite: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}
