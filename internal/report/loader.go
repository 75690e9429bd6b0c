package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stellarlinkco/ragate/internal/metric"
)

// Document is the persisted report schema shared by evaluation and
// content-safety runs. Metrics are a list, not a map, so duplicate names
// are detectable instead of silently collapsed.
type Document struct {
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
	Model     string         `json:"model,omitempty"`
	Dataset   string         `json:"dataset,omitempty"`
	Metrics   []MetricEntry  `json:"metrics,omitempty"`
	Tests     []TestEntry    `json:"tests,omitempty"`
	Totals    *SafetyTotals  `json:"totals,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

type MetricEntry struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type TestEntry struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Passed   bool   `json:"passed"`
	Reason   string `json:"reason,omitempty"`
}

type SafetyTotals struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
}

// Selector picks one report out of a directory of candidates.
type Selector struct {
	RunID string // exact run id match
	Model string // case-insensitive model name match, latest wins
	// Zero selector means "latest by recorded timestamp".
}

// ParseBytes normalizes raw report JSON into a Run. path is used only for
// error messages.
func ParseBytes(path string, b []byte) (*metric.Run, error) {
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, malformed(path, "parse: %v", err)
	}
	return normalize(path, &doc)
}

// FromDocument normalizes an already-decoded Document, as when a report
// arrives inline in an API request instead of from disk.
func FromDocument(doc *Document) (*metric.Run, error) {
	if doc == nil {
		return nil, fmt.Errorf("report: nil document")
	}
	return normalize("request", doc)
}

func normalize(path string, doc *Document) (*metric.Run, error) {
	runID := strings.TrimSpace(doc.RunID)
	if runID == "" {
		return nil, malformed(path, "missing run_id")
	}
	if doc.Timestamp.IsZero() {
		return nil, malformed(path, "missing timestamp")
	}
	if len(doc.Metrics) == 0 && len(doc.Tests) == 0 {
		return nil, malformed(path, "report carries neither metrics nor test results")
	}

	run := &metric.Run{
		RunID:     runID,
		Timestamp: doc.Timestamp.UTC(),
		Model:     strings.TrimSpace(doc.Model),
		Dataset:   strings.TrimSpace(doc.Dataset),
	}

	seen := make(map[string]struct{}, len(doc.Metrics))
	for i, m := range doc.Metrics {
		s, err := metric.NewScore(m.Name, m.Value)
		if err != nil {
			return nil, malformed(path, "metrics[%d]: %v", i, err)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, malformed(path, "metrics[%d]: duplicate metric %q", i, s.Name)
		}
		seen[s.Name] = struct{}{}
		run.Scores = append(run.Scores, s)
	}

	seenTests := make(map[string]struct{}, len(doc.Tests))
	for i, t := range doc.Tests {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return nil, malformed(path, "tests[%d]: missing id", i)
		}
		if _, dup := seenTests[id]; dup {
			return nil, malformed(path, "tests[%d]: duplicate test id %q", i, id)
		}
		seenTests[id] = struct{}{}
		run.Tests = append(run.Tests, metric.TestResult{
			TestID:   id,
			Category: strings.TrimSpace(t.Category),
			Passed:   t.Passed,
			Reason:   strings.TrimSpace(t.Reason),
		})
	}

	if doc.Totals != nil {
		passed := 0
		for _, t := range run.Tests {
			if t.Passed {
				passed++
			}
		}
		if doc.Totals.Total != len(run.Tests) || doc.Totals.Passed != passed {
			return nil, malformed(path, "totals disagree with test results (total=%d passed=%d, counted total=%d passed=%d)",
				doc.Totals.Total, doc.Totals.Passed, len(run.Tests), passed)
		}
	}

	return run, nil
}

// LoadFile loads a single report.
func LoadFile(path string) (*metric.Run, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("report: read %q: %w", path, err)
	}
	return ParseBytes(path, b)
}

// LoadDir loads every JSON report in dir and returns the one matching sel.
// "Latest" is resolved by the report's recorded timestamp, never by file
// mtime, so the outcome does not depend on how files were copied. A
// malformed report anywhere in the directory fails the whole load.
func LoadDir(dir string, sel Selector) (*metric.Run, error) {
	runs, err := loadDirAll(dir)
	if err != nil {
		return nil, err
	}

	if id := strings.TrimSpace(sel.RunID); id != "" {
		for _, r := range runs {
			if r.RunID == id {
				return r, nil
			}
		}
		return nil, fmt.Errorf("%w: run %q in %s", ErrNotFound, id, dir)
	}

	if model := strings.TrimSpace(sel.Model); model != "" {
		filtered := runs[:0:0]
		for _, r := range runs {
			if strings.EqualFold(r.Model, model) {
				filtered = append(filtered, r)
			}
		}
		if len(filtered) == 0 {
			return nil, fmt.Errorf("%w: model %q in %s", ErrNotFound, model, dir)
		}
		runs = filtered
	}

	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no reports in %s", ErrNotFound, dir)
	}
	return latest(runs), nil
}

func loadDirAll(dir string) ([]*metric.Run, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("report: read dir %q: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	out := make([]*metric.Run, 0, len(paths))
	for _, path := range paths {
		r, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Ties on timestamp break by run id, then by discovery order, so listing
// order never changes the outcome.
func latest(runs []*metric.Run) *metric.Run {
	best := runs[0]
	for _, r := range runs[1:] {
		if r.Timestamp.After(best.Timestamp) {
			best = r
			continue
		}
		if r.Timestamp.Equal(best.Timestamp) && r.RunID > best.RunID {
			best = r
		}
	}
	return best
}

// LoadAll loads several reports concurrently. Any single failure fails the
// whole operation; there is no partial-success mode.
func LoadAll(paths []string) ([]*metric.Run, error) {
	out := make([]*metric.Run, len(paths))
	errs := make([]error, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			out[i], errs[i] = LoadFile(path)
		}(i, path)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Write persists a Document as indented JSON, creating parent directories.
func Write(path string, doc *Document) error {
	if doc == nil {
		return fmt.Errorf("report: nil document")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("report: empty path")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: create dir: %w", err)
		}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal: %w", err)
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
