package metric

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Known metric names. Quality metrics come from the managed evaluation
// service on a 1-5 scale; pass rates are fractions in [0, 1].
const (
	Groundedness   = "groundedness"
	Relevance      = "relevance"
	Similarity     = "similarity"
	Fluency        = "fluency"
	SafetyPassRate = "content_safety_pass_rate"
)

// Scale is the closed value range a metric is declared on.
type Scale struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

var (
	QualityScale = Scale{Min: 1.0, Max: 5.0}
	RateScale    = Scale{Min: 0.0, Max: 1.0}
)

func (s Scale) Contains(v float64) bool {
	return v >= s.Min && v <= s.Max
}

func (s Scale) String() string {
	return fmt.Sprintf("%g-%g", s.Min, s.Max)
}

// ScaleFor returns the declared scale for a known metric name.
func ScaleFor(name string) (Scale, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Groundedness, Relevance, Similarity, Fluency:
		return QualityScale, true
	case SafetyPassRate:
		return RateScale, true
	default:
		return Scale{}, false
	}
}

// Score is one named metric value. Construct with NewScore so that
// out-of-scale values are rejected at the boundary instead of clamped.
type Score struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Scale Scale   `json:"scale"`
}

func NewScore(name string, value float64) (Score, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Score{}, fmt.Errorf("metric: missing name")
	}
	scale, ok := ScaleFor(name)
	if !ok {
		return Score{}, fmt.Errorf("metric: unknown metric %q", name)
	}
	if !scale.Contains(value) {
		return Score{}, fmt.Errorf("metric: %s value %g outside scale %s", name, value, scale)
	}
	return Score{Name: name, Value: value, Scale: scale}, nil
}

// Threshold names the minimum acceptable value for one metric.
type Threshold struct {
	Metric  string  `json:"metric" yaml:"metric"`
	Minimum float64 `json:"minimum" yaml:"minimum"`
}

// ValidateThresholds rejects empty, unknown, and duplicate metric names.
func ValidateThresholds(specs []Threshold) error {
	seen := make(map[string]struct{}, len(specs))
	for i, t := range specs {
		name := strings.ToLower(strings.TrimSpace(t.Metric))
		if name == "" {
			return fmt.Errorf("metric: thresholds[%d]: missing metric name", i)
		}
		if _, ok := ScaleFor(name); !ok {
			return fmt.Errorf("metric: thresholds[%d]: unknown metric %q", i, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("metric: thresholds[%d]: duplicate metric %q", i, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// TestResult is the outcome of one content-safety probe.
type TestResult struct {
	TestID   string `json:"id"`
	Category string `json:"category"`
	Passed   bool   `json:"passed"`
	Reason   string `json:"reason,omitempty"`
}

// Run is one evaluation or safety execution, normalized from a persisted
// report. Immutable after construction.
type Run struct {
	RunID     string
	Timestamp time.Time
	Model     string
	Dataset   string
	Scores    []Score
	Tests     []TestResult
}

// Score returns the named metric, if present.
func (r *Run) Score(name string) (Score, bool) {
	if r == nil {
		return Score{}, false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range r.Scores {
		if s.Name == name {
			return s, true
		}
	}
	return Score{}, false
}

// MetricNames returns the run's metric names in sorted order.
func (r *Run) MetricNames() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Scores))
	for _, s := range r.Scores {
		out = append(out, s.Name)
	}
	sort.Strings(out)
	return out
}

// PassRate reports the fraction of passed tests. ok is false when the run
// carries no test results.
func (r *Run) PassRate() (rate float64, ok bool) {
	if r == nil || len(r.Tests) == 0 {
		return 0, false
	}
	passed := 0
	for _, t := range r.Tests {
		if t.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(r.Tests)), true
}
