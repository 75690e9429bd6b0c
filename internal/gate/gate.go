// Package gate holds the promotion-gate decision logic: threshold
// evaluation over a normalized run, and baseline-vs-candidate comparison.
// Everything here is a pure function over value objects; exit codes and
// report I/O belong to the callers.
package gate

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stellarlinkco/ragate/internal/metric"
)

// MissingMetricError reports a threshold configured for a metric absent
// from the run. Silently treating an absent metric as passing would defeat
// the purpose of a promotion gate, so this is a hard failure.
type MissingMetricError struct {
	Metric string
	RunID  string
}

func (e *MissingMetricError) Error() string {
	return fmt.Sprintf("gate: run %q: threshold configured for metric %q not present in run", e.RunID, e.Metric)
}

// MetricVerdict is the per-metric outcome. Threshold is nil for metrics
// carried informationally (present in the run, no configured minimum);
// those never count toward the overall verdict.
type MetricVerdict struct {
	Value     float64  `json:"value"`
	Threshold *float64 `json:"threshold,omitempty"`
	Passed    bool     `json:"passed"`
}

// Verdict is the promotion-gate outcome for one run. Derived
// deterministically from a run and a threshold set; never mutated.
type Verdict struct {
	RunID     string                   `json:"run_id"`
	Model     string                   `json:"model,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
	Metrics   map[string]MetricVerdict `json:"metrics"`

	// Safety pass-rate check, only set when the run carried test results.
	PassRate    *float64 `json:"pass_rate,omitempty"`
	MinPassRate float64  `json:"min_pass_rate,omitempty"`

	OverallPassed bool `json:"overall_passed"`
}

// Gated returns the names of metrics that count toward the overall
// verdict, sorted.
func (v *Verdict) Gated() []string {
	if v == nil {
		return nil
	}
	out := make([]string, 0, len(v.Metrics))
	for name, mv := range v.Metrics {
		if mv.Threshold != nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// FailedMetrics returns the names of gated metrics below threshold, sorted.
func (v *Verdict) FailedMetrics() []string {
	if v == nil {
		return nil
	}
	var out []string
	for name, mv := range v.Metrics {
		if mv.Threshold != nil && !mv.Passed {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Evaluate applies the threshold set to a run. Every metric in the run is
// reported; only those with a configured threshold gate the overall
// verdict, which is the conjunction of all per-metric verdicts plus the
// safety pass-rate check when test results are present. One excellent
// metric never compensates for a failing one.
func Evaluate(run *metric.Run, specs []metric.Threshold, minSafetyPassRate float64) (*Verdict, error) {
	if run == nil {
		return nil, errors.New("gate: nil run")
	}
	if err := metric.ValidateThresholds(specs); err != nil {
		return nil, err
	}
	if minSafetyPassRate < 0 || minSafetyPassRate > 1 {
		return nil, fmt.Errorf("gate: min safety pass rate %g outside [0, 1]", minSafetyPassRate)
	}

	v := &Verdict{
		RunID:         run.RunID,
		Model:         run.Model,
		Timestamp:     run.Timestamp,
		Metrics:       make(map[string]MetricVerdict, len(run.Scores)),
		OverallPassed: true,
	}

	for _, s := range run.Scores {
		v.Metrics[s.Name] = MetricVerdict{Value: s.Value, Passed: true}
	}

	for _, spec := range specs {
		name := strings.ToLower(strings.TrimSpace(spec.Metric))
		score, ok := run.Score(name)
		if !ok {
			return nil, &MissingMetricError{Metric: name, RunID: run.RunID}
		}
		minimum := spec.Minimum
		passed := score.Value >= minimum
		v.Metrics[name] = MetricVerdict{Value: score.Value, Threshold: &minimum, Passed: passed}
		if !passed {
			v.OverallPassed = false
		}
	}

	if rate, ok := run.PassRate(); ok {
		v.PassRate = &rate
		v.MinPassRate = minSafetyPassRate
		if rate < minSafetyPassRate {
			v.OverallPassed = false
		}
	}

	return v, nil
}
