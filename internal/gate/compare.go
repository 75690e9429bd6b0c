package gate

import (
	"errors"
	"fmt"
	"sort"
)

// ErrIncomparableRuns means the two verdicts share no metric name, so
// there is nothing meaningful to compare.
var ErrIncomparableRuns = errors.New("gate: incomparable runs: no overlapping metrics")

// Classification buckets a per-metric delta against the tolerance band.
type Classification string

const (
	Improved  Classification = "improved"
	Regressed Classification = "regressed"
	Neutral   Classification = "neutral"
)

// MetricDelta is the candidate-minus-baseline movement for one metric.
type MetricDelta struct {
	Baseline       float64        `json:"baseline"`
	Candidate      float64        `json:"candidate"`
	Delta          float64        `json:"delta"`
	Classification Classification `json:"classification"`
}

// Comparison is the swap decision for a baseline/candidate verdict pair.
type Comparison struct {
	Baseline  *Verdict               `json:"baseline"`
	Candidate *Verdict               `json:"candidate"`
	Tolerance float64                `json:"tolerance"`
	Deltas    map[string]MetricDelta `json:"deltas"`

	// RecommendSwap is deliberately conservative: any regression beyond
	// tolerance vetoes the swap even when the candidate's own gate passes.
	RecommendSwap bool `json:"recommend_swap"`
}

// Regressions returns the names of regressed metrics, sorted.
func (c *Comparison) Regressions() []string {
	if c == nil {
		return nil
	}
	var out []string
	for name, d := range c.Deltas {
		if d.Classification == Regressed {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// MetricNames returns the compared metric names, sorted.
func (c *Comparison) MetricNames() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Deltas))
	for name := range c.Deltas {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Compare computes per-metric deltas over the metrics present in both
// verdicts and classifies each against the tolerance band. Single pass,
// no state.
func Compare(baseline, candidate *Verdict, tolerance float64) (*Comparison, error) {
	if baseline == nil || candidate == nil {
		return nil, errors.New("gate: nil verdict")
	}
	if tolerance < 0 {
		return nil, fmt.Errorf("gate: negative regression tolerance %g", tolerance)
	}

	deltas := make(map[string]MetricDelta)
	for name, b := range baseline.Metrics {
		c, ok := candidate.Metrics[name]
		if !ok {
			continue
		}
		delta := c.Value - b.Value
		deltas[name] = MetricDelta{
			Baseline:       b.Value,
			Candidate:      c.Value,
			Delta:          delta,
			Classification: classify(delta, tolerance),
		}
	}
	if len(deltas) == 0 {
		return nil, fmt.Errorf("%w (baseline %q, candidate %q)", ErrIncomparableRuns, baseline.RunID, candidate.RunID)
	}

	out := &Comparison{
		Baseline:  baseline,
		Candidate: candidate,
		Tolerance: tolerance,
		Deltas:    deltas,
	}
	out.RecommendSwap = candidate.OverallPassed && len(out.Regressions()) == 0
	return out, nil
}

func classify(delta, tolerance float64) Classification {
	switch {
	case delta < -tolerance:
		return Regressed
	case delta > tolerance:
		return Improved
	default:
		return Neutral
	}
}
