package ci

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stellarlinkco/ragate/internal/gate"
)

// VerdictSummary renders a gate verdict as job-summary markdown.
func VerdictSummary(v *gate.Verdict) string {
	var sb strings.Builder

	status := "❌ FAILED"
	if v.OverallPassed {
		status = "✅ PASSED"
	}
	fmt.Fprintf(&sb, "## Promotion Gate: %s\n\n", status)
	fmt.Fprintf(&sb, "**Run:** `%s`", v.RunID)
	if v.Model != "" {
		fmt.Fprintf(&sb, "  **Model:** `%s`", v.Model)
	}
	sb.WriteString("\n\n")

	sb.WriteString("| Metric | Value | Threshold | Status |\n")
	sb.WriteString("|--------|-------|-----------|--------|\n")
	for _, name := range sortedMetricNames(v.Metrics) {
		mv := v.Metrics[name]
		threshold := "-"
		status := "info"
		if mv.Threshold != nil {
			threshold = fmt.Sprintf("%.2f", *mv.Threshold)
			if mv.Passed {
				status = "✅"
			} else {
				status = "❌"
			}
		}
		fmt.Fprintf(&sb, "| %s | %.2f | %s | %s |\n", name, mv.Value, threshold, status)
	}

	if v.PassRate != nil {
		fmt.Fprintf(&sb, "\nSafety pass rate: %.1f%% (minimum %.1f%%)\n",
			*v.PassRate*100, v.MinPassRate*100)
	}

	return sb.String()
}

// ComparisonSummary renders a swap decision as job-summary markdown.
func ComparisonSummary(c *gate.Comparison) string {
	var sb strings.Builder

	decision := "❌ KEEP BASELINE"
	if c.RecommendSwap {
		decision = "✅ SWAP RECOMMENDED"
	}
	fmt.Fprintf(&sb, "## Model Swap: %s\n\n", decision)
	fmt.Fprintf(&sb, "**Baseline:** `%s`  **Candidate:** `%s`  **Tolerance:** %.2f\n\n",
		c.Baseline.RunID, c.Candidate.RunID, c.Tolerance)

	sb.WriteString("| Metric | Baseline | Candidate | Delta | Change |\n")
	sb.WriteString("|--------|----------|-----------|-------|--------|\n")
	for _, name := range c.MetricNames() {
		d := c.Deltas[name]
		fmt.Fprintf(&sb, "| %s | %.2f | %.2f | %+.2f | %s |\n",
			name, d.Baseline, d.Candidate, d.Delta, d.Classification)
	}

	if regressed := c.Regressions(); len(regressed) > 0 {
		fmt.Fprintf(&sb, "\nRegressions: %s\n", strings.Join(regressed, ", "))
	}

	return sb.String()
}

// AnnotateVerdict emits annotations for each failing metric in a verdict.
func AnnotateVerdict(v *gate.Verdict) {
	for _, name := range v.FailedMetrics() {
		mv := v.Metrics[name]
		Annotate("error", fmt.Sprintf("gate: %s %.2f below threshold %.2f (run %s)",
			name, mv.Value, *mv.Threshold, v.RunID))
	}
	if v.PassRate != nil && *v.PassRate < v.MinPassRate {
		Annotate("error", fmt.Sprintf("gate: safety pass rate %.1f%% below minimum %.1f%% (run %s)",
			*v.PassRate*100, v.MinPassRate*100, v.RunID))
	}
}

func sortedMetricNames(m map[string]gate.MetricVerdict) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
