package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/stellarlinkco/ragate/internal/gate"
)

type OutputFormat string

const (
	FormatTable  OutputFormat = "table"
	FormatJSON   OutputFormat = "json"
	FormatGitHub OutputFormat = "github"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
)

func parseOutputFormat(s string) OutputFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table":
		return FormatTable
	case "json", "jsonl":
		return FormatJSON
	case "github", "gh":
		return FormatGitHub
	default:
		return ""
	}
}

func resolveOutputFormat(flagValue string) (OutputFormat, error) {
	if strings.TrimSpace(flagValue) == "" {
		return FormatTable, nil
	}
	out := parseOutputFormat(flagValue)
	if out == "" {
		return "", fmt.Errorf("invalid --output %q (expected table|json|github)", flagValue)
	}
	return out, nil
}

func coloredStatus(passed bool) string {
	if passed {
		return colorGreen + "PASS" + colorReset
	}
	return colorRed + "FAIL" + colorReset
}

func FormatVerdict(v *gate.Verdict, format OutputFormat) string {
	switch format {
	case FormatTable:
		return formatVerdictTable(v)
	case FormatJSON:
		return formatVerdictJSON(v)
	case FormatGitHub:
		return formatVerdictGitHub(v)
	default:
		return fmt.Sprintf("error: unknown output format %q\n", format)
	}
}

func FormatComparison(c *gate.Comparison, format OutputFormat) string {
	switch format {
	case FormatTable:
		return formatComparisonTable(c)
	case FormatJSON:
		return formatComparisonJSON(c)
	case FormatGitHub:
		return formatComparisonGitHub(c)
	default:
		return fmt.Sprintf("error: unknown output format %q\n", format)
	}
}

func formatVerdictTable(v *gate.Verdict) string {
	if v == nil {
		return "Run: <nil> " + coloredStatus(false) + "\n\n"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Run: %s %s\n", v.RunID, coloredStatus(v.OverallPassed))
	if v.Model != "" {
		fmt.Fprintf(&buf, "Model: %s\n", v.Model)
	}

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tVALUE\tTHRESHOLD\tRESULT")
	for _, name := range verdictMetricNames(v) {
		mv := v.Metrics[name]
		if mv.Threshold == nil {
			fmt.Fprintf(tw, "%s\t%.2f\t-\tinfo\n", name, mv.Value)
			continue
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%s\n", name, mv.Value, *mv.Threshold, coloredStatus(mv.Passed))
	}
	_ = tw.Flush()

	if v.PassRate != nil {
		fmt.Fprintf(&buf, "Safety: %.1f%% pass rate (minimum %.1f%%) %s\n",
			*v.PassRate*100, v.MinPassRate*100, coloredStatus(*v.PassRate >= v.MinPassRate))
	}
	buf.WriteString("\n")

	return buf.String()
}

func formatVerdictJSON(v *gate.Verdict) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: marshal verdict: %v\n", err)
	}
	return string(b) + "\n"
}

func formatVerdictGitHub(v *gate.Verdict) string {
	if v == nil {
		return "::error::nil verdict\n"
	}

	var buf bytes.Buffer
	status := "passed"
	if !v.OverallPassed {
		status = "failed"
	}
	fmt.Fprintf(&buf, "Summary: run=%s model=%s gate=%s\n", v.RunID, v.Model, status)

	for _, name := range v.FailedMetrics() {
		mv := v.Metrics[name]
		fmt.Fprintf(&buf, "::error::%s %.2f below threshold %.2f\n", name, mv.Value, *mv.Threshold)
	}
	if v.PassRate != nil && *v.PassRate < v.MinPassRate {
		fmt.Fprintf(&buf, "::error::safety pass rate %.1f%% below minimum %.1f%%\n",
			*v.PassRate*100, v.MinPassRate*100)
	}
	if v.OverallPassed {
		fmt.Fprintf(&buf, "::notice::gate passed for run %s\n", v.RunID)
	}

	return buf.String()
}

func formatComparisonTable(c *gate.Comparison) string {
	if c == nil || c.Baseline == nil || c.Candidate == nil {
		return "Comparison: <nil>\n\n"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Baseline: %s  Candidate: %s  Tolerance: %.2f\n",
		c.Baseline.RunID, c.Candidate.RunID, c.Tolerance)

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tBASELINE\tCANDIDATE\tDELTA\tCHANGE")
	for _, name := range c.MetricNames() {
		d := c.Deltas[name]
		change := string(d.Classification)
		if d.Classification == gate.Regressed {
			change = colorRed + change + colorReset
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%+.2f\t%s\n", name, d.Baseline, d.Candidate, d.Delta, change)
	}
	_ = tw.Flush()

	if c.RecommendSwap {
		fmt.Fprintf(&buf, "Recommendation: %sSWAP%s\n\n", colorGreen, colorReset)
	} else {
		fmt.Fprintf(&buf, "Recommendation: %sKEEP BASELINE%s\n\n", colorRed, colorReset)
	}

	return buf.String()
}

func formatComparisonJSON(c *gate.Comparison) string {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("error: marshal comparison: %v\n", err)
	}
	return string(b) + "\n"
}

func formatComparisonGitHub(c *gate.Comparison) string {
	if c == nil || c.Baseline == nil || c.Candidate == nil {
		return "::error::nil comparison\n"
	}

	var buf bytes.Buffer
	decision := "swap"
	if !c.RecommendSwap {
		decision = "keep-baseline"
	}
	fmt.Fprintf(&buf, "Summary: baseline=%s candidate=%s decision=%s\n",
		c.Baseline.RunID, c.Candidate.RunID, decision)

	for _, name := range c.Regressions() {
		d := c.Deltas[name]
		fmt.Fprintf(&buf, "::error::%s regressed %.2f -> %.2f (tolerance %.2f)\n",
			name, d.Baseline, d.Candidate, c.Tolerance)
	}
	if !c.Candidate.OverallPassed {
		fmt.Fprintf(&buf, "::error::candidate run %s failed the gate\n", c.Candidate.RunID)
	}
	if c.RecommendSwap {
		fmt.Fprintf(&buf, "::notice::candidate %s is safe to promote\n", c.Candidate.RunID)
	}

	return buf.String()
}

func verdictMetricNames(v *gate.Verdict) []string {
	names := make([]string, 0, len(v.Metrics))
	for name := range v.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
