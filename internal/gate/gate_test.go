package gate

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stellarlinkco/ragate/internal/metric"
)

func qualityRun(values map[string]float64) *metric.Run {
	run := &metric.Run{
		RunID:     "run_1",
		Timestamp: time.Unix(1_700_000_000, 0).UTC(),
		Model:     "gpt-4o-mini",
	}
	for name, v := range values {
		run.Scores = append(run.Scores, metric.Score{Name: name, Value: v, Scale: metric.QualityScale})
	}
	return run
}

func defaultSpecs() []metric.Threshold {
	return []metric.Threshold{
		{Metric: metric.Groundedness, Minimum: 4.0},
		{Metric: metric.Relevance, Minimum: 4.0},
		{Metric: metric.Similarity, Minimum: 3.5},
		{Metric: metric.Fluency, Minimum: 4.0},
	}
}

func TestEvaluate_AllMetricsPass(t *testing.T) {
	t.Parallel()

	run := qualityRun(map[string]float64{
		metric.Groundedness: 4.5,
		metric.Relevance:    4.2,
		metric.Similarity:   3.5,
		metric.Fluency:      4.0,
	})

	v, err := Evaluate(run, defaultSpecs(), 0.9)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !v.OverallPassed {
		t.Fatalf("OverallPassed: got false want true")
	}
	if v.RunID != "run_1" || v.Model != "gpt-4o-mini" {
		t.Fatalf("identity: got %q/%q", v.RunID, v.Model)
	}
	if v.PassRate != nil {
		t.Fatalf("PassRate: expected nil for run without tests")
	}
	if got := v.FailedMetrics(); len(got) != 0 {
		t.Fatalf("FailedMetrics: got %v want none", got)
	}

	sim := v.Metrics[metric.Similarity]
	if sim.Threshold == nil || *sim.Threshold != 3.5 || !sim.Passed {
		t.Fatalf("similarity at exact threshold must pass: %+v", sim)
	}
}

func TestEvaluate_MultipleFailures(t *testing.T) {
	t.Parallel()

	run := qualityRun(map[string]float64{
		metric.Groundedness: 2.60,
		metric.Relevance:    4.5,
		metric.Similarity:   4.0,
		metric.Fluency:      3.00,
	})

	v, err := Evaluate(run, defaultSpecs(), 0.9)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.OverallPassed {
		t.Fatalf("OverallPassed: got true want false")
	}

	failed := v.FailedMetrics()
	want := []string{metric.Fluency, metric.Groundedness}
	if len(failed) != len(want) {
		t.Fatalf("FailedMetrics: got %v want %v", failed, want)
	}
	for i := range want {
		if failed[i] != want[i] {
			t.Fatalf("FailedMetrics[%d]: got %q want %q", i, failed[i], want[i])
		}
	}
}

func TestEvaluate_OneExcellentMetricDoesNotCompensate(t *testing.T) {
	t.Parallel()

	run := qualityRun(map[string]float64{
		metric.Groundedness: 5.0,
		metric.Relevance:    5.0,
		metric.Similarity:   5.0,
		metric.Fluency:      3.9,
	})

	v, err := Evaluate(run, defaultSpecs(), 0.9)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.OverallPassed {
		t.Fatalf("OverallPassed: one failing metric must fail the gate")
	}
}

func TestEvaluate_InformationalMetric(t *testing.T) {
	t.Parallel()

	run := qualityRun(map[string]float64{
		metric.Groundedness: 4.5,
		metric.Fluency:      1.2,
	})

	specs := []metric.Threshold{{Metric: metric.Groundedness, Minimum: 4.0}}
	v, err := Evaluate(run, specs, 0.9)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !v.OverallPassed {
		t.Fatalf("OverallPassed: ungated fluency must not gate")
	}

	fl := v.Metrics[metric.Fluency]
	if fl.Threshold != nil {
		t.Fatalf("fluency threshold: got %v want nil", *fl.Threshold)
	}
	gated := v.Gated()
	if len(gated) != 1 || gated[0] != metric.Groundedness {
		t.Fatalf("Gated: got %v", gated)
	}
}

func TestEvaluate_MissingMetric(t *testing.T) {
	t.Parallel()

	run := qualityRun(map[string]float64{metric.Groundedness: 4.5})

	_, err := Evaluate(run, defaultSpecs(), 0.9)
	if err == nil {
		t.Fatalf("Evaluate: expected error")
	}
	var missing *MissingMetricError
	if !errors.As(err, &missing) {
		t.Fatalf("error type: got %T (%v)", err, err)
	}
	if missing.RunID != "run_1" {
		t.Fatalf("RunID: got %q", missing.RunID)
	}
}

func TestEvaluate_SafetyPassRate(t *testing.T) {
	t.Parallel()

	run := &metric.Run{
		RunID:     "safety_1",
		Timestamp: time.Unix(1_700_000_000, 0).UTC(),
	}
	for i := 0; i < 8; i++ {
		run.Tests = append(run.Tests, metric.TestResult{
			TestID: "probe_" + string(rune('a'+i)),
			Passed: true,
		})
	}

	v, err := Evaluate(run, nil, 0.9)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !v.OverallPassed {
		t.Fatalf("OverallPassed: 8/8 against 0.9 must pass")
	}
	if v.PassRate == nil || *v.PassRate != 1.0 {
		t.Fatalf("PassRate: got %v want 1.0", v.PassRate)
	}

	run.Tests[0].Passed = false
	v, err = Evaluate(run, nil, 0.9)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.OverallPassed {
		t.Fatalf("OverallPassed: 7/8 against 0.9 must fail")
	}
	if v.PassRate == nil || *v.PassRate != 0.875 {
		t.Fatalf("PassRate: got %v want 0.875", v.PassRate)
	}
}

func TestEvaluate_Rejections(t *testing.T) {
	t.Parallel()

	run := qualityRun(map[string]float64{metric.Groundedness: 4.5})

	if _, err := Evaluate(nil, nil, 0.9); err == nil {
		t.Fatalf("Evaluate(nil run): expected error")
	}

	_, err := Evaluate(run, nil, 1.5)
	if err == nil || !strings.Contains(err.Error(), "outside [0, 1]") {
		t.Fatalf("bad min pass rate: got %v", err)
	}

	dup := []metric.Threshold{
		{Metric: metric.Groundedness, Minimum: 4.0},
		{Metric: metric.Groundedness, Minimum: 3.0},
	}
	if _, err := Evaluate(run, dup, 0.9); err == nil {
		t.Fatalf("duplicate thresholds: expected error")
	}
}
