package judge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stellarlinkco/ragate/internal/llm"
	"github.com/stellarlinkco/ragate/internal/metric"
)

type fakeJudge struct {
	calls   atomic.Int64
	respond func(prompt string) (*llm.Response, error)
}

func (f *fakeJudge) Name() string { return "fake" }

func (f *fakeJudge) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.calls.Add(1)
	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[0].Content
	}
	return f.respond(prompt)
}

func scoreResponse(score int) *llm.Response {
	return &llm.Response{Text: fmt.Sprintf(`{"score": %d, "reasoning": "fine"}`, score)}
}

func writeDataset(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadSamples(t *testing.T) {
	t.Parallel()

	path := writeDataset(t,
		`{"question": "q1", "context": "c1", "ground_truth": "g1", "response": "r1"}`,
		"",
		`{"question": "q2", "ground_truth": "g2"}`,
	)

	samples, err := LoadSamples(path, 0)
	if err != nil {
		t.Fatalf("LoadSamples: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("samples: got %d want 2", len(samples))
	}
	if samples[0].Response != "r1" {
		t.Fatalf("Response: got %q", samples[0].Response)
	}
	if samples[1].Response != "g2" {
		t.Fatalf("Response fallback: got %q want ground truth", samples[1].Response)
	}
}

func TestLoadSamples_Max(t *testing.T) {
	t.Parallel()

	path := writeDataset(t,
		`{"question": "q1", "ground_truth": "g1"}`,
		`{"question": "q2", "ground_truth": "g2"}`,
		`{"question": "q3", "ground_truth": "g3"}`,
	)

	samples, err := LoadSamples(path, 2)
	if err != nil {
		t.Fatalf("LoadSamples: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("samples: got %d want 2", len(samples))
	}
}

func TestLoadSamples_Rejections(t *testing.T) {
	t.Parallel()

	if _, err := LoadSamples(filepath.Join(t.TempDir(), "missing.jsonl"), 0); err == nil {
		t.Fatalf("missing file: expected error")
	}

	bad := writeDataset(t, `{"question": "q1"`)
	if _, err := LoadSamples(bad, 0); err == nil {
		t.Fatalf("bad json: expected error")
	}

	noQuestion := writeDataset(t, `{"ground_truth": "g1"}`)
	if _, err := LoadSamples(noQuestion, 0); err == nil {
		t.Fatalf("missing question: expected error")
	}

	noResponse := writeDataset(t, `{"question": "q1"}`)
	if _, err := LoadSamples(noResponse, 0); err == nil {
		t.Fatalf("no response or ground truth: expected error")
	}

	empty := writeDataset(t, "", "")
	if _, err := LoadSamples(empty, 0); err == nil {
		t.Fatalf("empty dataset: expected error")
	}
}

func TestScorer_Score(t *testing.T) {
	t.Parallel()

	provider := &fakeJudge{respond: func(prompt string) (*llm.Response, error) {
		if strings.Contains(prompt, "Criterion: fluency") {
			return scoreResponse(3), nil
		}
		return scoreResponse(4), nil
	}}

	samples := []Sample{
		{Question: "q1", GroundTruth: "g1", Response: "r1"},
		{Question: "q2", GroundTruth: "g2", Response: "r2"},
	}

	s := NewScorer(provider, 2)
	res, err := s.Score(context.Background(), samples)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if res.Samples != 2 {
		t.Fatalf("Samples: got %d want 2", res.Samples)
	}
	if got := provider.calls.Load(); got != 8 {
		t.Fatalf("judge calls: got %d want 8", got)
	}
	if res.Means[metric.Fluency] != 3.0 {
		t.Fatalf("fluency mean: got %v want 3.0", res.Means[metric.Fluency])
	}
	if res.Means[metric.Groundedness] != 4.0 {
		t.Fatalf("groundedness mean: got %v want 4.0", res.Means[metric.Groundedness])
	}
	if len(res.Scores) != 8 {
		t.Fatalf("Scores: got %d want 8", len(res.Scores))
	}
}

func TestScorer_FailFast(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("judge unavailable")
	provider := &fakeJudge{respond: func(string) (*llm.Response, error) {
		return nil, wantErr
	}}

	s := NewScorer(provider, 1)
	_, err := s.Score(context.Background(), []Sample{{Question: "q", Response: "r"}})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error: got %v want %v", err, wantErr)
	}
}

func TestScorer_RejectsBadJudgeOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{name: "not json", text: "I would rate this a 4"},
		{name: "score too high", text: `{"score": 6}`},
		{name: "score too low", text: `{"score": 0}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			provider := &fakeJudge{respond: func(string) (*llm.Response, error) {
				return &llm.Response{Text: tc.text}, nil
			}}
			s := NewScorer(provider, 1)
			if _, err := s.Score(context.Background(), []Sample{{Question: "q", Response: "r"}}); err == nil {
				t.Fatalf("Score: expected error")
			}
		})
	}
}

func TestScorer_Rejections(t *testing.T) {
	t.Parallel()

	s := NewScorer(&fakeJudge{respond: func(string) (*llm.Response, error) {
		return scoreResponse(4), nil
	}}, 1)

	if _, err := s.Score(context.Background(), nil); err == nil {
		t.Fatalf("no samples: expected error")
	}

	var nilScorer *Scorer
	if _, err := nilScorer.Score(context.Background(), []Sample{{Question: "q", Response: "r"}}); err == nil {
		t.Fatalf("nil scorer: expected error")
	}
}

func TestBuildReport(t *testing.T) {
	t.Parallel()

	res := &Result{
		Samples: 3,
		Means: map[string]float64{
			metric.Groundedness: 4.333,
			metric.Relevance:    4.0,
			metric.Similarity:   3.667,
			metric.Fluency:      4.667,
		},
	}

	now := time.Date(2026, 8, 30, 12, 30, 45, 0, time.UTC)
	doc, err := BuildReport(res, "gpt-4o-mini", "golden.jsonl", now)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}

	if doc.RunID != "eval_20260830_123045" {
		t.Fatalf("RunID: got %q", doc.RunID)
	}
	if doc.Model != "gpt-4o-mini" || doc.Dataset != "golden.jsonl" {
		t.Fatalf("identity: got %q/%q", doc.Model, doc.Dataset)
	}
	if len(doc.Metrics) != 4 {
		t.Fatalf("Metrics: got %d want 4", len(doc.Metrics))
	}
	if doc.Metrics[0].Name != metric.Fluency || doc.Metrics[0].Value != 4.667 {
		t.Fatalf("Metrics[0]: got %+v", doc.Metrics[0])
	}

	delete(res.Means, metric.Fluency)
	if _, err := BuildReport(res, "m", "d", now); err == nil {
		t.Fatalf("missing metric: expected error")
	}
}
