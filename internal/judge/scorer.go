// Package judge scores chatbot responses on the four quality metrics by
// prompting an LLM as a rubric-driven grader, and shapes the means into an
// evaluation report the gate loader consumes.
package judge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/stellarlinkco/ragate/internal/llm"
	"github.com/stellarlinkco/ragate/internal/metric"
	"github.com/stellarlinkco/ragate/internal/report"
)

const scoreScale = 5

// Criteria per metric, mirroring the managed evaluators each replaces.
var criteria = map[string]string{
	metric.Groundedness: "Is every claim in the response supported by the retrieved context? Penalize any statement the context does not back.",
	metric.Relevance:    "Does the response directly address the user's question? Penalize off-topic or padded answers.",
	metric.Similarity:   "How close is the response to the expected answer in meaning? Wording may differ; the facts must match.",
	metric.Fluency:      "Is the response grammatically correct, natural, and well structured?",
}

const judgePromptTemplate = `You are an expert evaluator grading a RAG chatbot response.

## Criterion: {{.Metric}}
{{.Criteria}}

## Question
{{.Question}}
{{if .Context}}
## Retrieved Context
{{.Context}}
{{end}}{{if .GroundTruth}}
## Expected Answer
{{.GroundTruth}}
{{end}}
## Response to Grade
{{.Response}}

## Instructions
Rate the response on a scale of 1-{{.Scale}}.
- 1: Completely fails the criterion
- {{.Scale}}: Perfectly meets the criterion

Output ONLY valid JSON in this exact format:
{"score": <integer 1-{{.Scale}}>, "reasoning": "<brief explanation>"}`

var judgePromptTmpl = template.Must(template.New("judge").Parse(judgePromptTemplate))

type judgePromptData struct {
	Metric      string
	Criteria    string
	Question    string
	Context     string
	GroundTruth string
	Response    string
	Scale       int
}

type judgeOutput struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// SampleScore is one grading call's outcome.
type SampleScore struct {
	Sample    int     `json:"sample"`
	Metric    string  `json:"metric"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning,omitempty"`
}

// Result aggregates judge scores across a dataset.
type Result struct {
	Samples int                `json:"samples"`
	Means   map[string]float64 `json:"means"`
	Scores  []SampleScore      `json:"scores"`
}

type Scorer struct {
	provider    llm.Provider
	concurrency int
}

func NewScorer(provider llm.Provider, concurrency int) *Scorer {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Scorer{provider: provider, concurrency: concurrency}
}

// Score grades every sample on every metric. Any judge failure fails the
// whole run; a partially scored report would weaken the gate it feeds.
func (s *Scorer) Score(ctx context.Context, samples []Sample) (*Result, error) {
	if s == nil || s.provider == nil {
		return nil, errors.New("judge: nil provider")
	}
	if ctx == nil {
		return nil, errors.New("judge: nil context")
	}
	if len(samples) == 0 {
		return nil, errors.New("judge: no samples")
	}

	metrics := metricNames()

	type task struct {
		sample int
		metric string
	}
	tasks := make([]task, 0, len(samples)*len(metrics))
	for i := range samples {
		for _, m := range metrics {
			tasks = append(tasks, task{sample: i, metric: m})
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scores := make([]SampleScore, len(tasks))
	errs := make([]error, len(tasks))
	sem := make(chan struct{}, s.concurrency)

	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t task) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}

			sc, err := s.scoreOne(ctx, samples[t.sample], t.metric)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			sc.Sample = t.sample
			scores[i] = sc
		}(i, t)
	}
	wg.Wait()

	// Surface the causal failure, not the cancellations it triggered.
	var firstErr error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if firstErr == nil || errors.Is(firstErr, context.Canceled) {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	out := &Result{
		Samples: len(samples),
		Means:   make(map[string]float64, len(metrics)),
		Scores:  scores,
	}
	for _, m := range metrics {
		var sum float64
		n := 0
		for _, sc := range scores {
			if sc.Metric == m {
				sum += sc.Score
				n++
			}
		}
		out.Means[m] = round3(sum / float64(n))
	}
	return out, nil
}

func (s *Scorer) scoreOne(ctx context.Context, sample Sample, metricName string) (SampleScore, error) {
	var buf bytes.Buffer
	if err := judgePromptTmpl.Execute(&buf, judgePromptData{
		Metric:      metricName,
		Criteria:    criteria[metricName],
		Question:    sample.Question,
		Context:     sample.Context,
		GroundTruth: sample.GroundTruth,
		Response:    sample.Response,
		Scale:       scoreScale,
	}); err != nil {
		return SampleScore{}, fmt.Errorf("judge: render prompt: %w", err)
	}

	resp, err := s.provider.Complete(ctx, &llm.Request{
		Messages:  []llm.Message{{Role: "user", Content: buf.String()}},
		MaxTokens: 512,
	})
	if err != nil {
		return SampleScore{}, fmt.Errorf("judge: %s: %w", metricName, err)
	}
	if resp == nil {
		return SampleScore{}, fmt.Errorf("judge: %s: nil response", metricName)
	}

	var out judgeOutput
	raw := strings.TrimSpace(resp.Text)
	if err := llm.ParseJSON(raw, &out); err != nil {
		return SampleScore{}, fmt.Errorf("judge: %s: invalid judge output %q: %w", metricName, raw, err)
	}
	if out.Score < 1 || out.Score > scoreScale {
		return SampleScore{}, fmt.Errorf("judge: %s: score %d outside 1-%d", metricName, out.Score, scoreScale)
	}

	return SampleScore{
		Metric:    metricName,
		Score:     float64(out.Score),
		Reasoning: strings.TrimSpace(out.Reasoning),
	}, nil
}

// BuildReport shapes a judge result into the persisted report schema.
func BuildReport(res *Result, model, dataset string, now time.Time) (*report.Document, error) {
	if res == nil {
		return nil, errors.New("judge: nil result")
	}
	now = now.UTC()
	doc := &report.Document{
		RunID:     "eval_" + now.Format("20060102_150405"),
		Timestamp: now,
		Model:     strings.TrimSpace(model),
		Dataset:   strings.TrimSpace(dataset),
		Meta:      map[string]any{"samples": res.Samples},
	}
	for _, name := range metricNames() {
		mean, ok := res.Means[name]
		if !ok {
			return nil, fmt.Errorf("judge: result missing metric %q", name)
		}
		doc.Metrics = append(doc.Metrics, report.MetricEntry{Name: name, Value: mean})
	}
	return doc, nil
}

func metricNames() []string {
	out := make([]string, 0, len(criteria))
	for name := range criteria {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
