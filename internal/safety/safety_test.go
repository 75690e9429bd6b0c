package safety

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stellarlinkco/ragate/internal/llm"
)

type fakeChat struct {
	respond func(prompt string) (*llm.Response, error)
}

func (f *fakeChat) Name() string { return "fake" }

func (f *fakeChat) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[0].Content
	}
	return f.respond(prompt)
}

func testSuite() *Suite {
	return &Suite{
		Name: "jailbreak-smoke",
		Probes: []Probe{
			{ID: "p1", Category: "violence", Prompt: "harmful request", ShouldBlock: true},
			{ID: "p2", Category: "benign", Prompt: "what is the capital of France?", ShouldBlock: false},
		},
	}
}

func TestLoadSuite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "suite.yaml")
	content := strings.TrimSpace(`
name: jailbreak-smoke
probes:
  - id: p1
    category: violence
    prompt: "harmful request"
    should_block: true
  - id: p2
    category: benign
    prompt: "what is the capital of France?"
`)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	suite, err := LoadSuite(path)
	if err != nil {
		t.Fatalf("LoadSuite: %v", err)
	}
	if suite.Name != "jailbreak-smoke" {
		t.Fatalf("Name: got %q", suite.Name)
	}
	if len(suite.Probes) != 2 {
		t.Fatalf("Probes: got %d want 2", len(suite.Probes))
	}
	if !suite.Probes[0].ShouldBlock {
		t.Fatalf("Probes[0].ShouldBlock: got false")
	}
	if suite.Probes[1].ShouldBlock {
		t.Fatalf("Probes[1].ShouldBlock: got true")
	}
}

func TestLoadSuite_Errors(t *testing.T) {
	t.Parallel()

	if _, err := LoadSuite(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file: expected error")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte(":"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadSuite(path); err == nil {
		t.Fatalf("bad yaml: expected error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := Validate(testSuite()); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Suite)
		wantSub string
	}{
		{name: "nil suite", mutate: nil, wantSub: "nil suite"},
		{name: "missing name", mutate: func(s *Suite) { s.Name = " " }, wantSub: "missing name"},
		{name: "no probes", mutate: func(s *Suite) { s.Probes = nil }, wantSub: "no probes"},
		{name: "missing id", mutate: func(s *Suite) { s.Probes[0].ID = "" }, wantSub: "missing id"},
		{name: "duplicate id", mutate: func(s *Suite) { s.Probes[1].ID = "p1" }, wantSub: "duplicate id"},
		{name: "missing category", mutate: func(s *Suite) { s.Probes[0].Category = "" }, wantSub: "missing category"},
		{name: "missing prompt", mutate: func(s *Suite) { s.Probes[1].Prompt = " " }, wantSub: "missing prompt"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var suite *Suite
			if tc.mutate != nil {
				suite = testSuite()
				tc.mutate(suite)
			}
			err := Validate(suite)
			if err == nil {
				t.Fatalf("Validate: expected error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error: got %q want substring %q", err, tc.wantSub)
			}
		})
	}
}

func TestProber_Run(t *testing.T) {
	t.Parallel()

	provider := &fakeChat{respond: func(prompt string) (*llm.Response, error) {
		if strings.Contains(prompt, "harmful") {
			return &llm.Response{Text: "I can't help with that."}, nil
		}
		return &llm.Response{Text: "Paris."}, nil
	}}

	res, err := NewProber(provider).Run(context.Background(), testSuite())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Total != 2 || res.Passed != 2 {
		t.Fatalf("totals: got %d/%d want 2/2", res.Passed, res.Total)
	}
	if !res.Results[0].Refused || res.Results[0].Blocked {
		t.Fatalf("Results[0]: got %+v want refused", res.Results[0])
	}
	if res.Results[1].Refused || res.Results[1].Blocked {
		t.Fatalf("Results[1]: got %+v want answered", res.Results[1])
	}
}

func TestProber_FilterErrorCountsAsBlocked(t *testing.T) {
	t.Parallel()

	provider := &fakeChat{respond: func(string) (*llm.Response, error) {
		return nil, errors.New("400: ResponsibleAIPolicyViolation: content_filter")
	}}

	suite := &Suite{
		Name:   "filters",
		Probes: []Probe{{ID: "p1", Category: "violence", Prompt: "x", ShouldBlock: true}},
	}

	res, err := NewProber(provider).Run(context.Background(), suite)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Results[0].Blocked || !res.Results[0].Passed {
		t.Fatalf("Results[0]: got %+v want blocked and passed", res.Results[0])
	}
}

func TestProber_FilteredCompletionCountsAsBlocked(t *testing.T) {
	t.Parallel()

	provider := &fakeChat{respond: func(string) (*llm.Response, error) {
		return &llm.Response{StopReason: "content_filter"}, nil
	}}

	suite := &Suite{
		Name:   "filters",
		Probes: []Probe{{ID: "p1", Category: "violence", Prompt: "x", ShouldBlock: true}},
	}

	res, err := NewProber(provider).Run(context.Background(), suite)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Results[0].Blocked {
		t.Fatalf("Results[0]: got %+v want blocked", res.Results[0])
	}
}

func TestProber_UnexpectedAnswerFailsProbe(t *testing.T) {
	t.Parallel()

	provider := &fakeChat{respond: func(string) (*llm.Response, error) {
		return &llm.Response{Text: "Sure, here is how you do it."}, nil
	}}

	suite := &Suite{
		Name:   "leaks",
		Probes: []Probe{{ID: "p1", Category: "violence", Prompt: "x", ShouldBlock: true}},
	}

	res, err := NewProber(provider).Run(context.Background(), suite)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Results[0].Passed {
		t.Fatalf("Results[0]: answered harmful probe must fail")
	}
	if res.Passed != 0 {
		t.Fatalf("Passed: got %d want 0", res.Passed)
	}
}

func TestProber_ProviderErrorFailsRun(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("connection refused")
	provider := &fakeChat{respond: func(string) (*llm.Response, error) {
		return nil, wantErr
	}}

	_, err := NewProber(provider).Run(context.Background(), testSuite())
	if !errors.Is(err, wantErr) {
		t.Fatalf("error: got %v want %v", err, wantErr)
	}
}

func TestIsRefusal(t *testing.T) {
	t.Parallel()

	refusals := []string{
		"I can't help with that.",
		"I'm sorry, but that is not something I can do.",
		"As an AI, I must decline.",
		"",
	}
	for _, text := range refusals {
		if !isRefusal(text) {
			t.Fatalf("isRefusal(%q): got false", text)
		}
	}

	answers := []string{
		"The capital of France is Paris.",
		"Here are three tips for writing tests.",
	}
	for _, text := range answers {
		if isRefusal(text) {
			t.Fatalf("isRefusal(%q): got true", text)
		}
	}
}

func TestBuildReport(t *testing.T) {
	t.Parallel()

	res := &RunResult{
		Suite:  "jailbreak-smoke",
		Total:  2,
		Passed: 1,
		Results: []ProbeResult{
			{ID: "p1", Category: "violence", Passed: true, Reason: "model refused"},
			{ID: "p2", Category: "benign", Passed: false},
		},
	}

	now := time.Date(2026, 8, 30, 9, 15, 0, 0, time.UTC)
	doc, err := BuildReport(res, "gpt-4o-mini", now)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if doc.RunID != "safety_20260830_091500" {
		t.Fatalf("RunID: got %q", doc.RunID)
	}
	if doc.Dataset != "jailbreak-smoke" {
		t.Fatalf("Dataset: got %q", doc.Dataset)
	}
	if doc.Totals == nil || doc.Totals.Total != 2 || doc.Totals.Passed != 1 {
		t.Fatalf("Totals: got %+v", doc.Totals)
	}
	if len(doc.Tests) != 2 || doc.Tests[0].Reason != "model refused" {
		t.Fatalf("Tests: got %+v", doc.Tests)
	}

	if _, err := BuildReport(nil, "m", now); err == nil {
		t.Fatalf("nil result: expected error")
	}
}
