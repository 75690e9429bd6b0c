package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/stellarlinkco/ragate/internal/config"
)

type stubProvider struct {
	name string
}

func (s stubProvider) Name() string { return s.name }

func (s stubProvider) Complete(_ context.Context, _ *Request) (*Response, error) {
	return &Response{Text: "ok"}, nil
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	type out struct {
		Score int `json:"score"`
	}

	tests := []struct {
		name string
		raw  string
		want int
	}{
		{name: "plain object", raw: `{"score": 4}`, want: 4},
		{name: "fenced", raw: "```json\n{\"score\": 3}\n```", want: 3},
		{name: "fenced no language", raw: "```\n{\"score\": 5}\n```", want: 5},
		{name: "surrounding prose", raw: "Here you go: {\"score\": 2} hope that helps", want: 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var o out
			if err := ParseJSON(tc.raw, &o); err != nil {
				t.Fatalf("ParseJSON: %v", err)
			}
			if o.Score != tc.want {
				t.Fatalf("score: got %d want %d", o.Score, tc.want)
			}
		})
	}
}

func TestParseJSON_Rejections(t *testing.T) {
	t.Parallel()

	var o map[string]any
	if err := ParseJSON("  ", &o); err == nil {
		t.Fatalf("empty: expected error")
	}
	if err := ParseJSON("no json here", &o); err == nil {
		t.Fatalf("no object: expected error")
	}
	if err := ParseJSON(`{"score":`, &o); err == nil {
		t.Fatalf("truncated: expected error")
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(stubProvider{name: "Claude"})

	p, ok := r.Get(" claude ")
	if !ok {
		t.Fatalf("Get: not found")
	}
	if p.Name() != "Claude" {
		t.Fatalf("Name: got %q", p.Name())
	}

	if _, ok := r.Get("openai"); ok {
		t.Fatalf("Get: expected miss")
	}
	if _, ok := r.Get(""); ok {
		t.Fatalf("Get empty name: expected miss")
	}

	var nilReg *Registry
	nilReg.Register(stubProvider{name: "x"})
	if _, ok := nilReg.Get("x"); ok {
		t.Fatalf("nil registry: expected miss")
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		LLM: config.LLMConfig{
			Providers: map[string]config.ProviderConfig{
				"claude": {APIKey: "k1"},
				"openai": {APIKey: "k2"},
			},
		},
	}

	reg, err := NewRegistryFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewRegistryFromConfig: %v", err)
	}
	if _, ok := reg.Get("claude"); !ok {
		t.Fatalf("claude not registered")
	}
	if _, ok := reg.Get("openai"); !ok {
		t.Fatalf("openai not registered")
	}

	cfg.LLM.Providers["mistral"] = config.ProviderConfig{APIKey: "k3"}
	_, err = NewRegistryFromConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("unknown provider: got %v", err)
	}
}

func TestDefaultProviderFromConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		LLM: config.LLMConfig{
			DefaultProvider: "claude",
			Providers: map[string]config.ProviderConfig{
				"claude": {APIKey: "k1"},
			},
		},
	}

	p, err := DefaultProviderFromConfig(cfg)
	if err != nil {
		t.Fatalf("DefaultProviderFromConfig: %v", err)
	}
	if p.Name() != "claude" {
		t.Fatalf("Name: got %q", p.Name())
	}

	// Single configured provider wins even when the default name misses.
	cfg.LLM.DefaultProvider = "openai"
	p, err = DefaultProviderFromConfig(cfg)
	if err != nil {
		t.Fatalf("DefaultProviderFromConfig fallback: %v", err)
	}
	if p.Name() != "claude" {
		t.Fatalf("fallback Name: got %q", p.Name())
	}

	cfg.LLM.Providers["openai"] = config.ProviderConfig{APIKey: "k2"}
	cfg.LLM.DefaultProvider = "mistral"
	_, err = DefaultProviderFromConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("ambiguous default: got %v", err)
	}
}

func TestResponseFiltered(t *testing.T) {
	t.Parallel()

	if (&Response{StopReason: "stop"}).Filtered() {
		t.Fatalf("Filtered: stop must not count")
	}
	if !(&Response{StopReason: "content_filter"}).Filtered() {
		t.Fatalf("Filtered: content_filter must count")
	}
	var nilResp *Response
	if nilResp.Filtered() {
		t.Fatalf("Filtered on nil: expected false")
	}
}
