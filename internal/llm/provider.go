package llm

import "context"

// Provider is a chat-completion backend. The gate tooling only ever needs
// single-turn text completion: judge scoring and safety probing.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Messages    []Message
	System      string
	MaxTokens   int
	Temperature float64
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type Response struct {
	Text       string
	Usage      Usage
	StopReason string
}

// Filtered reports whether the provider's content filter stopped the
// completion rather than the model finishing normally.
func (r *Response) Filtered() bool {
	return r != nil && r.StopReason == "content_filter"
}
