// Package llm abstracts LLM transport behind a neutral client
// interface. Provider specifics live in the langchaingo adapter; the
// generator only sees Request and Response.
package llm

import "context"

// Request is a provider-independent generation request.
type Request struct {
	Prompt        string
	ModelID       string
	MaxTokens     int
	Temperature   float64
	TopP          float64
	StopSequences []string
}

// Usage reports token accounting when the provider exposes it.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the provider-independent generation result.
type Response struct {
	Content    string
	ModelID    string
	Usage      Usage
	StopReason string
}

// Client generates text. Implementations must be safe for concurrent
// use; orchestrator workers share one client.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}
