// Package llm defines the streaming chat-completion provider contract
// consumed by the Turn Orchestrator (spec.md §4.5) and concrete
// SSE-based adapters for OpenAI, Anthropic and Google.
package llm

import "context"

// Message is one turn of shared conversation history handed to a
// provider, in provider-agnostic role/content form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Token is one increment of a streamed completion. Done is set on the
// final token delivered for a StreamComplete call, which carries no
// text; Err is set instead of Done when the stream fails mid-flight.
// The channel is closed after either.
type Token struct {
	Text string
	Done bool
	Err  error
}

// Provider streams a chat completion token-by-token so the Turn
// Orchestrator can segment sentences as they arrive rather than waiting
// for the full response.
type Provider interface {
	StreamComplete(ctx context.Context, messages []Message) (<-chan Token, error)
	Name() string
}
