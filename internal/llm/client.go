// Package llm provides LLM client implementations.
package llm

import "context"

// Message represents a chat message for the LLM.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator is the narrow surface the routing layer depends on: a
// conversation plus a system prompt in, raw model text out. Timeout and
// transport retry policy belong to the implementation, not the caller.
type Generator interface {
	// Generate sends the conversation and returns the model's raw reply.
	Generate(ctx context.Context, messages []Message, systemPrompt string) (string, error)
}

// Client is implemented by full provider clients.
type Client interface {
	Generator

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
