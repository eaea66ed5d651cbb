// Package llm is the model boundary. The engine and router only ever
// see the Client interface; the concrete OpenAI-compatible client lives
// here and tests inject a mock.
package llm

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client interface {
	// Complete sends a chat completion request and returns the first
	// choice's content.
	Complete(ctx context.Context, messages []Message) (string, error)
}
