// Package llm drafts exam questions from lecture text with a language
// model. Providers share one small interface so the generator can run
// against OpenAI-compatible servers, Anthropic, Gemini, or a mock.
package llm

import (
	"context"
	"encoding/json"
)

// Provider sends one prompt to a model and returns its reply.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	ModelID() string
}

// Request describes one model call.
type Request struct {
	System   string
	Messages []Message

	// JSON asks the provider for a JSON object reply without enforcing a
	// schema. Validation is left to the caller.
	JSON bool

	// Schema, when set, is enforced natively where supported and the reply
	// is validated against it.
	Schema *Schema

	MaxTokens   int
	Temperature float64
}

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema is a named JSON schema definition.
type Schema struct {
	Name       string
	Definition map[string]any
}

// Response holds the model output.
type Response struct {
	Content    json.RawMessage
	Usage      Usage
	Model      string
	StopReason string // "end" or "max_tokens"
}

// Usage is the token count of one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
