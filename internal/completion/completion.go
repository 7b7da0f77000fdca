package completion

import (
	"context"
	"time"
)

// Request describes one prompt sent to a text-completion service.
type Request struct {
	// Model is the model identity understood by the endpoint.
	Model string
	// Prompt is the full user prompt.
	Prompt string
	// MaxTokens caps the length of the answer. Zero leaves it to the implementation.
	MaxTokens int
	// Schema optionally asks for a JSON answer matching the schema.
	Schema *Schema
}

// Schema is a named JSON schema for structured answers.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Completer turns a prompt into text. Retries, pacing and auth are its concern.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Options configure an OpenAI-compatible endpoint.
type Options struct {
	BaseURL string
	APIKey  string
	// User and Password, when set, are exchanged for a bearer token at
	// BaseURL + "/token".
	User     string
	Password string

	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}
