// Package llm is the provider-neutral completion layer used by page
// generation and the shopping assistant.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Tier picks between the cheap and the high quality model of a provider.
type Tier int

const (
	// Fast is used for validation, intent analysis and product evaluation.
	Fast Tier = iota
	// Quality is used for clarifying questions, page generation and chat.
	Quality
)

func (t Tier) String() string {
	if t == Quality {
		return "quality"
	}
	return "fast"
}

// Message is a conversational turn. Role is "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion.
type Request struct {
	// Operation names the caller in logs and cost records.
	Operation   string
	Tier        Tier
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a single JSON object.
	JSON bool
}

// Response is the text of a completion with its usage.
type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Client completes requests against one provider.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (*Response, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

var (
	// ErrEmptyResponse is returned when the model answered with no content.
	ErrEmptyResponse = eris.New("llm: empty response")
	// ErrInvalidJSON is returned when a JSON answer cannot be decoded.
	ErrInvalidJSON = eris.New("llm: invalid json")
)

// ProviderError reports a failed call to an upstream model provider,
// including calls rejected by an open circuit.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm: %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err came from the model provider rather
// than from decoding its answer.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
