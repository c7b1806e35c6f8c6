// Package llm is the boundary to the language model provider.
package llm

import (
	"context"
	"errors"
)

// Request is a single-turn generation request.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Generator produces text for a request. Implementations must be safe for
// concurrent use.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

var (
	// ErrEmptyResponse is returned when the provider answers with no text.
	ErrEmptyResponse = errors.New("empty response from model")

	// ErrMaxRetries wraps the last transient failure once retries run out.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// retryableError marks a failure as transient (429, 5xx, transport).
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
