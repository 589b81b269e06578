// Package llm abstracts the language-model backend behind a small
// completion interface and provides the Anthropic implementation.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Client is the interface for interacting with an LLM.
type Client interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// CallErrorKind classifies a failed backend call.
type CallErrorKind string

const (
	CallErrorNetwork     CallErrorKind = "network"
	CallErrorTimeout     CallErrorKind = "timeout"
	CallErrorRateLimited CallErrorKind = "rate_limited"
	CallErrorAuth        CallErrorKind = "auth"
)

// CallError wraps a backend failure with its classification. Auth errors
// are permanent; the rest are transient and retried up to the per-call
// budget before surfacing.
type CallError struct {
	Kind CallErrorKind
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("model call failed (%s): %v", e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// IsCallError reports whether err is a backend call failure and returns it.
func IsCallError(err error) (*CallError, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
