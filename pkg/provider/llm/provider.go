// Package llm defines the Provider interface for generative text backends.
//
// The analysis pipelines only ever issue a single self-contained prompt and
// parse the reply, so the interface is deliberately narrow: one blocking
// completion call. [Generate] wraps the common single-prompt case.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse is returned by [Generate] when the backend answers with no
// text at all.
var ErrEmptyResponse = errors.New("llm: empty response")

// Provider is the abstraction over any generative text backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Generate sends prompt as a single user message and returns the reply text.
func Generate(ctx context.Context, p Provider, prompt string) (string, error) {
	resp, err := p.Complete(ctx, Request{
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Content, nil
}
