// Package mock provides a test double for the grammar.Checker interface.
package mock

import (
	"context"
	"sync"

	"github.com/lingoloop/lingoloop/pkg/provider/grammar"
)

// CheckCall records a single invocation of Check.
type CheckCall struct {
	Text     string
	Language string
}

// Checker is a mock implementation of grammar.Checker.
type Checker struct {
	mu sync.Mutex

	// CheckResult is returned by Check.
	CheckResult []grammar.Match

	// CheckErr, if non-nil, is returned as the error from Check.
	CheckErr error

	// CheckCalls records every invocation of Check in order.
	CheckCalls []CheckCall
}

// Check records the call and returns CheckResult, CheckErr.
func (c *Checker) Check(_ context.Context, text, language string) ([]grammar.Match, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CheckCalls = append(c.CheckCalls, CheckCall{Text: text, Language: language})
	if c.CheckErr != nil {
		return nil, c.CheckErr
	}
	out := make([]grammar.Match, len(c.CheckResult))
	copy(out, c.CheckResult)
	return out, nil
}

// Calls returns the number of recorded Check invocations. Thread-safe.
func (c *Checker) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.CheckCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (c *Checker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CheckCalls = nil
}

var _ grammar.Checker = (*Checker)(nil)
