// Package mock provides a test double for the ocr.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/lingoloop/lingoloop/pkg/provider/ocr"
)

// Provider is a mock implementation of ocr.Provider.
type Provider struct {
	mu sync.Mutex

	// DetectTextResult is returned by DetectText.
	DetectTextResult string

	// DetectTextErr, if non-nil, is returned as the error from DetectText.
	DetectTextErr error

	// DetectTextCalls records the image passed to every DetectText call.
	DetectTextCalls [][]byte
}

// DetectText records the call and returns DetectTextResult, DetectTextErr.
func (p *Provider) DetectText(_ context.Context, image []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DetectTextCalls = append(p.DetectTextCalls, image)
	return p.DetectTextResult, p.DetectTextErr
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DetectTextCalls = nil
}

var _ ocr.Provider = (*Provider)(nil)
