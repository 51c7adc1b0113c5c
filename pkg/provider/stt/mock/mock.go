// Package mock provides a test double for the stt.Provider interface.
//
// Example:
//
//	p := &mock.Provider{TranscribeResult: &stt.Transcript{Text: "hello there"}}
//	tr, _ := p.Transcribe(ctx, stt.Request{Audio: pcm})
package mock

import (
	"context"
	"sync"

	"github.com/lingoloop/lingoloop/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the request passed to Transcribe.
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// TranscribeResult is returned by Transcribe. A nil result with a nil
	// TranscribeErr yields an empty transcript.
	TranscribeResult *stt.Transcript

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns TranscribeResult, TranscribeErr.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	if p.TranscribeErr != nil {
		return nil, p.TranscribeErr
	}
	if p.TranscribeResult == nil {
		return &stt.Transcript{}, nil
	}
	out := *p.TranscribeResult
	return &out, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
