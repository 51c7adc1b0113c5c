// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service (Google Cloud
// Speech-to-Text or a local whisper.cpp server). One call uploads one complete
// recording and returns its transcript; there is no streaming session.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognises speech in req.Audio. A recording that contains no
	// recognisable speech yields a Transcript with empty Text and a nil error.
	Transcribe(ctx context.Context, req Request) (*Transcript, error)
}
