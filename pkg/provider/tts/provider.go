// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a batch speech synthesis service (Google Cloud TTS,
// ElevenLabs) and turns one piece of text into one encoded audio clip. Voice
// selection is explicit per request: the caller resolves locale and voice
// before calling, the provider never guesses a language.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis requests
// may run in parallel, one per inbound request.
type Provider interface {
	// Synthesize renders req.Text with the requested voice and returns the
	// encoded audio bytes in req.Encoding. An empty result with a nil error is
	// never returned; providers report an error instead.
	Synthesize(ctx context.Context, req Request) ([]byte, error)

	// ListVoices returns the voices available for languageCode (a BCP-47 prefix
	// such as "en" or "en-GB"). An empty languageCode lists every voice.
	ListVoices(ctx context.Context, languageCode string) ([]Voice, error)
}
