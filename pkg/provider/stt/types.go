package stt

import "time"

// Encoding is a hint describing how Request.Audio is encoded.
type Encoding string

const (
	// EncodingLinear16 is uncompressed 16-bit signed little-endian PCM.
	EncodingLinear16 Encoding = "LINEAR16"
	EncodingFLAC     Encoding = "FLAC"
	EncodingMP3      Encoding = "MP3"
	EncodingOggOpus  Encoding = "OGG_OPUS"
	EncodingWebMOpus Encoding = "WEBM_OPUS"
)

// IsValid reports whether e is a known encoding.
func (e Encoding) IsValid() bool {
	switch e {
	case EncodingLinear16, EncodingFLAC, EncodingMP3, EncodingOggOpus, EncodingWebMOpus:
		return true
	}
	return false
}

// Request is a single transcription call.
type Request struct {
	// Audio is the complete recording.
	Audio []byte

	// Encoding describes Audio. Zero means LINEAR16.
	Encoding Encoding

	// SampleRate in Hz. Required for LINEAR16, optional otherwise.
	SampleRate int

	// LanguageCode is the BCP-47 recognition language (e.g., "en-US").
	LanguageCode string
}

// Duration returns the playback length of a mono LINEAR16 recording, or zero
// for other encodings and unknown sample rates.
func (r Request) Duration() time.Duration {
	if (r.Encoding != "" && r.Encoding != EncodingLinear16) || r.SampleRate <= 0 {
		return 0
	}
	samples := len(r.Audio) / 2
	return time.Duration(samples) * time.Second / time.Duration(r.SampleRate)
}

// Transcript is the recognised text of one recording.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the
	// provider does not report confidence.
	Confidence float64

	// Words contains per-word detail when available.
	Words []WordDetail

	// Language is the language the provider recognised, when reported.
	Language string
}

// WordDetail holds per-word timing and confidence from the STT provider.
type WordDetail struct {
	// Word is the transcribed word.
	Word string

	// Start is the word's start offset relative to the recording start.
	Start time.Duration

	// End is the word's end offset relative to the recording start.
	End time.Duration

	// Confidence is the per-word confidence score (0.0–1.0).
	Confidence float64
}
