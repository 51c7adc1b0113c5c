package tts

// Gender is the requested voice gender.
type Gender string

const (
	GenderNeutral Gender = "NEUTRAL"
	GenderMale    Gender = "MALE"
	GenderFemale  Gender = "FEMALE"
)

// IsValid reports whether g is a known gender. The zero value is not valid.
func (g Gender) IsValid() bool {
	switch g {
	case GenderNeutral, GenderMale, GenderFemale:
		return true
	}
	return false
}

// Encoding is the audio container/codec of the synthesized clip.
type Encoding string

const (
	EncodingMP3      Encoding = "MP3"
	EncodingLinear16 Encoding = "LINEAR16"
	EncodingOggOpus  Encoding = "OGG_OPUS"
)

// IsValid reports whether e is a known encoding.
func (e Encoding) IsValid() bool {
	switch e {
	case EncodingMP3, EncodingLinear16, EncodingOggOpus:
		return true
	}
	return false
}

// Request is a single synthesis call.
type Request struct {
	// Text is the text to voice. Must be non-empty.
	Text string

	// Locale is the BCP-47 locale of the voice (e.g., "fr-FR").
	Locale string

	// VoiceID is the provider-specific voice name. Empty lets the provider pick
	// a voice matching Locale and Gender.
	VoiceID string

	// Gender is used when VoiceID is empty.
	Gender Gender

	// Encoding selects the output audio format. Zero means MP3.
	Encoding Encoding

	// SpeakingRate scales speed; 1.0 is normal, zero means provider default.
	SpeakingRate float64
}

// Voice describes one entry of a provider's voice catalogue.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// LanguageCodes lists the BCP-47 locales the voice supports, primary first.
	LanguageCodes []string

	// Gender is the voice's reported gender.
	Gender Gender

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Metadata holds provider-specific voice attributes (accent, age, etc.).
	Metadata map[string]string
}
