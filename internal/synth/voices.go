package synth

import (
	"fmt"
	"strings"

	"github.com/lingoloop/lingoloop/internal/langseg"
	"github.com/lingoloop/lingoloop/pkg/provider/tts"
)

// VoiceProfile is how one language is voiced.
type VoiceProfile struct {
	// Locale is the BCP-47 locale passed to the speech engine (e.g. "fr-FR").
	Locale string

	// VoiceID selects a specific voice. Empty lets the engine choose one for
	// Locale and Gender.
	VoiceID string

	Gender tts.Gender

	// SpeakingRate overrides the request rate for this language. Zero keeps
	// the request rate.
	SpeakingRate float64
}

// VoiceTable maps language tags to voice profiles.
type VoiceTable map[langseg.Tag]VoiceProfile

// DefaultVoices returns the built-in table: one neutral voice per supported
// language.
func DefaultVoices() VoiceTable {
	return VoiceTable{
		langseg.English: {Locale: "en-US", Gender: tts.GenderNeutral},
		langseg.French:  {Locale: "fr-FR", Gender: tts.GenderNeutral},
		langseg.Spanish: {Locale: "es-ES", Gender: tts.GenderNeutral},
		langseg.German:  {Locale: "de-DE", Gender: tts.GenderNeutral},
	}
}

// Resolve returns the profile for tag. Unknown tags get the English entry,
// and a table without an English entry falls back to the built-in one.
func (t VoiceTable) Resolve(tag langseg.Tag) VoiceProfile {
	if p, ok := t[tag]; ok {
		return p
	}
	if p, ok := t[langseg.English]; ok {
		return p
	}
	return DefaultVoices()[langseg.English]
}

// Merge returns a copy of t with the entries of override applied on top.
func (t VoiceTable) Merge(override VoiceTable) VoiceTable {
	out := make(VoiceTable, len(t)+len(override))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Validate reports entries without a locale.
func (t VoiceTable) Validate() error {
	for tag, p := range t {
		if p.Locale == "" {
			return fmt.Errorf("synth: voice for %q has no locale", tag)
		}
		if p.Gender != "" && !p.Gender.IsValid() {
			return fmt.Errorf("synth: voice for %q has invalid gender %q", tag, p.Gender)
		}
	}
	return nil
}

// LocaleFromVoiceID derives the locale from a voice id of the form
// "<lang>-<REGION>-<name>", e.g. "en-US-Standard-D" → "en-US". It reports
// false when the id has fewer than two dash-separated parts.
func LocaleFromVoiceID(voiceID string) (string, bool) {
	parts := strings.Split(voiceID, "-")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return parts[0] + "-" + parts[1], true
}
