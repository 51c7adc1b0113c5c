package synth

import (
	"testing"

	"github.com/lingoloop/lingoloop/internal/langseg"
	"github.com/lingoloop/lingoloop/pkg/provider/tts"
)

func TestVoiceTable_Resolve(t *testing.T) {
	v := DefaultVoices()
	tests := []struct {
		tag  langseg.Tag
		want string
	}{
		{langseg.English, "en-US"},
		{langseg.French, "fr-FR"},
		{langseg.Spanish, "es-ES"},
		{langseg.German, "de-DE"},
		{langseg.Tag("it"), "en-US"},
	}
	for _, tt := range tests {
		if got := v.Resolve(tt.tag).Locale; got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.tag, got, tt.want)
		}
	}
}

func TestVoiceTable_ResolveWithoutEnglishEntry(t *testing.T) {
	v := VoiceTable{langseg.French: {Locale: "fr-CA"}}
	if got := v.Resolve(langseg.German).Locale; got != "en-US" {
		t.Errorf("expected built-in English fallback, got %q", got)
	}
}

func TestVoiceTable_Validate(t *testing.T) {
	if err := DefaultVoices().Validate(); err != nil {
		t.Errorf("default table invalid: %v", err)
	}
	if err := (VoiceTable{langseg.French: {}}).Validate(); err == nil {
		t.Error("expected error for missing locale")
	}
	if err := (VoiceTable{langseg.French: {Locale: "fr-FR", Gender: tts.Gender("robot")}}).Validate(); err == nil {
		t.Error("expected error for invalid gender")
	}
}

func TestLocaleFromVoiceID(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"en-US-Standard-D", "en-US", true},
		{"fr-FR", "fr-FR", true},
		{"english", "", false},
		{"", "", false},
		{"-US-x", "", false},
	}
	for _, tt := range tests {
		got, ok := LocaleFromVoiceID(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("LocaleFromVoiceID(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
