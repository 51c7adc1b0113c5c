package synth

import (
	"context"
	"strings"
	"time"

	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/pkg/provider/tts"
)

// CatalogueVoice is one selectable English voice.
type CatalogueVoice struct {
	ID string `json:"id"`

	// Name is the last dash-separated part of ID (e.g. "D").
	Name string `json:"name"`

	Accent   string `json:"accent"`
	Gender   string `json:"gender"`
	Language string `json:"language"`
}

var accents = map[string]string{
	"en-US": "American",
	"en-GB": "British",
	"en-AU": "Australian",
	"en-IN": "Indian",
}

// Accent names the accent of an English locale. Locales without a name are
// returned unchanged.
func Accent(locale string) string {
	if a, ok := accents[locale]; ok {
		return a
	}
	return locale
}

func genderLabel(g tts.Gender) string {
	switch g {
	case tts.GenderMale:
		return "Male"
	case tts.GenderFemale:
		return "Female"
	default:
		return "Neutral"
	}
}

// Catalogue lists the engine's English voices in engine order.
func (o *Orchestrator) Catalogue(ctx context.Context) ([]CatalogueVoice, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	voices, err := o.provider.ListVoices(callCtx, "en")
	o.metrics.ObserveProvider(ctx, o.providerName, "tts", start, err)
	if err != nil {
		return nil, apperr.ProviderCall(o.providerName, err)
	}

	out := make([]CatalogueVoice, 0, len(voices))
	for _, v := range voices {
		if len(v.LanguageCodes) == 0 || !hasEnglish(v.LanguageCodes) {
			continue
		}
		id := v.ID
		if id == "" {
			id = v.Name
		}
		lang := v.LanguageCodes[0]
		out = append(out, CatalogueVoice{
			ID:       id,
			Name:     id[strings.LastIndex(id, "-")+1:],
			Accent:   Accent(lang),
			Gender:   genderLabel(v.Gender),
			Language: lang,
		})
	}
	return out, nil
}

func hasEnglish(codes []string) bool {
	for _, c := range codes {
		if strings.HasPrefix(c, "en-") {
			return true
		}
	}
	return false
}
