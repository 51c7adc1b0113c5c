// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs batch text-to-speech REST API. It implements the tts.Provider
// interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lingoloop/lingoloop/pkg/provider/tts"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "eleven_multilingual_v2"
	defaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of an error response is quoted in errors.
	maxErrorBody = 512
)

// outputFormats maps tts encodings to ElevenLabs output_format values.
var outputFormats = map[tts.Encoding]string{
	tts.EncodingMP3:      "mp3_44100_128",
	tts.EncodingLinear16: "pcm_16000",
	tts.EncodingOggOpus:  "opus_48000_64",
}

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_multilingual_v2").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithDefaultVoice sets the voice used when a request carries no VoiceID.
func WithDefaultVoice(voiceID string) Option {
	return func(p *Provider) {
		p.defaultVoice = voiceID
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider backed by the ElevenLabs REST API.
type Provider struct {
	apiKey       string
	model        string
	baseURL      string
	defaultVoice string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- request types ----

// synthesisRequest is the JSON body sent to POST /v1/text-to-speech/{voice}.
type synthesisRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	LanguageCode  string         `json:"language_code,omitempty"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// Synthesize renders req.Text with a single POST and returns the audio body.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = p.defaultVoice
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voice id must not be empty")
	}

	body, err := buildSynthesisRequest(req, p.model)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: synthesize: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.synthesisURL(voiceID, req.Encoding), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: synthesize: %w", err)
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: synthesize HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("elevenlabs: synthesize: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: synthesize read: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("elevenlabs: synthesize: empty audio response")
	}
	return audio, nil
}

// ---- ListVoices ----

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// ListVoices returns all voices available from ElevenLabs for the configured
// API key. ElevenLabs voices are multilingual, so languageCode only filters on
// an explicit "language" label when one is present.
func (p *Provider) ListVoices(ctx context.Context, languageCode string) ([]tts.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices read: %w", err)
	}
	voices, err := parseVoicesResponse(data)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	return filterByLanguage(voices, languageCode), nil
}

// ---- helpers ----

func (p *Provider) synthesisURL(voiceID string, enc tts.Encoding) string {
	q := url.Values{}
	q.Set("output_format", outputFormat(enc))
	return fmt.Sprintf("%s/v1/text-to-speech/%s?%s", p.baseURL, url.PathEscape(voiceID), q.Encode())
}

// outputFormat maps enc to an ElevenLabs output_format, defaulting to MP3.
func outputFormat(enc tts.Encoding) string {
	if f, ok := outputFormats[enc]; ok {
		return f
	}
	return outputFormats[tts.EncodingMP3]
}

// buildSynthesisRequest constructs the JSON body for one synthesis call. The
// language code is the primary subtag of the locale ("fr-FR" → "fr").
func buildSynthesisRequest(req tts.Request, model string) ([]byte, error) {
	lang, _, _ := strings.Cut(req.Locale, "-")
	body := synthesisRequest{
		Text:         req.Text,
		ModelID:      model,
		LanguageCode: strings.ToLower(lang),
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           clampSpeed(req.SpeakingRate),
		},
	}
	return json.Marshal(body)
}

// clampSpeed maps a speaking rate onto ElevenLabs' supported 0.7–1.2 range.
// Zero keeps the server default.
func clampSpeed(rate float64) float64 {
	switch {
	case rate == 0:
		return 0
	case rate < 0.7:
		return 0.7
	case rate > 1.2:
		return 1.2
	default:
		return rate
	}
}

// parseVoicesResponse parses a raw JSON byte slice (matching the ElevenLabs
// /v1/voices response) into a slice of Voice values.
func parseVoicesResponse(data []byte) ([]tts.Voice, error) {
	var vr voicesResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, err
	}
	voices := make([]tts.Voice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		meta := make(map[string]string, len(v.Labels)+1)
		for k, val := range v.Labels {
			meta[k] = val
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		voice := tts.Voice{
			ID:       v.VoiceID,
			Name:     v.Name,
			Provider: "elevenlabs",
			Gender:   parseGender(v.Labels["gender"]),
			Metadata: meta,
		}
		if lang := v.Labels["language"]; lang != "" {
			voice.LanguageCodes = []string{lang}
		}
		voices = append(voices, voice)
	}
	return voices, nil
}

func parseGender(label string) tts.Gender {
	switch strings.ToLower(label) {
	case "male":
		return tts.GenderMale
	case "female":
		return tts.GenderFemale
	default:
		return tts.GenderNeutral
	}
}

// filterByLanguage keeps voices without a language label and those whose
// label has languageCode as prefix.
func filterByLanguage(voices []tts.Voice, languageCode string) []tts.Voice {
	if languageCode == "" {
		return voices
	}
	out := voices[:0:0]
	for _, v := range voices {
		if len(v.LanguageCodes) == 0 || strings.HasPrefix(strings.ToLower(v.LanguageCodes[0]), strings.ToLower(languageCode)) {
			out = append(out, v)
		}
	}
	return out
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
