// Package google provides a Google Cloud Text-to-Speech provider backed by the
// v1 REST API. It implements the tts.Provider interface.
//
// Requests are authenticated with an API key. Synthesis uses
// POST /v1/text:synthesize, whose response carries the encoded audio as a
// base64 string; the voice catalogue comes from GET /v1/voices.
package google

import (
	"bytes"
	"context"
	"encoding/base64"
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
	defaultBaseURL = "https://texttospeech.googleapis.com"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the HTTP client, e.g. with an OAuth2-authorised one.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Provider backed by Google Cloud Text-to-Speech.
// It is safe for concurrent use.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("google tts: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- wire types ----

type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       voiceSelection `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name,omitempty"`
	SSMLGender   string `json:"ssmlGender,omitempty"`
}

type audioConfig struct {
	AudioEncoding string  `json:"audioEncoding"`
	SpeakingRate  float64 `json:"speakingRate,omitempty"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

type voicesResponse struct {
	Voices []googleVoice `json:"voices"`
}

type googleVoice struct {
	LanguageCodes          []string `json:"languageCodes"`
	Name                   string   `json:"name"`
	SSMLGender             string   `json:"ssmlGender"`
	NaturalSampleRateHertz int      `json:"naturalSampleRateHertz"`
}

// apiError is the error envelope returned by Google APIs.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ---- Synthesize ----

// Synthesize renders req.Text and returns the decoded audio bytes.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("google tts: text must not be empty")
	}
	if req.Locale == "" && req.VoiceID == "" {
		return nil, errors.New("google tts: locale or voice id required")
	}

	body, err := json.Marshal(buildSynthesizeRequest(req))
	if err != nil {
		return nil, fmt.Errorf("google tts: synthesize: %w", err)
	}
	var out synthesizeResponse
	if err := p.do(ctx, http.MethodPost, "/v1/text:synthesize", nil, body, &out); err != nil {
		return nil, fmt.Errorf("google tts: synthesize: %w", err)
	}
	if out.AudioContent == "" {
		return nil, errors.New("google tts: synthesize: empty audio content")
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("google tts: synthesize: decode audio: %w", err)
	}
	return audio, nil
}

// buildSynthesizeRequest maps a tts.Request onto the REST body. The locale is
// derived from the voice name when only a voice is given.
func buildSynthesizeRequest(req tts.Request) synthesizeRequest {
	locale := req.Locale
	if locale == "" {
		locale = LocaleFromVoice(req.VoiceID)
	}
	enc := req.Encoding
	if enc == "" {
		enc = tts.EncodingMP3
	}
	sel := voiceSelection{LanguageCode: locale, Name: req.VoiceID}
	if req.VoiceID == "" {
		gender := req.Gender
		if gender == "" {
			gender = tts.GenderNeutral
		}
		sel.SSMLGender = string(gender)
	}
	return synthesizeRequest{
		Input:       synthesisInput{Text: req.Text},
		Voice:       sel,
		AudioConfig: audioConfig{AudioEncoding: string(enc), SpeakingRate: req.SpeakingRate},
	}
}

// LocaleFromVoice returns the locale prefix of a Google voice name:
// "en-US-Standard-D" → "en-US". It returns "" when the name has fewer than two
// dash-separated parts.
func LocaleFromVoice(voiceID string) string {
	parts := strings.Split(voiceID, "-")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return parts[0] + "-" + parts[1]
}

// ---- ListVoices ----

// ListVoices returns the voices supporting languageCode, or all voices when
// languageCode is empty.
func (p *Provider) ListVoices(ctx context.Context, languageCode string) ([]tts.Voice, error) {
	q := url.Values{}
	if languageCode != "" {
		q.Set("languageCode", languageCode)
	}
	var out voicesResponse
	if err := p.do(ctx, http.MethodGet, "/v1/voices", q, nil, &out); err != nil {
		return nil, fmt.Errorf("google tts: list voices: %w", err)
	}
	voices := make([]tts.Voice, 0, len(out.Voices))
	for _, v := range out.Voices {
		voices = append(voices, tts.Voice{
			ID:            v.Name,
			Name:          v.Name,
			LanguageCodes: v.LanguageCodes,
			Gender:        parseGender(v.SSMLGender),
			Provider:      "google",
			Metadata: map[string]string{
				"natural_sample_rate_hz": fmt.Sprint(v.NaturalSampleRateHertz),
			},
		})
	}
	return voices, nil
}

func parseGender(s string) tts.Gender {
	switch s {
	case "MALE":
		return tts.GenderMale
	case "FEMALE":
		return tts.GenderFemale
	default:
		return tts.GenderNeutral
	}
}

// ---- transport ----

// do issues one API call and decodes a JSON response into out.
func (p *Provider) do(ctx context.Context, method, path string, q url.Values, body []byte, out any) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("key", p.apiKey)
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path+"?"+q.Encode(), rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var ae apiError
	if json.Unmarshal(raw, &ae) == nil && ae.Error.Message != "" {
		return fmt.Errorf("unexpected status %d (%s): %s", resp.StatusCode, ae.Error.Status, ae.Error.Message)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
