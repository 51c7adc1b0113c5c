// Package google provides a Google Cloud Speech-to-Text provider backed by the
// v1 REST API (POST /v1/speech:recognize). It implements the stt.Provider
// interface.
//
// speech:recognize is synchronous and accepts recordings up to one minute.
// Results for consecutive portions of the audio are joined with spaces; the
// first (most likely) alternative of each result is used.
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
	"strconv"
	"strings"
	"time"

	"github.com/lingoloop/lingoloop/pkg/provider/stt"
)

const (
	defaultBaseURL  = "https://speech.googleapis.com"
	defaultLanguage = "en-US"
	defaultTimeout  = 30 * time.Second
	maxErrorBody    = 512
)

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithModel selects a recognition model (e.g., "latest_short").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language used when a request carries none.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements stt.Provider backed by Google Cloud Speech-to-Text.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("google stt: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- wire types ----

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  recognitionAudio  `json:"audio"`
}

type recognitionConfig struct {
	Encoding              string `json:"encoding,omitempty"`
	SampleRateHertz       int    `json:"sampleRateHertz,omitempty"`
	LanguageCode          string `json:"languageCode"`
	Model                 string `json:"model,omitempty"`
	EnableWordTimeOffsets bool   `json:"enableWordTimeOffsets"`
	EnableWordConfidence  bool   `json:"enableWordConfidence"`
}

type recognitionAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []alternative `json:"alternatives"`
		LanguageCode string        `json:"languageCode"`
	} `json:"results"`
}

type alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Words      []struct {
		Word       string  `json:"word"`
		StartTime  string  `json:"startTime"`
		EndTime    string  `json:"endTime"`
		Confidence float64 `json:"confidence"`
	} `json:"words"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Transcribe sends req to speech:recognize and returns the joined transcript.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("google stt: audio must not be empty")
	}
	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("google stt: recognize: %w", err)
	}

	q := url.Values{"key": {p.apiKey}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/speech:recognize?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("google stt: recognize: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("google stt: recognize HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Error.Message != "" {
			return nil, fmt.Errorf("google stt: recognize: unexpected status %d (%s): %s", resp.StatusCode, ae.Error.Status, ae.Error.Message)
		}
		return nil, fmt.Errorf("google stt: recognize: unexpected status %d", resp.StatusCode)
	}

	var out recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("google stt: recognize decode: %w", err)
	}
	return toTranscript(out), nil
}

func (p *Provider) buildRequest(req stt.Request) recognizeRequest {
	enc := req.Encoding
	if enc == "" {
		enc = stt.EncodingLinear16
	}
	lang := req.LanguageCode
	if lang == "" {
		lang = p.language
	}
	return recognizeRequest{
		Config: recognitionConfig{
			Encoding:              string(enc),
			SampleRateHertz:       req.SampleRate,
			LanguageCode:          lang,
			Model:                 p.model,
			EnableWordTimeOffsets: true,
			EnableWordConfidence:  true,
		},
		Audio: recognitionAudio{Content: base64.StdEncoding.EncodeToString(req.Audio)},
	}
}

// toTranscript joins the first alternative of every result. Confidence is the
// mean of the per-result confidences.
func toTranscript(out recognizeResponse) *stt.Transcript {
	tr := &stt.Transcript{}
	var parts []string
	var confSum float64
	var n int
	for _, r := range out.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if text := strings.TrimSpace(alt.Transcript); text != "" {
			parts = append(parts, text)
		}
		confSum += alt.Confidence
		n++
		if tr.Language == "" {
			tr.Language = r.LanguageCode
		}
		for _, w := range alt.Words {
			tr.Words = append(tr.Words, stt.WordDetail{
				Word:       w.Word,
				Start:      parseOffset(w.StartTime),
				End:        parseOffset(w.EndTime),
				Confidence: w.Confidence,
			})
		}
	}
	tr.Text = strings.Join(parts, " ")
	if n > 0 {
		tr.Confidence = confSum / float64(n)
	}
	return tr
}

// parseOffset parses a protobuf Duration in JSON form ("1.500s").
func parseOffset(s string) time.Duration {
	secs, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
