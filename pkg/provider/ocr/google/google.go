// Package google provides an ocr.Provider backed by the Google Cloud Vision
// REST API (POST /v1/images:annotate with TEXT_DETECTION), authenticated by
// API key.
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

	"github.com/lingoloop/lingoloop/pkg/provider/ocr"
)

const (
	defaultBaseURL = "https://vision.googleapis.com"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 512
)

// Compile-time interface assertion.
var _ ocr.Provider = (*Provider)(nil)

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

// WithLanguageHints passes BCP-47 language hints to the text detector.
func WithLanguageHints(hints ...string) Option {
	return func(p *Provider) {
		p.hints = hints
	}
}

// Provider implements ocr.Provider backed by Cloud Vision.
type Provider struct {
	apiKey     string
	baseURL    string
	hints      []string
	httpClient *http.Client
}

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("google ocr: apiKey must not be empty")
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

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image        imageContent    `json:"image"`
	Features     []feature       `json:"features"`
	ImageContext *imageContext `json:"imageContext,omitempty"`
}

type imageContent struct {
	Content string `json:"content"`
}

type feature struct {
	Type string `json:"type"`
}

type imageContext struct {
	LanguageHints []string `json:"languageHints"`
}

type annotateResponse struct {
	Responses []struct {
		TextAnnotations []struct {
			Description string `json:"description"`
			Locale      string `json:"locale"`
		} `json:"textAnnotations"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// DetectText implements ocr.Provider. The first text annotation holds the
// full detected text; the rest are per-word boxes and are ignored.
func (p *Provider) DetectText(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("google ocr: image must not be empty")
	}

	ir := imageRequest{
		Image:    imageContent{Content: base64.StdEncoding.EncodeToString(image)},
		Features: []feature{{Type: "TEXT_DETECTION"}},
	}
	if len(p.hints) > 0 {
		ir.ImageContext = &imageContext{LanguageHints: p.hints}
	}
	body, err := json.Marshal(annotateRequest{Requests: []imageRequest{ir}})
	if err != nil {
		return "", fmt.Errorf("google ocr: annotate: %w", err)
	}

	q := url.Values{"key": {p.apiKey}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/images:annotate?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("google ocr: annotate: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("google ocr: annotate HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("google ocr: annotate: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("google ocr: annotate decode: %w", err)
	}
	if len(out.Responses) == 0 {
		return "", nil
	}
	r := out.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return "", fmt.Errorf("google ocr: annotate: %s", r.Error.Message)
	}
	if len(r.TextAnnotations) == 0 {
		return "", nil
	}
	return r.TextAnnotations[0].Description, nil
}
