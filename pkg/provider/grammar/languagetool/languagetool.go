// Package languagetool provides a grammar.Checker backed by the LanguageTool
// HTTP API (POST /v2/check). It works against the public service at
// api.languagetool.org or a self-hosted server.
//
// LanguageTool reports offsets in UTF-16 code units. They are converted to
// byte offsets of the UTF-8 input before being returned.
package languagetool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/lingoloop/lingoloop/pkg/provider/grammar"
)

const (
	defaultBaseURL  = "https://api.languagetool.org"
	defaultLanguage = "en-US"
	defaultTimeout  = 10 * time.Second
	maxErrorBody    = 512
)

// Compile-time interface assertion.
var _ grammar.Checker = (*Checker)(nil)

// Option is a functional option for configuring a Checker.
type Option func(*Checker)

// WithBaseURL overrides the API base URL, e.g. for a self-hosted server.
func WithBaseURL(u string) Option {
	return func(c *Checker) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithLanguage sets the language used when Check is called without one.
func WithLanguage(lang string) Option {
	return func(c *Checker) {
		c.language = lang
	}
}

// WithCredentials sets the username and API key of a LanguageTool Premium
// account.
func WithCredentials(username, apiKey string) Option {
	return func(c *Checker) {
		c.username = username
		c.apiKey = apiKey
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		c.httpClient.Timeout = d
	}
}

// Checker implements grammar.Checker against a LanguageTool server.
type Checker struct {
	baseURL    string
	language   string
	username   string
	apiKey     string
	httpClient *http.Client
}

// New creates a Checker. With no options it targets the public API in en-US.
func New(opts ...Option) *Checker {
	c := &Checker{
		baseURL:    defaultBaseURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type checkResponse struct {
	Matches []struct {
		Message      string `json:"message"`
		Offset       int    `json:"offset"`
		Length       int    `json:"length"`
		Replacements []struct {
			Value string `json:"value"`
		} `json:"replacements"`
		Rule struct {
			ID string `json:"id"`
		} `json:"rule"`
	} `json:"matches"`
}

// Check implements grammar.Checker.
func (c *Checker) Check(ctx context.Context, text, language string) ([]grammar.Match, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("languagetool: text must not be empty")
	}
	if language == "" {
		language = c.language
	}

	form := url.Values{
		"text":     {text},
		"language": {language},
	}
	if c.username != "" && c.apiKey != "" {
		form.Set("username", c.username)
		form.Set("apiKey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/check", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("languagetool: check: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("languagetool: check HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("languagetool: check: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("languagetool: check decode: %w", err)
	}

	matches := make([]grammar.Match, 0, len(out.Matches))
	for _, m := range out.Matches {
		start := byteOffset(text, m.Offset)
		end := byteOffset(text, m.Offset+m.Length)
		gm := grammar.Match{
			Offset:  start,
			Length:  end - start,
			Message: m.Message,
			RuleID:  m.Rule.ID,
		}
		for _, r := range m.Replacements {
			gm.Replacements = append(gm.Replacements, r.Value)
		}
		matches = append(matches, gm)
	}
	return matches, nil
}

// byteOffset converts a UTF-16 code-unit offset into a byte offset of text.
// Offsets past the end clamp to len(text).
func byteOffset(text string, units int) int {
	n := 0
	for i, r := range text {
		if n >= units {
			return i
		}
		n += utf16.RuneLen(r)
	}
	return len(text)
}
