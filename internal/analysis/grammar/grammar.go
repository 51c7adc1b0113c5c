// Package grammar checks text for grammar and spelling errors.
//
// The primary tier prompts a generative model for a JSON array of
// corrections; the fallback tier asks a rule-based checker such as
// LanguageTool. Both are mapped to [analysis.Finding] values with byte
// offsets into the checked text.
package grammar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lingoloop/lingoloop/internal/analysis"
	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/internal/extract"
	"github.com/lingoloop/lingoloop/internal/observe"
	"github.com/lingoloop/lingoloop/internal/resilience"
	rules "github.com/lingoloop/lingoloop/pkg/provider/grammar"
	"github.com/lingoloop/lingoloop/pkg/provider/llm"
)

// Task is the pipeline task name.
const Task = "grammar"

// Finding id prefixes per tier.
const (
	idPrefixModel = "gc_ai_"
	idPrefixRules = "gc_lt_"
)

const defaultLanguage = "en-US"

const promptTemplate = `Analyze the following text for grammatical errors, spelling mistakes, and awkward phrasing.
Provide corrections and brief explanations.
Format your response as a JSON list, where each item is an object with these exact keys:
"id" (a unique string),
"error" (the incorrect word or phrase, copied exactly from the text),
"correction" (the suggested correction),
"explanation" (a brief explanation of the error),
"startIndex" (0-based start index of the error in the original text),
"endIndex" (0-based end index of the error in the original text, exclusive).

If there are no errors, return an empty JSON list: [].
The text is written in %s.

Text to analyze:
%q`

// Option configures a [Checker].
type Option func(*Checker)

// WithModel sets the primary tier. name labels logs and metrics.
func WithModel(p llm.Provider, name string) Option {
	return func(c *Checker) {
		c.model, c.modelName = p, name
	}
}

// WithRules sets the fallback tier. name labels logs and metrics.
func WithRules(r rules.Checker, name string) Option {
	return func(c *Checker) {
		c.rules, c.rulesName = r, name
	}
}

// WithTimeouts bounds the primary and fallback calls. Zero leaves a tier
// unbounded beyond the request context.
func WithTimeouts(model, rules time.Duration) Option {
	return func(c *Checker) {
		c.modelTimeout, c.rulesTimeout = model, rules
	}
}

// WithBreaker guards the primary tier with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Checker) {
		c.breaker = b
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// Checker runs the grammar pipeline. Either tier may be absent. It is safe
// for concurrent use.
type Checker struct {
	model        llm.Provider
	modelName    string
	modelTimeout time.Duration

	rules        rules.Checker
	rulesName    string
	rulesTimeout time.Duration

	breaker *resilience.Breaker
	metrics *observe.Metrics
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{modelName: "llm", rulesName: "languagetool"}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Check analyses text. language is a BCP-47 tag; empty means en-US. Blank
// text fails with [apperr.ErrValidation] before any tier runs.
func (c *Checker) Check(ctx context.Context, text, language string) (analysis.Outcome[[]analysis.Finding], error) {
	if strings.TrimSpace(text) == "" {
		return analysis.Outcome[[]analysis.Finding]{}, apperr.Validation("text is required")
	}
	if language == "" {
		language = defaultLanguage
	}

	var primary, fallback analysis.Tier[[]analysis.Finding]
	if c.model != nil {
		primary = analysis.Tier[[]analysis.Finding]{
			Provider: c.modelName,
			Timeout:  c.modelTimeout,
			Breaker:  c.breaker,
			Run: func(ctx context.Context) ([]analysis.Finding, error) {
				return c.checkWithModel(ctx, text, language)
			},
		}
	}
	if c.rules != nil {
		fallback = analysis.Tier[[]analysis.Finding]{
			Provider: c.rulesName,
			Timeout:  c.rulesTimeout,
			Run: func(ctx context.Context) ([]analysis.Finding, error) {
				return c.checkWithRules(ctx, text, language)
			},
		}
	}
	return analysis.Run(ctx, analysis.Pipeline{Task: Task, Metrics: c.metrics}, primary, fallback)
}

// modelCorrection is one item of the model's JSON array. Pointers detect
// missing fields.
type modelCorrection struct {
	ID          string  `json:"id"`
	Error       *string `json:"error"`
	Correction  *string `json:"correction"`
	Explanation string  `json:"explanation"`
	StartIndex  *int    `json:"startIndex"`
	EndIndex    *int    `json:"endIndex"`
}

func (c *Checker) checkWithModel(ctx context.Context, text, language string) ([]analysis.Finding, error) {
	raw, err := llm.Generate(ctx, c.model, fmt.Sprintf(promptTemplate, language, text))
	if err != nil {
		return nil, apperr.ProviderCall(c.modelName, err)
	}
	var items []modelCorrection
	if err := extract.Decode(raw, extract.Array, &items); err != nil {
		return nil, err
	}
	return parseModelCorrections(text, items)
}

// parseModelCorrections validates items and maps them to findings. A single
// invalid item rejects the whole answer.
func parseModelCorrections(text string, items []modelCorrection) ([]analysis.Finding, error) {
	findings := make([]analysis.Finding, 0, len(items))
	cursor := 0
	for i, it := range items {
		if it.Error == nil || strings.TrimSpace(*it.Error) == "" {
			return nil, apperr.Malformed("correction %d has no error text", i)
		}
		if it.Correction == nil {
			return nil, apperr.Malformed("correction %d has no correction", i)
		}
		f := analysis.Finding{
			ID:          it.ID,
			Kind:        analysis.KindGrammar,
			Text:        *it.Error,
			Suggestion:  *it.Correction,
			Explanation: it.Explanation,
			Tier:        analysis.Primary,
		}
		if f.ID == "" {
			f.ID = analysis.NewID(idPrefixModel)
		}
		f.Start, f.End = locateModelSpan(text, f.Text, it.StartIndex, it.EndIndex, cursor)
		if f.End > 0 {
			cursor = f.End
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// locateModelSpan trusts the model's indices only when they point at the
// reported error text; otherwise it searches for the text from cursor, then
// from the start.
func locateModelSpan(text, phrase string, start, end *int, cursor int) (int, int) {
	if start != nil && end != nil && analysis.ValidSpan(text, *start, *end) &&
		strings.EqualFold(text[*start:*end], phrase) {
		return *start, *end
	}
	if s, e := analysis.Locate(text, phrase, cursor); s >= 0 {
		return s, e
	}
	return analysis.Locate(text, phrase, 0)
}

func (c *Checker) checkWithRules(ctx context.Context, text, language string) ([]analysis.Finding, error) {
	matches, err := c.rules.Check(ctx, text, language)
	if err != nil {
		return nil, apperr.ProviderCall(c.rulesName, err)
	}
	findings := make([]analysis.Finding, 0, len(matches))
	for _, m := range matches {
		span := m.Span(text)
		correction := span
		if len(m.Replacements) > 0 {
			correction = m.Replacements[0]
		}
		f := analysis.Finding{
			ID:          analysis.NewID(idPrefixRules),
			Kind:        analysis.KindGrammar,
			Text:        span,
			Suggestion:  correction,
			Explanation: m.Message,
			Start:       m.Offset,
			End:         m.Offset + m.Length,
			Tier:        analysis.Fallback,
		}
		if span == "" {
			f.Start, f.End = -1, -1
		}
		findings = append(findings, f)
	}
	return findings, nil
}
