// Package concept summarises study material and suggests what to focus on.
//
// The primary tier asks a generative model for a summary, key concepts and
// learning suggestions. The fallback tier is the extractive summarizer, which
// always produces a summary for non-blank text.
package concept

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
	"github.com/lingoloop/lingoloop/internal/summarize"
	"github.com/lingoloop/lingoloop/pkg/provider/llm"
)

// Task is the pipeline task name.
const Task = "concept"

const (
	extractiveProvider = "extractive"
	maxFocusPoints     = 3
)

// Summary is a summarised concept.
type Summary struct {
	Summary       string
	KeyConcepts   []string
	FocusPoints   []string
	RelatedTopics []string
}

// Option configures a [Summarizer].
type Option func(*Summarizer)

// WithModel sets the primary tier.
func WithModel(p llm.Provider, name string) Option {
	return func(s *Summarizer) {
		s.model, s.modelName = p, name
	}
}

// WithTimeout bounds the model call.
func WithTimeout(d time.Duration) Option {
	return func(s *Summarizer) {
		s.timeout = d
	}
}

// WithBreaker guards the primary tier with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(s *Summarizer) {
		s.breaker = b
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Summarizer) {
		s.metrics = m
	}
}

// Summarizer runs the concept pipeline.
type Summarizer struct {
	model     llm.Provider
	modelName string
	timeout   time.Duration
	breaker   *resilience.Breaker
	metrics   *observe.Metrics
}

// New creates a Summarizer.
func New(opts ...Option) *Summarizer {
	s := &Summarizer{modelName: "llm"}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Summarize compresses text at level ("high", "medium" or "low"; empty means
// medium).
func (s *Summarizer) Summarize(ctx context.Context, text, level string) (analysis.Outcome[Summary], error) {
	if strings.TrimSpace(text) == "" {
		return analysis.Outcome[Summary]{}, apperr.Validation("text is required")
	}
	lvl, err := summarize.ParseLevel(level)
	if err != nil {
		return analysis.Outcome[Summary]{}, apperr.Validation("level must be high, medium or low")
	}

	var primary analysis.Tier[Summary]
	if s.model != nil {
		primary = analysis.Tier[Summary]{
			Provider: s.modelName,
			Timeout:  s.timeout,
			Breaker:  s.breaker,
			Run: func(ctx context.Context) (Summary, error) {
				return s.summarizeWithModel(ctx, text, lvl)
			},
		}
	}
	fallback := analysis.Tier[Summary]{
		Provider: extractiveProvider,
		Run: func(context.Context) (Summary, error) {
			return extractive(text, lvl)
		},
	}
	return analysis.Run(ctx, analysis.Pipeline{Task: Task, Metrics: s.metrics}, primary, fallback)
}

const promptTemplate = `You are a study assistant. Summarize the following text as %s.
Identify the key concepts and suggest how a learner could deepen their understanding.

Respond with a JSON object with exactly these keys:
"summary": the summary as a single string,
"keyConcepts": a list of short strings naming the key concepts,
"learningEnhancement": an object with "focusPoints" (a list of strings) and "suggestedRelatedTopics" (a list of strings).

Text:
%q`

type modelAnswer struct {
	Summary     *string  `json:"summary"`
	KeyConcepts []string `json:"keyConcepts"`
	Learning    struct {
		FocusPoints   []string `json:"focusPoints"`
		RelatedTopics []string `json:"suggestedRelatedTopics"`
	} `json:"learningEnhancement"`
}

func (s *Summarizer) summarizeWithModel(ctx context.Context, text string, lvl summarize.Level) (Summary, error) {
	raw, err := llm.Generate(ctx, s.model, fmt.Sprintf(promptTemplate, lvl.Describe(), text))
	if err != nil {
		return Summary{}, apperr.ProviderCall(s.modelName, err)
	}
	var ans modelAnswer
	if err := extract.Decode(raw, extract.Object, &ans); err != nil {
		return Summary{}, err
	}
	if ans.Summary == nil || strings.TrimSpace(*ans.Summary) == "" {
		return Summary{}, apperr.Malformed("answer has no summary")
	}
	return Summary{
		Summary:       strings.TrimSpace(*ans.Summary),
		KeyConcepts:   nonNil(ans.KeyConcepts),
		FocusPoints:   nonNil(ans.Learning.FocusPoints),
		RelatedTopics: nonNil(ans.Learning.RelatedTopics),
	}, nil
}

func extractive(text string, lvl summarize.Level) (Summary, error) {
	sum := summarize.Summarize(text, lvl)
	if sum.Text == "" {
		return Summary{}, fmt.Errorf("concept: nothing to summarize")
	}
	focus := sum.Ranked
	if len(focus) > maxFocusPoints {
		focus = focus[:maxFocusPoints]
	}
	return Summary{
		Summary:       sum.Text,
		KeyConcepts:   nonNil(sum.KeyTerms),
		FocusPoints:   nonNil(focus),
		RelatedTopics: []string{},
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
