// Package speech analyses a spoken recording for delivery and pronunciation
// problems.
//
// Transcription is a prerequisite, not a tier: if the speech-to-text call
// fails the request fails with [apperr.ErrProviderCall]. The transcript then
// goes through the two-tier pipeline. The primary tier asks a generative model
// for issues and fluency advice; the fallback tier is a deterministic rule
// engine that flags filler words, immediate repetitions and, given the
// expected text, words that sound like a different expected word. Fluency
// metrics are always computed from the transcript and the recording length.
package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lingoloop/lingoloop/internal/analysis"
	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/internal/extract"
	"github.com/lingoloop/lingoloop/internal/observe"
	"github.com/lingoloop/lingoloop/internal/phonetic"
	"github.com/lingoloop/lingoloop/internal/resilience"
	"github.com/lingoloop/lingoloop/pkg/provider/llm"
	"github.com/lingoloop/lingoloop/pkg/provider/stt"
)

// Task is the pipeline task name.
const Task = "speech"

const (
	idPrefixModel     = "se_ai_"
	defaultSampleRate = 16000
	defaultLanguage   = "en-US"
	rulesProvider     = "rules"
)

// Request is one recording to analyse.
type Request struct {
	Audio []byte

	// Encoding of Audio. Zero means LINEAR16.
	Encoding stt.Encoding

	// SampleRate in Hz. Zero means 16000.
	SampleRate int

	// Language is the BCP-47 recognition language. Zero means en-US.
	Language string

	// ExpectedText is what the speaker meant to say. Optional.
	ExpectedText string
}

// Report is the analysis of one recording.
type Report struct {
	Transcript string
	Issues     []analysis.Finding
	Fluency    Fluency

	// Tier and Provider name the pipeline tier that produced Issues.
	Tier     analysis.TierName
	Provider string
}

// Option configures an [Analyzer].
type Option func(*Analyzer)

// WithModel sets the primary tier.
func WithModel(p llm.Provider, name string) Option {
	return func(a *Analyzer) {
		a.model, a.modelName = p, name
	}
}

// WithTimeouts bounds the transcription and generation calls.
func WithTimeouts(transcription, generation time.Duration) Option {
	return func(a *Analyzer) {
		a.sttTimeout, a.modelTimeout = transcription, generation
	}
}

// WithBreaker guards the primary tier with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(a *Analyzer) {
		a.breaker = b
	}
}

// WithMatcher replaces the phonetic matcher used by the rule engine.
func WithMatcher(m *phonetic.Matcher) Option {
	return func(a *Analyzer) {
		a.rules.matcher = m
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

// Analyzer runs speech analysis. It is safe for concurrent use.
type Analyzer struct {
	stt        stt.Provider
	sttName    string
	sttTimeout time.Duration

	model        llm.Provider
	modelName    string
	modelTimeout time.Duration
	breaker      *resilience.Breaker

	rules   detector
	metrics *observe.Metrics
}

// New creates an Analyzer. transcriber may be nil, in which case every
// request fails with [apperr.ErrProviderUnavailable].
func New(transcriber stt.Provider, sttName string, opts ...Option) *Analyzer {
	a := &Analyzer{
		stt:       transcriber,
		sttName:   sttName,
		modelName: "llm",
		rules:     detector{matcher: phonetic.New()},
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// Analyze transcribes req.Audio and analyses the transcript.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Report, error) {
	if len(req.Audio) == 0 {
		return nil, apperr.Validation("audio is required")
	}
	if req.Encoding == "" {
		req.Encoding = stt.EncodingLinear16
	}
	if !req.Encoding.IsValid() {
		return nil, apperr.Validation("unsupported audio encoding %q", req.Encoding)
	}
	if req.SampleRate == 0 {
		req.SampleRate = defaultSampleRate
	}
	if req.SampleRate < 0 {
		return nil, apperr.Validation("sample rate must be positive")
	}
	if req.Language == "" {
		req.Language = defaultLanguage
	}
	if a.stt == nil {
		return nil, apperr.Unavailable("speech_to_text")
	}

	ctx, span := observe.StartSpan(ctx, "speech.Analyze")
	defer span.End()

	sttReq := stt.Request{
		Audio:        req.Audio,
		Encoding:     req.Encoding,
		SampleRate:   req.SampleRate,
		LanguageCode: req.Language,
	}
	tr, err := a.transcribe(ctx, sttReq)
	if err != nil {
		observe.Fail(span, err)
		return nil, err
	}
	transcript := strings.TrimSpace(tr.Text)
	span.SetAttributes(attribute.Int("transcript.bytes", len(transcript)))

	det := a.rules.detect(transcript, req.ExpectedText)
	fluency := measure(transcript, recordingLength(sttReq, tr), det)

	var primary analysis.Tier[modelResult]
	if a.model != nil && transcript != "" {
		primary = analysis.Tier[modelResult]{
			Provider: a.modelName,
			Timeout:  a.modelTimeout,
			Breaker:  a.breaker,
			Run: func(ctx context.Context) (modelResult, error) {
				return a.analyzeWithModel(ctx, transcript, req.ExpectedText, fluency)
			},
		}
	}
	fallback := analysis.Tier[modelResult]{
		Provider: rulesProvider,
		Run: func(context.Context) (modelResult, error) {
			return modelResult{issues: det.findings, feedback: advise(fluency, det.repetitions)}, nil
		},
	}

	out, err := analysis.Run(ctx, analysis.Pipeline{Task: Task, Metrics: a.metrics}, primary, fallback)
	if err != nil {
		return nil, err
	}
	fluency.Feedback = out.Result.feedback
	if fluency.Feedback == "" {
		fluency.Feedback = advise(fluency, det.repetitions)
	}
	return &Report{
		Transcript: transcript,
		Issues:     out.Result.issues,
		Fluency:    fluency,
		Tier:       out.Tier,
		Provider:   out.Provider,
	}, nil
}

func (a *Analyzer) transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	callCtx := ctx
	if a.sttTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.sttTimeout)
		defer cancel()
	}
	start := time.Now()
	tr, err := a.stt.Transcribe(callCtx, req)
	a.metrics.ObserveProvider(ctx, a.sttName, "stt", start, err)
	if err != nil {
		return nil, apperr.ProviderCall(a.sttName, err)
	}
	if tr == nil {
		tr = &stt.Transcript{}
	}
	return tr, nil
}

// recordingLength prefers the exact LINEAR16 length and falls back to the
// end of the last recognised word.
func recordingLength(req stt.Request, tr *stt.Transcript) time.Duration {
	if d := req.Duration(); d > 0 {
		return d
	}
	if n := len(tr.Words); n > 0 {
		return tr.Words[n-1].End
	}
	return 0
}

type modelResult struct {
	issues   []analysis.Finding
	feedback string
}

const promptTemplate = `Review the following speech transcript.
Identify potential pronunciation errors, grammatical mistakes, or awkward phrasing within the transcript.
Also, provide general feedback on fluency based on the measured metrics.

Transcript: %q
%s
Measured fluency metrics: %s

Format your response as a JSON object with these keys:
"identified_issues": a list of objects, each containing "id" (a unique string), "issue" (the problematic word or phrase copied from the transcript), "suggestion" (correction or improvement idea), and "explanation".
"fluency_feedback": a string with overall fluency advice based on the transcript and metrics.`

type modelAnswer struct {
	Issues *[]struct {
		ID          string  `json:"id"`
		Issue       *string `json:"issue"`
		Suggestion  string  `json:"suggestion"`
		Explanation string  `json:"explanation"`
	} `json:"identified_issues"`
	Feedback *string `json:"fluency_feedback"`
}

func (a *Analyzer) analyzeWithModel(ctx context.Context, transcript, expected string, f Fluency) (modelResult, error) {
	metrics, err := json.Marshal(map[string]any{
		"score":          f.Score,
		"pace":           f.Pace,
		"wordsPerMinute": f.WordsPerMinute,
		"fillerWords":    f.FillerWords,
	})
	if err != nil {
		return modelResult{}, fmt.Errorf("speech: encode metrics: %w", err)
	}
	var expectedLine string
	if strings.TrimSpace(expected) != "" {
		expectedLine = fmt.Sprintf("Expected text: %q\n", expected)
	}

	raw, err := llm.Generate(ctx, a.model, fmt.Sprintf(promptTemplate, transcript, expectedLine, metrics))
	if err != nil {
		return modelResult{}, apperr.ProviderCall(a.modelName, err)
	}
	var ans modelAnswer
	if err := extract.Decode(raw, extract.Object, &ans); err != nil {
		return modelResult{}, err
	}
	return parseModelAnswer(transcript, ans)
}

// parseModelAnswer validates the model's object. At least one of its two
// keys must be present, and every issue must name the offending text.
func parseModelAnswer(transcript string, ans modelAnswer) (modelResult, error) {
	if ans.Issues == nil && ans.Feedback == nil {
		return modelResult{}, apperr.Malformed("answer has neither identified_issues nor fluency_feedback")
	}
	var res modelResult
	if ans.Feedback != nil {
		res.feedback = strings.TrimSpace(*ans.Feedback)
	}
	res.issues = []analysis.Finding{}
	if ans.Issues == nil {
		return res, nil
	}
	cursor := 0
	for i, it := range *ans.Issues {
		if it.Issue == nil || strings.TrimSpace(*it.Issue) == "" {
			return modelResult{}, apperr.Malformed("issue %d has no text", i)
		}
		f := analysis.Finding{
			ID:          it.ID,
			Kind:        analysis.KindIssue,
			Text:        *it.Issue,
			Suggestion:  it.Suggestion,
			Explanation: it.Explanation,
			Tier:        analysis.Primary,
		}
		if f.ID == "" {
			f.ID = analysis.NewID(idPrefixModel)
		}
		f.Start, f.End = analysis.Locate(transcript, f.Text, cursor)
		if f.End > 0 {
			cursor = f.End
		}
		res.issues = append(res.issues, f)
	}
	return res, nil
}
