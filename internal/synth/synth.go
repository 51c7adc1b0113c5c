// Package synth voices multi-language text with a single-language speech
// engine.
//
// The [Orchestrator] takes the ordered segments produced by langseg, resolves
// a voice per segment language, calls the engine once per segment, and lays
// the returned audio end to end in segment order. Segments are processed
// sequentially.
//
// Failure policy: a failing segment before any success aborts the request. A
// failing segment after at least one success is logged and skipped, so the
// result may miss language runs but is never empty.
package synth

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/internal/langseg"
	"github.com/lingoloop/lingoloop/internal/observe"
	"github.com/lingoloop/lingoloop/pkg/provider/tts"
)

// DefaultTimeout bounds a single segment synthesis call.
const DefaultTimeout = 10 * time.Second

// Options apply to every segment of one request.
type Options struct {
	// Encoding of the returned audio. Empty uses the orchestrator default.
	Encoding tts.Encoding

	// SpeakingRate in [0.25, 4.0]. Zero leaves the engine default.
	SpeakingRate float64
}

// Chunk is the audio of one synthesized segment.
type Chunk struct {
	Segment langseg.Segment
	Audio   []byte
}

// Result is the outcome of a batch synthesis.
type Result struct {
	// Audio is the concatenation of every synthesized chunk in segment order.
	Audio []byte

	// Segments lists the segments that were voiced, in order.
	Segments []langseg.Segment

	// Skipped holds the indices of segments that failed after the first
	// success.
	Skipped []int
}

// Summary reports what [Orchestrator.Stream] did.
type Summary struct {
	Synthesized int
	Skipped     []int
}

// Orchestrator turns language segments into audio. It is safe for concurrent
// use; it holds no per-request state.
type Orchestrator struct {
	provider     tts.Provider
	providerName string
	voices       VoiceTable
	encoding     tts.Encoding
	timeout      time.Duration
	metrics      *observe.Metrics
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithVoices replaces the voice table.
func WithVoices(v VoiceTable) Option {
	return func(o *Orchestrator) {
		o.voices = v
	}
}

// WithEncoding sets the default audio encoding. Default: MP3.
func WithEncoding(e tts.Encoding) Option {
	return func(o *Orchestrator) {
		o.encoding = e
	}
}

// WithTimeout bounds each segment call. Default: [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = d
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithProviderName labels metrics, logs and errors. Default: "tts".
func WithProviderName(name string) Option {
	return func(o *Orchestrator) {
		o.providerName = name
	}
}

// New creates an Orchestrator around provider.
func New(provider tts.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:     provider,
		providerName: "tts",
		voices:       DefaultVoices(),
		encoding:     tts.EncodingMP3,
		timeout:      DefaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Voices returns the orchestrator's voice table.
func (o *Orchestrator) Voices() VoiceTable { return o.voices }

// SynthesizeText segments text and synthesizes the segments. Text without
// any non-whitespace token fails with [apperr.ErrValidation] before the
// engine is contacted.
func (o *Orchestrator) SynthesizeText(ctx context.Context, text string, opts Options) (*Result, error) {
	return o.Synthesize(ctx, langseg.SegmentText(text), opts)
}

// Synthesize voices segs in order and returns the concatenated audio.
func (o *Orchestrator) Synthesize(ctx context.Context, segs []langseg.Segment, opts Options) (*Result, error) {
	res := &Result{}
	sum, err := o.Stream(ctx, segs, opts, func(c Chunk) error {
		res.Audio = append(res.Audio, c.Audio...)
		res.Segments = append(res.Segments, c.Segment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Skipped = sum.Skipped
	return res, nil
}

// Stream voices segs in order and hands each chunk to emit as soon as it is
// ready. An error from emit aborts the stream and is returned as is.
func (o *Orchestrator) Stream(ctx context.Context, segs []langseg.Segment, opts Options, emit func(Chunk) error) (Summary, error) {
	if len(segs) == 0 {
		return Summary{}, apperr.Validation("text contains no words to synthesize")
	}
	if err := validateRate(opts.SpeakingRate); err != nil {
		return Summary{}, err
	}

	ctx, span := observe.StartSpan(ctx, "synth.Stream",
		trace.WithAttributes(attribute.Int("segments", len(segs))))
	defer span.End()

	var sum Summary
	for _, seg := range segs {
		audio, err := o.synthesizeSegment(ctx, seg, opts)
		if err != nil {
			if sum.Synthesized == 0 || ctx.Err() != nil {
				observe.Fail(span, err)
				return sum, err
			}
			observe.Logger(ctx).Warn("synthesis segment skipped",
				"provider", o.providerName,
				"segment", seg.Index,
				"language", seg.Tag.String(),
				"err", err)
			o.metrics.RecordSegment(ctx, seg.Tag.String(), "skipped")
			sum.Skipped = append(sum.Skipped, seg.Index)
			continue
		}
		o.metrics.RecordSegment(ctx, seg.Tag.String(), observe.StatusOK)
		if err := emit(Chunk{Segment: seg, Audio: audio}); err != nil {
			observe.Fail(span, err)
			return sum, err
		}
		sum.Synthesized++
	}
	span.SetAttributes(
		attribute.Int("synthesized", sum.Synthesized),
		attribute.Int("skipped", len(sum.Skipped)),
	)
	return sum, nil
}

func (o *Orchestrator) synthesizeSegment(ctx context.Context, seg langseg.Segment, opts Options) ([]byte, error) {
	voice := o.voices.Resolve(seg.Tag)
	req := tts.Request{
		Text:         seg.Text,
		Locale:       voice.Locale,
		VoiceID:      voice.VoiceID,
		Gender:       voice.Gender,
		Encoding:     o.encodingFor(opts),
		SpeakingRate: opts.SpeakingRate,
	}
	if voice.SpeakingRate != 0 {
		req.SpeakingRate = voice.SpeakingRate
	}
	return o.call(ctx, req)
}

// SynthesizeVoice voices text with one explicit voice. voiceID must look like
// "en-US-Standard-D"; its first two parts give the locale. speed must lie in
// [0.25, 4.0].
func (o *Orchestrator) SynthesizeVoice(ctx context.Context, text, voiceID string, speed float64) ([]byte, error) {
	if langseg.CountTokens(text) == 0 {
		return nil, apperr.Validation("text is required")
	}
	locale, ok := LocaleFromVoiceID(voiceID)
	if !ok {
		return nil, apperr.Validation("invalid voice id %q", voiceID)
	}
	if speed < MinSpeakingRate || speed > MaxSpeakingRate {
		return nil, errRate()
	}

	ctx, span := observe.StartSpan(ctx, "synth.SynthesizeVoice",
		trace.WithAttributes(attribute.String("voice", voiceID)))
	defer span.End()

	audio, err := o.call(ctx, tts.Request{
		Text:         text,
		Locale:       locale,
		VoiceID:      voiceID,
		Encoding:     tts.EncodingMP3,
		SpeakingRate: speed,
	})
	observe.Fail(span, err)
	return audio, err
}

// call performs one bounded engine call and classifies its failure.
func (o *Orchestrator) call(ctx context.Context, req tts.Request) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	audio, err := o.provider.Synthesize(callCtx, req)
	if err == nil && len(audio) == 0 {
		err = errors.New("empty audio")
	}
	o.metrics.ObserveProvider(ctx, o.providerName, "tts", start, err)
	if err != nil {
		return nil, apperr.ProviderCall(o.providerName, err)
	}
	return audio, nil
}

func (o *Orchestrator) encodingFor(opts Options) tts.Encoding {
	if opts.Encoding != "" {
		return opts.Encoding
	}
	return o.encoding
}

// Speaking rate bounds accepted by the speech engines.
const (
	MinSpeakingRate = 0.25
	MaxSpeakingRate = 4.0
)

// validateRate accepts zero (engine default) or a rate within bounds.
func validateRate(rate float64) error {
	if rate == 0 {
		return nil
	}
	if rate < MinSpeakingRate || rate > MaxSpeakingRate {
		return errRate()
	}
	return nil
}

func errRate() error {
	return apperr.Validation("speed must be between %.2f and %.1f", MinSpeakingRate, MaxSpeakingRate)
}
