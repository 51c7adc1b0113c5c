// Package app wires the lingoloop components into a running HTTP service.
//
// New builds the synthesis orchestrator, the analysis pipelines, the health
// report, the MCP tool server and the rate limits from the config and the
// providers main.go created. Run serves until its context is cancelled and
// then drains in-flight requests.
//
// For tests, construct [Providers] from the mock packages and drive
// [App.Handler] with httptest.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lingoloop/lingoloop/internal/analysis/concept"
	"github.com/lingoloop/lingoloop/internal/analysis/grammar"
	"github.com/lingoloop/lingoloop/internal/analysis/speech"
	"github.com/lingoloop/lingoloop/internal/api"
	"github.com/lingoloop/lingoloop/internal/config"
	"github.com/lingoloop/lingoloop/internal/health"
	"github.com/lingoloop/lingoloop/internal/langseg"
	"github.com/lingoloop/lingoloop/internal/mcp"
	"github.com/lingoloop/lingoloop/internal/observe"
	"github.com/lingoloop/lingoloop/internal/phonetic"
	"github.com/lingoloop/lingoloop/internal/ratelimit"
	"github.com/lingoloop/lingoloop/internal/resilience"
	"github.com/lingoloop/lingoloop/internal/synth"
	rules "github.com/lingoloop/lingoloop/pkg/provider/grammar"
	"github.com/lingoloop/lingoloop/pkg/provider/llm"
	"github.com/lingoloop/lingoloop/pkg/provider/ocr"
	"github.com/lingoloop/lingoloop/pkg/provider/stt"
	"github.com/lingoloop/lingoloop/pkg/provider/tts"
)

// Version is reported by /api/health and the MCP server.
const Version = "1.0.0"

// Health report service names.
const (
	ServiceTTS          = "tts"
	ServiceLLM          = "gemini"
	ServiceSpeechToText = "speech_to_text"
	ServiceOCR          = "ocr"
	ServiceGrammar      = "grammar_check"
	ServiceSummarizer   = "summarizer"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM     llm.Provider
	TTS     tts.Provider
	STT     stt.Provider
	Grammar rules.Checker
	OCR     ocr.Provider
}

// App owns the service components and the HTTP server.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	version   string

	services api.Services
	breakers []*resilience.Breaker
	health   *health.Handler
	handler  http.Handler

	srv *http.Server
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithVersion overrides the reported version. Default: [Version].
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// New creates an App from cfg and the providers built by main.go. It fails
// when the configured voice table is invalid.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{cfg: cfg, providers: providers, version: Version}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	voices, err := voiceTable(cfg.Synthesis.Voices)
	if err != nil {
		return nil, fmt.Errorf("app: voices: %w", err)
	}

	a.initSynth(voices)
	a.initAnalysis()
	a.initOCR()
	a.initHealth()

	limits := ratelimit.NewSet(cfg.RateLimits, a.metrics)
	tools := mcp.NewServer(mcp.Tools{Grammar: a.services.Grammar, Concept: a.services.Concept}, a.version)

	server := api.New(a.services,
		api.WithMetrics(a.metrics),
		api.WithRateLimits(limits),
		api.WithRoutes(a.health.Register),
		api.WithHandler("GET /metrics", observe.MetricsHandler()),
		api.WithHandler("/mcp", mcp.Handler(tools)),
	)
	a.handler = server.Handler()
	return a, nil
}

func (a *App) initSynth(voices synth.VoiceTable) {
	if a.providers.TTS == nil {
		slog.Warn("text-to-speech disabled, no tts provider configured")
		return
	}
	a.services.Synth = synth.New(a.providers.TTS,
		synth.WithVoices(voices),
		synth.WithEncoding(tts.Encoding(a.cfg.Synthesis.Encoding)),
		synth.WithTimeout(a.cfg.Timeouts.Synthesis),
		synth.WithMetrics(a.metrics),
		synth.WithProviderName(a.cfg.Providers.TTS.Name),
	)
}

func (a *App) initAnalysis() {
	llmName := a.cfg.Providers.LLM.Name
	t := a.cfg.Timeouts

	var grammarOpts []grammar.Option
	if a.providers.LLM != nil {
		grammarOpts = append(grammarOpts,
			grammar.WithModel(a.providers.LLM, llmName),
			grammar.WithBreaker(a.newBreaker(grammar.Task)))
	}
	if a.providers.Grammar != nil {
		grammarOpts = append(grammarOpts, grammar.WithRules(a.providers.Grammar, a.cfg.Providers.Grammar.Name))
	}
	if len(grammarOpts) > 0 {
		grammarOpts = append(grammarOpts, grammar.WithTimeouts(t.Generation, t.Grammar), grammar.WithMetrics(a.metrics))
		a.services.Grammar = grammar.New(grammarOpts...)
	}

	conceptOpts := []concept.Option{concept.WithTimeout(t.Generation), concept.WithMetrics(a.metrics)}
	if a.providers.LLM != nil {
		conceptOpts = append(conceptOpts,
			concept.WithModel(a.providers.LLM, llmName),
			concept.WithBreaker(a.newBreaker(concept.Task)))
	}
	a.services.Concept = concept.New(conceptOpts...)

	if a.providers.STT == nil {
		slog.Warn("speech analysis disabled, no stt provider configured")
		return
	}
	speechOpts := []speech.Option{
		speech.WithTimeouts(t.Transcription, t.Generation),
		speech.WithMatcher(phonetic.New()),
		speech.WithMetrics(a.metrics),
	}
	if a.providers.LLM != nil {
		speechOpts = append(speechOpts,
			speech.WithModel(a.providers.LLM, llmName),
			speech.WithBreaker(a.newBreaker(speech.Task)))
	}
	a.services.Speech = speech.New(a.providers.STT, a.cfg.Providers.STT.Name, speechOpts...)
}

func (a *App) initOCR() {
	if a.providers.OCR == nil {
		return
	}
	a.services.OCR = a.providers.OCR
	a.services.OCRName = a.cfg.Providers.OCR.Name
	a.services.OCRTimeout = a.cfg.Timeouts.OCR
}

// newBreaker guards one task's primary tier. Each task gets its own breaker
// so a failing prompt shape does not disable the others.
func (a *App) newBreaker(task string) *resilience.Breaker {
	b := resilience.New(resilience.Config{
		Name:         "llm/" + task,
		MaxFailures:  a.cfg.Resilience.MaxFailures,
		ResetTimeout: a.cfg.Resilience.ResetTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
		},
	})
	a.breakers = append(a.breakers, b)
	return b
}

func (a *App) initHealth() {
	p := a.providers
	a.health = health.New(
		health.WithVersion(a.version),
		health.WithService(ServiceTTS, p.TTS != nil),
		health.WithService(ServiceLLM, p.LLM != nil),
		health.WithService(ServiceSpeechToText, p.STT != nil),
		health.WithService(ServiceOCR, p.OCR != nil),
		health.WithService(ServiceGrammar, a.services.Grammar != nil),
		health.WithService(ServiceSummarizer, a.services.Concept != nil),
		health.WithChecker(health.Checker{Name: "breakers", Check: a.checkBreakers}),
	)
}

// checkBreakers fails while any primary tier is cut off.
func (a *App) checkBreakers(context.Context) error {
	var open []string
	for _, b := range a.breakers {
		if b.State() == resilience.StateOpen {
			open = append(open, b.Name())
		}
	}
	if len(open) > 0 {
		return fmt.Errorf("open: %s", strings.Join(open, ", "))
	}
	return nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Services returns the components behind the endpoints.
func (a *App) Services() api.Services { return a.services }

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.cfg.Server.ListenAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.srv = &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", ln.Addr().String())
		errCh <- a.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (a *App) Shutdown(ctx context.Context) error {
	if a.srv == nil {
		return nil
	}
	slog.Info("shutting down")
	if err := a.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("app: shutdown: %w", err)
	}
	slog.Info("shutdown complete")
	return nil
}

// voiceTable merges the configured voices over the defaults.
func voiceTable(entries map[string]config.VoiceEntry) (synth.VoiceTable, error) {
	override := make(synth.VoiceTable, len(entries))
	for tag, v := range entries {
		override[langseg.Tag(tag)] = synth.VoiceProfile{
			Locale:       v.Locale,
			VoiceID:      v.VoiceID,
			Gender:       tts.Gender(strings.ToUpper(v.Gender)),
			SpeakingRate: v.SpeakingRate,
		}
	}
	table := synth.DefaultVoices().Merge(override)
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}
