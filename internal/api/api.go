// Package api serves the lingoloop HTTP interface.
//
// Every endpoint answers JSON. Failures carry a body of the form
// {"error": "..."} and a status derived from the error taxonomy in apperr:
// invalid input is 400, a missing capability 503, a failing provider 502 and
// an exhausted analysis pipeline 503. Rate-limited endpoints answer 429.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lingoloop/lingoloop/internal/analysis/concept"
	"github.com/lingoloop/lingoloop/internal/analysis/grammar"
	"github.com/lingoloop/lingoloop/internal/analysis/speech"
	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/internal/config"
	"github.com/lingoloop/lingoloop/internal/observe"
	"github.com/lingoloop/lingoloop/internal/ratelimit"
	"github.com/lingoloop/lingoloop/internal/synth"
	"github.com/lingoloop/lingoloop/pkg/provider/ocr"
)

// Upload limits.
const (
	maxJSONBytes   = 1 << 20
	maxUploadBytes = 25 << 20
)

// Services are the components behind the endpoints. A nil field makes the
// endpoints that need it answer 503.
type Services struct {
	Synth   *synth.Orchestrator
	Grammar *grammar.Checker
	Speech  *speech.Analyzer
	Concept *concept.Summarizer

	OCR        ocr.Provider
	OCRName    string
	OCRTimeout time.Duration
}

// Option configures a [Server].
type Option func(*Server)

// WithRateLimits throttles endpoints with limits.
func WithRateLimits(limits *ratelimit.Set) Option {
	return func(s *Server) {
		s.limits = limits
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHandler mounts h at pattern alongside the API routes.
func WithHandler(pattern string, h http.Handler) Option {
	return func(s *Server) {
		s.extra = append(s.extra, mount{pattern: pattern, handler: h})
	}
}

// WithRoutes lets register add routes to the root mux.
func WithRoutes(register func(*http.ServeMux)) Option {
	return func(s *Server) {
		s.register = append(s.register, register)
	}
}

type mount struct {
	pattern string
	handler http.Handler
}

// Server routes HTTP requests to the services.
type Server struct {
	svc     Services
	limits  *ratelimit.Set
	metrics *observe.Metrics
	extra   []mount

	register []func(*http.ServeMux)
}

// New creates a Server.
func New(svc Services, opts ...Option) *Server {
	s := &Server{svc: svc}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.limits == nil {
		s.limits = ratelimit.NewSet(nil, s.metrics)
	}
	if s.svc.OCRName == "" {
		s.svc.OCRName = "ocr"
	}
	return s
}

// Handler returns the root handler with tracing and request metrics applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)
	for _, m := range s.extra {
		mux.Handle(m.pattern, m.handler)
	}
	for _, register := range s.register {
		register(mux)
	}
	return observe.Middleware(s.metrics)(mux)
}

func (s *Server) routes(mux *http.ServeMux) {
	handle := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.Handle(pattern, s.limits.Wrap(endpoint, h))
	}
	handle("POST /api/texttospeech", config.EndpointTTS, s.handleTextToSpeech)
	handle("GET /api/texttospeech/stream", config.EndpointTTS, s.handleTextToSpeechStream)
	handle("POST /api/tts_google", config.EndpointTTS, s.handleSingleVoice)
	mux.HandleFunc("GET /api/voices", s.handleVoices)
	handle("POST /api/grammar-check", config.EndpointGrammar, s.handleGrammarCheck)
	handle("POST /api/speech-error-analysis", config.EndpointSpeech, s.handleSpeechAnalysis)
	handle("POST /api/summarize_concept", config.EndpointSummarize, s.handleSummarizeConcept)
	handle("POST /api/image-to-text", config.EndpointOCR, s.handleImageToText)
}

// errorBody is the JSON body of every failed request.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "err", err)
	}
}

// writeError answers with the status the error taxonomy assigns to err.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	log := observe.Logger(r.Context())
	switch {
	case status == http.StatusInternalServerError:
		log.Error("request failed", "path", r.URL.Path, "err", err)
		msg = "internal server error"
	case status >= http.StatusInternalServerError:
		log.Warn("request failed", "path", r.URL.Path, "status", status, "err", err)
	default:
		log.Debug("request rejected", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.Validation("invalid request: no JSON data")
		case errors.As(err, &tooLarge):
			return apperr.Validation("request body exceeds %d bytes", tooLarge.Limit)
		default:
			return apperr.Validation("invalid JSON: %v", err)
		}
	}
	return nil
}

// formFile reads the multipart file field name.
func formFile(w http.ResponseWriter, r *http.Request, name string) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, apperr.Validation("invalid multipart form: %v", err)
	}
	f, hdr, err := r.FormFile(name)
	if err != nil {
		return nil, apperr.Validation("no %s file provided", name)
	}
	defer f.Close()
	if strings.TrimSpace(hdr.Filename) == "" {
		return nil, apperr.Validation("no selected %s file", name)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperr.Validation("read %s file: %v", name, err)
	}
	if len(data) == 0 {
		return nil, apperr.Validation("%s file is empty", name)
	}
	return data, nil
}
