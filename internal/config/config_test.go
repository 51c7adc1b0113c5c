package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lingoloop/lingoloop/internal/config"
	"github.com/lingoloop/lingoloop/pkg/provider/grammar"
	grammarmock "github.com/lingoloop/lingoloop/pkg/provider/grammar/mock"
	"github.com/lingoloop/lingoloop/pkg/provider/llm"
	llmmock "github.com/lingoloop/lingoloop/pkg/provider/llm/mock"
	"github.com/lingoloop/lingoloop/pkg/provider/ocr"
	ocrmock "github.com/lingoloop/lingoloop/pkg/provider/ocr/mock"
	"github.com/lingoloop/lingoloop/pkg/provider/stt"
	sttmock "github.com/lingoloop/lingoloop/pkg/provider/stt/mock"
	"github.com/lingoloop/lingoloop/pkg/provider/tts"
	ttsmock "github.com/lingoloop/lingoloop/pkg/provider/tts/mock"
)

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  shutdown_timeout: 5s

providers:
  llm:
    name: gemini
    api_key: g-test
    model: gemini-2.0-flash
  tts:
    name: google
    api_key: tts-test
  stt:
    name: whisper
    base_url: http://localhost:8081
  grammar:
    name: languagetool
  ocr:
    name: google
    api_key: vision-test
    options:
      language_hints: en

timeouts:
  synthesis: 4s
  generation: 1m

synthesis:
  encoding: OGG_OPUS
  voices:
    fr:
      locale: fr-CA
      voice_id: fr-CA-Standard-A
      gender: FEMALE

resilience:
  max_failures: 3

rate_limits:
  tts: 30
  speech: 0
`

func TestLoadFromReader_SampleConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, ":9090")
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Providers.LLM.Name != "gemini" || cfg.Providers.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("LLM = %+v", cfg.Providers.LLM)
	}
	if cfg.Providers.STT.BaseURL != "http://localhost:8081" {
		t.Errorf("STT.BaseURL = %q", cfg.Providers.STT.BaseURL)
	}
	if got := cfg.Providers.OCR.Options["language_hints"]; got != "en" {
		t.Errorf("OCR options = %v", cfg.Providers.OCR.Options)
	}

	if cfg.Timeouts.Synthesis != 4*time.Second {
		t.Errorf("Timeouts.Synthesis = %v, want 4s", cfg.Timeouts.Synthesis)
	}
	if cfg.Timeouts.Generation != time.Minute {
		t.Errorf("Timeouts.Generation = %v, want 1m", cfg.Timeouts.Generation)
	}
	if cfg.Timeouts.Transcription != 30*time.Second {
		t.Errorf("Timeouts.Transcription = %v, want default 30s", cfg.Timeouts.Transcription)
	}

	if cfg.Synthesis.Encoding != "OGG_OPUS" {
		t.Errorf("Encoding = %q", cfg.Synthesis.Encoding)
	}
	fr := cfg.Synthesis.Voices["fr"]
	if fr.Locale != "fr-CA" || fr.VoiceID != "fr-CA-Standard-A" || fr.Gender != "FEMALE" {
		t.Errorf("fr voice = %+v", fr)
	}

	if cfg.Resilience.MaxFailures != 3 || cfg.Resilience.ResetTimeout != 30*time.Second {
		t.Errorf("Resilience = %+v", cfg.Resilience)
	}

	wantLimits := map[string]int{"tts": 30, "speech": 0, "grammar": 20, "ocr": 10, "summarize": 20}
	for k, want := range wantLimits {
		if got := cfg.RateLimits[k]; got != want {
			t.Errorf("RateLimits[%q] = %d, want %d", k, got, want)
		}
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	if cfg.Server.ListenAddr != ":8080" || cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("Server = %+v", cfg.Server)
	}
	want := config.TimeoutsConfig{
		Synthesis:     10 * time.Second,
		Transcription: 30 * time.Second,
		Generation:    30 * time.Second,
		Grammar:       10 * time.Second,
		OCR:           15 * time.Second,
	}
	if cfg.Timeouts != want {
		t.Errorf("Timeouts = %+v, want %+v", cfg.Timeouts, want)
	}
	if cfg.Synthesis.Encoding != "MP3" {
		t.Errorf("Encoding = %q, want MP3", cfg.Synthesis.Encoding)
	}
	if len(cfg.RateLimits) != len(config.DefaultRateLimits) {
		t.Errorf("RateLimits = %v", cfg.RateLimits)
	}
}

func TestRegistry_CreateEachKind(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.RegisterLLM("fake", func(config.ProviderEntry) (llm.Provider, error) { return &llmmock.Provider{}, nil })
	reg.RegisterTTS("fake", func(config.ProviderEntry) (tts.Provider, error) { return &ttsmock.Provider{}, nil })
	reg.RegisterSTT("fake", func(config.ProviderEntry) (stt.Provider, error) { return &sttmock.Provider{}, nil })
	reg.RegisterGrammar("fake", func(config.ProviderEntry) (grammar.Checker, error) { return &grammarmock.Checker{}, nil })
	reg.RegisterOCR("fake", func(config.ProviderEntry) (ocr.Provider, error) { return &ocrmock.Provider{}, nil })

	entry := config.ProviderEntry{Name: "fake"}
	if p, err := reg.CreateLLM(entry); err != nil || p == nil {
		t.Errorf("CreateLLM: %v, %v", p, err)
	}
	if p, err := reg.CreateTTS(entry); err != nil || p == nil {
		t.Errorf("CreateTTS: %v, %v", p, err)
	}
	if p, err := reg.CreateSTT(entry); err != nil || p == nil {
		t.Errorf("CreateSTT: %v, %v", p, err)
	}
	if p, err := reg.CreateGrammar(entry); err != nil || p == nil {
		t.Errorf("CreateGrammar: %v, %v", p, err)
	}
	if p, err := reg.CreateOCR(entry); err != nil || p == nil {
		t.Errorf("CreateOCR: %v, %v", p, err)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	_, err := reg.CreateTTS(config.ProviderEntry{Name: "polly"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
	if !strings.Contains(err.Error(), `tts/"polly"`) {
		t.Errorf("error should name kind and provider, got %v", err)
	}
}

func TestRegistry_FactoryErrorAndEntry(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	boom := errors.New("missing key")
	var got config.ProviderEntry
	reg.RegisterOCR("google", func(e config.ProviderEntry) (ocr.Provider, error) {
		got = e
		return nil, boom
	})

	_, err := reg.CreateOCR(config.ProviderEntry{Name: "google", APIKey: "k"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want factory error", err)
	}
	if got.APIKey != "k" {
		t.Errorf("factory received %+v", got)
	}
}

func TestRegistry_OverwriteAndNames(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	first := &llmmock.Provider{}
	second := &llmmock.Provider{}
	reg.RegisterLLM("gemini", func(config.ProviderEntry) (llm.Provider, error) { return first, nil })
	reg.RegisterLLM("gemini", func(config.ProviderEntry) (llm.Provider, error) { return second, nil })
	reg.RegisterLLM("anthropic", func(config.ProviderEntry) (llm.Provider, error) { return first, nil })

	p, err := reg.CreateLLM(config.ProviderEntry{Name: "gemini"})
	if err != nil {
		t.Fatal(err)
	}
	if p != second {
		t.Error("second registration should win")
	}
	names := reg.Names("llm")
	if len(names) != 2 || names[0] != "anthropic" || names[1] != "gemini" {
		t.Errorf("Names = %v", names)
	}
	if reg.Names("s2s") != nil {
		t.Error("unknown kind should yield nil")
	}
}
