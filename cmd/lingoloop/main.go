// Command lingoloop serves the language-learning API: multi-language speech
// synthesis, grammar checking, speech-error analysis, concept summaries and
// text extraction from images.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/lingoloop/lingoloop/internal/app"
	"github.com/lingoloop/lingoloop/internal/config"
	"github.com/lingoloop/lingoloop/internal/observe"
	"github.com/lingoloop/lingoloop/pkg/provider/grammar"
	"github.com/lingoloop/lingoloop/pkg/provider/grammar/languagetool"
	"github.com/lingoloop/lingoloop/pkg/provider/llm"
	"github.com/lingoloop/lingoloop/pkg/provider/llm/anyllm"
	oallm "github.com/lingoloop/lingoloop/pkg/provider/llm/openai"
	"github.com/lingoloop/lingoloop/pkg/provider/ocr"
	googleocr "github.com/lingoloop/lingoloop/pkg/provider/ocr/google"
	"github.com/lingoloop/lingoloop/pkg/provider/stt"
	googlestt "github.com/lingoloop/lingoloop/pkg/provider/stt/google"
	"github.com/lingoloop/lingoloop/pkg/provider/stt/whisper"
	"github.com/lingoloop/lingoloop/pkg/provider/tts"
	"github.com/lingoloop/lingoloop/pkg/provider/tts/elevenlabs"
	googletts "github.com/lingoloop/lingoloop/pkg/provider/tts/google"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	// ── Environment and configuration ─────────────────────────────────────────
	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "lingoloop: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lingoloop: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lingoloop: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("lingoloop starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: app.Version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	application, err := app.New(cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready, press Ctrl+C to shut down")
	if err := application.Run(ctx); err != nil {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// Every any-llm-go backend takes an optional APIKey and BaseURL.
	for _, providerName := range anyllm.Backends() {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// openai-native talks to the OpenAI API (or a compatible server) directly.
	reg.RegisterLLM("openai-native", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────
	reg.RegisterTTS("google", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []googletts.Option
		if entry.BaseURL != "" {
			opts = append(opts, googletts.WithBaseURL(entry.BaseURL))
		}
		return googletts.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if voice := optString(entry.Options, "default_voice"); voice != "" {
			opts = append(opts, elevenlabs.WithDefaultVoice(voice))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────
	reg.RegisterSTT("google", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []googlestt.Option
		if entry.BaseURL != "" {
			opts = append(opts, googlestt.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, googlestt.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, googlestt.WithLanguage(lang))
		}
		return googlestt.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	// ── Grammar ───────────────────────────────────────────────────────────────
	reg.RegisterGrammar("languagetool", func(entry config.ProviderEntry) (grammar.Checker, error) {
		var opts []languagetool.Option
		if entry.BaseURL != "" {
			opts = append(opts, languagetool.WithBaseURL(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, languagetool.WithLanguage(lang))
		}
		if user := optString(entry.Options, "username"); user != "" && entry.APIKey != "" {
			opts = append(opts, languagetool.WithCredentials(user, entry.APIKey))
		}
		return languagetool.New(opts...), nil
	})

	// ── OCR ───────────────────────────────────────────────────────────────────
	reg.RegisterOCR("google", func(entry config.ProviderEntry) (ocr.Provider, error) {
		var opts []googleocr.Option
		if entry.BaseURL != "" {
			opts = append(opts, googleocr.WithBaseURL(entry.BaseURL))
		}
		if hints := optStrings(entry.Options, "language_hints"); len(hints) > 0 {
			opts = append(opts, googleocr.WithLanguageHints(hints...))
		}
		return googleocr.New(entry.APIKey, opts...)
	})

	for _, kind := range []string{"llm", "tts", "stt", "grammar", "ocr"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// build creates the provider named in entry. Names without a factory are
// skipped; the matching endpoints then answer 503.
func build[T any](kind string, entry config.ProviderEntry, create func(config.ProviderEntry) (T, error)) (T, error) {
	var zero T
	if entry.Name == "" {
		return zero, nil
	}
	p, err := create(entry)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("provider not available, skipping", "kind", kind, "name", entry.Name)
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("create %s provider %q: %w", kind, entry.Name, err)
	}
	slog.Info("provider created", "kind", kind, "name", entry.Name)
	return p, nil
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	var (
		ps  app.Providers
		err error
	)
	if ps.LLM, err = build("llm", cfg.Providers.LLM, reg.CreateLLM); err != nil {
		return nil, err
	}
	if ps.TTS, err = build("tts", cfg.Providers.TTS, reg.CreateTTS); err != nil {
		return nil, err
	}
	if ps.STT, err = build("stt", cfg.Providers.STT, reg.CreateSTT); err != nil {
		return nil, err
	}
	if ps.Grammar, err = build("grammar", cfg.Providers.Grammar, reg.CreateGrammar); err != nil {
		return nil, err
	}
	if ps.OCR, err = build("ocr", cfg.Providers.OCR, reg.CreateOCR); err != nil {
		return nil, err
	}
	return &ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        lingoloop, startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("Grammar", cfg.Providers.Grammar.Name, "")
	printProvider("OCR", cfg.Providers.OCR.Name, "")
	fmt.Printf("║  Voices          : %-19d ║\n", len(cfg.Synthesis.Voices))
	fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optStrings extracts a list of strings. A single string is a one-item list.
func optStrings(opts map[string]any, key string) []string {
	switch v := opts[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
