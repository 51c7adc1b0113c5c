package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"regexp"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":     {"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "openai-native"},
	"tts":     {"google", "elevenlabs"},
	"stt":     {"google", "whisper"},
	"grammar": {"languagetool"},
	"ocr":     {"google"},
}

// LoadDotEnv loads KEY=VALUE pairs from each existing file into the process
// environment. Variables already set are kept. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load env file %q: %w", p, err)
		}
		slog.Debug("loaded env file", "path", p)
	}
	return nil
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader expands ${VAR} references in r from the environment, decodes
// the result, applies defaults and validates it. An empty document yields the
// defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(ExpandEnv(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces every ${NAME} in raw with the value of the environment
// variable NAME. Unset variables expand to the empty string.
func ExpandEnv(raw []byte) []byte {
	return envRef.ReplaceAllFunc(raw, func(m []byte) []byte {
		name := envRef.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must not be negative"))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("grammar", cfg.Providers.Grammar.Name)
	validateProviderName("ocr", cfg.Providers.OCR.Name)

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; analysis will use the fallback tier only")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; speech synthesis endpoints will be unavailable")
	}

	for name, d := range map[string]time.Duration{
		"synthesis":     cfg.Timeouts.Synthesis,
		"transcription": cfg.Timeouts.Transcription,
		"generation":    cfg.Timeouts.Generation,
		"grammar":       cfg.Timeouts.Grammar,
		"ocr":           cfg.Timeouts.OCR,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("timeouts.%s must not be negative", name))
		}
	}

	switch cfg.Synthesis.Encoding {
	case "", "MP3", "LINEAR16", "OGG_OPUS":
	default:
		errs = append(errs, fmt.Errorf("synthesis.encoding %q is invalid; valid values: MP3, LINEAR16, OGG_OPUS", cfg.Synthesis.Encoding))
	}
	for _, tag := range slices.Sorted(maps.Keys(cfg.Synthesis.Voices)) {
		v := cfg.Synthesis.Voices[tag]
		prefix := fmt.Sprintf("synthesis.voices.%s", tag)
		switch tag {
		case "en", "fr", "es", "de":
		default:
			errs = append(errs, fmt.Errorf("%s: unknown language tag; valid tags: en, fr, es, de", prefix))
		}
		if v.Locale == "" {
			errs = append(errs, fmt.Errorf("%s.locale is required", prefix))
		}
		switch v.Gender {
		case "", "NEUTRAL", "MALE", "FEMALE":
		default:
			errs = append(errs, fmt.Errorf("%s.gender %q is invalid; valid values: NEUTRAL, MALE, FEMALE", prefix, v.Gender))
		}
		if v.SpeakingRate != 0 && (v.SpeakingRate < 0.25 || v.SpeakingRate > 4.0) {
			errs = append(errs, fmt.Errorf("%s.speaking_rate %.2f is out of range [0.25, 4.0]", prefix, v.SpeakingRate))
		}
	}

	if cfg.Resilience.MaxFailures < 0 {
		errs = append(errs, errors.New("resilience.max_failures must not be negative"))
	}
	if cfg.Resilience.ResetTimeout < 0 {
		errs = append(errs, errors.New("resilience.reset_timeout must not be negative"))
	}

	for _, endpoint := range slices.Sorted(maps.Keys(cfg.RateLimits)) {
		if _, known := DefaultRateLimits[endpoint]; !known {
			errs = append(errs, fmt.Errorf("rate_limits.%s: unknown endpoint", endpoint))
		}
		if cfg.RateLimits[endpoint] < 0 {
			errs = append(errs, fmt.Errorf("rate_limits.%s must not be negative", endpoint))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
