// Package config defines the lingoloop configuration schema and loads it from
// YAML.
//
// A config file names one provider per capability, the per-call timeouts, the
// voice used for each language, the circuit breaker tuning for the primary
// analysis tier and the per-endpoint rate limits. Zero values are replaced by
// the defaults in [Defaults] when the file is loaded. The config is not
// modified after [Load] returns.
package config

import "time"

// LogLevel controls the minimum severity of emitted log records.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Rate-limited endpoint names used as keys of [Config.RateLimits].
const (
	EndpointTTS       = "tts"
	EndpointGrammar   = "grammar"
	EndpointSpeech    = "speech"
	EndpointOCR       = "ocr"
	EndpointSummarize = "summarize"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Timeouts   TimeoutsConfig   `yaml:"timeouts"`
	Synthesis  SynthesisConfig  `yaml:"synthesis"`
	Resilience ResilienceConfig `yaml:"resilience"`

	// RateLimits maps an endpoint name to the requests allowed per client
	// per minute. Zero disables the limit for that endpoint.
	RateLimits map[string]int `yaml:"rate_limits"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// ListenAddr is the TCP address to listen on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds the graceful drain of in-flight requests.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ProvidersConfig selects one provider per capability. An entry with an empty
// Name leaves the capability unconfigured.
type ProvidersConfig struct {
	LLM     ProviderEntry `yaml:"llm"`
	TTS     ProviderEntry `yaml:"tts"`
	STT     ProviderEntry `yaml:"stt"`
	Grammar ProviderEntry `yaml:"grammar"`
	OCR     ProviderEntry `yaml:"ocr"`
}

// ProviderEntry is the configuration for a single provider.
type ProviderEntry struct {
	// Name selects the registered factory (e.g., "gemini", "google").
	Name string `yaml:"name"`

	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// Options holds provider-specific settings not covered above.
	Options map[string]any `yaml:"options"`
}

// TimeoutsConfig bounds each kind of outbound call.
type TimeoutsConfig struct {
	Synthesis     time.Duration `yaml:"synthesis"`
	Transcription time.Duration `yaml:"transcription"`
	Generation    time.Duration `yaml:"generation"`
	Grammar       time.Duration `yaml:"grammar"`
	OCR           time.Duration `yaml:"ocr"`
}

// VoiceEntry voices one language.
type VoiceEntry struct {
	Locale  string `yaml:"locale"`
	VoiceID string `yaml:"voice_id"`

	// Gender is NEUTRAL, MALE or FEMALE.
	Gender string `yaml:"gender"`

	SpeakingRate float64 `yaml:"speaking_rate"`
}

// SynthesisConfig tunes text-to-speech output.
type SynthesisConfig struct {
	// Encoding is MP3, LINEAR16 or OGG_OPUS.
	Encoding string `yaml:"encoding"`

	// Voices overrides the built-in voice of a language tag (en, fr, es, de).
	Voices map[string]VoiceEntry `yaml:"voices"`
}

// ResilienceConfig tunes the circuit breaker guarding each primary model tier.
type ResilienceConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// DefaultRateLimits are the per-minute limits applied when the config does not
// name an endpoint.
var DefaultRateLimits = map[string]int{
	EndpointTTS:       10,
	EndpointGrammar:   20,
	EndpointSpeech:    5,
	EndpointOCR:       10,
	EndpointSummarize: 20,
}

// Defaults returns a config with every default applied and no providers.
func Defaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero fields.
func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}

	t := &c.Timeouts
	setDuration(&t.Synthesis, 10*time.Second)
	setDuration(&t.Transcription, 30*time.Second)
	setDuration(&t.Generation, 30*time.Second)
	setDuration(&t.Grammar, 10*time.Second)
	setDuration(&t.OCR, 15*time.Second)

	if c.Synthesis.Encoding == "" {
		c.Synthesis.Encoding = "MP3"
	}
	if c.Resilience.MaxFailures == 0 {
		c.Resilience.MaxFailures = 5
	}
	setDuration(&c.Resilience.ResetTimeout, 30*time.Second)

	if c.RateLimits == nil {
		c.RateLimits = make(map[string]int, len(DefaultRateLimits))
	}
	for k, v := range DefaultRateLimits {
		if _, ok := c.RateLimits[k]; !ok {
			c.RateLimits[k] = v
		}
	}
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}
