package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/lingoloop/lingoloop/pkg/provider/grammar"
	"github.com/lingoloop/lingoloop/pkg/provider/llm"
	"github.com/lingoloop/lingoloop/pkg/provider/ocr"
	"github.com/lingoloop/lingoloop/pkg/provider/stt"
	"github.com/lingoloop/lingoloop/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider of type T from its config entry.
type Factory[T any] func(ProviderEntry) (T, error)

// factories is one kind's name → factory table.
type factories[T any] struct {
	kind string
	m    map[string]Factory[T]
}

func newFactories[T any](kind string) factories[T] {
	return factories[T]{kind: kind, m: make(map[string]Factory[T])}
}

func (f factories[T]) create(entry ProviderEntry) (T, error) {
	fn, ok := f.m[entry.Name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, entry.Name)
	}
	return fn(entry)
}

// Registry maps provider names to their constructor functions for each
// capability. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	llm     factories[llm.Provider]
	tts     factories[tts.Provider]
	stt     factories[stt.Provider]
	grammar factories[grammar.Checker]
	ocr     factories[ocr.Provider]
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:     newFactories[llm.Provider]("llm"),
		tts:     newFactories[tts.Provider]("tts"),
		stt:     newFactories[stt.Provider]("stt"),
		grammar: newFactories[grammar.Checker]("grammar"),
		ocr:     newFactories[ocr.Provider]("ocr"),
	}
}

// RegisterLLM registers a generative model factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, fn Factory[llm.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm.m[name] = fn
}

// RegisterTTS registers a speech synthesizer factory under name.
func (r *Registry) RegisterTTS(name string, fn Factory[tts.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts.m[name] = fn
}

// RegisterSTT registers a transcriber factory under name.
func (r *Registry) RegisterSTT(name string, fn Factory[stt.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt.m[name] = fn
}

// RegisterGrammar registers a rule-based grammar checker factory under name.
func (r *Registry) RegisterGrammar(name string, fn Factory[grammar.Checker]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grammar.m[name] = fn
}

// RegisterOCR registers a text detector factory under name.
func (r *Registry) RegisterOCR(name string, fn Factory[ocr.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ocr.m[name] = fn
}

// CreateLLM builds the generative model named by entry.Name.
// Returns [ErrProviderNotRegistered] if no factory exists for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.create(entry)
}

// CreateTTS builds the speech synthesizer named by entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tts.create(entry)
}

// CreateSTT builds the transcriber named by entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stt.create(entry)
}

// CreateGrammar builds the grammar checker named by entry.Name.
func (r *Registry) CreateGrammar(entry ProviderEntry) (grammar.Checker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.grammar.create(entry)
}

// CreateOCR builds the text detector named by entry.Name.
func (r *Registry) CreateOCR(entry ProviderEntry) (ocr.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ocr.create(entry)
}

// Names returns the sorted provider names registered for kind ("llm", "tts",
// "stt", "grammar" or "ocr"). Unknown kinds yield nil.
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case "llm":
		return sortedKeys(r.llm.m)
	case "tts":
		return sortedKeys(r.tts.m)
	case "stt":
		return sortedKeys(r.stt.m)
	case "grammar":
		return sortedKeys(r.grammar.m)
	case "ocr":
		return sortedKeys(r.ocr.m)
	}
	return nil
}

func sortedKeys[T any](m map[string]Factory[T]) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
