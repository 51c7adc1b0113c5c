// Package phonetic finds the word a speaker most likely meant.
//
// [Matcher.Closest] compares a heard word against a vocabulary in two
// stages. First, Double Metaphone codes select vocabulary words that sound
// alike; among those, the one with the highest Jaro-Winkler similarity wins
// if it clears the phonetic threshold. When nothing sounds alike, a plain
// Jaro-Winkler pass with a stricter threshold catches near-spellings.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a word that
// shares a Double Metaphone code with the input. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a word without
// a shared code. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Matcher with the default thresholds.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Closest returns the vocabulary entry that best matches heard, its score,
// and whether any entry cleared a threshold. Comparison is case-insensitive;
// the entry is returned in its original casing. On no match it returns
// ("", 0, false).
func (m *Matcher) Closest(heard string, vocabulary []string) (word string, score float64, ok bool) {
	heard = strings.ToLower(strings.TrimSpace(heard))
	if heard == "" || len(vocabulary) == 0 {
		return "", 0, false
	}
	heardCodes := codes(heard)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, entry := range vocabulary {
		candidate := strings.ToLower(strings.TrimSpace(entry))
		if candidate == "" {
			continue
		}
		s := matchr.JaroWinkler(heard, candidate, false)
		if overlap(heardCodes, codes(candidate)) {
			if s >= m.phoneticThreshold && (!bestPhonetic || s > bestScore) {
				best, bestScore, bestPhonetic = entry, s, true
			}
			continue
		}
		if !bestPhonetic && s >= m.fuzzyThreshold && s > bestScore {
			best, bestScore = entry, s
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, bestScore, true
}

// SoundsAlike reports whether a and b share a Double Metaphone code.
func SoundsAlike(a, b string) bool {
	return overlap(codes(strings.ToLower(a)), codes(strings.ToLower(b)))
}

// codes returns the non-empty primary and secondary Double Metaphone codes of
// word.
func codes(word string) []string {
	p, s := matchr.DoubleMetaphone(word)
	out := make([]string, 0, 2)
	if p != "" {
		out = append(out, p)
	}
	if s != "" && s != p {
		out = append(out, s)
	}
	return out
}

func overlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
