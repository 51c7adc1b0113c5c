// Package grammar defines the Checker interface for rule-based grammar and
// spelling checkers.
//
// A checker reports matches as offsets into the checked text. Offsets and
// lengths are in bytes of the UTF-8 input so callers can slice the original
// string directly; adapters for services that count in other units convert
// before returning.
package grammar

import "context"

// Match is a single rule violation reported by a Checker.
type Match struct {
	// Offset is the byte offset of the flagged span in the checked text.
	Offset int

	// Length is the byte length of the flagged span.
	Length int

	// Message is a human-readable explanation of the problem.
	Message string

	// Replacements are suggested substitutions for the flagged span, best first.
	// May be empty.
	Replacements []string

	// RuleID identifies the rule that fired (e.g., "MORFOLOGIK_RULE_EN_US").
	RuleID string
}

// Span returns the flagged substring of text. Out-of-range matches yield "".
func (m Match) Span(text string) string {
	end := m.Offset + m.Length
	if m.Offset < 0 || m.Length < 0 || end > len(text) {
		return ""
	}
	return text[m.Offset:end]
}

// Checker is the abstraction over any rule-based grammar checker.
//
// Implementations must be safe for concurrent use.
type Checker interface {
	// Check returns matches for text in the given language (BCP-47, e.g.,
	// "en-US"), ordered by offset. An empty language selects the checker's
	// default.
	Check(ctx context.Context, text, language string) ([]Match, error)
}
