package analysis

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Finding kinds.
const (
	KindGrammar          = "grammar"
	KindFiller           = "filler"
	KindRepetition       = "repetition"
	KindMispronunciation = "mispronunciation"
	KindOmission         = "omission"
	KindIssue            = "issue"
)

// Finding is one normalized unit of analysis output.
type Finding struct {
	ID   string
	Kind string

	// Text is the offending word or phrase.
	Text string

	// Suggestion replaces Text. It may equal Text when the producing tier has
	// nothing better to offer.
	Suggestion  string
	Explanation string

	// Start and End are byte offsets of Text in the analysed input, End
	// exclusive. Both are -1 when the location is unknown.
	Start int
	End  int

	Tier TierName
}

// NewID returns prefix followed by a random UUID.
func NewID(prefix string) string {
	return prefix + uuid.NewString()
}

// Locate returns the byte span of the first case-insensitive occurrence of
// phrase in text at or after from, or (-1, -1). Candidate windows are taken
// from text itself, rune by rune, so case changes that alter byte length
// elsewhere in text cannot shift the result.
func Locate(text, phrase string, from int) (start, end int) {
	if phrase == "" || from < 0 || from > len(text) {
		return -1, -1
	}
	n := utf8.RuneCountInString(phrase)
	for start = from; start < len(text); {
		end = start
		for k := 0; k < n && end < len(text); k++ {
			_, size := utf8.DecodeRuneInString(text[end:])
			end += size
		}
		if strings.EqualFold(text[start:end], phrase) {
			return start, end
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		start += size
	}
	return -1, -1
}

// ValidSpan reports whether [start, end) is a non-empty span inside text.
func ValidSpan(text string, start, end int) bool {
	return start >= 0 && end > start && end <= len(text)
}
