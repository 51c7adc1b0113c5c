// Package langseg splits free text into contiguous runs of a single language
// so that a single-language speech engine can voice each run correctly.
//
// Classification is a lexicon and alphabet heuristic, not statistical
// language identification. A token is matched against small closed-class
// word sets (articles, pronouns, connectives) first and against
// language-specific letters second; anything else is English. French is
// checked before Spanish before German, which decides ties such as "la" or
// "que".
//
// Segmentation treats a token without any signal as a continuation of the
// run it follows, so "bonjour mes amis" stays one French run. A small English
// lexicon gives English words an explicit signal to switch back.
//
// All functions are pure and safe for concurrent use.
package langseg

import (
	"strings"
	"unicode"
)

// Tag identifies the language of a token or segment.
type Tag string

const (
	English Tag = "en"
	French  Tag = "fr"
	Spanish Tag = "es"
	German  Tag = "de"
)

// Default is the tag assigned when no signal matches.
const Default = English

// Tags lists every tag the classifier can produce, in check order followed by
// the default.
var Tags = []Tag{French, Spanish, German, English}

// IsValid reports whether t is one of [Tags].
func (t Tag) IsValid() bool {
	switch t {
	case English, French, Spanish, German:
		return true
	}
	return false
}

// String returns the tag as a lowercase ISO 639-1 code.
func (t Tag) String() string { return string(t) }

// trailingPunct is stripped from the end of a token before lookup.
const trailingPunct = ".,:;!?"

type signal struct {
	tag     Tag
	words   map[string]struct{}
	letters string
}

// signals is evaluated in order; the first lexicon hit wins, then the first
// alphabet hit.
var signals = []signal{
	{
		tag: French,
		words: wordSet("bonjour merci oui non le la les et je tu il elle nous vous ils elles " +
			"un une des du de à au aux avec pour dans sur sous sans qui que quoi comment pourquoi où"),
		letters: "éèêëàâäæçîïôœùûüÿ",
	},
	{
		tag: Spanish,
		words: wordSet("hola gracias sí no el la los las y yo tú él ella nosotros vosotros ellos ellas " +
			"un una unos unas del al a con para en sobre bajo sin quien que como porque donde"),
		letters: "áéíóúüñ¿¡",
	},
	{
		tag: German,
		words: wordSet("hallo danke ja nein der die das und ich du er sie es wir ihr ein eine einen " +
			"einem einer eines mit für in auf unter ohne wer was wie warum wo"),
		letters: "äöüß",
	},
	{
		tag: English,
		words: wordSet("hello hi thanks yes the an and or but of to at by from is are was were be " +
			"i you he she we they it me my your his her our their this that these those what who why how where"),
	},
}

func wordSet(list string) map[string]struct{} {
	fields := strings.Fields(list)
	set := make(map[string]struct{}, len(fields))
	for _, w := range fields {
		set[w] = struct{}{}
	}
	return set
}

// normalize lowercases token and strips surrounding whitespace and trailing
// sentence punctuation.
func normalize(token string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(token)), trailingPunct)
}

// Classify returns the language tag for a single token. It never fails: empty
// or punctuation-only input yields [Default].
func Classify(token string) Tag {
	tag, _ := detect(token)
	return tag
}

// detect reports the tag for token and whether any lexicon or alphabet signal
// produced it.
func detect(token string) (Tag, bool) {
	word := normalize(token)
	if word == "" {
		return Default, false
	}
	for _, s := range signals {
		if _, ok := s.words[word]; ok {
			return s.tag, true
		}
	}
	for _, s := range signals {
		if s.letters != "" && strings.ContainsAny(word, s.letters) {
			return s.tag, true
		}
	}
	return Default, false
}

// Token is a whitespace-delimited unit of input text.
type Token struct {
	Text string

	// Offset is the byte offset of Text within the original input.
	Offset int
}

// Tokenize splits text on Unicode whitespace, recording where each token
// starts.
func Tokenize(text string) []Token {
	var tokens []Token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, Token{Text: text[start:i], Offset: start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Text: text[start:], Offset: start})
	}
	return tokens
}

// Segment is a maximal contiguous run of tokens sharing one language.
type Segment struct {
	Tag Tag

	// Text is the run's tokens joined by single spaces.
	Text string

	// Index is the segment's ordinal position, starting at zero.
	Index int

	// Offset is the byte offset of the first token in the original input.
	// It is zero for segments built by [SegmentTokens] from bare strings.
	Offset int
}

// SegmentTokens groups tokens into ordered, language-homogeneous segments in a
// single left-to-right pass. Empty and whitespace-only tokens are skipped and
// never open a segment. A token without a signal joins the open segment, or
// opens an English one at the start. Adjacent segments never share a tag.
func SegmentTokens(tokens []string) []Segment {
	toks := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		toks = append(toks, Token{Text: t})
	}
	return segment(toks)
}

// SegmentText tokenizes text and segments the result, keeping byte offsets.
func SegmentText(text string) []Segment {
	return segment(Tokenize(text))
}

func segment(tokens []Token) []Segment {
	var (
		segments []Segment
		current  Tag
		words    []string
		offset   int
	)
	flush := func() {
		if len(words) == 0 {
			return
		}
		segments = append(segments, Segment{
			Tag:    current,
			Text:   strings.Join(words, " "),
			Index:  len(segments),
			Offset: offset,
		})
		words = words[:0]
	}

	for _, tok := range tokens {
		text := strings.TrimSpace(tok.Text)
		if text == "" {
			continue
		}
		tag, ok := detect(text)
		if !ok && len(words) > 0 {
			tag = current
		}
		if len(words) == 0 || tag != current {
			flush()
			current = tag
			offset = tok.Offset
		}
		words = append(words, text)
	}
	flush()
	return segments
}

// Join lays segments end to end in ordinal order, space-separated.
func Join(segments []Segment) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

// CountTokens returns the number of non-whitespace tokens in text.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}
