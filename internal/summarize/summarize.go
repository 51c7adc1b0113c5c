// Package summarize produces extractive summaries.
//
// Sentences are scored by the normalised frequency of the content words they
// contain (stop words and words shorter than three letters are ignored). The
// best sentences are kept in their original order. The share kept depends on
// the compression [Level].
package summarize

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"
)

// Level is how strongly a text is compressed.
type Level string

const (
	High   Level = "high"
	Medium Level = "medium"
	Low    Level = "low"
)

// ParseLevel parses s case-insensitively. Empty selects [Medium].
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return Medium, nil
	case High, Medium, Low:
		return l, nil
	default:
		return "", fmt.Errorf("summarize: unknown level %q", s)
	}
}

// Ratio is the share of sentences kept at l.
func (l Level) Ratio() float64 {
	switch l {
	case High:
		return 0.25
	case Low:
		return 0.75
	default:
		return 0.5
	}
}

// Describe returns a short phrase for prompts.
func (l Level) Describe() string {
	switch l {
	case High:
		return "a very concise summary of about a quarter of the original length"
	case Low:
		return "a detailed summary of about three quarters of the original length"
	default:
		return "a balanced summary of about half the original length"
	}
}

// MaxKeyTerms caps [Summary.KeyTerms].
const MaxKeyTerms = 5

// Summary is an extractive summary.
type Summary struct {
	// Text joins the kept sentences with single spaces.
	Text string

	// Sentences are the kept sentences in original order.
	Sentences []string

	// Ranked are the kept sentences, best first.
	Ranked []string

	// KeyTerms are the most frequent content words, most frequent first.
	KeyTerms []string
}

// Summarize compresses text at level. It keeps at least one sentence of a
// non-empty text; blank text yields a zero Summary.
func Summarize(text string, level Level) Summary {
	sents := Sentences(text)
	if len(sents) == 0 {
		return Summary{}
	}

	freq, order := termFrequencies(sents)
	top := 0
	for _, n := range freq {
		top = max(top, n)
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(sents))
	for i, s := range sents {
		var score float64
		for _, t := range terms(s) {
			score += float64(freq[t]) / float64(top)
		}
		ranked[i] = scored{idx: i, score: score}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return a.idx - b.idx
		}
	})

	keep := max(1, int(math.Round(level.Ratio()*float64(len(sents)))))
	kept := ranked[:keep]

	out := Summary{Ranked: make([]string, 0, keep)}
	for _, k := range kept {
		out.Ranked = append(out.Ranked, sents[k.idx])
	}
	slices.SortFunc(kept, func(a, b scored) int { return a.idx - b.idx })
	for _, k := range kept {
		out.Sentences = append(out.Sentences, sents[k.idx])
	}
	out.Text = strings.Join(out.Sentences, " ")
	out.KeyTerms = keyTerms(freq, order)
	return out
}

// Sentences splits text after '.', '!' or '?' followed by whitespace, and at
// blank lines. Sentences are trimmed; empty ones are dropped.
func Sentences(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if s := strings.Join(strings.Fields(b.String()), " "); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		next := rune(0)
		if i+1 < len(runes) {
			next = runes[i+1]
		}
		switch {
		case (r == '.' || r == '!' || r == '?') && (next == 0 || unicode.IsSpace(next)):
			flush()
		case r == '\n' && next == '\n':
			flush()
		}
	}
	flush()
	return out
}

// terms returns the content words of s, lowercased.
func terms(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// termFrequencies counts content words and records first-seen order.
func termFrequencies(sents []string) (map[string]int, []string) {
	freq := map[string]int{}
	var order []string
	for _, s := range sents {
		for _, t := range terms(s) {
			if freq[t] == 0 {
				order = append(order, t)
			}
			freq[t]++
		}
	}
	return freq, order
}

func keyTerms(freq map[string]int, order []string) []string {
	ts := slices.Clone(order)
	slices.SortStableFunc(ts, func(a, b string) int { return freq[b] - freq[a] })
	if len(ts) > MaxKeyTerms {
		ts = ts[:MaxKeyTerms]
	}
	return ts
}

var stopWords = func() map[string]struct{} {
	list := `about above after again against all also and any are because been before being below
between both but can could did does doing down during each few for from further had has have
having her here hers herself him himself his how into its itself just more most much must
myself not now off once only other our ours ourselves out over own same she should some such
than that the their theirs them themselves then there these they this those through too under
until very was were what when where which while who whom why will with would you your yours
yourself yourselves called usually certain main take takes place many may might`
	set := map[string]struct{}{}
	for _, w := range strings.Fields(list) {
		set[w] = struct{}{}
	}
	return set
}()
