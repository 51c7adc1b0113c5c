package speech

import (
	"fmt"
	"strings"

	"github.com/lingoloop/lingoloop/internal/analysis"
	"github.com/lingoloop/lingoloop/internal/langseg"
	"github.com/lingoloop/lingoloop/internal/phonetic"
)

const idPrefixRules = "se_rb_"

var fillers = map[string]struct{}{
	"um": {}, "uh": {}, "er": {}, "ah": {}, "like": {},
}

// fillerPhrases are multi-word fillers, matched on consecutive words.
var fillerPhrases = [][]string{
	{"you", "know"},
}

// word is a normalized transcript token.
type word struct {
	norm       string
	start, end int
}

func words(text string) []word {
	toks := langseg.Tokenize(text)
	out := make([]word, 0, len(toks))
	for _, t := range toks {
		n := normalize(t.Text)
		if n == "" {
			continue
		}
		out = append(out, word{norm: n, start: t.Offset, end: t.Offset + len(t.Text)})
	}
	return out
}

func normalize(tok string) string {
	return strings.Trim(strings.ToLower(tok), ".,:;!?\"'()[]-…")
}

// detection is what the rule engine found in one transcript.
type detection struct {
	findings    []analysis.Finding
	fillers     []string
	repetitions int
}

// detector is the deterministic speech-error engine.
type detector struct {
	matcher *phonetic.Matcher
}

// detect scans transcript for fillers and immediate repetitions and, when
// expected is non-empty, for words that were misheard or left out. Findings
// are ordered by position; omissions come last.
func (d detector) detect(transcript, expected string) detection {
	ws := words(transcript)
	det := detection{findings: []analysis.Finding{}}
	seenFiller := map[string]bool{}
	addFiller := func(f string) {
		if !seenFiller[f] {
			seenFiller[f] = true
			det.fillers = append(det.fillers, f)
		}
	}

	vocab, vocabSet := vocabulary(expected)
	heard := map[string]bool{}

	for i := 0; i < len(ws); i++ {
		w := ws[i]
		heard[w.norm] = true

		if n := phraseAt(ws, i); n > 0 {
			phrase := transcript[w.start:ws[i+n-1].end]
			for _, pw := range ws[i : i+n] {
				heard[pw.norm] = true
			}
			addFiller(strings.ToLower(phrase))
			det.findings = append(det.findings, finding(analysis.KindFiller, phrase, "",
				fmt.Sprintf("Filler phrase %q. Try a short pause instead.", phrase), w.start, ws[i+n-1].end))
			i += n - 1
			continue
		}
		if _, ok := fillers[w.norm]; ok && !vocabSet[w.norm] {
			addFiller(w.norm)
			det.findings = append(det.findings, finding(analysis.KindFiller, transcript[w.start:w.end], "",
				fmt.Sprintf("Filler word %q. Try a short pause instead.", w.norm), w.start, w.end))
			continue
		}
		if i > 0 && ws[i-1].norm == w.norm {
			det.repetitions++
			det.findings = append(det.findings, finding(analysis.KindRepetition,
				transcript[ws[i-1].start:w.end], transcript[ws[i-1].start:ws[i-1].end],
				fmt.Sprintf("The word %q was repeated.", w.norm), ws[i-1].start, w.end))
			continue
		}
		if len(vocab) == 0 || vocabSet[w.norm] || len(w.norm) < 2 {
			continue
		}
		if target, _, ok := d.matcher.Closest(w.norm, vocab); ok && target != w.norm {
			heard[target] = true
			det.findings = append(det.findings, finding(analysis.KindMispronunciation,
				transcript[w.start:w.end], target,
				fmt.Sprintf("Heard %q where %q was expected. Focus on the sounds of %q.", w.norm, target, target),
				w.start, w.end))
		}
	}

	for _, v := range vocab {
		if !heard[v] {
			det.findings = append(det.findings, finding(analysis.KindOmission, v, v,
				fmt.Sprintf("The expected word %q was not heard.", v), -1, -1))
		}
	}
	return det
}

// phraseAt returns the length of the filler phrase starting at ws[i], or 0.
func phraseAt(ws []word, i int) int {
	for _, p := range fillerPhrases {
		if i+len(p) > len(ws) {
			continue
		}
		match := true
		for j, part := range p {
			if ws[i+j].norm != part {
				match = false
				break
			}
		}
		if match {
			return len(p)
		}
	}
	return 0
}

// vocabulary returns the distinct normalized words of expected in first-seen
// order, and the same words as a set.
func vocabulary(expected string) ([]string, map[string]bool) {
	ws := words(expected)
	set := make(map[string]bool, len(ws))
	list := make([]string, 0, len(ws))
	for _, w := range ws {
		if !set[w.norm] {
			set[w.norm] = true
			list = append(list, w.norm)
		}
	}
	return list, set
}

func finding(kind, text, suggestion, explanation string, start, end int) analysis.Finding {
	return analysis.Finding{
		ID:          analysis.NewID(idPrefixRules),
		Kind:        kind,
		Text:        text,
		Suggestion:  suggestion,
		Explanation: explanation,
		Start:       start,
		End:         end,
		Tier:        analysis.Fallback,
	}
}
