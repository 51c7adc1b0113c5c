package speech

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lingoloop/lingoloop/internal/analysis"
)

// Pace labels.
const (
	PaceUnknown      = "unknown"
	PaceSlow         = "slow"
	PaceSlightlySlow = "slightly slow"
	PaceGood         = "good"
	PaceSlightlyFast = "slightly fast"
	PaceFast         = "fast"
)

// Fluency summarises how the recording was delivered.
type Fluency struct {
	// Score in [0, 100].
	Score int

	Pace           string
	WordsPerMinute float64
	FillerWords    []string

	// Feedback is overall advice. It comes from the model when the primary
	// tier succeeds.
	Feedback string
}

// paceFor classifies a speaking rate. Conversational English sits around
// 130 to 160 words per minute.
func paceFor(wpm float64) string {
	switch {
	case wpm <= 0:
		return PaceUnknown
	case wpm < 100:
		return PaceSlow
	case wpm < 130:
		return PaceSlightlySlow
	case wpm <= 160:
		return PaceGood
	case wpm <= 190:
		return PaceSlightlyFast
	default:
		return PaceFast
	}
}

func pacePenalty(pace string) int {
	switch pace {
	case PaceSlightlySlow, PaceSlightlyFast:
		return 10
	case PaceSlow, PaceFast:
		return 20
	default:
		return 0
	}
}

// measure computes fluency metrics from the transcript, the recording length
// and what the rule engine found. A zero duration leaves the pace unknown.
func measure(transcript string, duration time.Duration, det detection) Fluency {
	n := len(words(transcript))
	f := Fluency{Pace: PaceUnknown, FillerWords: det.fillers}
	if f.FillerWords == nil {
		f.FillerWords = []string{}
	}
	if n == 0 {
		return f
	}
	if duration > 0 {
		f.WordsPerMinute = math.Round(float64(n)/duration.Minutes()*10) / 10
		f.Pace = paceFor(f.WordsPerMinute)
	}

	fillerCount := 0
	for _, fd := range det.findings {
		if fd.Kind == analysis.KindFiller {
			fillerCount++
		}
	}
	score := 100 - 5*fillerCount - 4*det.repetitions - pacePenalty(f.Pace)
	f.Score = max(0, min(100, score))
	return f
}

// advise builds deterministic feedback from the metrics.
func advise(f Fluency, repetitions int) string {
	var parts []string
	switch f.Pace {
	case PaceGood:
		parts = append(parts, "Your pace is comfortable.")
	case PaceSlightlyFast, PaceFast:
		parts = append(parts, fmt.Sprintf("Your pace is %s, which can affect clarity. Try taking brief pauses.", f.Pace))
	case PaceSlightlySlow, PaceSlow:
		parts = append(parts, fmt.Sprintf("Your pace is %s. Try linking words into longer phrases.", f.Pace))
	}
	if len(f.FillerWords) > 0 {
		quoted := make([]string, len(f.FillerWords))
		for i, w := range f.FillerWords {
			quoted[i] = fmt.Sprintf("%q", w)
		}
		parts = append(parts, "Reducing filler words like "+strings.Join(quoted, ", ")+" will help.")
	}
	if repetitions > 0 {
		parts = append(parts, "Watch for repeated words.")
	}
	if len(parts) == 0 {
		return "No delivery issues detected."
	}
	return strings.Join(parts, " ")
}
