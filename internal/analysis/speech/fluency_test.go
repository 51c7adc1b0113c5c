package speech

import (
	"testing"
	"time"
)

func TestPaceFor(t *testing.T) {
	tests := []struct {
		wpm  float64
		want string
	}{
		{0, PaceUnknown},
		{80, PaceSlow},
		{120, PaceSlightlySlow},
		{130, PaceGood},
		{160, PaceGood},
		{175, PaceSlightlyFast},
		{220, PaceFast},
	}
	for _, tt := range tests {
		if got := paceFor(tt.wpm); got != tt.want {
			t.Errorf("paceFor(%v) = %q, want %q", tt.wpm, got, tt.want)
		}
	}
}

func TestMeasure_ScoreIsClamped(t *testing.T) {
	text := "um um um um um um um um um um um um um um um um um um um um um um"
	det := detector{}.detect(text, "")
	f := measure(text, 2*time.Second, det)
	if f.Score != 0 {
		t.Errorf("score = %d, want clamp at 0", f.Score)
	}
	if len(f.FillerWords) != 1 || f.FillerWords[0] != "um" {
		t.Errorf("filler words = %v, want distinct list", f.FillerWords)
	}
}

func TestAdvise(t *testing.T) {
	if got := advise(Fluency{Pace: PaceUnknown, FillerWords: []string{}}, 0); got != "No delivery issues detected." {
		t.Errorf("advise = %q", got)
	}
	got := advise(Fluency{Pace: PaceFast, FillerWords: []string{"uh"}}, 0)
	if got != `Your pace is fast, which can affect clarity. Try taking brief pauses. Reducing filler words like "uh" will help.` {
		t.Errorf("advise = %q", got)
	}
}
