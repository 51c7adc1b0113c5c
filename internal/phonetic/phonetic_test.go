package phonetic_test

import (
	"testing"

	"github.com/lingoloop/lingoloop/internal/phonetic"
)

func TestClosest_PhoneticMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	word, score, ok := m.Closest("skool", []string{"every", "School", "day"})
	if !ok {
		t.Fatal("expected a match for a phonetic misspelling")
	}
	if word != "School" {
		t.Errorf("word = %q, want original casing %q", word, "School")
	}
	if score < 0.7 {
		t.Errorf("score = %f, want >= 0.7", score)
	}
}

func TestClosest_ExactMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	word, score, ok := m.Closest("SCHOOL", []string{"school"})
	if !ok || word != "school" || score < 0.999 {
		t.Errorf("Closest = (%q, %f, %v), want exact match", word, score, ok)
	}
}

func TestClosest_NoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	tests := []struct {
		name  string
		heard string
		vocab []string
	}{
		{"unrelated", "banana", []string{"school", "every"}},
		{"empty vocabulary", "school", nil},
		{"empty word", "  ", []string{"school"}},
		{"blank entries", "school", []string{"", " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			word, score, ok := m.Closest(tt.heard, tt.vocab)
			if ok || word != "" || score != 0 {
				t.Errorf("Closest = (%q, %f, %v), want no match", word, score, ok)
			}
		})
	}
}

func TestClosest_ThresholdsApply(t *testing.T) {
	t.Parallel()

	m := phonetic.New(phonetic.WithPhoneticThreshold(0.99), phonetic.WithFuzzyThreshold(0.99))
	if _, _, ok := m.Closest("skool", []string{"school"}); ok {
		t.Error("expected near match to be rejected at threshold 0.99")
	}
}

func TestSoundsAlike(t *testing.T) {
	t.Parallel()

	if !phonetic.SoundsAlike("skool", "school") {
		t.Error("expected skool and school to sound alike")
	}
	if phonetic.SoundsAlike("banana", "school") {
		t.Error("expected banana and school to differ")
	}
}
