package summarize_test

import (
	"reflect"
	"testing"

	"github.com/lingoloop/lingoloop/internal/summarize"
)

const photosynthesis = `Photosynthesis converts light energy into chemical energy. Plants perform photosynthesis in chloroplasts.
The weather was nice yesterday. Chlorophyll in chloroplasts absorbs light energy for photosynthesis.`

func TestSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"Version 1.5 is out. Get it", []string{"Version 1.5 is out.", "Get it"}},
		{"Heading\n\nBody text here.", []string{"Heading", "Body text here."}},
		{"  spaced   out\ttext.  ", []string{"spaced out text."}},
		{"   ", nil},
	}
	for _, tt := range tests {
		if got := summarize.Sentences(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Sentences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSummarize_LevelsKeepOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level summarize.Level
		want  []string
	}{
		{summarize.High, []string{
			"Photosynthesis converts light energy into chemical energy.",
		}},
		{summarize.Medium, []string{
			"Photosynthesis converts light energy into chemical energy.",
			"Chlorophyll in chloroplasts absorbs light energy for photosynthesis.",
		}},
		{summarize.Low, []string{
			"Photosynthesis converts light energy into chemical energy.",
			"Plants perform photosynthesis in chloroplasts.",
			"Chlorophyll in chloroplasts absorbs light energy for photosynthesis.",
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			t.Parallel()
			got := summarize.Summarize(photosynthesis, tt.level)
			if !reflect.DeepEqual(got.Sentences, tt.want) {
				t.Errorf("Sentences = %q, want %q", got.Sentences, tt.want)
			}
		})
	}
}

func TestSummarize_KeyTerms(t *testing.T) {
	t.Parallel()

	got := summarize.Summarize(photosynthesis, summarize.Medium)
	want := []string{"photosynthesis", "energy", "light", "chloroplasts", "converts"}
	if !reflect.DeepEqual(got.KeyTerms, want) {
		t.Errorf("KeyTerms = %q, want %q", got.KeyTerms, want)
	}
	if got.Ranked[1] != "Chlorophyll in chloroplasts absorbs light energy for photosynthesis." {
		t.Errorf("Ranked[1] = %q", got.Ranked[1])
	}
}

func TestSummarize_KeepsAtLeastOne(t *testing.T) {
	t.Parallel()

	got := summarize.Summarize("Just one short sentence.", summarize.High)
	if got.Text != "Just one short sentence." {
		t.Errorf("Text = %q", got.Text)
	}
	if empty := summarize.Summarize(" \n ", summarize.Low); empty.Text != "" || empty.Sentences != nil {
		t.Errorf("expected zero summary for blank text, got %+v", empty)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]summarize.Level{"": summarize.Medium, "HIGH": summarize.High, " low ": summarize.Low} {
		got, err := summarize.ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := summarize.ParseLevel("extreme"); err == nil {
		t.Error("expected error for unknown level")
	}
}
