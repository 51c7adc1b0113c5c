package grammar_test

import (
	"testing"

	"github.com/lingoloop/lingoloop/pkg/provider/grammar"
)

func TestMatchSpan(t *testing.T) {
	t.Parallel()

	text := "She go to school."
	tests := []struct {
		name string
		m    grammar.Match
		want string
	}{
		{"word", grammar.Match{Offset: 4, Length: 2}, "go"},
		{"start", grammar.Match{Offset: 0, Length: 3}, "She"},
		{"past end", grammar.Match{Offset: 15, Length: 5}, ""},
		{"negative", grammar.Match{Offset: -1, Length: 2}, ""},
	}
	for _, tt := range tests {
		if got := tt.m.Span(text); got != tt.want {
			t.Errorf("%s: Span = %q, want %q", tt.name, got, tt.want)
		}
	}
}
