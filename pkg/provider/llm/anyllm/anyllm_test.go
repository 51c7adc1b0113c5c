package anyllm

import (
	"slices"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/lingoloop/lingoloop/pkg/provider/llm"
)

func TestParams(t *testing.T) {
	tests := []struct {
		name     string
		req      llm.Request
		wantMsgs int
		wantTemp bool
		wantMax  bool
	}{
		{
			name: "full request",
			req: llm.Request{
				SystemPrompt: "You are a language tutor.",
				Messages:     []llm.Message{{Role: llm.RoleUser, Content: "Check: She go to school."}},
				Temperature:  0.2,
				MaxTokens:    512,
			},
			wantMsgs: 2, wantTemp: true, wantMax: true,
		},
		{
			name:     "defaults left unset",
			req:      llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}},
			wantMsgs: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Provider{model: "gemini-2.0-flash"}
			params := p.params(tt.req)

			if params.Model != "gemini-2.0-flash" {
				t.Errorf("model = %q", params.Model)
			}
			if len(params.Messages) != tt.wantMsgs {
				t.Fatalf("messages = %d, want %d", len(params.Messages), tt.wantMsgs)
			}
			if tt.req.SystemPrompt != "" && params.Messages[0].Role != anyllmlib.RoleSystem {
				t.Errorf("first message role = %q, want system", params.Messages[0].Role)
			}
			last := params.Messages[len(params.Messages)-1]
			if last.ContentString() != tt.req.Messages[0].Content {
				t.Errorf("user content = %q", last.ContentString())
			}
			if (params.Temperature != nil) != tt.wantTemp {
				t.Errorf("temperature = %v", params.Temperature)
			}
			if tt.wantTemp && *params.Temperature != tt.req.Temperature {
				t.Errorf("temperature = %v, want %v", *params.Temperature, tt.req.Temperature)
			}
			if (params.MaxTokens != nil) != tt.wantMax {
				t.Errorf("max tokens = %v", params.MaxTokens)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		backend     string
		model       string
		wantBackend string
		wantErr     bool
	}{
		{"default backend", "", "gemini-2.0-flash", "gemini", false},
		{"case insensitive", "Anthropic", "claude-3-5-sonnet-latest", "anthropic", false},
		{"empty model", "gemini", "", "", true},
		{"unknown backend", "fakecloud", "m", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.backend, tt.model, anyllmlib.WithAPIKey("test-key"))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if p.Backend() != tt.wantBackend || p.Model() != tt.model {
				t.Errorf("backend/model = %s/%s", p.Backend(), p.Model())
			}
		})
	}
}

func TestBackends(t *testing.T) {
	got := Backends()
	if !slices.IsSorted(got) {
		t.Errorf("Backends not sorted: %v", got)
	}
	for _, name := range []string{"gemini", "openai", "ollama"} {
		if !slices.Contains(got, name) {
			t.Errorf("Backends missing %s: %v", name, got)
		}
	}
}
