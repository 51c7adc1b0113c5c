package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lingoloop/lingoloop/pkg/provider/tts"
)

// ---- request construction ----

func TestBuildSynthesisRequest(t *testing.T) {
	data, err := buildSynthesisRequest(tts.Request{Text: "Bonjour", Locale: "fr-FR", SpeakingRate: 1.1}, "eleven_multilingual_v2")
	if err != nil {
		t.Fatalf("buildSynthesisRequest: %v", err)
	}

	var body synthesisRequest
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Text != "Bonjour" {
		t.Errorf("expected text 'Bonjour', got %q", body.Text)
	}
	if body.LanguageCode != "fr" {
		t.Errorf("expected language_code 'fr', got %q", body.LanguageCode)
	}
	if body.ModelID != "eleven_multilingual_v2" {
		t.Errorf("expected model_id, got %q", body.ModelID)
	}
	if body.VoiceSettings == nil || body.VoiceSettings.Speed != 1.1 {
		t.Errorf("expected speed 1.1, got %+v", body.VoiceSettings)
	}
}

func TestBuildSynthesisRequest_OmitsDefaultSpeed(t *testing.T) {
	data, err := buildSynthesisRequest(tts.Request{Text: "hi"}, defaultModel)
	if err != nil {
		t.Fatalf("buildSynthesisRequest: %v", err)
	}
	if strings.Contains(string(data), `"speed"`) {
		t.Errorf("expected speed to be omitted, got %s", data)
	}
	if strings.Contains(string(data), `"language_code"`) {
		t.Errorf("expected language_code to be omitted for empty locale, got %s", data)
	}
}

func TestClampSpeed(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{0.25, 0.7},
		{1.0, 1.0},
		{2.0, 1.2},
	}
	for _, tt := range tests {
		if got := clampSpeed(tt.in); got != tt.want {
			t.Errorf("clampSpeed(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOutputFormat(t *testing.T) {
	if got := outputFormat(""); got != "mp3_44100_128" {
		t.Errorf("expected mp3 default, got %q", got)
	}
	if got := outputFormat(tts.EncodingLinear16); got != "pcm_16000" {
		t.Errorf("expected pcm_16000, got %q", got)
	}
}

// ---- HTTP round trips ----

func TestSynthesize_PostsToVoiceEndpoint(t *testing.T) {
	var gotPath, gotKey, gotFormat string
	var gotBody synthesisRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		gotFormat = r.URL.Query().Get("output_format")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	p, err := New("secret", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	audio, err := p.Synthesize(context.Background(), tts.Request{Text: "Hola", Locale: "es-ES", VoiceID: "v1"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Errorf("expected audio body, got %q", audio)
	}
	if gotPath != "/v1/text-to-speech/v1" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("expected api key header, got %q", gotKey)
	}
	if gotFormat != "mp3_44100_128" {
		t.Errorf("expected mp3 output format, got %q", gotFormat)
	}
	if gotBody.LanguageCode != "es" {
		t.Errorf("expected language_code es, got %q", gotBody.LanguageCode)
	}
}

func TestSynthesize_UsesDefaultVoice(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL), WithDefaultVoice("rachel"))
	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "hi"}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotPath != "/v1/text-to-speech/rachel" {
		t.Errorf("unexpected path %q", gotPath)
	}
}

func TestSynthesize_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))

	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "hi"}); err == nil {
		t.Error("expected error when no voice id is available")
	}
	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "  ", VoiceID: "v"}); err == nil {
		t.Error("expected error for blank text")
	}
	_, err := p.Synthesize(context.Background(), tts.Request{Text: "hi", VoiceID: "v"})
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("expected status error quoting body, got %v", err)
	}
}

func TestListVoices_FiltersByLanguageLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"voices":[
			{"voice_id":"a","name":"Amelie","labels":{"language":"fr","gender":"female"}},
			{"voice_id":"b","name":"Brian","labels":{"gender":"male"}},
			{"voice_id":"c","name":"Carla","labels":{"language":"es"}}
		]}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	voices, err := p.ListVoices(context.Background(), "fr")
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d: %+v", len(voices), voices)
	}
	if voices[0].ID != "a" || voices[0].Gender != tts.GenderFemale {
		t.Errorf("unexpected first voice %+v", voices[0])
	}
	if voices[1].ID != "b" || voices[1].Gender != tts.GenderMale {
		t.Errorf("unexpected second voice %+v", voices[1])
	}
}

// ---- Voice list response parsing ----

func TestParseVoicesResponse_Success(t *testing.T) {
	raw := []byte(`{
		"voices": [
			{
				"voice_id": "abc123",
				"name": "Rachel",
				"category": "premade",
				"labels": {"gender": "female", "accent": "american"}
			},
			{
				"voice_id": "def456",
				"name": "Adam",
				"category": "premade",
				"labels": {"gender": "male"}
			}
		]
	}`)

	voices, err := parseVoicesResponse(raw)
	if err != nil {
		t.Fatalf("parseVoicesResponse: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(voices))
	}

	rachel := voices[0]
	if rachel.ID != "abc123" {
		t.Errorf("expected ID 'abc123', got %q", rachel.ID)
	}
	if rachel.Provider != "elevenlabs" {
		t.Errorf("expected Provider 'elevenlabs', got %q", rachel.Provider)
	}
	if rachel.Metadata["accent"] != "american" {
		t.Errorf("expected accent 'american', got %q", rachel.Metadata["accent"])
	}
	if rachel.Metadata["category"] != "premade" {
		t.Errorf("expected category 'premade', got %q", rachel.Metadata["category"])
	}
}

func TestParseVoicesResponse_NoLabels(t *testing.T) {
	raw := []byte(`{"voices": [{"voice_id": "x1", "name": "Ghost", "category": "", "labels": null}]}`)
	voices, err := parseVoicesResponse(raw)
	if err != nil {
		t.Fatalf("parseVoicesResponse: %v", err)
	}
	if len(voices) != 1 {
		t.Fatalf("expected 1 voice, got %d", len(voices))
	}
	if _, ok := voices[0].Metadata["category"]; ok {
		t.Error("expected no 'category' key in metadata when category is empty")
	}
	if voices[0].Gender != tts.GenderNeutral {
		t.Errorf("expected neutral gender, got %q", voices[0].Gender)
	}
}

func TestParseVoicesResponse_InvalidJSON(t *testing.T) {
	if _, err := parseVoicesResponse([]byte(`{invalid`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

// ---- Constructor tests ----

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != defaultModel {
		t.Errorf("expected model %q, got %q", defaultModel, p.model)
	}
	if p.baseURL != defaultBaseURL {
		t.Errorf("expected baseURL %q, got %q", defaultBaseURL, p.baseURL)
	}
}
