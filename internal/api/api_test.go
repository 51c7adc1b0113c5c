package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/lingoloop/lingoloop/internal/analysis/concept"
	"github.com/lingoloop/lingoloop/internal/analysis/grammar"
	"github.com/lingoloop/lingoloop/internal/analysis/speech"
	"github.com/lingoloop/lingoloop/internal/api"
	"github.com/lingoloop/lingoloop/internal/config"
	"github.com/lingoloop/lingoloop/internal/observe"
	"github.com/lingoloop/lingoloop/internal/ratelimit"
	"github.com/lingoloop/lingoloop/internal/synth"
	rules "github.com/lingoloop/lingoloop/pkg/provider/grammar"
	grammarmock "github.com/lingoloop/lingoloop/pkg/provider/grammar/mock"
	ocrmock "github.com/lingoloop/lingoloop/pkg/provider/ocr/mock"
	"github.com/lingoloop/lingoloop/pkg/provider/stt"
	sttmock "github.com/lingoloop/lingoloop/pkg/provider/stt/mock"
	"github.com/lingoloop/lingoloop/pkg/provider/tts"
	ttsmock "github.com/lingoloop/lingoloop/pkg/provider/tts/mock"
)

func echoLocale(req tts.Request) ([]byte, error) {
	return []byte(req.Locale + ";"), nil
}

func newServer(t *testing.T, svc api.Services, opts ...api.Option) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(api.New(svc, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func postFile(t *testing.T, url, field string, data []byte, fields map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if field != "" {
		fw, err := mw.CreateFormFile(field, "upload.bin")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

type errorResponse struct {
	Error string `json:"error"`
}

func TestTextToSpeech(t *testing.T) {
	t.Parallel()

	p := &ttsmock.Provider{SynthesizeFunc: echoLocale}
	srv := newServer(t, api.Services{Synth: synth.New(p)})

	resp := postJSON(t, srv.URL+"/api/texttospeech", `{"text":"hello world"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[struct {
		AudioBase64 string `json:"audio_base64"`
		Segments    []struct {
			Index    int    `json:"index"`
			Language string `json:"language"`
			Text     string `json:"text"`
		} `json:"segments"`
		Skipped []int `json:"skipped"`
	}](t, resp)

	audio, err := base64.StdEncoding.DecodeString(body.AudioBase64)
	if err != nil {
		t.Fatalf("audio is not base64: %v", err)
	}
	if string(audio) != "en-US;" {
		t.Errorf("audio = %q, want %q", audio, "en-US;")
	}
	if len(body.Segments) != 1 || body.Segments[0].Language != "en" || body.Segments[0].Text != "hello world" {
		t.Errorf("segments = %+v", body.Segments)
	}
	if body.Skipped == nil || len(body.Skipped) != 0 {
		t.Errorf("skipped = %v, want []", body.Skipped)
	}
}

func TestTextToSpeech_InvalidInput(t *testing.T) {
	t.Parallel()

	p := &ttsmock.Provider{SynthesizeFunc: echoLocale}
	srv := newServer(t, api.Services{Synth: synth.New(p)})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "no JSON data"},
		{"bad json", "{", "invalid JSON"},
		{"blank text", `{"text":"   "}`, "text is required"},
		{"speed out of range", `{"text":"hello","speed":9}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/texttospeech", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			e := decode[errorResponse](t, resp)
			if !strings.Contains(e.Error, tt.want) {
				t.Errorf("error = %q, want it to contain %q", e.Error, tt.want)
			}
		})
	}
	if n := len(p.SynthesizeCalls); n != 0 {
		t.Errorf("provider called %d times for invalid input", n)
	}
}

func TestTextToSpeech_ProviderFailure(t *testing.T) {
	t.Parallel()

	p := &ttsmock.Provider{SynthesizeErr: errors.New("quota exceeded")}
	srv := newServer(t, api.Services{Synth: synth.New(p)})

	resp := postJSON(t, srv.URL+"/api/texttospeech", `{"text":"hello"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestMissingServices(t *testing.T) {
	t.Parallel()

	srv := newServer(t, api.Services{})

	for _, path := range []string{
		"/api/texttospeech",
		"/api/tts_google",
		"/api/grammar-check",
		"/api/summarize_concept",
		"/api/speech-error-analysis",
		"/api/image-to-text",
	} {
		resp := postJSON(t, srv.URL+path, `{"text":"hello"}`)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", path, resp.StatusCode)
		}
	}
	resp, err := http.Get(srv.URL + "/api/voices")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("/api/voices: status = %d, want 503", resp.StatusCode)
	}
}

func TestSingleVoice(t *testing.T) {
	t.Parallel()

	p := &ttsmock.Provider{SynthesizeResult: []byte("mp3")}
	srv := newServer(t, api.Services{Synth: synth.New(p)})

	resp := postJSON(t, srv.URL+"/api/tts_google", `{"text":"good morning"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[struct {
		AudioBase64 string `json:"audio_base64"`
	}](t, resp)
	if body.AudioBase64 != base64.StdEncoding.EncodeToString([]byte("mp3")) {
		t.Errorf("audio = %q", body.AudioBase64)
	}
	if len(p.SynthesizeCalls) != 1 {
		t.Fatalf("calls = %d, want 1", len(p.SynthesizeCalls))
	}
	req := p.SynthesizeCalls[0].Req
	if req.VoiceID != "en-US-Standard-D" || req.Locale != "en-US" || req.SpeakingRate != 2.0 {
		t.Errorf("request = %+v", req)
	}
}

func TestSingleVoice_InvalidVoice(t *testing.T) {
	t.Parallel()

	srv := newServer(t, api.Services{Synth: synth.New(&ttsmock.Provider{})})

	resp := postJSON(t, srv.URL+"/api/tts_google", `{"text":"hi","voiceId":"nonsense"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestVoices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		voices      []tts.Voice
		wantCount   int
		wantWarning bool
	}{
		{
			name: "english voices",
			voices: []tts.Voice{
				{ID: "en-US-Standard-D", LanguageCodes: []string{"en-US"}, Gender: tts.GenderMale},
				{ID: "de-DE-Standard-A", LanguageCodes: []string{"de-DE"}},
			},
			wantCount: 1,
		},
		{name: "none", wantWarning: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newServer(t, api.Services{Synth: synth.New(&ttsmock.Provider{ListVoicesResult: tt.voices})})

			resp, err := http.Get(srv.URL + "/api/voices")
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			body := decode[struct {
				Voices  []synth.CatalogueVoice `json:"voices"`
				Warning string                 `json:"warning"`
			}](t, resp)
			if len(body.Voices) != tt.wantCount {
				t.Errorf("voices = %d, want %d", len(body.Voices), tt.wantCount)
			}
			if (body.Warning != "") != tt.wantWarning {
				t.Errorf("warning = %q", body.Warning)
			}
		})
	}
}

func TestGrammarCheck(t *testing.T) {
	t.Parallel()

	checker := &grammarmock.Checker{CheckResult: []rules.Match{
		{Offset: 4, Length: 2, Message: "Use 'goes'.", Replacements: []string{"goes"}},
	}}
	srv := newServer(t, api.Services{Grammar: grammar.New(grammar.WithRules(checker, "languagetool"))})

	resp := postJSON(t, srv.URL+"/api/grammar-check", `{"text":"She go to school."}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[struct {
		Findings []struct {
			ID          string `json:"id"`
			Error       string `json:"error"`
			Correction  string `json:"correction"`
			Explanation string `json:"explanation"`
			StartIndex  int    `json:"startIndex"`
			EndIndex    int    `json:"endIndex"`
			Source      string `json:"source"`
		} `json:"findings"`
		TierUsed string `json:"tierUsed"`
	}](t, resp)

	if body.TierUsed != "fallback" {
		t.Errorf("tierUsed = %q, want fallback", body.TierUsed)
	}
	if len(body.Findings) != 1 {
		t.Fatalf("findings = %+v", body.Findings)
	}
	f := body.Findings[0]
	if f.Error != "go" || f.Correction != "goes" || f.StartIndex != 4 || f.EndIndex != 6 || f.ID == "" {
		t.Errorf("finding = %+v", f)
	}
	if f.Source != "fallback" {
		t.Errorf("source = %q, want fallback", f.Source)
	}
}

func TestGrammarCheck_BlankText(t *testing.T) {
	t.Parallel()

	checker := &grammarmock.Checker{}
	srv := newServer(t, api.Services{Grammar: grammar.New(grammar.WithRules(checker, "languagetool"))})

	resp := postJSON(t, srv.URL+"/api/grammar-check", `{"text":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if checker.Calls() != 0 {
		t.Errorf("checker called %d times", checker.Calls())
	}
}

func TestSummarizeConcept(t *testing.T) {
	t.Parallel()

	srv := newServer(t, api.Services{Concept: concept.New()})

	text := "Photosynthesis converts light into chemical energy. Plants use chlorophyll to absorb light. " +
		"The process releases oxygen as a by-product. Glucose stores the captured energy."
	reqBody, _ := json.Marshal(map[string]string{"text": text, "level": "High"})

	resp := postJSON(t, srv.URL+"/api/summarize_concept", string(reqBody))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[struct {
		Summary     string   `json:"summary"`
		KeyConcepts []string `json:"keyConcepts"`
		Learning    struct {
			FocusPoints   []string `json:"focusPoints"`
			RelatedTopics []string `json:"suggestedRelatedTopics"`
		} `json:"learningEnhancement"`
		TierUsed string `json:"tierUsed"`
	}](t, resp)
	if body.Summary == "" {
		t.Error("summary is empty")
	}
	if body.TierUsed != "fallback" {
		t.Errorf("tierUsed = %q, want fallback", body.TierUsed)
	}
}

func TestSummarizeConcept_InvalidLevel(t *testing.T) {
	t.Parallel()

	srv := newServer(t, api.Services{Concept: concept.New()})

	resp := postJSON(t, srv.URL+"/api/summarize_concept", `{"text":"Some text here.","level":"extreme"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSpeechAnalysis(t *testing.T) {
	t.Parallel()

	transcriber := &sttmock.Provider{TranscribeResult: &stt.Transcript{Text: "um I want to go to school"}}
	srv := newServer(t, api.Services{Speech: speech.New(transcriber, "google")})

	audio := make([]byte, 16000*2*3)
	resp := postFile(t, srv.URL+"/api/speech-error-analysis", "audio", audio, map[string]string{
		"expected_text": "I want to go to school",
		"sample_rate":   "16000",
		"encoding":      "linear16",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[struct {
		Transcript string `json:"transcript"`
		Errors     []struct {
			Kind   string `json:"kind"`
			Source string `json:"source"`
		} `json:"errors"`
		Fluency struct {
			Score       int      `json:"score"`
			FillerWords []string `json:"fillerWords"`
		} `json:"fluency"`
		TierUsed string `json:"tierUsed"`
	}](t, resp)

	if body.Transcript != "um I want to go to school" {
		t.Errorf("transcript = %q", body.Transcript)
	}
	if body.TierUsed != "fallback" {
		t.Errorf("tierUsed = %q, want fallback", body.TierUsed)
	}
	if body.Fluency.FillerWords == nil {
		t.Error("fillerWords is null")
	}
	if len(body.Errors) == 0 {
		t.Fatal("expected the filler word to be reported")
	}
	for _, e := range body.Errors {
		if e.Source != "fallback" {
			t.Errorf("%s finding source = %q, want fallback", e.Kind, e.Source)
		}
	}

	if len(transcriber.TranscribeCalls) != 1 {
		t.Fatalf("transcribe calls = %d, want 1", len(transcriber.TranscribeCalls))
	}
	req := transcriber.TranscribeCalls[0].Req
	if req.Encoding != stt.EncodingLinear16 || req.SampleRate != 16000 {
		t.Errorf("stt request = %+v", req)
	}
}

func TestSpeechAnalysis_BadUpload(t *testing.T) {
	t.Parallel()

	srv := newServer(t, api.Services{Speech: speech.New(&sttmock.Provider{}, "google")})

	tests := []struct {
		name   string
		field  string
		data   []byte
		fields map[string]string
	}{
		{name: "no file"},
		{name: "empty file", field: "audio"},
		{name: "bad sample rate", field: "audio", data: []byte{0, 0}, fields: map[string]string{"sample_rate": "fast"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postFile(t, srv.URL+"/api/speech-error-analysis", tt.field, tt.data, tt.fields)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestImageToText(t *testing.T) {
	t.Parallel()

	p := &ocrmock.Provider{DetectTextResult: "The quick brown fox"}
	srv := newServer(t, api.Services{OCR: p, OCRName: "google", OCRTimeout: time.Second})

	resp := postFile(t, srv.URL+"/api/image-to-text", "image", []byte("\x89PNG"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[struct {
		ExtractedText string `json:"extractedText"`
	}](t, resp)
	if body.ExtractedText != "The quick brown fox" {
		t.Errorf("extractedText = %q", body.ExtractedText)
	}
	if len(p.DetectTextCalls) != 1 || string(p.DetectTextCalls[0]) != "\x89PNG" {
		t.Errorf("calls = %q", p.DetectTextCalls)
	}
}

func TestImageToText_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		p     *ocrmock.Provider
		field string
		want  int
	}{
		{"provider failure", &ocrmock.Provider{DetectTextErr: errors.New("permission denied")}, "image", http.StatusBadGateway},
		{"wrong field", &ocrmock.Provider{}, "file", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newServer(t, api.Services{OCR: tt.p})
			resp := postFile(t, srv.URL+"/api/image-to-text", tt.field, []byte("img"), nil)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	p := &ttsmock.Provider{SynthesizeFunc: echoLocale}
	limits := ratelimit.NewSet(map[string]int{config.EndpointTTS: 1}, observe.DefaultMetrics())
	srv := newServer(t, api.Services{Synth: synth.New(p)}, api.WithRateLimits(limits))

	first := postJSON(t, srv.URL+"/api/texttospeech", `{"text":"hello"}`)
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.StatusCode)
	}
	second := postJSON(t, srv.URL+"/api/texttospeech", `{"text":"hello"}`)
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.StatusCode)
	}
	if second.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	// Other endpoints keep their own budget.
	resp, err := http.Get(srv.URL + "/api/voices")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("voices status = %d, want 200", resp.StatusCode)
	}
}

func TestWithHandler(t *testing.T) {
	t.Parallel()

	ping := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "pong")
	})
	srv := newServer(t, api.Services{}, api.WithHandler("GET /ping", ping))

	resp, err := http.Get(srv.URL + "/ping")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "pong" {
		t.Errorf("body = %q, want pong", b)
	}
}

func dialStream(t *testing.T, srv *httptest.Server) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/texttospeech/stream"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn, ctx
}

func TestTextToSpeechStream(t *testing.T) {
	t.Parallel()

	p := &ttsmock.Provider{SynthesizeFunc: echoLocale}
	srv := newServer(t, api.Services{Synth: synth.New(p)})
	conn, ctx := dialStream(t, srv)

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"text":"hello my friend"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	type frame struct {
		Index       int    `json:"index"`
		Language    string `json:"language"`
		AudioBase64 string `json:"audio_base64"`
		Done        bool   `json:"done"`
		Segments    int    `json:"segments"`
		Skipped     []int  `json:"skipped"`
		Error       string `json:"error"`
	}
	var chunks []frame
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("frame is not JSON: %v", err)
		}
		if f.Error != "" {
			t.Fatalf("error frame: %s", f.Error)
		}
		if f.Done {
			if f.Segments != len(chunks) {
				t.Errorf("done.segments = %d, got %d chunks", f.Segments, len(chunks))
			}
			break
		}
		chunks = append(chunks, f)
	}
	if len(chunks) != 1 || chunks[0].Language != "en" {
		t.Fatalf("chunks = %+v", chunks)
	}
	audio, _ := base64.StdEncoding.DecodeString(chunks[0].AudioBase64)
	if string(audio) != "en-US;" {
		t.Errorf("audio = %q", audio)
	}

	_, _, err := conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Errorf("close status = %v, want normal closure", websocket.CloseStatus(err))
	}
}

func TestTextToSpeechStream_BlankText(t *testing.T) {
	t.Parallel()

	p := &ttsmock.Provider{SynthesizeFunc: echoLocale}
	srv := newServer(t, api.Services{Synth: synth.New(p)})
	conn, ctx := dialStream(t, srv)

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"text":"  "}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var e errorResponse
	if err := json.Unmarshal(data, &e); err != nil || !strings.Contains(e.Error, "text is required") {
		t.Errorf("frame = %s", data)
	}
	_, _, err = conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusPolicyViolation {
		t.Errorf("close status = %v, want policy violation", websocket.CloseStatus(err))
	}
}
