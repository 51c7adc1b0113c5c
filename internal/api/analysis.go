package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lingoloop/lingoloop/internal/analysis/speech"
	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/pkg/provider/stt"
)

type grammarRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// correctionJSON is one grammar finding.
type correctionJSON struct {
	ID          string `json:"id"`
	Error       string `json:"error"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation"`
	StartIndex  int    `json:"startIndex"`
	EndIndex    int    `json:"endIndex"`
	Source      string `json:"source"`
}

type grammarResponse struct {
	Findings []correctionJSON `json:"findings"`
	TierUsed string           `json:"tierUsed"`
	Partial  bool             `json:"partial"`
}

func (s *Server) handleGrammarCheck(w http.ResponseWriter, r *http.Request) {
	if s.svc.Grammar == nil {
		writeError(w, r, apperr.Unavailable("grammar_check"))
		return
	}
	var req grammarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.svc.Grammar.Check(r.Context(), req.Text, req.Language)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := grammarResponse{
		Findings: make([]correctionJSON, 0, len(out.Result)),
		TierUsed: string(out.Tier),
		Partial:  out.Partial,
	}
	for _, f := range out.Result {
		resp.Findings = append(resp.Findings, correctionJSON{
			ID:          f.ID,
			Error:       f.Text,
			Correction:  f.Suggestion,
			Explanation: f.Explanation,
			StartIndex:  f.Start,
			EndIndex:    f.End,
			Source:      string(f.Tier),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// issueJSON is one speech finding.
type issueJSON struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Issue       string `json:"issue"`
	Suggestion  string `json:"suggestion"`
	Explanation string `json:"explanation"`
	StartIndex  int    `json:"startIndex"`
	EndIndex    int    `json:"endIndex"`
	Source      string `json:"source"`
}

type fluencyJSON struct {
	Score          int      `json:"score"`
	Pace           string   `json:"pace"`
	WordsPerMinute float64  `json:"wordsPerMinute"`
	FillerWords    []string `json:"fillerWords"`
	Feedback       string   `json:"feedback,omitempty"`
}

type speechResponse struct {
	Transcript string      `json:"transcript"`
	Errors     []issueJSON `json:"errors"`
	Fluency    fluencyJSON `json:"fluency"`
	TierUsed   string      `json:"tierUsed"`
}

func (s *Server) handleSpeechAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.svc.Speech == nil {
		writeError(w, r, apperr.Unavailable("speech_to_text"))
		return
	}
	audio, err := formFile(w, r, "audio")
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := speech.Request{
		Audio:        audio,
		Encoding:     stt.Encoding(strings.ToUpper(strings.TrimSpace(r.FormValue("encoding")))),
		Language:     strings.TrimSpace(r.FormValue("language")),
		ExpectedText: r.FormValue("expected_text"),
	}
	if raw := strings.TrimSpace(r.FormValue("sample_rate")); raw != "" {
		rate, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, apperr.Validation("sample_rate must be an integer"))
			return
		}
		req.SampleRate = rate
	}

	rep, err := s.svc.Speech.Analyze(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fillers := rep.Fluency.FillerWords
	if fillers == nil {
		fillers = []string{}
	}
	resp := speechResponse{
		Transcript: rep.Transcript,
		Errors:     make([]issueJSON, 0, len(rep.Issues)),
		Fluency: fluencyJSON{
			Score:          rep.Fluency.Score,
			Pace:           rep.Fluency.Pace,
			WordsPerMinute: rep.Fluency.WordsPerMinute,
			FillerWords:    fillers,
			Feedback:       rep.Fluency.Feedback,
		},
		TierUsed: string(rep.Tier),
	}
	for _, f := range rep.Issues {
		resp.Errors = append(resp.Errors, issueJSON{
			ID:          f.ID,
			Kind:        f.Kind,
			Issue:       f.Text,
			Suggestion:  f.Suggestion,
			Explanation: f.Explanation,
			StartIndex:  f.Start,
			EndIndex:    f.End,
			Source:      string(f.Tier),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type conceptRequest struct {
	Text  string `json:"text"`
	Level string `json:"level"`
}

type learningJSON struct {
	FocusPoints   []string `json:"focusPoints"`
	RelatedTopics []string `json:"suggestedRelatedTopics"`
}

type conceptResponse struct {
	Summary     string       `json:"summary"`
	KeyConcepts []string     `json:"keyConcepts"`
	Learning    learningJSON `json:"learningEnhancement"`
	TierUsed    string       `json:"tierUsed"`
}

func (s *Server) handleSummarizeConcept(w http.ResponseWriter, r *http.Request) {
	if s.svc.Concept == nil {
		writeError(w, r, apperr.Unavailable("summarizer"))
		return
	}
	var req conceptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.svc.Concept.Summarize(r.Context(), req.Text, strings.ToLower(strings.TrimSpace(req.Level)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conceptResponse{
		Summary:     out.Result.Summary,
		KeyConcepts: out.Result.KeyConcepts,
		Learning: learningJSON{
			FocusPoints:   out.Result.FocusPoints,
			RelatedTopics: out.Result.RelatedTopics,
		},
		TierUsed: string(out.Tier),
	})
}

type ocrResponse struct {
	ExtractedText string `json:"extractedText"`
}

func (s *Server) handleImageToText(w http.ResponseWriter, r *http.Request) {
	if s.svc.OCR == nil {
		writeError(w, r, apperr.Unavailable("ocr"))
		return
	}
	image, err := formFile(w, r, "image")
	if err != nil {
		writeError(w, r, err)
		return
	}
	text, err := s.detectText(r.Context(), image)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ocrResponse{ExtractedText: text})
}

// detectText makes one bounded OCR call. An image without text yields "".
func (s *Server) detectText(ctx context.Context, image []byte) (string, error) {
	callCtx := ctx
	if s.svc.OCRTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.svc.OCRTimeout)
		defer cancel()
	}
	start := time.Now()
	text, err := s.svc.OCR.DetectText(callCtx, image)
	s.metrics.ObserveProvider(ctx, s.svc.OCRName, "ocr", start, err)
	if err != nil {
		return "", apperr.ProviderCall(s.svc.OCRName, err)
	}
	return text, nil
}
