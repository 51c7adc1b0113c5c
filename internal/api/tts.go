package api

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/internal/synth"
)

// Single-voice defaults.
const (
	defaultVoiceID = "en-US-Standard-D"
	defaultSpeed   = 2.0
)

type ttsRequest struct {
	Text  string  `json:"text"`
	Speed float64 `json:"speed"`
}

type segmentJSON struct {
	Index    int    `json:"index"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

type ttsResponse struct {
	AudioBase64 string        `json:"audio_base64"`
	Segments    []segmentJSON `json:"segments"`
	Skipped     []int         `json:"skipped"`
}

// handleTextToSpeech voices mixed-language text segment by segment.
func (s *Server) handleTextToSpeech(w http.ResponseWriter, r *http.Request) {
	if s.svc.Synth == nil {
		writeError(w, r, apperr.Unavailable("tts"))
		return
	}
	var req ttsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, r, apperr.Validation("text is required"))
		return
	}

	res, err := s.svc.Synth.SynthesizeText(r.Context(), req.Text, synth.Options{SpeakingRate: req.Speed})
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := ttsResponse{
		AudioBase64: base64.StdEncoding.EncodeToString(res.Audio),
		Segments:    make([]segmentJSON, 0, len(res.Segments)),
		Skipped:     res.Skipped,
	}
	if out.Skipped == nil {
		out.Skipped = []int{}
	}
	for _, seg := range res.Segments {
		out.Segments = append(out.Segments, segmentJSON{Index: seg.Index, Language: seg.Tag.String(), Text: seg.Text})
	}
	writeJSON(w, http.StatusOK, out)
}

type singleVoiceRequest struct {
	Text    string   `json:"text"`
	VoiceID string   `json:"voiceId"`
	Speed   *float64 `json:"speed"`
}

type audioResponse struct {
	AudioBase64 string `json:"audio_base64"`
}

// handleSingleVoice voices text with one explicit voice.
func (s *Server) handleSingleVoice(w http.ResponseWriter, r *http.Request) {
	if s.svc.Synth == nil {
		writeError(w, r, apperr.Unavailable("tts"))
		return
	}
	var req singleVoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	voice := req.VoiceID
	if voice == "" {
		voice = defaultVoiceID
	}
	speed := defaultSpeed
	if req.Speed != nil {
		speed = *req.Speed
	}

	audio, err := s.svc.Synth.SynthesizeVoice(r.Context(), strings.TrimSpace(req.Text), voice, speed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audioResponse{AudioBase64: base64.StdEncoding.EncodeToString(audio)})
}

type voicesResponse struct {
	Voices  []synth.CatalogueVoice `json:"voices"`
	Warning string                 `json:"warning,omitempty"`
}

// handleVoices lists the English voices.
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if s.svc.Synth == nil {
		writeError(w, r, apperr.Unavailable("tts"))
		return
	}
	voices, err := s.svc.Synth.Catalogue(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := voicesResponse{Voices: voices}
	if len(voices) == 0 {
		out.Warning = "no English voices available"
	}
	writeJSON(w, http.StatusOK, out)
}
