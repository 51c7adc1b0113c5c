package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"

	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/internal/langseg"
	"github.com/lingoloop/lingoloop/internal/observe"
	"github.com/lingoloop/lingoloop/internal/synth"
)

// streamRequestTimeout bounds how long the server waits for the client's
// request frame.
const streamRequestTimeout = 10 * time.Second

// chunkFrame carries the audio of one segment.
type chunkFrame struct {
	Index       int    `json:"index"`
	Language    string `json:"language"`
	Text        string `json:"text"`
	AudioBase64 string `json:"audio_base64"`
}

// doneFrame ends a successful stream.
type doneFrame struct {
	Done     bool  `json:"done"`
	Segments int   `json:"segments"`
	Skipped  []int `json:"skipped"`
}

// handleTextToSpeechStream upgrades to a websocket, reads one {text, speed}
// frame and streams one frame per synthesized segment in order.
func (s *Server) handleTextToSpeechStream(w http.ResponseWriter, r *http.Request) {
	if s.svc.Synth == nil {
		writeError(w, r, apperr.Unavailable("tts"))
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	req, err := readStreamRequest(ctx, conn)
	if err != nil {
		closeWithError(ctx, conn, err)
		return
	}

	segs := langseg.SegmentText(req.Text)
	sum, err := s.svc.Synth.Stream(ctx, segs, synth.Options{SpeakingRate: req.Speed}, func(c synth.Chunk) error {
		return writeFrame(ctx, conn, chunkFrame{
			Index:       c.Segment.Index,
			Language:    c.Segment.Tag.String(),
			Text:        c.Segment.Text,
			AudioBase64: base64.StdEncoding.EncodeToString(c.Audio),
		})
	})
	if err != nil {
		closeWithError(ctx, conn, err)
		return
	}

	skipped := sum.Skipped
	if skipped == nil {
		skipped = []int{}
	}
	if err := writeFrame(ctx, conn, doneFrame{Done: true, Segments: sum.Synthesized, Skipped: skipped}); err != nil {
		observe.Logger(ctx).Debug("websocket write failed", "err", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "done")
}

func readStreamRequest(ctx context.Context, conn *websocket.Conn) (ttsRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, streamRequestTimeout)
	defer cancel()

	var req ttsRequest
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return req, apperr.Validation("no request frame: %v", err)
	}
	if typ != websocket.MessageText {
		return req, apperr.Validation("request frame must be text")
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, apperr.Validation("invalid JSON: %v", err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return req, apperr.Validation("text is required")
	}
	return req, nil
}

func writeFrame(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// closeWithError sends an error frame and closes the socket. Invalid input
// closes with a policy violation, everything else with an internal error.
func closeWithError(ctx context.Context, conn *websocket.Conn, err error) {
	observe.Logger(ctx).Warn("speech stream failed", "err", err)
	if werr := writeFrame(ctx, conn, errorBody{Error: err.Error()}); werr != nil {
		return
	}
	code := websocket.StatusInternalError
	if errors.Is(err, apperr.ErrValidation) {
		code = websocket.StatusPolicyViolation
	}
	conn.Close(code, truncateReason(err.Error()))
}

// truncateReason keeps a close reason within the 123 bytes a close frame
// allows.
func truncateReason(s string) string {
	const limit = 123
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
