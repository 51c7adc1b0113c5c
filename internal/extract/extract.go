// Package extract pulls a single JSON value out of free-form generative-model
// output.
//
// Models routinely wrap structured answers in prose or markdown code fences.
// [Extract] strips a surrounding fence, slices from the first opening
// delimiter of the expected shape to the last closing one, and parses only
// that slice. It never attempts partial recovery: anything that does not parse
// as the expected shape fails with [apperr.ErrMalformedResponse].
package extract

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lingoloop/lingoloop/internal/apperr"
)

// Shape is the expected outer type of the embedded value.
type Shape int

const (
	Object Shape = iota
	Array
)

// String returns "object" or "array".
func (s Shape) String() string {
	if s == Array {
		return "array"
	}
	return "object"
}

func (s Shape) delimiters() (openDelim, closeDelim byte) {
	if s == Array {
		return '[', ']'
	}
	return '{', '}'
}

// StripFence removes a markdown code fence wrapping raw. The fence is removed
// only when raw both starts with ``` (optionally ```json) and ends with ```.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(s, "```")
	if rest, ok := strings.CutPrefix(s, "```json"); ok {
		s = rest
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	return strings.TrimSpace(s)
}

// Slice returns the JSON candidate for shape inside raw: the text from the
// first opening delimiter to the last closing delimiter, inclusive.
func Slice(raw string, shape Shape) (string, error) {
	s := StripFence(raw)
	openDelim, closeDelim := shape.delimiters()
	start := strings.IndexByte(s, openDelim)
	end := strings.LastIndexByte(s, closeDelim)
	if start < 0 || end < start {
		return "", apperr.Malformed("no JSON %s found", shape)
	}
	candidate := s[start : end+1]
	if !gjson.Valid(candidate) {
		return "", apperr.Malformed("invalid JSON %s", shape)
	}
	parsed := gjson.Parse(candidate)
	if (shape == Array && !parsed.IsArray()) || (shape == Object && !parsed.IsObject()) {
		return "", apperr.Malformed("JSON value is not an %s", shape)
	}
	return candidate, nil
}

// Extract parses the embedded value of the expected shape. Objects decode to
// map[string]any and arrays to []any.
func Extract(raw string, shape Shape) (any, error) {
	candidate, err := Slice(raw, shape)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return nil, apperr.Malformed("decode %s: %v", shape, err)
	}
	return v, nil
}

// Decode extracts the embedded value of the expected shape into v. A value
// whose fields have the wrong JSON types fails with
// [apperr.ErrMalformedResponse].
func Decode(raw string, shape Shape, v any) error {
	candidate, err := Slice(raw, shape)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(candidate), v); err != nil {
		return apperr.Malformed("decode %s: %v", shape, err)
	}
	return nil
}
