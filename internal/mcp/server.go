// Package mcp exposes the language tools over the Model Context Protocol.
//
// The server speaks the MCP Streamable HTTP transport and offers three tools
// backed by the same components as the HTTP API:
//
//   - segment_text splits mixed-language text into language segments.
//   - check_grammar runs the grammar pipeline.
//   - summarize_concept runs the concept pipeline.
//
// A tool whose component is not configured is not registered.
package mcp

import (
	"context"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lingoloop/lingoloop/internal/analysis/concept"
	"github.com/lingoloop/lingoloop/internal/analysis/grammar"
	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/internal/langseg"
	"github.com/lingoloop/lingoloop/internal/observe"
)

// Tool names.
const (
	ToolSegmentText      = "segment_text"
	ToolCheckGrammar     = "check_grammar"
	ToolSummarizeConcept = "summarize_concept"
)

// Tools are the components behind the MCP tools. Nil fields disable the
// matching tool.
type Tools struct {
	Grammar *grammar.Checker
	Concept *concept.Summarizer
}

// SegmentInput is the argument of segment_text.
type SegmentInput struct {
	Text string `json:"text" jsonschema:"mixed-language text to split"`
}

// SegmentOutput is the result of segment_text.
type SegmentOutput struct {
	Segments []Segment `json:"segments"`
}

// Segment is one language run.
type Segment struct {
	Index    int    `json:"index"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

// GrammarInput is the argument of check_grammar.
type GrammarInput struct {
	Text     string `json:"text" jsonschema:"text to check"`
	Language string `json:"language,omitempty" jsonschema:"BCP-47 language, default en-US"`
}

// GrammarOutput is the result of check_grammar.
type GrammarOutput struct {
	Findings []Correction `json:"findings"`
	TierUsed string       `json:"tierUsed"`
}

// Correction is one grammar finding.
type Correction struct {
	ID          string `json:"id"`
	Error       string `json:"error"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation"`
	StartIndex  int    `json:"startIndex"`
	EndIndex    int    `json:"endIndex"`

	// Source is the tier that produced the finding, primary or fallback.
	Source string `json:"source"`
}

// ConceptInput is the argument of summarize_concept.
type ConceptInput struct {
	Text  string `json:"text" jsonschema:"study material to summarise"`
	Level string `json:"level,omitempty" jsonschema:"high, medium or low detail; default medium"`
}

// ConceptOutput is the result of summarize_concept.
type ConceptOutput struct {
	Summary       string   `json:"summary"`
	KeyConcepts   []string `json:"keyConcepts"`
	FocusPoints   []string `json:"focusPoints"`
	RelatedTopics []string `json:"suggestedRelatedTopics"`
	TierUsed      string   `json:"tierUsed"`
}

// NewServer builds the MCP server with every configured tool registered.
func NewServer(tools Tools, version string) *mcpsdk.Server {
	s := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "lingoloop", Version: version}, nil)

	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        ToolSegmentText,
		Description: "Split text into runs of English, French, Spanish and German.",
	}, segmentText)

	if tools.Grammar != nil {
		mcpsdk.AddTool(s, &mcpsdk.Tool{
			Name:        ToolCheckGrammar,
			Description: "Find grammar and spelling errors and suggest corrections.",
		}, checkGrammar(tools.Grammar))
	}
	if tools.Concept != nil {
		mcpsdk.AddTool(s, &mcpsdk.Tool{
			Name:        ToolSummarizeConcept,
			Description: "Summarise study material and suggest focus points.",
		}, summarizeConcept(tools.Concept))
	}
	return s
}

// Handler serves s over the Streamable HTTP transport.
func Handler(s *mcpsdk.Server) http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s }, nil)
}

func segmentText(_ context.Context, _ *mcpsdk.CallToolRequest, in SegmentInput) (*mcpsdk.CallToolResult, SegmentOutput, error) {
	segs := langseg.SegmentText(in.Text)
	if len(segs) == 0 {
		return nil, SegmentOutput{}, apperr.Validation("text contains no words")
	}
	out := SegmentOutput{Segments: make([]Segment, 0, len(segs))}
	for _, seg := range segs {
		out.Segments = append(out.Segments, Segment{Index: seg.Index, Language: seg.Tag.String(), Text: seg.Text})
	}
	return nil, out, nil
}

func checkGrammar(c *grammar.Checker) mcpsdk.ToolHandlerFor[GrammarInput, GrammarOutput] {
	return func(ctx context.Context, _ *mcpsdk.CallToolRequest, in GrammarInput) (*mcpsdk.CallToolResult, GrammarOutput, error) {
		res, err := c.Check(ctx, in.Text, in.Language)
		if err != nil {
			observe.Logger(ctx).Warn("mcp tool failed", "tool", ToolCheckGrammar, "err", err)
			return nil, GrammarOutput{}, err
		}
		out := GrammarOutput{Findings: make([]Correction, 0, len(res.Result)), TierUsed: string(res.Tier)}
		for _, f := range res.Result {
			out.Findings = append(out.Findings, Correction{
				ID:          f.ID,
				Error:       f.Text,
				Correction:  f.Suggestion,
				Explanation: f.Explanation,
				StartIndex:  f.Start,
				EndIndex:    f.End,
				Source:      string(f.Tier),
			})
		}
		return nil, out, nil
	}
}

func summarizeConcept(s *concept.Summarizer) mcpsdk.ToolHandlerFor[ConceptInput, ConceptOutput] {
	return func(ctx context.Context, _ *mcpsdk.CallToolRequest, in ConceptInput) (*mcpsdk.CallToolResult, ConceptOutput, error) {
		res, err := s.Summarize(ctx, in.Text, in.Level)
		if err != nil {
			observe.Logger(ctx).Warn("mcp tool failed", "tool", ToolSummarizeConcept, "err", err)
			return nil, ConceptOutput{}, err
		}
		return nil, ConceptOutput{
			Summary:       res.Result.Summary,
			KeyConcepts:   res.Result.KeyConcepts,
			FocusPoints:   res.Result.FocusPoints,
			RelatedTopics: res.Result.RelatedTopics,
			TierUsed:      string(res.Tier),
		}, nil
	}
}
