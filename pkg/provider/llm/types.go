package llm

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a prompt.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role    string
	Content string
}

// Request carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type Request struct {
	// SystemPrompt is an optional instruction placed before Messages.
	SystemPrompt string

	Messages []Message

	// Temperature in [0.0, 2.0]. Zero leaves the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero leaves the provider default.
	MaxTokens int
}

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the full reply to a Request.
type Response struct {
	Content string
	Usage   Usage
}
