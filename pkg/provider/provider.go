package provider

import "context"

// Role values for conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single exchange in the conversation history.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Request carries everything a provider needs for one generation call.
type Request struct {
	Model   string
	Prompt  string
	System  string
	History []Turn
}

// Provider defines the interface for LLM provider backends.
type Provider interface {
	// Generate sends the request to the model and returns the full
	// response text as a single unit.
	Generate(ctx context.Context, req Request) (string, error)

	// Name returns the provider's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}
