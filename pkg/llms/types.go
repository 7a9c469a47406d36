package llms

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a provider-independent completion request.
type CompletionRequest struct {
	// System is the system instruction, passed separately because some
	// providers take it out of band.
	System string

	// Messages is the conversation, oldest first.
	Messages []Message

	// Temperature overrides the provider default when >= 0.
	Temperature float64

	// MaxTokens overrides the provider default when > 0.
	MaxTokens int
}

// Completion is a provider-independent completion result.
type Completion struct {
	// Text is the generated text.
	Text string

	// Tokens is the total token usage reported by the provider (0 when
	// the provider does not report usage).
	Tokens int

	// Provider is the name of the provider that produced the text.
	Provider string

	// Model is the model that produced the text.
	Model string

	// Degraded is true when the text came from a non-primary provider.
	Degraded bool
}

// Completer is the single-method interface specialists depend on.
// FallbackChain implements it over an ordered provider list.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// Provider is a single LLM backend.
type Provider interface {
	Completer

	// Name returns the provider name ("openai", "anthropic", "ollama").
	Name() string

	// ModelName returns the configured model.
	ModelName() string

	Close() error
}
