package llm

import (
	"context"
	"errors"

	"healthmate/internal/shared"
)

// ErrMissingAPIKey is returned by the gateway client when no key is configured.
// Its message is surfaced to HTTP callers verbatim.
var ErrMissingAPIKey = errors.New("COMPLETION_API_KEY is not configured")

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator performs one request/response exchange with a chat-completion
// service and returns the top choice's text.
type TextGenerator interface {
	GenerateContent(ctx context.Context, messages []Message) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// Prompt builds the usual system + user message pair.
func Prompt(system, user string) []Message {
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}
