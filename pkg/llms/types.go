package llms

import (
	"context"

	"github.com/socraticlabs/coach/pkg/protocol"
)

// ToolDefinition describes a tool exposed to a generation backend.
// Parameters is a JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Provider is the single contract every generation backend satisfies:
// submit an ordered message history, an optional system instruction and an
// optional tool schema list, receive an ordered, single-pass event stream.
//
// The returned channel is closed after the terminal done or error event.
// Cancelling ctx stops production; no further events are sent and the
// underlying network operation is abandoned.
type Provider interface {
	StreamChat(ctx context.Context, messages []protocol.ChatMessage, systemPrompt string, tools []ToolDefinition) (<-chan protocol.Event, error)

	// GenerateText performs a non-streaming single-prompt completion.
	// Used by the decision engine, which needs one structured reply rather
	// than an incremental stream.
	GenerateText(ctx context.Context, prompt string, systemPrompt string) (string, error)

	ModelName() string

	Close() error
}
