// Package protocol defines the common vocabulary shared by the generation
// backends, the coaching agent and the streaming transport.
//
// Every backend, whatever its wire format, is normalized into an ordered
// sequence of Events. A well-formed stream emits zero or more text /
// tool_call / thinking events and terminates with exactly one done or
// exactly one error event.
package protocol

// EventKind identifies the type of a stream event.
type EventKind string

const (
	// EventText carries an incremental text fragment. Fragments are ordered
	// and safe to concatenate.
	EventText EventKind = "text"

	// EventToolCall carries a fully assembled tool call. Arguments are
	// always parsed; partial fragments never cross this boundary.
	EventToolCall EventKind = "tool_call"

	// EventThinkingStart and EventThinkingEnd bracket provider reasoning
	// content. Nothing between them is user-visible text.
	EventThinkingStart EventKind = "thinking_start"
	EventThinkingEnd   EventKind = "thinking_end"

	// EventDone terminates a successful stream. It carries the full
	// accumulated text and every tool call observed, in order.
	EventDone EventKind = "done"

	// EventError terminates a failed stream.
	EventError EventKind = "error"
)

// ToolCall is a named function invocation proposed by a generation backend.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Event is the normalized unit of a streaming generation response.
// Exactly one of the payload fields is meaningful depending on Kind.
type Event struct {
	Kind EventKind

	// Text fragment for EventText.
	Text string

	// ToolCall for EventToolCall.
	ToolCall *ToolCall

	// FullText and ToolCalls for EventDone.
	FullText  string
	ToolCalls []ToolCall

	// Err for EventError.
	Err error
}

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one entry of the ordered message history submitted to a
// generation backend.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
