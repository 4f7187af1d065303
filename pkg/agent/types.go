// Package agent implements the phased coaching state machine that drives a
// student through a fixed remediation procedure. Generation backends supply
// script text only; phase transitions and the wrong-attempt cap are enforced
// locally and never depend on backend output.
package agent

import (
	"context"
	"errors"
	"time"
)

// ActionType enumerates the instructions the agent can return to a client.
type ActionType string

const (
	ActionSendMessage  ActionType = "SEND_MESSAGE"
	ActionPublishTask  ActionType = "PUBLISH_TASK"
	ActionAdvancePhase ActionType = "ADVANCE_PHASE"
	ActionStartReview  ActionType = "START_REVIEW"
	ActionShowCard     ActionType = "SHOW_CARD"
	ActionPlayAudio    ActionType = "PLAY_AUDIO"
	ActionComplete     ActionType = "COMPLETE"
)

// TaskType enumerates the client-side tasks a phase can require.
type TaskType string

const (
	TaskVoice     TaskType = "voice"
	TaskHighlight TaskType = "highlight"
	TaskSelect    TaskType = "select"
	TaskGPS       TaskType = "gps"
	TaskReview    TaskType = "review"
)

// ValidTaskType reports whether s names a known task type.
func ValidTaskType(s string) bool {
	switch TaskType(s) {
	case TaskVoice, TaskHighlight, TaskSelect, TaskGPS, TaskReview:
		return true
	}
	return false
}

// Input types recognized by ProcessInput. select_option is graded locally;
// everything else goes through the decision engine.
const (
	InputSelectOption  = "select_option"
	InputVoiceResponse = "voice_response"
	InputHighlight     = "highlight"
	InputTaskCompleted = "task_completed"
)

const (
	RoleAgent   = "agent"
	RoleStudent = "student"
	RoleSystem  = "system"
)

// ErrModuleNotSupported is returned when a module type has no registered agent.
var ErrModuleNotSupported = errors.New("module type not supported")

// Action is a single instruction produced by Initialize or ProcessInput.
// Immutable once constructed.
type Action struct {
	Type    ActionType     `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Message is one entry of a session's conversation log.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// State holds everything the agent knows about one session.
type State struct {
	SessionID    string
	ModuleType   string
	CurrentPhase int
	WrongCount   int
	History      []Message
	Context      map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewState creates a fresh session state at phase 1.
func NewState(sessionID, moduleType string, context map[string]any) *State {
	if context == nil {
		context = map[string]any{}
	}
	now := time.Now().UTC()
	return &State{
		SessionID:    sessionID,
		ModuleType:   moduleType,
		CurrentPhase: 1,
		Context:      context,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// AddMessage appends a message to the conversation log.
func (s *State) AddMessage(role, content string, metadata map[string]any) {
	s.History = append(s.History, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	})
	s.UpdatedAt = time.Now().UTC()
}

// Touch advances the modification timestamp.
func (s *State) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// ContextString returns the context value for key as a string, or fallback.
func (s *State) ContextString(key, fallback string) string {
	if v, ok := s.Context[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// Snapshot is the externally visible summary of a session.
type Snapshot struct {
	SessionID    string    `json:"session_id"`
	ModuleType   string    `json:"module_type"`
	CurrentPhase int       `json:"current_phase"`
	WrongCount   int       `json:"wrong_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot returns the serializable view of the state.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		SessionID:    s.SessionID,
		ModuleType:   s.ModuleType,
		CurrentPhase: s.CurrentPhase,
		WrongCount:   s.WrongCount,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// Agent is one tutoring module's state machine. Implementations are not safe
// for concurrent use; the session store serializes access per session.
type Agent interface {
	ModuleType() string
	Initialize(ctx context.Context) (Action, error)
	ProcessInput(ctx context.Context, inputType string, inputData map[string]any) (Action, error)
	State() *State
	Reset()
}
