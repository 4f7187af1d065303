package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/socraticlabs/coach/pkg/protocol"
)

// ChatMessage is one stored turn of a chat session.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession is the lighter-weight state behind the streaming chat flow.
// Created lazily on first reference; deleted explicitly, never expired.
// Store methods hand out value snapshots; the live state stays inside the
// store and is only touched under its lock.
type ChatSession struct {
	ID         string
	Messages   []ChatMessage
	Context    map[string]any
	WrongCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ChatStore manages chat sessions keyed by id.
type ChatStore struct {
	mu       sync.RWMutex
	sessions map[string]*ChatSession
}

func NewChatStore() *ChatStore {
	return &ChatStore{sessions: make(map[string]*ChatSession)}
}

// GetOrCreate resolves a session, creating it when the id is unknown or
// empty. Context keys are merged in; existing keys are overwritten but the
// context is never emptied. Returns a snapshot taken after the merge.
func (s *ChatStore) GetOrCreate(id string, context map[string]any) ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	sess, ok := s.sessions[id]
	if !ok {
		now := time.Now().UTC()
		sess = &ChatSession{
			ID:        id,
			Context:   map[string]any{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.sessions[id] = sess
	}
	for k, v := range context {
		sess.Context[k] = v
	}
	return snapshot(sess)
}

// Create starts a fresh session, replacing any existing one with the same
// id. An empty id gets a generated one.
func (s *ChatStore) Create(id string, context map[string]any) ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	sess := &ChatSession{
		ID:        id,
		Context:   map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for k, v := range context {
		sess.Context[k] = v
	}
	s.sessions[id] = sess
	return snapshot(sess)
}

// Get returns a snapshot of the session for id. A miss is not an error.
func (s *ChatStore) Get(id string) (ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ChatSession{}, false
	}
	return snapshot(sess), true
}

// AppendUser records a student turn.
func (s *ChatStore) AppendUser(id, content string) {
	s.append(id, protocol.RoleUser, content)
}

// AppendAssistant records a tutor turn. Called exactly once per completed
// stream, after the done envelope.
func (s *ChatStore) AppendAssistant(id, content string) {
	s.append(id, protocol.RoleAssistant, content)
}

func (s *ChatStore) append(id, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.Messages = append(sess.Messages, ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	sess.UpdatedAt = time.Now().UTC()
}

// Delete removes a session, reporting whether it existed.
func (s *ChatStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// snapshot copies a session so callers never share the live struct.
// Caller must hold the store lock.
func snapshot(sess *ChatSession) ChatSession {
	out := ChatSession{
		ID:         sess.ID,
		WrongCount: sess.WrongCount,
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.UpdatedAt,
		Context:    make(map[string]any, len(sess.Context)),
	}
	if len(sess.Messages) > 0 {
		out.Messages = make([]ChatMessage, len(sess.Messages))
		copy(out.Messages, sess.Messages)
	}
	for k, v := range sess.Context {
		out.Context[k] = v
	}
	return out
}
