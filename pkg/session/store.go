// Package session owns the lifecycle of agent sessions and chat histories.
// The stores are the only shared mutable state in the system; everything
// above them is a pure transformation.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/socraticlabs/coach/pkg/agent"
)

// Store manages agent sessions. Independent sessions proceed concurrently;
// operations on the same session are serialized through Do.
type Store interface {
	Create(moduleType string, context map[string]any) (string, agent.Agent, error)
	Get(id string) (agent.Agent, bool)
	Delete(id string) bool
	Do(id string, fn func(agent.Agent) error) error
}

// ErrNotFound is reported by Do for unknown session ids.
var ErrNotFound = fmt.Errorf("session not found")

type entry struct {
	mu    sync.Mutex
	agent agent.Agent
}

// MemoryStore is the in-memory Store implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	factory  func(moduleType, sessionID string, context map[string]any) (agent.Agent, error)
}

// NewMemoryStore creates a store that builds agents with factory.
func NewMemoryStore(factory func(moduleType, sessionID string, context map[string]any) (agent.Agent, error)) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*entry),
		factory:  factory,
	}
}

// Create builds a new agent session and returns its id.
func (s *MemoryStore) Create(moduleType string, context map[string]any) (string, agent.Agent, error) {
	id := uuid.NewString()
	a, err := s.factory(moduleType, id, context)
	if err != nil {
		return "", nil, err
	}

	s.mu.Lock()
	s.sessions[id] = &entry{agent: a}
	s.mu.Unlock()

	return id, a, nil
}

// Get returns the agent for id. A miss is not an error.
func (s *MemoryStore) Get(id string) (agent.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return e.agent, true
}

// Delete removes a session. Returns false if the id is unknown, so repeated
// deletes surface as not-found.
func (s *MemoryStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Do runs fn with exclusive access to the session's agent. Two inputs for
// the same session never interleave.
func (s *MemoryStore) Do(id string, fn func(agent.Agent) error) error {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.agent)
}
