// Package checkpoint persists per-thread conversation state keyed by thread
// identifier.
package checkpoint

import (
	"context"
	"sync"

	"github.com/capitalize-ai/conversation-engine/internal/model"
)

// Store is the persistence boundary for thread state. Implementations must
// provide read-after-write within a process and per-key atomic overwrite;
// serializing concurrent writers for one threadId is the caller's job.
type Store interface {
	// Get retrieves the state for a thread, or nil if none exists.
	Get(ctx context.Context, threadID string) (*model.ThreadState, error)

	// Put stores the state for a thread, overwriting any previous state.
	Put(ctx context.Context, threadID string, state *model.ThreadState) error

	// Delete removes the state for a thread. The bool reports whether a
	// state existed.
	Delete(ctx context.Context, threadID string) (bool, error)
}

// MemoryStore is an in-process Store backed by a map.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*model.ThreadState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*model.ThreadState)}
}

// Get retrieves the state for a thread.
func (s *MemoryStore) Get(ctx context.Context, threadID string) (*model.ThreadState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.states[threadID]
	if !exists {
		return nil, nil
	}

	// Copy out so callers never alias the stored turns.
	clone := *state
	clone.Turns = append([]model.Turn(nil), state.Turns...)
	return &clone, nil
}

// Put stores the state for a thread.
func (s *MemoryStore) Put(ctx context.Context, threadID string, state *model.ThreadState) error {
	clone := *state
	clone.Turns = append([]model.Turn(nil), state.Turns...)

	s.mu.Lock()
	s.states[threadID] = &clone
	s.mu.Unlock()

	return nil
}

// Delete removes the state for a thread.
func (s *MemoryStore) Delete(ctx context.Context, threadID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.states[threadID]
	delete(s.states, threadID)
	return exists, nil
}
