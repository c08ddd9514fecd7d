// Package checkpoint persists upload progress so an interrupted batch can be
// resumed.
//
// For a batch key the store keeps the identifier map (local id to global id)
// and the set of stash keys already written back. A rerun with the same key
// loads this state and skips work that already reached the backend.
package checkpoint

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrConflict indicates a local id saved twice with different global ids.
var ErrConflict = errors.New("checkpoint: local id already saved with a different global id")

// State is the saved progress of one batch.
type State struct {
	// IDs maps caller-local ids to global ids.
	IDs map[string]string

	// Reinserted holds the keys of stash records already written back.
	Reinserted map[string]struct{}
}

// NewState returns an empty state.
func NewState() *State {
	return &State{IDs: make(map[string]string), Reinserted: make(map[string]struct{})}
}

// Empty reports whether nothing was saved.
func (s *State) Empty() bool {
	return s == nil || (len(s.IDs) == 0 && len(s.Reinserted) == 0)
}

// ReinsertedKeys returns the reinserted stash keys in sorted order.
func (s *State) ReinsertedKeys() []string {
	keys := make([]string, 0, len(s.Reinserted))
	for k := range s.Reinserted {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Store saves and loads batch progress. Implementations must be safe for
// concurrent use.
type Store interface {
	// Load returns the saved state of batch, empty if none.
	Load(ctx context.Context, batch string) (*State, error)

	// SaveID records that localID was created as globalID. Saving the same
	// pair again is a no-op; a different globalID fails with ErrConflict.
	SaveID(ctx context.Context, batch, localID, globalID string) error

	// MarkReinserted records that the stash record with the given key was
	// written back.
	MarkReinserted(ctx context.Context, batch, stashKey string) error

	// Clear deletes the saved state of batch.
	Clear(ctx context.Context, batch string) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	batches map[string]*State
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{batches: make(map[string]*State)}
}

func (m *MemoryStore) state(batch string) *State {
	s, ok := m.batches[batch]
	if !ok {
		s = NewState()
		m.batches[batch] = s
	}
	return s
}

// Load implements Store. The returned state is a copy.
func (m *MemoryStore) Load(ctx context.Context, batch string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := NewState()
	if s, ok := m.batches[batch]; ok {
		for k, v := range s.IDs {
			out.IDs[k] = v
		}
		for k := range s.Reinserted {
			out.Reinserted[k] = struct{}{}
		}
	}
	return out, nil
}

// SaveID implements Store.
func (m *MemoryStore) SaveID(ctx context.Context, batch, localID, globalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state(batch)
	if existing, ok := s.IDs[localID]; ok && existing != globalID {
		return ErrConflict
	}
	s.IDs[localID] = globalID
	return nil
}

// MarkReinserted implements Store.
func (m *MemoryStore) MarkReinserted(ctx context.Context, batch, stashKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state(batch).Reinserted[stashKey] = struct{}{}
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(ctx context.Context, batch string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.batches, batch)
	return nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
