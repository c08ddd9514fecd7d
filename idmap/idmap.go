// Package idmap holds the write-once mapping from caller-local ids to the
// global ids issued by the backend.
package idmap

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrConflict is returned when a local id is registered a second time with a
// different global id.
var ErrConflict = errors.New("idmap: local id already registered with a different global id")

// ErrEmptyID is returned when Register is called with an empty local or global id.
var ErrEmptyID = errors.New("idmap: empty id")

// Map is a concurrency-safe, write-once local → global id map.
// The zero value is ready to use.
type Map struct {
	mu  sync.RWMutex
	ids map[string]string
}

// New creates an empty Map.
func New() *Map {
	return &Map{ids: make(map[string]string)}
}

// Register records that localID was created on the backend as globalID.
// Registering the same pair twice is a no-op; registering a different global
// id for a known local id fails with ErrConflict.
func (m *Map) Register(localID, globalID string) error {
	if localID == "" || globalID == "" {
		return ErrEmptyID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ids == nil {
		m.ids = make(map[string]string)
	}
	if existing, ok := m.ids[localID]; ok {
		if existing == globalID {
			return nil
		}
		return fmt.Errorf("%w: %q is %q, not %q", ErrConflict, localID, existing, globalID)
	}
	m.ids[localID] = globalID
	return nil
}

// Resolve returns the global id for a known local id, and id unchanged otherwise
// (it is then assumed to already be a global id).
func (m *Map) Resolve(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if g, ok := m.ids[id]; ok {
		return g
	}
	return id
}

// Lookup returns the global id for localID and whether it is registered.
func (m *Map) Lookup(localID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.ids[localID]
	return g, ok
}

// Len returns the number of registered ids.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Snapshot returns a copy of the mapping.
func (m *Map) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.ids))
	for k, v := range m.ids {
		out[k] = v
	}
	return out
}

// LocalIDs returns the registered local ids in sorted order.
func (m *Map) LocalIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.ids))
	for k := range m.ids {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
