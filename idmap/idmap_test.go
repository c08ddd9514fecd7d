package idmap

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/bulkload/record"
)

func TestRegisterAndResolve(t *testing.T) {
	m := New()
	require.NoError(t, m.Register("a", "http://rdfh.ch/a"))

	assert.Equal(t, "http://rdfh.ch/a", m.Resolve("a"))
	assert.Equal(t, "http://rdfh.ch/external", m.Resolve("http://rdfh.ch/external"))

	g, ok := m.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, "http://rdfh.ch/a", g)

	_, ok = m.Lookup("b")
	assert.False(t, ok)
}

func TestRegisterIsWriteOnce(t *testing.T) {
	m := New()
	require.NoError(t, m.Register("a", "g1"))

	t.Run("same value is idempotent", func(t *testing.T) {
		assert.NoError(t, m.Register("a", "g1"))
	})

	t.Run("different value conflicts", func(t *testing.T) {
		err := m.Register("a", "g2")
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, "g1", m.Resolve("a"))
	})

	t.Run("empty ids rejected", func(t *testing.T) {
		assert.ErrorIs(t, m.Register("", "g"), ErrEmptyID)
		assert.ErrorIs(t, m.Register("x", ""), ErrEmptyID)
	})
}

func TestZeroValueUsable(t *testing.T) {
	var m Map
	require.NoError(t, m.Register("a", "g"))
	assert.Equal(t, 1, m.Len())
}

func TestConcurrentRegister(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("r%03d", i)
			assert.NoError(t, m.Register(id, "g-"+id))
			_ = m.Resolve(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, m.Len())
	ids := m.LocalIDs()
	assert.Equal(t, "r000", ids[0])
	assert.Equal(t, "r099", ids[99])
}

func TestSnapshotIsCopy(t *testing.T) {
	m := New()
	require.NoError(t, m.Register("a", "g"))
	snap := m.Snapshot()
	snap["a"] = "changed"
	assert.Equal(t, "g", m.Resolve("a"))
}

func TestMapSatisfiesRecordResolver(t *testing.T) {
	var _ record.Resolver = New()
}
