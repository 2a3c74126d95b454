package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeTracker_PushPopBalance(t *testing.T) {
	t.Parallel()
	s := NewScopeTracker()

	a := s.Push()
	b := s.Push()
	assert.Equal(t, ScopeID(1), a)
	assert.Equal(t, ScopeID(2), b)
	assert.Equal(t, ScopePath{1, 2}, s.Snapshot())

	id, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, b, id)

	c := s.Push()
	assert.Equal(t, ScopeID(3), c, "ids are never reused")
	assert.Equal(t, ScopePath{1, 3}, s.Snapshot())

	s.Pop()
	s.Pop()
	assert.Equal(t, 0, s.Depth())
	assert.Equal(t, s.Pushes(), s.Pops())
	assert.Equal(t, ScopeID(3), s.Allocated())
}

func TestScopeTracker_PopEmpty(t *testing.T) {
	t.Parallel()
	s := NewScopeTracker()
	_, ok := s.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Pops())
}

func TestScopeTracker_SnapshotIsCopy(t *testing.T) {
	t.Parallel()
	s := NewScopeTracker()
	s.Push()
	snap := s.Snapshot()
	s.Push()
	assert.Equal(t, ScopePath{1}, snap)

	empty := NewScopeTracker().Snapshot()
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestScopePath_Innermost(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ScopeID(0), ScopePath{}.Innermost())
	assert.Equal(t, ScopeID(7), ScopePath{2, 7}.Innermost())
	assert.True(t, ScopePath{2, 7}.Contains(2))
	assert.False(t, ScopePath{2, 7}.Contains(3))
}
