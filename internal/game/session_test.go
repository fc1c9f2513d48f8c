package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsBindResolveUnbind(t *testing.T) {
	s := NewSessions()

	_, ok := s.Resolve("c1")
	assert.False(t, ok)

	s.Bind("c1", "p1", "r1")
	b, ok := s.Resolve("c1")
	require.True(t, ok)
	assert.Equal(t, Binding{PlayerID: "p1", RoomID: "r1"}, b)

	// rebinding the same connection replaces the old mapping
	s.Bind("c1", "p2", "r2")
	b, ok = s.Resolve("c1")
	require.True(t, ok)
	assert.Equal(t, "p2", b.PlayerID)
	assert.Equal(t, "r2", b.RoomID)

	s.Unbind("c1")
	_, ok = s.Resolve("c1")
	assert.False(t, ok)

	// unbinding twice is harmless
	s.Unbind("c1")
}
