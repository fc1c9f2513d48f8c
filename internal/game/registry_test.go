package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codingSofie/partykit/internal/models"
	"github.com/codingSofie/partykit/internal/store"
)

func newTestRegistry() (*Registry, *store.MemoryStore, *clockwork.FakeClock) {
	st := store.NewMemoryStore()
	fc := clockwork.NewFakeClock()
	return NewRegistry(st, fc, 50), st, fc
}

func TestNormalizePassword(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"a1b2", "A1B2", false},
		{"A1B2", "A1B2", false},
		{" zz99 ", "ZZ99", false},
		{"abc", "", true},
		{"abcde", "", true},
		{"ab!c", "", true},
		{"", "", true},
		{"abcd\n", "ABCD", false},
	}
	for _, tt := range tests {
		got, err := NormalizePassword(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPassword, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestFindOrCreate(t *testing.T) {
	reg, st, _ := newTestRegistry()
	ctx := context.Background()

	room, created, err := reg.FindOrCreate(ctx, "a1b2")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "A1B2", room.Password)
	assert.Equal(t, models.PhaseWaiting, room.CurrentPhase)
	assert.Equal(t, 0, room.RoundNumber)
	assert.Len(t, room.Code, 6)

	again, created, err := reg.FindOrCreate(ctx, "A1B2")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, room.ID, again.ID)

	stored, err := st.RoomByPassword(ctx, "A1B2")
	require.NoError(t, err)
	assert.Equal(t, room.ID, stored.ID)
}

func TestFindOrCreateConcurrentCallersShareOneRoom(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room, _, err := reg.FindOrCreate(ctx, "RACE")
			if assert.NoError(t, err) {
				ids[i] = room.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Equal(t, ids[0], ids[i], "every caller must land in the same room")
	}
}

func TestCreateRejectsTakenPassword(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	_, err := reg.Create(ctx, "A1B2")
	require.NoError(t, err)

	_, err = reg.Create(ctx, "a1b2")
	assert.ErrorIs(t, err, ErrPasswordTaken)
}

func TestDeleteIsIdempotent(t *testing.T) {
	reg, st, _ := newTestRegistry()
	ctx := context.Background()

	room, _, err := reg.FindOrCreate(ctx, "A1B2")
	require.NoError(t, err)
	require.NoError(t, reg.Delete(ctx, room.ID))
	require.NoError(t, reg.Delete(ctx, room.ID))

	_, err = st.RoomByID(ctx, room.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSweepInactive(t *testing.T) {
	reg, st, fc := newTestRegistry()
	ctx := context.Background()

	stale, _, err := reg.FindOrCreate(ctx, "AAAA")
	require.NoError(t, err)
	fc.Advance(10 * time.Minute)
	fresh, _, err := reg.FindOrCreate(ctx, "BBBB")
	require.NoError(t, err)
	fc.Advance(25 * time.Minute)

	deleted, err := reg.SweepInactive(ctx, fc.Now(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{stale.ID}, deleted)

	_, err = st.RoomByID(ctx, stale.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.RoomByID(ctx, fresh.ID)
	assert.NoError(t, err)
}
