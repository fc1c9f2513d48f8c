package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codingSofie/partykit/internal/models"
)

func seedRoom(t *testing.T, m *MemoryStore, id, password string) *models.Room {
	t.Helper()
	room := &models.Room{
		ID:           id,
		Password:     password,
		MaxPlayers:   50,
		CurrentPhase: models.PhaseWaiting,
		LastActivity: time.Unix(1000, 0),
	}
	require.NoError(t, m.CreateRoom(context.Background(), room))
	return room
}

func seedPlayer(t *testing.T, m *MemoryStore, id, roomID string, joined time.Time, host bool) *models.Player {
	t.Helper()
	p := &models.Player{ID: id, RoomID: roomID, Name: "n-" + id, IsHost: host, JoinedAt: joined}
	require.NoError(t, m.CreatePlayer(context.Background(), p))
	return p
}

func TestCreateRoomPasswordUniqueness(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	seedRoom(t, m, "r1", "A1B2")
	err := m.CreateRoom(ctx, &models.Room{ID: "r2", Password: "A1B2"})
	assert.ErrorIs(t, err, ErrPasswordTaken)

	// deleting the room frees the password for reuse
	require.NoError(t, m.DeleteRoom(ctx, "r1"))
	assert.NoError(t, m.CreateRoom(ctx, &models.Room{ID: "r3", Password: "A1B2"}))
}

func TestDeleteRoomCascades(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	seedRoom(t, m, "r1", "AAAA")
	seedRoom(t, m, "r2", "BBBB")
	seedPlayer(t, m, "p1", "r1", time.Unix(1, 0), true)
	seedPlayer(t, m, "p2", "r2", time.Unix(2, 0), true)
	require.NoError(t, m.CreateClickLog(ctx, &models.ClickLog{RoomID: "r1", PlayerID: "p1", RoundNumber: 1}))
	require.NoError(t, m.CreateClickLog(ctx, &models.ClickLog{RoomID: "r2", PlayerID: "p2", RoundNumber: 1}))

	require.NoError(t, m.DeleteRoom(ctx, "r1"))

	_, err := m.RoomByID(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.PlayerByID(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)
	logs, err := m.ClickLogsForRound(ctx, "r1", 1)
	require.NoError(t, err)
	assert.Empty(t, logs)

	// the other room is untouched
	_, err = m.PlayerByID(ctx, "p2")
	assert.NoError(t, err)
	logs, err = m.ClickLogsForRound(ctx, "r2", 1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestPlayersByRoomOrderedBySeniority(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	seedRoom(t, m, "r1", "AAAA")
	seedPlayer(t, m, "late", "r1", time.Unix(30, 0), false)
	seedPlayer(t, m, "first", "r1", time.Unix(10, 0), true)
	seedPlayer(t, m, "mid", "r1", time.Unix(20, 0), false)

	players, err := m.PlayersByRoom(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, players, 3)
	assert.Equal(t, "first", players[0].ID)
	assert.Equal(t, "mid", players[1].ID)
	assert.Equal(t, "late", players[2].ID)
}

func TestSetHostClearsOtherFlags(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	seedRoom(t, m, "r1", "AAAA")
	seedPlayer(t, m, "p1", "r1", time.Unix(1, 0), true)
	seedPlayer(t, m, "p2", "r1", time.Unix(2, 0), false)

	require.NoError(t, m.SetHost(ctx, "r1", "p2"))

	players, err := m.PlayersByRoom(ctx, "r1")
	require.NoError(t, err)
	for _, p := range players {
		assert.Equal(t, p.ID == "p2", p.IsHost)
	}

	err = m.SetHost(ctx, "r1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConnectionLifecycle(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	seedRoom(t, m, "r1", "AAAA")
	seedPlayer(t, m, "p1", "r1", time.Unix(1, 0), true)

	conn := "sock-1"
	require.NoError(t, m.SetConnection(ctx, "p1", &conn))
	p, err := m.PlayerByID(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, p.ConnectionID)
	assert.Equal(t, "sock-1", *p.ConnectionID)

	require.NoError(t, m.ClearConnection(ctx, "sock-1"))
	p, err = m.PlayerByID(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, p.ConnectionID)
}

func TestClickLogOrderingAndRoundScoping(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	seedRoom(t, m, "r1", "AAAA")
	for _, log := range []models.ClickLog{
		{RoomID: "r1", PlayerID: "a", ServerTimestamp: 300, ClickOrder: 3, RoundNumber: 1},
		{RoomID: "r1", PlayerID: "b", ServerTimestamp: 100, ClickOrder: 1, RoundNumber: 1},
		{RoomID: "r1", PlayerID: "c", ServerTimestamp: 200, ClickOrder: 2, RoundNumber: 1},
		{RoomID: "r1", PlayerID: "d", ServerTimestamp: 50, ClickOrder: 1, RoundNumber: 2},
	} {
		l := log
		require.NoError(t, m.CreateClickLog(ctx, &l))
	}

	logs, err := m.ClickLogsForRound(ctx, "r1", 1)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, []int64{100, 200, 300}, []int64{logs[0].ServerTimestamp, logs[1].ServerTimestamp, logs[2].ServerTimestamp})

	require.NoError(t, m.DeleteClickLogsForRound(ctx, "r1", 1))
	logs, err = m.ClickLogsForRound(ctx, "r1", 1)
	require.NoError(t, err)
	assert.Empty(t, logs)
	logs, err = m.ClickLogsForRound(ctx, "r1", 2)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestInactiveRooms(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	seedRoom(t, m, "old", "AAAA")
	fresh := seedRoom(t, m, "new", "BBBB")
	require.NoError(t, m.TouchRoom(ctx, fresh.ID, time.Unix(5000, 0)))

	rooms, err := m.InactiveRooms(ctx, time.Unix(2000, 0))
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "old", rooms[0].ID)
}

func TestSaveRoomState(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	seedRoom(t, m, "r1", "AAAA")
	clicker := "p1"
	start := time.Unix(100, 0)
	end := time.Unix(101, 0)
	require.NoError(t, m.SaveRoomState(ctx, "r1", RoomState{
		Phase:          models.PhaseLocked,
		RoundNumber:    3,
		FirstClickerID: &clicker,
		StartTime:      &start,
		EndTime:        &end,
		LastActivity:   end,
	}))

	room, err := m.RoomByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseLocked, room.CurrentPhase)
	assert.Equal(t, 3, room.RoundNumber)
	require.NotNil(t, room.FirstClickerID)
	assert.Equal(t, "p1", *room.FirstClickerID)
	assert.Equal(t, end, room.LastActivity)

	err = m.SaveRoomState(ctx, "missing", RoomState{})
	assert.ErrorIs(t, err, ErrNotFound)
}
