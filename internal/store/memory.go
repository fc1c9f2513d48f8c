package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/codingSofie/partykit/internal/models"
)

// MemoryStore keeps all records in process memory. It is the default backend
// and the one used throughout the tests; a single authoritative process needs
// nothing more durable.
type MemoryStore struct {
	mu         sync.RWMutex
	rooms      map[string]*models.Room
	byPassword map[string]string // password -> roomID
	byCode     map[string]string // code -> roomID
	players    map[string]*models.Player
	clicks     []*models.ClickLog
	nextLogID  uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:      make(map[string]*models.Room),
		byPassword: make(map[string]string),
		byCode:     make(map[string]string),
		players:    make(map[string]*models.Player),
	}
}

func (m *MemoryStore) CreateRoom(_ context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byPassword[room.Password]; taken {
		return ErrPasswordTaken
	}
	cp := *room
	m.rooms[cp.ID] = &cp
	m.byPassword[cp.Password] = cp.ID
	if cp.Code != "" {
		m.byCode[cp.Code] = cp.ID
	}
	return nil
}

func (m *MemoryStore) RoomByID(_ context.Context, id string) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roomCopy(id)
}

func (m *MemoryStore) RoomByPassword(_ context.Context, password string) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPassword[password]
	if !ok {
		return nil, ErrNotFound
	}
	return m.roomCopy(id)
}

func (m *MemoryStore) RoomByCode(_ context.Context, code string) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return m.roomCopy(id)
}

func (m *MemoryStore) SaveRoomState(_ context.Context, roomID string, state RoomState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	room.CurrentPhase = state.Phase
	room.RoundNumber = state.RoundNumber
	room.FirstClickerID = state.FirstClickerID
	room.StartTime = state.StartTime
	room.EndTime = state.EndTime
	room.LastActivity = state.LastActivity
	return nil
}

func (m *MemoryStore) TouchRoom(_ context.Context, roomID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	room.LastActivity = at
	return nil
}

func (m *MemoryStore) DeleteRoom(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil // idempotent
	}
	delete(m.byPassword, room.Password)
	if room.Code != "" {
		delete(m.byCode, room.Code)
	}
	delete(m.rooms, roomID)
	for id, p := range m.players {
		if p.RoomID == roomID {
			delete(m.players, id)
		}
	}
	kept := m.clicks[:0]
	for _, c := range m.clicks {
		if c.RoomID != roomID {
			kept = append(kept, c)
		}
	}
	m.clicks = kept
	return nil
}

func (m *MemoryStore) InactiveRooms(_ context.Context, cutoff time.Time) ([]*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Room
	for _, room := range m.rooms {
		if room.LastActivity.Before(cutoff) {
			cp := *room
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreatePlayer(_ context.Context, player *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[player.RoomID]; !ok {
		return ErrNotFound
	}
	cp := *player
	m.players[cp.ID] = &cp
	return nil
}

func (m *MemoryStore) PlayerByID(_ context.Context, id string) (*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) PlayersByRoom(_ context.Context, roomID string) ([]*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Player
	for _, p := range m.players {
		if p.RoomID == roomID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (m *MemoryStore) CountPlayers(_ context.Context, roomID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.players {
		if p.RoomID == roomID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) SetHost(_ context.Context, roomID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.players[playerID]
	if !ok || target.RoomID != roomID {
		return ErrNotFound
	}
	for _, p := range m.players {
		if p.RoomID == roomID {
			p.IsHost = p.ID == playerID
		}
	}
	return nil
}

func (m *MemoryStore) SetConnection(_ context.Context, playerID string, connID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return ErrNotFound
	}
	p.ConnectionID = connID
	return nil
}

func (m *MemoryStore) ClearConnection(_ context.Context, connID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players {
		if p.ConnectionID != nil && *p.ConnectionID == connID {
			p.ConnectionID = nil
		}
	}
	return nil
}

func (m *MemoryStore) DeletePlayer(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players, id)
	return nil
}

func (m *MemoryStore) CreateClickLog(_ context.Context, log *models.ClickLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[log.RoomID]; !ok {
		return ErrNotFound
	}
	m.nextLogID++
	cp := *log
	cp.ID = m.nextLogID
	m.clicks = append(m.clicks, &cp)
	log.ID = cp.ID
	return nil
}

func (m *MemoryStore) ClickLogsForRound(_ context.Context, roomID string, round int) ([]*models.ClickLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.ClickLog
	for _, c := range m.clicks {
		if c.RoomID == roomID && c.RoundNumber == round {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ServerTimestamp < out[j].ServerTimestamp
	})
	return out, nil
}

func (m *MemoryStore) DeleteClickLogsForRound(_ context.Context, roomID string, round int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.clicks[:0]
	for _, c := range m.clicks {
		if c.RoomID != roomID || c.RoundNumber != round {
			kept = append(kept, c)
		}
	}
	m.clicks = kept
	return nil
}

// roomCopy must be called with at least the read lock held.
func (m *MemoryStore) roomCopy(id string) (*models.Room, error) {
	room, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *room
	return &cp, nil
}
