package game

import "sync"

// Sessions maps a live transport connection to the (player, room) pair it
// authenticated as. Every state-changing request is checked against this
// table; a mismatch is ErrUnauthorized.
type Sessions struct {
	mu    sync.RWMutex
	conns map[string]Binding
}

type Binding struct {
	PlayerID string
	RoomID   string
}

func NewSessions() *Sessions {
	return &Sessions{conns: make(map[string]Binding)}
}

// Bind records the mapping, replacing any prior binding for the connection.
func (s *Sessions) Bind(connID, playerID, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[connID] = Binding{PlayerID: playerID, RoomID: roomID}
}

func (s *Sessions) Resolve(connID string) (Binding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.conns[connID]
	return b, ok
}

func (s *Sessions) Unbind(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, connID)
}
