package game

import "github.com/codingSofie/partykit/internal/models"

// Event names broadcast to a room or sent to a single connection. They are
// part of the client protocol and must not change.
const (
	EventPlayerJoined    = "player_joined"
	EventPlayerLeft      = "player_left"
	EventHostTransferred = "host_transferred"
	EventRoundStarted    = "round_started"
	EventRoundLocked     = "round_locked"
	EventRoundResult     = "round_result"
	EventRoundReset      = "round_reset"
)

// Broadcaster fans events out to a room's live connections. JoinRoom and
// LeaveRoom keep transport membership in sync with Player.RoomID; the game
// layer owns when they are called, the transport owns how delivery happens.
type Broadcaster interface {
	JoinRoom(roomID, connID string)
	LeaveRoom(roomID, connID string)
	Broadcast(roomID, event string, payload any)
	BroadcastExcept(roomID, connID, event string, payload any)
	Direct(connID, event string, payload any)
}

type RoomData struct {
	ID           string       `json:"id"`
	Code         string       `json:"code"`
	Password     string       `json:"password"`
	MaxPlayers   int          `json:"max_players"`
	CurrentPhase models.Phase `json:"current_phase"`
	RoundNumber  int          `json:"round_number"`
}

type UserData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsHost   bool   `json:"is_host"`
	JoinedAt int64  `json:"joined_at"`
}

type JoinResult struct {
	Room *RoomData `json:"room_data"`
	User *UserData `json:"user_data"`
}

type PlayerJoined struct {
	PlayerID     string `json:"player_id"`
	PlayerName   string `json:"player_name"`
	IsHost       bool   `json:"is_host"`
	TotalPlayers int    `json:"total_players"`
}

type RoundStarted struct {
	RoomID      string `json:"room_id"`
	StartTime   int64  `json:"start_time"`
	RoundNumber int    `json:"round_number"`
}

type RoundLocked struct {
	FirstClickerID   string `json:"first_clicker_id"`
	FirstClickerName string `json:"first_clicker_name"`
	ServerTimestamp  int64  `json:"server_timestamp"`
}

type ClickResult struct {
	IsFirstClick    bool   `json:"is_first_click"`
	ServerTimestamp int64  `json:"server_timestamp"`
	ReactionTimeMs  *int64 `json:"reaction_time_ms"`
}

type RoundResult struct {
	WinnerID       string             `json:"winner_id"`
	WinnerName     string             `json:"winner_name"`
	ReactionTimeMs *int64             `json:"reaction_time_ms"`
	ClickLogs      []*models.ClickLog `json:"click_logs"`
}

type RoundReset struct {
	RoomID string `json:"room_id"`
}

type PlayerLeft struct {
	PlayerID     string  `json:"player_id"`
	PlayerName   string  `json:"player_name"`
	TotalPlayers int     `json:"total_players"`
	NewHostID    *string `json:"new_host_id"`
	RoomClosed   bool    `json:"room_closed"`
}

type HostTransferred struct {
	NewHostID   string `json:"new_host_id"`
	NewHostName string `json:"new_host_name"`
}
