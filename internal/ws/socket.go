package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"github.com/codingSofie/partykit/internal/game"
)

// Server is the Socket.IO glue: it turns inbound events into game service
// calls and implements game.Broadcaster over the live connection map.
type Server struct {
	svc *game.Service

	mu      sync.RWMutex
	conns   map[string]socketio.Conn            // socketID -> Conn
	members map[string]map[string]socketio.Conn // roomID -> socketID -> Conn
}

func New() *Server {
	return &Server{
		conns:   make(map[string]socketio.Conn),
		members: make(map[string]map[string]socketio.Conn),
	}
}

// SetService wires the game service in after construction; the service needs
// the broadcaster first.
func (srv *Server) SetService(svc *game.Service) { srv.svc = svc }

// JoinRoom and friends implement game.Broadcaster.

func (srv *Server) JoinRoom(roomID, connID string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	c, ok := srv.conns[connID]
	if !ok {
		return
	}
	if srv.members[roomID] == nil {
		srv.members[roomID] = make(map[string]socketio.Conn)
	}
	srv.members[roomID][connID] = c
}

func (srv *Server) LeaveRoom(roomID, connID string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if m := srv.members[roomID]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(srv.members, roomID)
		}
	}
}

func (srv *Server) Broadcast(roomID, event string, payload any) {
	for _, c := range srv.roomConns(roomID, "") {
		c.Emit(event, payload)
	}
}

func (srv *Server) BroadcastExcept(roomID, connID, event string, payload any) {
	for _, c := range srv.roomConns(roomID, connID) {
		c.Emit(event, payload)
	}
}

func (srv *Server) Direct(connID, event string, payload any) {
	srv.mu.RLock()
	c, ok := srv.conns[connID]
	srv.mu.RUnlock()
	if ok {
		c.Emit(event, payload)
	}
}

func (srv *Server) roomConns(roomID, except string) []socketio.Conn {
	srv.mu.RLock()
	defer srv.mu.RUnlock()
	out := make([]socketio.Conn, 0, len(srv.members[roomID]))
	for id, c := range srv.members[roomID] {
		if id != except {
			out = append(out, c)
		}
	}
	return out
}

// Mount attaches the Socket.IO server with all game event handlers to the
// given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)
	ctx := context.Background()

	io.OnConnect("/", func(s socketio.Conn) error {
		srv.mu.Lock()
		srv.conns[s.ID()] = s
		srv.mu.Unlock()
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	io.OnEvent("/", "join_room", func(s socketio.Conn, payload struct {
		PlayerName string `json:"player_name"`
		Password   string `json:"password"`
	}) {
		res, err := srv.svc.Join(ctx, s.ID(), payload.PlayerName, payload.Password)
		if err != nil {
			srv.fail(s, "join_room_response", err)
			return
		}
		s.Emit("join_room_response", map[string]any{
			"success":   true,
			"room_data": res.Room,
			"user_data": res.User,
		})
	})

	io.OnEvent("/", "start_round", func(s socketio.Conn, payload struct {
		RoomID   string `json:"room_id"`
		PlayerID string `json:"player_id"`
	}) {
		if err := srv.svc.StartRound(ctx, s.ID(), payload.RoomID, payload.PlayerID); err != nil {
			srv.fail(s, "start_round_response", err)
			return
		}
		s.Emit("start_round_response", map[string]any{"success": true})
	})

	io.OnEvent("/", "player_click", func(s socketio.Conn, payload struct {
		PlayerID        string `json:"player_id"`
		RoomID          string `json:"room_id"`
		ClientTimestamp *int64 `json:"client_timestamp"`
	}) {
		res, err := srv.svc.Click(ctx, s.ID(), payload.RoomID, payload.PlayerID, payload.ClientTimestamp)
		if err != nil {
			srv.fail(s, "click_response", err)
			return
		}
		s.Emit("click_response", map[string]any{
			"success":          true,
			"is_first_click":   res.IsFirstClick,
			"server_timestamp": res.ServerTimestamp,
			"reaction_time_ms": res.ReactionTimeMs,
		})
	})

	io.OnEvent("/", "reset_round", func(s socketio.Conn, payload struct {
		RoomID   string `json:"room_id"`
		PlayerID string `json:"player_id"`
	}) {
		if err := srv.svc.Reset(ctx, s.ID(), payload.RoomID, payload.PlayerID); err != nil {
			srv.fail(s, "reset_round_response", err)
			return
		}
		s.Emit("reset_round_response", map[string]any{"success": true})
	})

	io.OnEvent("/", "leave_room", func(s socketio.Conn, payload struct {
		PlayerID string `json:"player_id"`
		RoomID   string `json:"room_id"`
	}) {
		if err := srv.svc.Leave(ctx, s.ID(), payload.RoomID, payload.PlayerID); err != nil {
			srv.fail(s, "leave_room_response", err)
			return
		}
		s.Emit("leave_room_response", map[string]any{
			"success":     true,
			"message":     "left room",
			"redirect_to": "home",
		})
	})

	io.OnEvent("/", "ping", func(s socketio.Conn) {
		s.Emit("pong", map[string]any{"server_time": time.Now().UnixMilli()})
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Err(e).Msg("socket error")
	})

	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		srv.svc.Disconnect(ctx, s.ID())
		srv.mu.Lock()
		delete(srv.conns, s.ID())
		for _, m := range srv.members {
			delete(m, s.ID())
		}
		srv.mu.Unlock()
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io serve")
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	return io
}

// fail reports a rejected action to the requester only; nobody else in the
// room hears about it.
func (srv *Server) fail(s socketio.Conn, event string, err error) {
	log.Debug().Str("sid", s.ID()).Str("event", event).Err(err).Msg("request rejected")
	s.Emit(event, map[string]any{
		"success": false,
		"error":   err.Error(),
		"code":    game.Code(err),
	})
}
