package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/codingSofie/partykit/internal/models"
	"github.com/codingSofie/partykit/internal/store"
)

type Config struct {
	MaxPlayers    int
	GraceDelay    time.Duration
	RoomTimeout   time.Duration
	SweepInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = 50
	}
	if c.GraceDelay <= 0 {
		c.GraceDelay = 500 * time.Millisecond
	}
	if c.RoomTimeout <= 0 {
		c.RoomTimeout = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
}

// Service is the authoritative room state machine. Every transition for a
// given room runs under that room's mutex, so the arrival order at the lock
// is the total order that resolves the click race; wall-clock timestamps are
// recorded but never compared to pick a winner.
type Service struct {
	store    store.Store
	clock    clockwork.Clock
	bc       Broadcaster
	sessions *Sessions
	registry *Registry
	cfg      Config

	locksMu   sync.Mutex
	roomLocks map[string]*sync.Mutex

	timersMu    sync.Mutex
	graceTimers map[string]*graceTimer
}

// graceTimer is the pending locked->result transition for one room. It is
// keyed by the round it was scheduled for; a reset or deletion that races
// the timer stops it, and the fire path re-validates the snapshot anyway.
type graceTimer struct {
	timer clockwork.Timer
	round int
	stop  chan struct{}
}

func NewService(st store.Store, bc Broadcaster, clock clockwork.Clock, cfg Config) *Service {
	cfg.applyDefaults()
	return &Service{
		store:       st,
		clock:       clock,
		bc:          bc,
		sessions:    NewSessions(),
		registry:    NewRegistry(st, clock, cfg.MaxPlayers),
		cfg:         cfg,
		roomLocks:   make(map[string]*sync.Mutex),
		graceTimers: make(map[string]*graceTimer),
	}
}

func (s *Service) Registry() *Registry { return s.registry }

// lockRoom serializes all transitions for one room. Cross-room operations
// stay parallel; there is no global lock.
func (s *Service) lockRoom(roomID string) func() {
	s.locksMu.Lock()
	mu, ok := s.roomLocks[roomID]
	if !ok {
		mu = &sync.Mutex{}
		s.roomLocks[roomID] = mu
	}
	s.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (s *Service) dropRoomLock(roomID string) {
	s.locksMu.Lock()
	delete(s.roomLocks, roomID)
	s.locksMu.Unlock()
}

func (s *Service) authorize(connID, playerID, roomID string) error {
	b, ok := s.sessions.Resolve(connID)
	if !ok || b.PlayerID != playerID || b.RoomID != roomID {
		return ErrUnauthorized
	}
	return nil
}

// Join puts a player into the room behind the password, creating the room on
// first use. The first player in (or any player joining a hostless room)
// becomes host.
func (s *Service) Join(ctx context.Context, connID, name, password string) (*JoinResult, error) {
	nameLen := utf8.RuneCountInString(name)
	if nameLen < 1 || nameLen > 20 {
		return nil, ErrInvalidName
	}
	room, _, err := s.registry.FindOrCreate(ctx, password)
	if err != nil {
		return nil, err
	}

	unlock := s.lockRoom(room.ID)
	defer unlock()

	// re-read under the lock; the room may have moved on since the lookup
	room, err = s.store.RoomByID(ctx, room.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("join: %w", err)
	}

	players, err := s.store.PlayersByRoom(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	if len(players) >= room.MaxPlayers {
		return nil, ErrRoomFull
	}

	now := s.clock.Now()
	isHost := shouldBeHost(players)
	player := &models.Player{
		ID:           uuid.NewString(),
		RoomID:       room.ID,
		Name:         name,
		IsHost:       isHost,
		JoinedAt:     now,
		ConnectionID: &connID,
	}
	if err := s.store.CreatePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	if isHost && len(players) > 0 {
		// hostless-room recovery: clear any stale flags before taking the seat
		if err := s.store.SetHost(ctx, room.ID, player.ID); err != nil {
			return nil, fmt.Errorf("join: %w", err)
		}
	}
	if err := s.store.TouchRoom(ctx, room.ID, now); err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}

	s.sessions.Bind(connID, player.ID, room.ID)
	s.bc.JoinRoom(room.ID, connID)

	log.Info().Str("room", room.ID).Str("player", player.ID).Bool("host", isHost).Msg("player joined")

	s.bc.BroadcastExcept(room.ID, connID, EventPlayerJoined, PlayerJoined{
		PlayerID:     player.ID,
		PlayerName:   player.Name,
		IsHost:       isHost,
		TotalPlayers: len(players) + 1,
	})

	return &JoinResult{
		Room: &RoomData{
			ID:           room.ID,
			Code:         room.Code,
			Password:     room.Password,
			MaxPlayers:   room.MaxPlayers,
			CurrentPhase: room.CurrentPhase,
			RoundNumber:  room.RoundNumber,
		},
		User: &UserData{
			ID:       player.ID,
			Name:     player.Name,
			IsHost:   isHost,
			JoinedAt: now.UnixMilli(),
		},
	}, nil
}

// StartRound moves waiting -> active. Host only.
func (s *Service) StartRound(ctx context.Context, connID, roomID, playerID string) error {
	if err := s.authorize(connID, playerID, roomID); err != nil {
		return err
	}
	unlock := s.lockRoom(roomID)
	defer unlock()

	player, room, err := s.playerAndRoom(ctx, playerID, roomID)
	if err != nil {
		return err
	}
	if !player.IsHost {
		return ErrNotHost
	}
	if room.CurrentPhase != models.PhaseWaiting {
		return ErrInvalidPhase
	}

	now := s.clock.Now()
	round := room.RoundNumber + 1
	err = s.store.SaveRoomState(ctx, roomID, store.RoomState{
		Phase:        models.PhaseActive,
		RoundNumber:  round,
		StartTime:    &now,
		LastActivity: now,
	})
	if err != nil {
		return fmt.Errorf("start round: %w", err)
	}

	log.Info().Str("room", roomID).Int("round", round).Msg("round started")
	s.bc.Broadcast(roomID, EventRoundStarted, RoundStarted{
		RoomID:      roomID,
		StartTime:   now.UnixMilli(),
		RoundNumber: round,
	})
	return nil
}

// Click records one click. The first accepted click of the round wins the
// active -> locked transition and schedules the deferred result; later clicks
// from other players during the grace window are logged with their arrival
// rank but never win. A repeat click from the same player in the same round
// is rejected in any phase.
func (s *Service) Click(ctx context.Context, connID, roomID, playerID string, clientTS *int64) (*ClickResult, error) {
	if err := s.authorize(connID, playerID, roomID); err != nil {
		return nil, err
	}
	unlock := s.lockRoom(roomID)
	defer unlock()

	player, room, err := s.playerAndRoom(ctx, playerID, roomID)
	if err != nil {
		return nil, err
	}

	logs, err := s.store.ClickLogsForRound(ctx, roomID, room.RoundNumber)
	if err != nil {
		return nil, fmt.Errorf("click: %w", err)
	}
	for _, l := range logs {
		if l.PlayerID == playerID {
			return nil, ErrDuplicateClick
		}
	}
	// locked still accepts late clicks for the log; waiting and result do not
	if room.CurrentPhase != models.PhaseActive && room.CurrentPhase != models.PhaseLocked {
		return nil, ErrInvalidPhase
	}

	now := s.clock.Now()
	serverTS := now.UnixMilli()
	var reaction *int64
	if room.StartTime != nil {
		ms := serverTS - room.StartTime.UnixMilli()
		reaction = &ms
	}

	entry := &models.ClickLog{
		RoomID:          roomID,
		PlayerID:        playerID,
		PlayerName:      player.Name,
		ServerTimestamp: serverTS,
		ClientTimestamp: clientTS,
		ReactionTimeMs:  reaction,
		ClickOrder:      len(logs) + 1,
		RoundNumber:     room.RoundNumber,
	}
	if err := s.store.CreateClickLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("click: %w", err)
	}

	isFirst := room.CurrentPhase == models.PhaseActive
	if isFirst {
		err = s.store.SaveRoomState(ctx, roomID, store.RoomState{
			Phase:          models.PhaseLocked,
			RoundNumber:    room.RoundNumber,
			FirstClickerID: &playerID,
			StartTime:      room.StartTime,
			EndTime:        &now,
			LastActivity:   now,
		})
		if err != nil {
			return nil, fmt.Errorf("click: %w", err)
		}
		log.Info().Str("room", roomID).Str("player", playerID).Int("round", room.RoundNumber).Msg("round locked")
		s.bc.Broadcast(roomID, EventRoundLocked, RoundLocked{
			FirstClickerID:   playerID,
			FirstClickerName: player.Name,
			ServerTimestamp:  serverTS,
		})
		s.scheduleResult(roomID, room.RoundNumber)
	} else if err := s.store.TouchRoom(ctx, roomID, now); err != nil {
		return nil, fmt.Errorf("click: %w", err)
	}

	return &ClickResult{
		IsFirstClick:    isFirst,
		ServerTimestamp: serverTS,
		ReactionTimeMs:  reaction,
	}, nil
}

// Reset returns the room to waiting. Host only, legal from waiting or result.
// The round number stays where it is; it only moves on start.
func (s *Service) Reset(ctx context.Context, connID, roomID, playerID string) error {
	if err := s.authorize(connID, playerID, roomID); err != nil {
		return err
	}
	unlock := s.lockRoom(roomID)
	defer unlock()

	player, room, err := s.playerAndRoom(ctx, playerID, roomID)
	if err != nil {
		return err
	}
	if !player.IsHost {
		return ErrNotHost
	}
	if room.CurrentPhase != models.PhaseWaiting && room.CurrentPhase != models.PhaseResult {
		return ErrInvalidPhase
	}

	s.cancelResult(roomID)
	// storage hygiene; the advancing round number is what really retires them
	if err := s.store.DeleteClickLogsForRound(ctx, roomID, room.RoundNumber); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	now := s.clock.Now()
	err = s.store.SaveRoomState(ctx, roomID, store.RoomState{
		Phase:        models.PhaseWaiting,
		RoundNumber:  room.RoundNumber,
		LastActivity: now,
	})
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	log.Info().Str("room", roomID).Msg("round reset")
	s.bc.Broadcast(roomID, EventRoundReset, RoundReset{RoomID: roomID})
	return nil
}

// Leave removes the player for good. The last player out takes the room with
// them; a departing host hands off to the most senior remaining player.
func (s *Service) Leave(ctx context.Context, connID, roomID, playerID string) error {
	if err := s.authorize(connID, playerID, roomID); err != nil {
		return err
	}
	unlock := s.lockRoom(roomID)
	defer unlock()

	player, _, err := s.playerAndRoom(ctx, playerID, roomID)
	if err != nil {
		return err
	}
	wasHost := player.IsHost

	if err := s.store.DeletePlayer(ctx, playerID); err != nil {
		return fmt.Errorf("leave: %w", err)
	}
	s.sessions.Unbind(connID)
	s.bc.LeaveRoom(roomID, connID)

	remaining, err := s.store.PlayersByRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("leave: %w", err)
	}

	if len(remaining) == 0 {
		s.cancelResult(roomID)
		if err := s.registry.Delete(ctx, roomID); err != nil {
			return err
		}
		s.dropRoomLock(roomID)
		log.Info().Str("room", roomID).Msg("room closed, last player left")
		return nil
	}

	var newHostID *string
	if wasHost {
		nh := nextHost(remaining)
		if err := s.store.SetHost(ctx, roomID, nh.ID); err != nil {
			return fmt.Errorf("leave: %w", err)
		}
		newHostID = &nh.ID
		log.Info().Str("room", roomID).Str("player", nh.ID).Msg("host transferred")
		s.bc.Broadcast(roomID, EventHostTransferred, HostTransferred{
			NewHostID:   nh.ID,
			NewHostName: nh.Name,
		})
	}

	if err := s.store.TouchRoom(ctx, roomID, s.clock.Now()); err != nil {
		return fmt.Errorf("leave: %w", err)
	}
	s.bc.Broadcast(roomID, EventPlayerLeft, PlayerLeft{
		PlayerID:     playerID,
		PlayerName:   player.Name,
		TotalPlayers: len(remaining),
		NewHostID:    newHostID,
		RoomClosed:   false,
	})
	return nil
}

// Disconnect is the transport telling us a connection died. The player record
// stays so an eventual reconnect can pick it up; only the live connection
// reference and the session binding go away.
func (s *Service) Disconnect(ctx context.Context, connID string) {
	b, ok := s.sessions.Resolve(connID)
	if !ok {
		return
	}
	s.sessions.Unbind(connID)
	s.bc.LeaveRoom(b.RoomID, connID)
	if err := s.store.ClearConnection(ctx, connID); err != nil {
		log.Error().Err(err).Str("conn", connID).Msg("clear connection failed")
	}
	log.Info().Str("conn", connID).Str("player", b.PlayerID).Msg("connection dropped")
}

// RunSweeper evicts inactive rooms on a fixed interval until ctx ends.
func (s *Service) RunSweeper(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Sweep(ctx)
		}
	}
}

// Sweep deletes rooms idle past the timeout and returns how many went.
func (s *Service) Sweep(ctx context.Context) int {
	deleted, err := s.registry.SweepInactive(ctx, s.clock.Now(), s.cfg.RoomTimeout)
	if err != nil {
		log.Error().Err(err).Msg("sweep failed")
		return 0
	}
	for _, roomID := range deleted {
		s.cancelResult(roomID)
		s.dropRoomLock(roomID)
	}
	return len(deleted)
}

// scheduleResult arms the locked -> result transition for the round. The
// timer holds no room lock while pending; late clicks still land during the
// grace window.
func (s *Service) scheduleResult(roomID string, round int) {
	s.timersMu.Lock()
	if prev, ok := s.graceTimers[roomID]; ok {
		stopAndDrain(prev.timer)
		close(prev.stop)
	}
	gt := &graceTimer{
		timer: s.clock.NewTimer(s.cfg.GraceDelay),
		round: round,
		stop:  make(chan struct{}),
	}
	s.graceTimers[roomID] = gt
	s.timersMu.Unlock()

	go func() {
		select {
		case <-gt.timer.Chan():
			s.finishRound(roomID, round)
		case <-gt.stop:
		}
	}()
}

// cancelResult suppresses a pending deferred result, if any.
func (s *Service) cancelResult(roomID string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if gt, ok := s.graceTimers[roomID]; ok {
		stopAndDrain(gt.timer)
		close(gt.stop)
		delete(s.graceTimers, roomID)
	}
}

// finishRound fires after the grace window. It re-validates that the room is
// still locked on the same round before computing the winner; a reset or
// deletion that raced the timer makes this a no-op.
func (s *Service) finishRound(roomID string, round int) {
	ctx := context.Background()
	unlock := s.lockRoom(roomID)
	defer unlock()

	s.timersMu.Lock()
	if gt, ok := s.graceTimers[roomID]; ok && gt.round == round {
		delete(s.graceTimers, roomID)
	}
	s.timersMu.Unlock()

	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil || room.CurrentPhase != models.PhaseLocked || room.RoundNumber != round {
		return
	}
	logs, err := s.store.ClickLogsForRound(ctx, roomID, round)
	if err != nil || len(logs) == 0 {
		return
	}
	var winner *models.ClickLog
	for _, l := range logs {
		if l.ClickOrder == 1 {
			winner = l
			break
		}
	}
	if winner == nil {
		return
	}

	now := s.clock.Now()
	err = s.store.SaveRoomState(ctx, roomID, store.RoomState{
		Phase:          models.PhaseResult,
		RoundNumber:    round,
		FirstClickerID: room.FirstClickerID,
		StartTime:      room.StartTime,
		EndTime:        room.EndTime,
		LastActivity:   now,
	})
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("finish round failed")
		return
	}

	log.Info().Str("room", roomID).Int("round", round).Str("winner", winner.PlayerID).Msg("round result")
	s.bc.Broadcast(roomID, EventRoundResult, RoundResult{
		WinnerID:       winner.PlayerID,
		WinnerName:     winner.PlayerName,
		ReactionTimeMs: winner.ReactionTimeMs,
		ClickLogs:      logs,
	})
}

func (s *Service) playerAndRoom(ctx context.Context, playerID, roomID string) (*models.Player, *models.Room, error) {
	player, err := s.store.PlayerByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrPlayerNotFound
		}
		return nil, nil, fmt.Errorf("load player: %w", err)
	}
	if player.RoomID != roomID {
		return nil, nil, ErrUnauthorized
	}
	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrRoomNotFound
		}
		return nil, nil, fmt.Errorf("load room: %w", err)
	}
	return player, room, nil
}

// stopAndDrain stops a timer and empties its channel so the waiting
// goroutine never sees a stale fire.
func stopAndDrain(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
