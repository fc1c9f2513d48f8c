package game

import "errors"

// All of these are user-recoverable: they go back to the requesting
// connection as a structured failure and never touch anyone else's state.
var (
	ErrInvalidName     = errors.New("player name must be 1-20 characters")
	ErrInvalidPassword = errors.New("room password must be 4 digits or uppercase letters")
	ErrUnauthorized    = errors.New("connection does not match player and room")
	ErrNotHost         = errors.New("only the host may do that")
	ErrInvalidPhase    = errors.New("action not allowed in current phase")
	ErrDuplicateClick  = errors.New("already clicked this round")
	ErrRoomFull        = errors.New("room is full")
	ErrPasswordTaken   = errors.New("that password is already in use")
	ErrRoomNotFound    = errors.New("room not found")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrCodeExhausted   = errors.New("could not generate a unique room code")
	ErrInternal        = errors.New("internal error")
)

// Code maps an error to the stable identifier sent over the wire.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidPassword):
		return "invalid_input"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotHost):
		return "forbidden"
	case errors.Is(err, ErrInvalidPhase):
		return "invalid_phase"
	case errors.Is(err, ErrDuplicateClick):
		return "duplicate_click"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrPasswordTaken):
		return "password_taken"
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrPlayerNotFound):
		return "not_found"
	case errors.Is(err, ErrCodeExhausted):
		return "code_exhausted"
	default:
		return "internal_error"
	}
}
