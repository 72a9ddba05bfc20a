package models

import "errors"

// Sentinel errors for the game core. Handlers translate these into HTTP
// status codes; everything else is treated as an internal error.
var (
	ErrInvalidConfiguration = errors.New("invalid game configuration")
	ErrInvalidMove          = errors.New("invalid move")
	ErrUnauthorized         = errors.New("user does not own this session")
	ErrNotActive            = errors.New("session is not active")
	ErrInsufficientFunds    = errors.New("insufficient in-game balance")
	ErrSessionNotFound      = errors.New("session not found")
	ErrConflict             = errors.New("session was modified concurrently")
)
