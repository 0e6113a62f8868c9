package match

import (
	"errors"

	"checkers-platform/backend/engine"
	"checkers-platform/backend/internal/models"
)

// Errors
var (
	ErrMatchNotFound     = errors.New("match not found")
	ErrMatchNotOngoing   = errors.New("match not ongoing")
	ErrNotParticipant    = errors.New("user not in match")
	ErrNumberingConflict = errors.New("move numbering conflict")
	ErrInvalidTransition = errors.New("invalid match status transition")
	ErrNoFreeSlot        = errors.New("match has no free slot")
	ErrAlreadyInMatch    = errors.New("user already occupies this match")
)

// StoredMove is the JSON document persisted in match_moves.move. WasCapture
// is derived by the rules engine, never taken from the client.
type StoredMove struct {
	From       engine.Pos `json:"from"`
	To         engine.Pos `json:"to"`
	WasCapture bool       `json:"was_capture"`
}

// Finish describes the terminal transition applied together with a move.
type Finish struct {
	Result models.MatchResult
	Reason models.MatchReason
}
