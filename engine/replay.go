package engine

import (
	"errors"
	"fmt"
)

// ErrCorruptLog marks a persisted move log that no longer replays cleanly.
// Wrapped errors carry the 1-based move number and the rejection.
var ErrCorruptLog = errors.New("corrupt move log")

// LoggedMove is one entry of a match's move log, in the order it was played.
type LoggedMove struct {
	Player Role
	Move   Move
}

// State is the authoritative game state derived from a move log. It is
// recomputed on demand and never persisted.
type State struct {
	Board       Board
	NextTurn    Role
	ForcedFrom  *Pos
	MustCapture bool
}

// Replay runs the log forward from the initial board and returns the state
// the next move must be validated against. White moves first.
func Replay(log []LoggedMove) (*State, error) {
	board := InitialBoard()
	next := RoleWhite
	var forced *Pos

	for i, lm := range log {
		player := lm.Player
		color := player.Color()

		// Trust the log over the predicted turn; a mismatch resets any
		// pending chain instead of failing the whole replay.
		if player != next {
			next = player
			forced = nil
		}

		mustCap := MustCapture(board, color)

		applied, err := ValidateAndApply(board, color, lm.Move, forced, mustCap || forced != nil)
		if err != nil {
			return nil, fmt.Errorf("%w: move %d: %v", ErrCorruptLog, i+1, err)
		}
		board = applied.Board

		// Same player stays on turn while the capture chain is open.
		if applied.MustContinue() {
			pos := applied.NewPos
			forced = &pos
			continue
		}

		forced = nil
		next = player.Opponent()
	}

	return &State{
		Board:       board,
		NextTurn:    next,
		ForcedFrom:  forced,
		MustCapture: MustCapture(board, next.Color()),
	}, nil
}
