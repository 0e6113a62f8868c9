package engine

import "fmt"

// RejectKind classifies why a move was refused. The Detail string on the
// error is the user-visible message sent back over the wire.
type RejectKind string

const (
	RejectGeometry         RejectKind = "geometry"
	RejectOwnership        RejectKind = "ownership"
	RejectOccupancy        RejectKind = "occupancy"
	RejectChain            RejectKind = "chain"
	RejectMandatoryCapture RejectKind = "mandatory_capture"
	RejectDirection        RejectKind = "direction"
	RejectNoCapture        RejectKind = "no_capture"
)

type IllegalMoveError struct {
	Kind   RejectKind
	Detail string
}

func (e *IllegalMoveError) Error() string {
	return e.Detail
}

func reject(kind RejectKind, detail string) *IllegalMoveError {
	return &IllegalMoveError{Kind: kind, Detail: detail}
}

// Applied is the outcome of an accepted move.
type Applied struct {
	Board      Board
	WasCapture bool
	NewPos     Pos
	Captured   *Pos
	KingedNow  bool
}

// MustContinue reports whether the same player has to keep jumping from
// NewPos. A capture that crowns the piece ends the turn regardless of any
// further jumps.
func (a *Applied) MustContinue() bool {
	if !a.WasCapture || a.KingedNow {
		return false
	}
	return len(PieceCaptures(a.Board, a.NewPos[0], a.NewPos[1])) > 0
}

// ValidateAndApply checks the move for the color against the board and, when
// legal, returns the resulting position. The input board is never modified.
//
// forcedFrom, when non-nil, restricts the move to continue a capture chain
// from that square. mustCapture rejects plain steps while the side has a
// capture available. Callers mid-chain pass mustCapture=true as well.
func ValidateAndApply(b Board, color Color, mv Move, forcedFrom *Pos, mustCapture bool) (*Applied, error) {
	fr, fc := mv.From[0], mv.From[1]
	tr, tc := mv.To[0], mv.To[1]

	if !InBounds(fr, fc) || !InBounds(tr, tc) {
		return nil, reject(RejectGeometry, "Out of bounds")
	}
	if !IsPlayable(fr, fc) || !IsPlayable(tr, tc) {
		return nil, reject(RejectGeometry, "Non-playable square")
	}
	if forcedFrom != nil && mv.From != *forcedFrom {
		return nil, reject(RejectChain,
			fmt.Sprintf("Must continue capture chain from [%d, %d]", forcedFrom[0], forcedFrom[1]))
	}

	piece := b[fr][fc]
	if piece == nil {
		return nil, reject(RejectOwnership, "No piece at from")
	}
	if piece.Color != color {
		return nil, reject(RejectOwnership, "Not your piece")
	}
	if b[tr][tc] != nil {
		return nil, reject(RejectOccupancy, "Destination not empty")
	}

	dr := tr - fr
	dc := tc - fc

	// Step move
	if abs(dr) == 1 && abs(dc) == 1 {
		if mustCapture {
			return nil, reject(RejectMandatoryCapture, "Capture is mandatory")
		}
		if !piece.King && dr != forwardDir(color) {
			return nil, reject(RejectDirection, "Illegal direction for man")
		}

		nb := b.Clone()
		moved := *piece
		nb[fr][fc] = nil
		nb[tr][tc] = &moved

		kinged := false
		if !moved.King && tr == crowningRow(color) {
			moved.King = true
			kinged = true
		}
		return &Applied{Board: nb, WasCapture: false, NewPos: Pos{tr, tc}, KingedNow: kinged}, nil
	}

	// Capture move
	if abs(dr) == 2 && abs(dc) == 2 {
		if !piece.King && dr != 2*forwardDir(color) {
			return nil, reject(RejectDirection, "Illegal capture direction for man")
		}

		mr := fr + dr/2
		mc := fc + dc/2
		mid := b[mr][mc]
		if mid == nil || mid.Color == color {
			return nil, reject(RejectNoCapture, "No opponent piece to capture")
		}

		nb := b.Clone()
		moved := *piece
		nb[fr][fc] = nil
		nb[mr][mc] = nil
		nb[tr][tc] = &moved

		// Crowning on a capture ends the turn even if further jumps exist.
		kinged := false
		if !moved.King && tr == crowningRow(color) {
			moved.King = true
			kinged = true
		}
		captured := Pos{mr, mc}
		return &Applied{Board: nb, WasCapture: true, NewPos: Pos{tr, tc}, Captured: &captured, KingedNow: kinged}, nil
	}

	return nil, reject(RejectGeometry, "Illegal move geometry")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
