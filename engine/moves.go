package engine

// Capture is one available single jump: the piece on From jumps the opponent
// piece on Captured and lands on To.
type Capture struct {
	From     Pos `json:"from"`
	To       Pos `json:"to"`
	Captured Pos `json:"capture"`
}

// Step is one available non-capturing diagonal move.
type Step struct {
	From Pos `json:"from"`
	To   Pos `json:"to"`
}

// PieceCaptures enumerates the single jumps available to the piece at (r, c).
// Empty square yields nothing.
func PieceCaptures(b Board, r, c int) []Capture {
	piece := b[r][c]
	if piece == nil {
		return nil
	}
	var out []Capture
	for _, d := range dirsForPiece(piece) {
		r2, c2 := r+2*d[0], c+2*d[1]
		rm, cm := r+d[0], c+d[1]
		if !InBounds(r2, c2) || !IsPlayable(r2, c2) {
			continue
		}
		if b[r2][c2] != nil {
			continue
		}
		if mid := b[rm][cm]; mid != nil && mid.Color != piece.Color {
			out = append(out, Capture{From: Pos{r, c}, To: Pos{r2, c2}, Captured: Pos{rm, cm}})
		}
	}
	return out
}

// AllCapturesForColor unions PieceCaptures over every piece of the color.
func AllCapturesForColor(b Board, color Color) []Capture {
	var caps []Capture
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if p := b[r][c]; p != nil && p.Color == color {
				caps = append(caps, PieceCaptures(b, r, c)...)
			}
		}
	}
	return caps
}

// PieceSteps enumerates the non-capturing moves available to the piece at
// (r, c).
func PieceSteps(b Board, r, c int) []Step {
	piece := b[r][c]
	if piece == nil {
		return nil
	}
	var out []Step
	for _, d := range dirsForPiece(piece) {
		r1, c1 := r+d[0], c+d[1]
		if !InBounds(r1, c1) || !IsPlayable(r1, c1) {
			continue
		}
		if b[r1][c1] == nil {
			out = append(out, Step{From: Pos{r, c}, To: Pos{r1, c1}})
		}
	}
	return out
}

// AllStepsForColor unions PieceSteps over every piece of the color.
func AllStepsForColor(b Board, color Color) []Step {
	var steps []Step
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if p := b[r][c]; p != nil && p.Color == color {
				steps = append(steps, PieceSteps(b, r, c)...)
			}
		}
	}
	return steps
}

// MustCapture reports whether the color has at least one capture available,
// which makes captures mandatory for that turn.
func MustCapture(b Board, color Color) bool {
	return len(AllCapturesForColor(b, color)) > 0
}

// HasAnyLegalMove reports whether the color can move at all. A side to move
// with no legal move has lost.
func HasAnyLegalMove(b Board, color Color) bool {
	if MustCapture(b, color) {
		return true
	}
	return len(AllStepsForColor(b, color)) > 0
}

// Winner returns the winning role when the side to move cannot move. The
// second return is false while the game is still playable for next.
func Winner(b Board, next Role) (Role, bool) {
	if !HasAnyLegalMove(b, next.Color()) {
		return next.Opponent(), true
	}
	return "", false
}
