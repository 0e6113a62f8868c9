package engine

// American draughts on an 8x8 board. Row 0 is the top rank. Only squares
// where (row+col) is odd are playable. RED starts on rows 5-7 and moves
// toward row 0; BLACK starts on rows 0-2 and moves toward row 7.

const BoardSize = 8

type Color string

const (
	Red   Color = "RED"
	Black Color = "BLACK"
)

// Role is a player's side in a match. The white role plays the RED pieces,
// the black role plays the BLACK pieces.
type Role string

const (
	RoleWhite Role = "white"
	RoleBlack Role = "black"
)

func (c Color) Opponent() Color {
	if c == Red {
		return Black
	}
	return Red
}

func (c Color) Role() Role {
	if c == Red {
		return RoleWhite
	}
	return RoleBlack
}

func (r Role) Color() Color {
	if r == RoleWhite {
		return Red
	}
	return Black
}

func (r Role) Opponent() Role {
	if r == RoleWhite {
		return RoleBlack
	}
	return RoleWhite
}

func (r Role) Valid() bool {
	return r == RoleWhite || r == RoleBlack
}

// Pos is a board coordinate. It marshals as the wire format [row, col].
type Pos [2]int

type Piece struct {
	Color Color `json:"color"`
	King  bool  `json:"king"`
}

// Move is the client-supplied part of a move. WasCapture is derived by the
// engine and stored alongside it in the move log.
type Move struct {
	From Pos `json:"from"`
	To   Pos `json:"to"`
}

// Board is a fixed-size grid of squares; nil means empty. Engine operations
// never mutate their input board, they return a fresh copy.
type Board [BoardSize][BoardSize]*Piece

func InBounds(r, c int) bool {
	return r >= 0 && r < BoardSize && c >= 0 && c < BoardSize
}

func IsPlayable(r, c int) bool {
	return (r+c)%2 == 1
}

// forwardDir is the row delta a man of this color advances by.
func forwardDir(color Color) int {
	if color == Red {
		return -1
	}
	return +1
}

// dirsForPiece returns the diagonals the piece may move along. Kings get all
// four diagonals, men only their two forward ones.
func dirsForPiece(p *Piece) [][2]int {
	if p.King {
		return [][2]int{{-1, -1}, {-1, +1}, {+1, -1}, {+1, +1}}
	}
	dr := forwardDir(p.Color)
	return [][2]int{{dr, -1}, {dr, +1}}
}

// InitialBoard places the opening position: BLACK men on playable squares of
// rows 0-2, RED men on playable squares of rows 5-7.
func InitialBoard() Board {
	var b Board
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if !IsPlayable(r, c) {
				continue
			}
			if r < 3 {
				b[r][c] = &Piece{Color: Black}
			} else if r > 4 {
				b[r][c] = &Piece{Color: Red}
			}
		}
	}
	return b
}

// Clone returns a deep copy. Squares are copied so the two boards share no
// piece pointers.
func (b Board) Clone() Board {
	var out Board
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if p := b[r][c]; p != nil {
				cp := *p
				out[r][c] = &cp
			}
		}
	}
	return out
}

// At returns the piece at the position, or nil when empty or out of bounds.
func (b Board) At(p Pos) *Piece {
	if !InBounds(p[0], p[1]) {
		return nil
	}
	return b[p[0]][p[1]]
}

// crowningRow is the far rank a man of this color is crowned on.
func crowningRow(color Color) int {
	if color == Red {
		return 0
	}
	return BoardSize - 1
}
