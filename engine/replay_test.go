package engine

import (
	"errors"
	"testing"
)

// chainGame is a legal opening in which white ends up jumping twice in a row:
// black walks a man to [4,3], white captures [5,2]x[4,3] landing on [3,4],
// and the chain forces the follow-up [3,4]x[2,5] into the square black
// vacated earlier.
var chainGame = []LoggedMove{
	{Player: RoleWhite, Move: Move{From: Pos{5, 6}, To: Pos{4, 7}}},
	{Player: RoleBlack, Move: Move{From: Pos{2, 7}, To: Pos{3, 6}}},
	{Player: RoleWhite, Move: Move{From: Pos{6, 5}, To: Pos{5, 6}}},
	{Player: RoleBlack, Move: Move{From: Pos{1, 6}, To: Pos{2, 7}}},
	{Player: RoleWhite, Move: Move{From: Pos{7, 4}, To: Pos{6, 5}}},
	{Player: RoleBlack, Move: Move{From: Pos{2, 3}, To: Pos{3, 4}}},
	{Player: RoleWhite, Move: Move{From: Pos{5, 0}, To: Pos{4, 1}}},
	{Player: RoleBlack, Move: Move{From: Pos{3, 4}, To: Pos{4, 3}}},
	{Player: RoleWhite, Move: Move{From: Pos{5, 2}, To: Pos{3, 4}}},
	{Player: RoleWhite, Move: Move{From: Pos{3, 4}, To: Pos{1, 6}}},
}

func boardsEqual(a, b Board) bool {
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			pa, pb := a[r][c], b[r][c]
			if (pa == nil) != (pb == nil) {
				return false
			}
			if pa != nil && *pa != *pb {
				return false
			}
		}
	}
	return true
}

func TestReplayEmptyLog(t *testing.T) {
	state, err := Replay(nil)
	if err != nil {
		t.Fatalf("replay of empty log failed: %v", err)
	}
	if state.NextTurn != RoleWhite {
		t.Errorf("next turn = %s, want white", state.NextTurn)
	}
	if state.ForcedFrom != nil || state.MustCapture {
		t.Error("fresh game should have no chain and no mandatory capture")
	}
	if !boardsEqual(state.Board, InitialBoard()) {
		t.Error("board differs from the opening position")
	}
}

func TestReplayChainGame(t *testing.T) {
	state, err := Replay(chainGame)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if state.NextTurn != RoleBlack {
		t.Errorf("next turn = %s, want black", state.NextTurn)
	}
	if state.ForcedFrom != nil {
		t.Errorf("forced from = %v, want nil after the chain ended", state.ForcedFrom)
	}
	// Black [0,7] can jump the white man that landed on [1,6].
	if !state.MustCapture {
		t.Error("black should be under mandatory capture")
	}

	checks := []struct {
		pos   Pos
		color Color
		empty bool
	}{
		{Pos{1, 6}, Red, false},  // the double-jumper
		{Pos{4, 3}, "", true},    // first victim removed
		{Pos{2, 5}, "", true},    // second victim removed
		{Pos{0, 7}, Black, false},
		{Pos{3, 6}, Black, false},
	}
	for _, ck := range checks {
		p := state.Board.At(ck.pos)
		if ck.empty {
			if p != nil {
				t.Errorf("square %v should be empty, holds %+v", ck.pos, p)
			}
			continue
		}
		if p == nil || p.Color != ck.color {
			t.Errorf("square %v = %+v, want %s", ck.pos, p, ck.color)
		}
		if p != nil && p.King {
			t.Errorf("square %v unexpectedly crowned", ck.pos)
		}
	}
}

func TestReplayMidChain(t *testing.T) {
	state, err := Replay(chainGame[:9])
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if state.NextTurn != RoleWhite {
		t.Errorf("next turn = %s, want white to continue the chain", state.NextTurn)
	}
	if state.ForcedFrom == nil || *state.ForcedFrom != (Pos{3, 4}) {
		t.Errorf("forced from = %v, want [3 4]", state.ForcedFrom)
	}
	if !state.MustCapture {
		t.Error("mid-chain state must report mandatory capture")
	}
}

// TestReplayMatchesOnlineApplication checks the round-trip law: the state a
// session computes while applying moves one by one equals the state replayed
// from the persisted log.
func TestReplayMatchesOnlineApplication(t *testing.T) {
	board := InitialBoard()
	next := RoleWhite
	var forced *Pos

	for i, lm := range chainGame {
		mustCap := MustCapture(board, lm.Player.Color())
		applied, err := ValidateAndApply(board, lm.Player.Color(), lm.Move, forced, mustCap || forced != nil)
		if err != nil {
			t.Fatalf("online apply of move %d failed: %v", i+1, err)
		}
		board = applied.Board
		if applied.MustContinue() {
			pos := applied.NewPos
			forced = &pos
		} else {
			forced = nil
			next = lm.Player.Opponent()
		}
	}

	state, err := Replay(chainGame)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !boardsEqual(state.Board, board) {
		t.Error("replayed board differs from online board")
	}
	if state.NextTurn != next {
		t.Errorf("replayed turn %s, online turn %s", state.NextTurn, next)
	}
	if (state.ForcedFrom == nil) != (forced == nil) {
		t.Errorf("replayed forced %v, online forced %v", state.ForcedFrom, forced)
	}
	if state.MustCapture != MustCapture(board, next.Color()) {
		t.Error("must-capture flag diverged")
	}
}

func TestReplayTrustsLoggedPlayer(t *testing.T) {
	// Two consecutive white entries without an open chain: the replayer
	// follows the log instead of failing.
	log := []LoggedMove{
		{Player: RoleWhite, Move: Move{From: Pos{5, 0}, To: Pos{4, 1}}},
		{Player: RoleWhite, Move: Move{From: Pos{4, 1}, To: Pos{3, 0}}},
	}
	state, err := Replay(log)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if state.NextTurn != RoleBlack {
		t.Errorf("next turn = %s, want black", state.NextTurn)
	}
	if p := state.Board.At(Pos{3, 0}); p == nil || p.Color != Red {
		t.Error("white man should have reached [3,0]")
	}
}

func TestReplayCorruptLog(t *testing.T) {
	log := []LoggedMove{
		{Player: RoleWhite, Move: Move{From: Pos{5, 0}, To: Pos{2, 3}}},
	}
	_, err := Replay(log)
	if err == nil {
		t.Fatal("expected corrupt log error")
	}
	if !errors.Is(err, ErrCorruptLog) {
		t.Errorf("error %v does not wrap ErrCorruptLog", err)
	}
}
