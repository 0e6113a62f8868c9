package match

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"checkers-platform/backend/engine"
	"checkers-platform/backend/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	// Use a unique in-memory database for each test
	db, err := gorm.Open(sqlite.Open("file::memory:?mode=memory"), &gorm.Config{
		SkipDefaultTransaction: false,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Auto-migrate models
	if err := db.AutoMigrate(&models.Match{}, &models.MatchMove{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// createOngoingMatch creates a match already in progress between two users
func createOngoingMatch(t *testing.T, db *gorm.DB, whiteID, blackID int64) *models.Match {
	m := models.Match{
		Status:    models.StatusOngoing,
		Result:    models.ResultNone,
		Reason:    models.ReasonNone,
		WhiteUser: &whiteID,
		BlackUser: &blackID,
	}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("Failed to create test match: %v", err)
	}
	return &m
}

func mustAppend(t *testing.T, svc *Service, matchID int64, player engine.Role, mv StoredMove) *models.MatchMove {
	t.Helper()
	saved, _, err := svc.AppendMove(context.Background(), matchID, player, mv, nil)
	if err != nil {
		t.Fatalf("AppendMove failed: %v", err)
	}
	return saved
}

// TestAppendMove_SequentialNumbering verifies the log numbers moves 1..n
// with no gaps and stores the acting player on each row.
func TestAppendMove_SequentialNumbering(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	m := createOngoingMatch(t, db, 1, 2)

	moves := []struct {
		player engine.Role
		mv     StoredMove
	}{
		{engine.RoleWhite, StoredMove{From: engine.Pos{5, 0}, To: engine.Pos{4, 1}}},
		{engine.RoleBlack, StoredMove{From: engine.Pos{2, 1}, To: engine.Pos{3, 0}}},
		{engine.RoleWhite, StoredMove{From: engine.Pos{4, 1}, To: engine.Pos{2, 1}, WasCapture: true}},
	}

	for i, step := range moves {
		saved := mustAppend(t, svc, m.MatchID, step.player, step.mv)
		if saved.MoveNumber != i+1 {
			t.Errorf("Move %d: expected move_number %d, got %d", i, i+1, saved.MoveNumber)
		}
		if saved.Player != string(step.player) {
			t.Errorf("Move %d: expected player %q, got %q", i, step.player, saved.Player)
		}
	}

	stored, err := svc.LoadMoves(context.Background(), m.MatchID)
	if err != nil {
		t.Fatalf("LoadMoves failed: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("Expected 3 stored moves, got %d", len(stored))
	}
	for i, row := range stored {
		if row.MoveNumber != i+1 {
			t.Errorf("Stored move %d has number %d", i, row.MoveNumber)
		}
	}

	var sm StoredMove
	if err := json.Unmarshal(stored[2].Move, &sm); err != nil {
		t.Fatalf("Stored move document does not decode: %v", err)
	}
	if !sm.WasCapture {
		t.Error("Expected third move to record was_capture")
	}
}

// TestAppendMove_RejectsNonOngoingMatch verifies that neither a waiting nor
// a finished match can gain moves.
func TestAppendMove_RejectsNonOngoingMatch(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	userID := int64(1)
	waiting := models.Match{
		Status:    models.StatusWaiting,
		Result:    models.ResultNone,
		Reason:    models.ReasonNone,
		WhiteUser: &userID,
	}
	if err := db.Create(&waiting).Error; err != nil {
		t.Fatalf("Failed to create waiting match: %v", err)
	}

	finished := createOngoingMatch(t, db, 1, 2)
	if _, err := svc.UpdateFinish(context.Background(), finished.MatchID, models.ResultWhite, models.ReasonNormal); err != nil {
		t.Fatalf("UpdateFinish failed: %v", err)
	}

	mv := StoredMove{From: engine.Pos{5, 0}, To: engine.Pos{4, 1}}
	for _, matchID := range []int64{waiting.MatchID, finished.MatchID} {
		_, _, err := svc.AppendMove(context.Background(), matchID, engine.RoleWhite, mv, nil)
		if !errors.Is(err, ErrMatchNotOngoing) {
			t.Errorf("Match %d: expected ErrMatchNotOngoing, got %v", matchID, err)
		}
	}

	var count int64
	db.Model(&models.MatchMove{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no moves stored, got %d", count)
	}
}

// TestAppendMove_FinishSameTransaction verifies that a terminal move commits
// the finished transition together with the move row.
func TestAppendMove_FinishSameTransaction(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	m := createOngoingMatch(t, db, 1, 2)

	mv := StoredMove{From: engine.Pos{2, 1}, To: engine.Pos{0, 3}, WasCapture: true}
	finish := &Finish{Result: models.ResultWhite, Reason: models.ReasonNormal}

	saved, state, err := svc.AppendMove(context.Background(), m.MatchID, engine.RoleWhite, mv, finish)
	if err != nil {
		t.Fatalf("AppendMove with finish failed: %v", err)
	}
	if saved.MoveNumber != 1 {
		t.Errorf("Expected move_number 1, got %d", saved.MoveNumber)
	}
	if state.Status != models.StatusFinished {
		t.Errorf("Expected status finished, got %q", state.Status)
	}
	if state.Result != models.ResultWhite || state.Reason != models.ReasonNormal {
		t.Errorf("Expected result white/normal, got %q/%q", state.Result, state.Reason)
	}
	if state.FinishedAt == nil {
		t.Error("Expected finished_at to be set")
	}

	// The stored row must agree with the returned state.
	reloaded, err := svc.Get(context.Background(), m.MatchID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if reloaded.Status != models.StatusFinished {
		t.Errorf("Stored status is %q after terminal move", reloaded.Status)
	}

	// No move can follow the terminal one.
	_, _, err = svc.AppendMove(context.Background(), m.MatchID, engine.RoleBlack, mv, nil)
	if !errors.Is(err, ErrMatchNotOngoing) {
		t.Errorf("Expected ErrMatchNotOngoing after finish, got %v", err)
	}
}

// TestDuplicateKeyDetection verifies the unique (matchid, move_number)
// constraint is recognized as a numbering conflict.
func TestDuplicateKeyDetection(t *testing.T) {
	db := setupTestDB(t)
	m := createOngoingMatch(t, db, 1, 2)

	row := models.MatchMove{
		MatchID:    m.MatchID,
		MoveNumber: 1,
		Player:     "white",
		Move:       json.RawMessage(`{"from":[5,0],"to":[4,1],"was_capture":false}`),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	dup := models.MatchMove{
		MatchID:    m.MatchID,
		MoveNumber: 1,
		Player:     "black",
		Move:       json.RawMessage(`{"from":[2,1],"to":[3,0],"was_capture":false}`),
	}
	err := db.Create(&dup).Error
	if err == nil {
		t.Fatal("Expected duplicate insert to fail")
	}
	if !isDuplicateKey(err) {
		t.Errorf("Duplicate insert not detected as numbering conflict: %v", err)
	}
}

// TestToLog_CorruptMoveDocument verifies a non-decodable move row marks the
// whole log corrupt.
func TestToLog_CorruptMoveDocument(t *testing.T) {
	rows := []models.MatchMove{
		{MoveNumber: 1, Player: "white", Move: json.RawMessage(`{"from":[5,0],"to":[4,1],"was_capture":false}`)},
		{MoveNumber: 2, Player: "black", Move: json.RawMessage(`not json`)},
	}

	_, err := ToLog(rows)
	if !errors.Is(err, engine.ErrCorruptLog) {
		t.Errorf("Expected ErrCorruptLog, got %v", err)
	}

	log, err := ToLog(rows[:1])
	if err != nil {
		t.Fatalf("ToLog failed on valid rows: %v", err)
	}
	if len(log) != 1 || log[0].Player != engine.RoleWhite {
		t.Errorf("Unexpected log conversion: %+v", log)
	}
}

// TestResign_OpponentWins verifies resignation finishes the match in favor
// of the other player.
func TestResign_OpponentWins(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	cases := []struct {
		name       string
		resigner   int64
		wantResult models.MatchResult
	}{
		{"White resigns", 1, models.ResultBlack},
		{"Black resigns", 2, models.ResultWhite},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := createOngoingMatch(t, db, 1, 2)

			out, err := svc.Resign(context.Background(), m.MatchID, tc.resigner)
			if err != nil {
				t.Fatalf("Resign failed: %v", err)
			}
			if out.Status != models.StatusFinished {
				t.Errorf("Expected status finished, got %q", out.Status)
			}
			if out.Result != tc.wantResult {
				t.Errorf("Expected result %q, got %q", tc.wantResult, out.Result)
			}
			if out.Reason != models.ReasonResign {
				t.Errorf("Expected reason resign, got %q", out.Reason)
			}
			if out.FinishedAt == nil {
				t.Error("Expected finished_at to be set")
			}
		})
	}
}

// TestResign_Guards verifies resignation is rejected for outsiders and for
// matches that are not in progress.
func TestResign_Guards(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	m := createOngoingMatch(t, db, 1, 2)
	if _, err := svc.Resign(context.Background(), m.MatchID, 99); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("Expected ErrNotParticipant, got %v", err)
	}

	if _, err := svc.Resign(context.Background(), m.MatchID, 1); err != nil {
		t.Fatalf("Resign failed: %v", err)
	}
	if _, err := svc.Resign(context.Background(), m.MatchID, 2); !errors.Is(err, ErrMatchNotOngoing) {
		t.Errorf("Expected ErrMatchNotOngoing on finished match, got %v", err)
	}

	if _, err := svc.Resign(context.Background(), 12345, 1); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("Expected ErrMatchNotFound, got %v", err)
	}
}

// TestClaimWaiting_StartsMatch verifies the second player fills the free
// slot and the match flips to ongoing.
func TestClaimWaiting_StartsMatch(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	waiting, err := svc.CreateWaiting(ctx, 1, engine.RoleWhite)
	if err != nil {
		t.Fatalf("CreateWaiting failed: %v", err)
	}
	if waiting.Status != models.StatusWaiting {
		t.Fatalf("Expected waiting status, got %q", waiting.Status)
	}
	if waiting.WhiteUser == nil || *waiting.WhiteUser != 1 {
		t.Fatalf("Expected opener in white slot, got %+v", waiting)
	}

	claimed, role, err := svc.ClaimWaiting(ctx, waiting.MatchID, 2)
	if err != nil {
		t.Fatalf("ClaimWaiting failed: %v", err)
	}
	if role != engine.RoleBlack {
		t.Errorf("Expected joiner to take black, got %q", role)
	}
	if claimed.Status != models.StatusOngoing {
		t.Errorf("Expected status ongoing, got %q", claimed.Status)
	}
	if claimed.BlackUser == nil || *claimed.BlackUser != 2 {
		t.Errorf("Expected user 2 in black slot, got %+v", claimed)
	}

	// The match is no longer claimable.
	if _, _, err := svc.ClaimWaiting(ctx, waiting.MatchID, 3); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
}

// TestClaimWaiting_OwnMatchRejected verifies the opener cannot occupy both
// slots of their own match.
func TestClaimWaiting_OwnMatchRejected(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	waiting, err := svc.CreateWaiting(ctx, 1, engine.RoleBlack)
	if err != nil {
		t.Fatalf("CreateWaiting failed: %v", err)
	}

	if _, _, err := svc.ClaimWaiting(ctx, waiting.MatchID, 1); !errors.Is(err, ErrAlreadyInMatch) {
		t.Errorf("Expected ErrAlreadyInMatch, got %v", err)
	}

	reloaded, err := svc.Get(ctx, waiting.MatchID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if reloaded.Status != models.StatusWaiting {
		t.Errorf("Match status changed to %q after rejected claim", reloaded.Status)
	}
}

// TestClaimOldestWaiting_OrderAndOwnership verifies the oldest foreign
// waiting match wins and the user's own waiting match is never claimed.
func TestClaimOldestWaiting_OrderAndOwnership(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	own, err := svc.CreateWaiting(ctx, 1, engine.RoleWhite)
	if err != nil {
		t.Fatalf("CreateWaiting failed: %v", err)
	}
	first, err := svc.CreateWaiting(ctx, 2, engine.RoleWhite)
	if err != nil {
		t.Fatalf("CreateWaiting failed: %v", err)
	}
	if _, err := svc.CreateWaiting(ctx, 3, engine.RoleBlack); err != nil {
		t.Fatalf("CreateWaiting failed: %v", err)
	}

	var (
		claimed *models.Match
		role    engine.Role
		found   bool
	)
	err = svc.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		claimed, role, found, err = svc.ClaimOldestWaitingWithTx(tx, 1)
		return err
	})
	if err != nil {
		t.Fatalf("ClaimOldestWaiting failed: %v", err)
	}
	if !found {
		t.Fatal("Expected a claimable match")
	}
	if claimed.MatchID != first.MatchID {
		t.Errorf("Expected oldest foreign match %d, got %d", first.MatchID, claimed.MatchID)
	}
	if role != engine.RoleBlack {
		t.Errorf("Expected claimer to take the free black slot, got %q", role)
	}
	if claimed.MatchID == own.MatchID {
		t.Error("Claimed own waiting match")
	}
}

// TestClaimOldestWaiting_NoneAvailable verifies the miss is reported without
// an error.
func TestClaimOldestWaiting_NoneAvailable(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	// Only the user's own waiting match exists.
	if _, err := svc.CreateWaiting(ctx, 1, engine.RoleWhite); err != nil {
		t.Fatalf("CreateWaiting failed: %v", err)
	}

	err := svc.Transaction(ctx, func(tx *gorm.DB) error {
		_, _, found, err := svc.ClaimOldestWaitingWithTx(tx, 1)
		if err != nil {
			return err
		}
		if found {
			t.Error("Expected no claimable match for the opener")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}
}

// TestDeleteStaleWaiting verifies only waiting matches older than the cutoff
// are evicted.
func TestDeleteStaleWaiting(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	stale, err := svc.CreateWaiting(ctx, 1, engine.RoleWhite)
	if err != nil {
		t.Fatalf("CreateWaiting failed: %v", err)
	}
	fresh, err := svc.CreateWaiting(ctx, 2, engine.RoleWhite)
	if err != nil {
		t.Fatalf("CreateWaiting failed: %v", err)
	}
	ongoing := createOngoingMatch(t, db, 3, 4)

	// Backdate the stale waiter and the ongoing match beyond the horizon.
	old := time.Now().UTC().Add(-5 * time.Minute)
	if err := db.Model(&models.Match{}).Where("matchid = ?", stale.MatchID).Update("started_at", old).Error; err != nil {
		t.Fatalf("Failed to backdate match: %v", err)
	}
	if err := db.Model(&models.Match{}).Where("matchid = ?", ongoing.MatchID).Update("started_at", old).Error; err != nil {
		t.Fatalf("Failed to backdate match: %v", err)
	}

	evicted, err := svc.DeleteStaleWaiting(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("DeleteStaleWaiting failed: %v", err)
	}
	if evicted != 1 {
		t.Errorf("Expected 1 evicted match, got %d", evicted)
	}

	if _, err := svc.Get(ctx, stale.MatchID); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("Expected stale waiter to be deleted, got %v", err)
	}
	if _, err := svc.Get(ctx, fresh.MatchID); err != nil {
		t.Errorf("Fresh waiter should survive eviction: %v", err)
	}
	if _, err := svc.Get(ctx, ongoing.MatchID); err != nil {
		t.Errorf("Ongoing match should survive eviction: %v", err)
	}
}

// TestUpdateFinish_InvalidTransitions verifies finished is reachable only
// from ongoing.
func TestUpdateFinish_InvalidTransitions(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	waiting, err := svc.CreateWaiting(ctx, 1, engine.RoleWhite)
	if err != nil {
		t.Fatalf("CreateWaiting failed: %v", err)
	}
	if _, err := svc.UpdateFinish(ctx, waiting.MatchID, models.ResultWhite, models.ReasonNormal); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition from waiting, got %v", err)
	}

	m := createOngoingMatch(t, db, 1, 2)
	if _, err := svc.UpdateFinish(ctx, m.MatchID, models.ResultDraw, models.ReasonAgreement); err != nil {
		t.Fatalf("UpdateFinish failed: %v", err)
	}
	if _, err := svc.UpdateFinish(ctx, m.MatchID, models.ResultWhite, models.ReasonNormal); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition from finished, got %v", err)
	}
}

// TestMatchLookups verifies the per-user ongoing and waiting queries.
func TestMatchLookups(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if m, err := svc.ActiveMatchFor(ctx, 1); err != nil || m != nil {
		t.Errorf("Expected no ongoing match, got %+v (err %v)", m, err)
	}
	if m, err := svc.WaitingMatchFor(ctx, 1); err != nil || m != nil {
		t.Errorf("Expected no waiting match, got %+v (err %v)", m, err)
	}

	waiting, err := svc.CreateWaiting(ctx, 1, engine.RoleWhite)
	if err != nil {
		t.Fatalf("CreateWaiting failed: %v", err)
	}
	got, err := svc.WaitingMatchFor(ctx, 1)
	if err != nil {
		t.Fatalf("WaitingMatchFor failed: %v", err)
	}
	if got == nil || got.MatchID != waiting.MatchID {
		t.Errorf("Expected waiting match %d, got %+v", waiting.MatchID, got)
	}

	ongoing := createOngoingMatch(t, db, 1, 2)
	active, err := svc.ActiveMatchFor(ctx, 1)
	if err != nil {
		t.Fatalf("ActiveMatchFor failed: %v", err)
	}
	if active == nil || active.MatchID != ongoing.MatchID {
		t.Errorf("Expected ongoing match %d, got %+v", ongoing.MatchID, active)
	}

	if _, err := svc.Get(ctx, 99999); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("Expected ErrMatchNotFound, got %v", err)
	}
}
