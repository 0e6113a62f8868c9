package match

import (
	"context"
	"fmt"
	"time"

	"checkers-platform/backend/engine"
	"checkers-platform/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service handles match lifecycle and the move log. Status transitions are
// monotonic (waiting -> ongoing -> finished|aborted) and enforced here.
type Service struct {
	db *gorm.DB
}

// NewService creates a new match service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Transaction runs fn inside a single database transaction. Callers compose
// the *WithTx primitives within it.
func (s *Service) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// Get retrieves a match by id.
func (s *Service) Get(ctx context.Context, matchID int64) (*models.Match, error) {
	var m models.Match
	if err := s.db.WithContext(ctx).First(&m, "matchid = ?", matchID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return &m, nil
}

// GetForUpdateWithTx selects the match row with a row lock. Every write to a
// match or its move log goes through this lock.
func (s *Service) GetForUpdateWithTx(tx *gorm.DB, matchID int64) (*models.Match, error) {
	var m models.Match
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&m, "matchid = ?", matchID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to lock match record: %w", err)
	}
	return &m, nil
}

// CreateWaitingWithTx creates a fresh waiting match with the user in the given
// role slot.
func (s *Service) CreateWaitingWithTx(tx *gorm.DB, userID int64, role engine.Role) (*models.Match, error) {
	m := models.Match{
		Status: models.StatusWaiting,
		Result: models.ResultNone,
		Reason: models.ReasonNone,
	}
	if role == engine.RoleWhite {
		m.WhiteUser = &userID
	} else {
		m.BlackUser = &userID
	}
	if err := tx.Create(&m).Error; err != nil {
		return nil, fmt.Errorf("failed to create waiting match: %w", err)
	}
	return &m, nil
}

// CreateWaiting creates a waiting match in its own transaction.
func (s *Service) CreateWaiting(ctx context.Context, userID int64, role engine.Role) (*models.Match, error) {
	var m *models.Match
	err := s.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		m, err = s.CreateWaitingWithTx(tx, userID, role)
		return err
	})
	return m, err
}

// ClaimWaitingWithTx fills the empty slot of a waiting match with the user and
// flips it to ongoing, all under the match row lock. Returns the role the
// user was placed into.
func (s *Service) ClaimWaitingWithTx(tx *gorm.DB, matchID, userID int64) (*models.Match, engine.Role, error) {
	m, err := s.GetForUpdateWithTx(tx, matchID)
	if err != nil {
		return nil, "", err
	}
	if m.Status != models.StatusWaiting {
		return nil, "", ErrInvalidTransition
	}
	if m.HasUser(userID) {
		return nil, "", ErrAlreadyInMatch
	}
	return s.fillSlotInTx(tx, m, userID)
}

// ClaimWaiting claims a waiting match in its own transaction.
func (s *Service) ClaimWaiting(ctx context.Context, matchID, userID int64) (*models.Match, engine.Role, error) {
	var (
		m    *models.Match
		role engine.Role
	)
	err := s.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		m, role, err = s.ClaimWaitingWithTx(tx, matchID, userID)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return m, role, nil
}

// ClaimOldestWaitingWithTx locks and claims the oldest waiting match the user
// does not already occupy. The third return is false when no such match
// exists.
func (s *Service) ClaimOldestWaitingWithTx(tx *gorm.DB, userID int64) (*models.Match, engine.Role, bool, error) {
	var m models.Match
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ?", models.StatusWaiting).
		Where("whiteuser IS NULL OR blackuser IS NULL").
		Where("whiteuser IS NULL OR whiteuser != ?", userID).
		Where("blackuser IS NULL OR blackuser != ?", userID).
		Order("started_at ASC, matchid ASC").
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", false, nil
		}
		return nil, "", false, fmt.Errorf("failed to lock waiting match: %w", err)
	}

	claimed, role, err := s.fillSlotInTx(tx, &m, userID)
	if err != nil {
		return nil, "", false, err
	}
	return claimed, role, true, nil
}

// fillSlotInTx places the user into the empty slot and marks the match
// ongoing. The caller holds the row lock.
func (s *Service) fillSlotInTx(tx *gorm.DB, m *models.Match, userID int64) (*models.Match, engine.Role, error) {
	var (
		role    engine.Role
		updates map[string]interface{}
	)
	switch {
	case m.WhiteUser == nil:
		role = engine.RoleWhite
		updates = map[string]interface{}{"whiteuser": userID, "status": models.StatusOngoing}
		m.WhiteUser = &userID
	case m.BlackUser == nil:
		role = engine.RoleBlack
		updates = map[string]interface{}{"blackuser": userID, "status": models.StatusOngoing}
		m.BlackUser = &userID
	default:
		return nil, "", ErrNoFreeSlot
	}

	if err := tx.Model(m).Updates(updates).Error; err != nil {
		return nil, "", fmt.Errorf("failed to claim waiting match: %w", err)
	}
	m.Status = models.StatusOngoing
	return m, role, nil
}

// UpdateFinishWithTx moves an ongoing match to finished with the given outcome.
// Any other starting status is an out-of-order transition.
func (s *Service) UpdateFinishWithTx(tx *gorm.DB, matchID int64, result models.MatchResult, reason models.MatchReason) (*models.Match, error) {
	m, err := s.GetForUpdateWithTx(tx, matchID)
	if err != nil {
		return nil, err
	}
	return s.finishLockedInTx(tx, m, result, reason)
}

// finishLockedInTx applies the finished transition to an already locked row.
func (s *Service) finishLockedInTx(tx *gorm.DB, m *models.Match, result models.MatchResult, reason models.MatchReason) (*models.Match, error) {
	if m.Status != models.StatusOngoing {
		return nil, ErrInvalidTransition
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":      models.StatusFinished,
		"result":      result,
		"reason":      reason,
		"finished_at": now,
	}
	if err := tx.Model(m).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to finish match: %w", err)
	}
	m.Status = models.StatusFinished
	m.Result = result
	m.Reason = reason
	m.FinishedAt = &now
	return m, nil
}

// UpdateFinish finishes a match in its own transaction.
func (s *Service) UpdateFinish(ctx context.Context, matchID int64, result models.MatchResult, reason models.MatchReason) (*models.Match, error) {
	var m *models.Match
	err := s.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		m, err = s.UpdateFinishWithTx(tx, matchID, result, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Resign finishes an ongoing match in favor of the resigning user's opponent.
func (s *Service) Resign(ctx context.Context, matchID, userID int64) (*models.Match, error) {
	var out *models.Match
	err := s.Transaction(ctx, func(tx *gorm.DB) error {
		m, err := s.GetForUpdateWithTx(tx, matchID)
		if err != nil {
			return err
		}
		if m.Status != models.StatusOngoing {
			return ErrMatchNotOngoing
		}
		role := m.RoleOf(userID)
		if role == "" {
			return ErrNotParticipant
		}

		result := models.ResultWhite
		if role == "white" {
			result = models.ResultBlack
		}
		out, err = s.finishLockedInTx(tx, m, result, models.ReasonResign)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteStaleWaitingWithTx removes waiting matches whose started_at is older
// than the cutoff and reports how many were evicted.
func (s *Service) DeleteStaleWaitingWithTx(tx *gorm.DB, olderThan time.Time) (int64, error) {
	res := tx.Where("status = ? AND started_at < ?", models.StatusWaiting, olderThan).
		Delete(&models.Match{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to evict stale waiting matches: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteStaleWaiting evicts stale waiters in its own transaction.
func (s *Service) DeleteStaleWaiting(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	err := s.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		n, err = s.DeleteStaleWaitingWithTx(tx, olderThan)
		return err
	})
	return n, err
}

// ActiveMatchForWithTx returns the user's ongoing match, or nil when they have
// none.
func (s *Service) ActiveMatchForWithTx(tx *gorm.DB, userID int64) (*models.Match, error) {
	var m models.Match
	err := tx.Where("status = ?", models.StatusOngoing).
		Where("whiteuser = ? OR blackuser = ?", userID, userID).
		Order("matchid ASC").
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query ongoing match: %w", err)
	}
	return &m, nil
}

// ActiveMatchFor returns the user's ongoing match, or nil when they have none.
func (s *Service) ActiveMatchFor(ctx context.Context, userID int64) (*models.Match, error) {
	return s.ActiveMatchForWithTx(s.db.WithContext(ctx), userID)
}

// WaitingMatchForWithTx returns the waiting match the user opened, or nil.
func (s *Service) WaitingMatchForWithTx(tx *gorm.DB, userID int64) (*models.Match, error) {
	var m models.Match
	err := tx.Where("status = ?", models.StatusWaiting).
		Where("whiteuser = ? OR blackuser = ?", userID, userID).
		Order("started_at ASC, matchid ASC").
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query waiting match: %w", err)
	}
	return &m, nil
}

// WaitingMatchFor returns the user's waiting match, or nil.
func (s *Service) WaitingMatchFor(ctx context.Context, userID int64) (*models.Match, error) {
	return s.WaitingMatchForWithTx(s.db.WithContext(ctx), userID)
}
