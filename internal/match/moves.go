package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"checkers-platform/backend/engine"
	"checkers-platform/backend/internal/models"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// AppendMove persists the next move of a match with gap-free numbering.
//
// The match row is selected FOR UPDATE in the same transaction that inserts
// the move, so concurrent appenders for one match serialize on the row lock
// and each observes the move number computed under it. The ongoing check
// runs under the same lock; a finished match can never gain moves.
//
// When finish is non-nil the move ended the game and the match flips to
// finished in the same transaction. Returns the stored move and the match as
// of commit.
func (s *Service) AppendMove(ctx context.Context, matchID int64, player engine.Role, mv StoredMove, finish *Finish) (*models.MatchMove, *models.Match, error) {
	var (
		saved models.MatchMove
		state *models.Match
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.GetForUpdateWithTx(tx, matchID)
		if err != nil {
			return err
		}
		if locked.Status != models.StatusOngoing {
			return ErrMatchNotOngoing
		}

		var last int
		if err := tx.Model(&models.MatchMove{}).
			Where("matchid = ?", matchID).
			Select("COALESCE(MAX(move_number), 0)").
			Scan(&last).Error; err != nil {
			return fmt.Errorf("failed to compute next move number: %w", err)
		}

		doc, err := json.Marshal(mv)
		if err != nil {
			return fmt.Errorf("failed to encode move: %w", err)
		}

		saved = models.MatchMove{
			MatchID:    matchID,
			MoveNumber: last + 1,
			Player:     string(player),
			Move:       doc,
		}
		if err := tx.Create(&saved).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrNumberingConflict
			}
			return fmt.Errorf("failed to insert move: %w", err)
		}

		if finish != nil {
			finished, err := s.finishLockedInTx(tx, locked, finish.Result, finish.Reason)
			if err != nil {
				return err
			}
			state = finished
			return nil
		}
		state = locked
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &saved, state, nil
}

// LoadMoves returns the full move log of a match ordered by move number.
func (s *Service) LoadMoves(ctx context.Context, matchID int64) ([]models.MatchMove, error) {
	var moves []models.MatchMove
	if err := s.db.WithContext(ctx).
		Where("matchid = ?", matchID).
		Order("move_number ASC").
		Find(&moves).Error; err != nil {
		return nil, fmt.Errorf("failed to load moves: %w", err)
	}
	return moves, nil
}

// ToLog converts stored move rows into replayer input. A row whose JSON does
// not decode marks the log corrupt.
func ToLog(moves []models.MatchMove) ([]engine.LoggedMove, error) {
	log := make([]engine.LoggedMove, 0, len(moves))
	for _, m := range moves {
		var sm StoredMove
		if err := json.Unmarshal(m.Move, &sm); err != nil {
			return nil, fmt.Errorf("%w: move %d: %v", engine.ErrCorruptLog, m.MoveNumber, err)
		}
		log = append(log, engine.LoggedMove{
			Player: engine.Role(m.Player),
			Move:   engine.Move{From: sm.From, To: sm.To},
		})
	}
	return log, nil
}

// isDuplicateKey detects a unique-constraint violation from MySQL (error
// 1062) or from SQLite in tests.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
