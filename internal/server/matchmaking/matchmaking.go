package matchmaking

import (
	"context"
	"log"
	"math/rand"
	"time"

	"checkers-platform/backend/engine"
	"checkers-platform/backend/internal/locks"
	"checkers-platform/backend/internal/match"
	"checkers-platform/backend/internal/models"
	"checkers-platform/backend/internal/server/session"
	ws "checkers-platform/backend/internal/server/websocket"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

// DefaultStaleAfter is the horizon past which an unclaimed waiting match
// is evicted instead of paired.
const DefaultStaleAfter = time.Minute

// Service pairs players into matches. The whole decision tree runs in one
// database transaction; the optional Redis lock only guards against a
// double-submitted request racing itself.
type Service struct {
	matches    *match.Service
	locks      *locks.Manager
	hub        *ws.Hub
	staleAfter time.Duration
}

// NewService builds the matchmaker. lockManager may be nil when Redis is
// not configured; pairing then relies on the transaction alone.
func NewService(matches *match.Service, lockManager *locks.Manager, hub *ws.Hub) *Service {
	return &Service{
		matches:    matches,
		locks:      lockManager,
		hub:        hub,
		staleAfter: DefaultStaleAfter,
	}
}

// Result is the find-or-create outcome handed back to the client.
type Result struct {
	Match   *models.Match `json:"match"`
	Role    string        `json:"role"`
	Waiting bool          `json:"waiting"`
}

// FindOrCreate places the user into a match:
//
//  1. An ongoing match containing the user wins outright (idempotent).
//  2. Stale waiting matches are evicted.
//  3. The oldest waiting match opened by someone else is claimed, filling
//     the empty slot and flipping it to ongoing.
//  4. The user's own waiting match is returned as still waiting.
//  5. Failing all that, a fresh waiting match is created with the user on
//     a random color.
func (s *Service) FindOrCreate(ctx context.Context, userID int64) (*Result, error) {
	if s.locks != nil {
		lock, err := s.locks.Acquire(ctx, locks.MatchmakingKey(userID), 0)
		if err != nil {
			log.Printf("[MATCHMAKING] Proceeding without lock for user %d: %v", userID, err)
		} else {
			defer lock.Release(ctx)
		}
	}

	var result *Result
	err := s.matches.Transaction(ctx, func(tx *gorm.DB) error {
		if m, err := s.matches.ActiveMatchForWithTx(tx, userID); err != nil {
			return err
		} else if m != nil {
			result = &Result{Match: m, Role: m.RoleOf(userID), Waiting: false}
			return nil
		}

		cutoff := time.Now().UTC().Add(-s.staleAfter)
		if n, err := s.matches.DeleteStaleWaitingWithTx(tx, cutoff); err != nil {
			return err
		} else if n > 0 {
			log.Printf("[MATCHMAKING] Evicted %d stale waiting matches", n)
		}

		if m, role, found, err := s.matches.ClaimOldestWaitingWithTx(tx, userID); err != nil {
			return err
		} else if found {
			log.Printf("[MATCHMAKING] User %d joined match %d as %s", userID, m.MatchID, role)
			result = &Result{Match: m, Role: string(role), Waiting: false}
			return nil
		}

		if m, err := s.matches.WaitingMatchForWithTx(tx, userID); err != nil {
			return err
		} else if m != nil {
			result = &Result{Match: m, Role: m.RoleOf(userID), Waiting: true}
			return nil
		}

		role := engine.RoleWhite
		if rand.Intn(2) == 1 {
			role = engine.RoleBlack
		}
		m, err := s.matches.CreateWaitingWithTx(tx, userID, role)
		if err != nil {
			return err
		}
		log.Printf("[MATCHMAKING] User %d opened match %d as %s, waiting for opponent", userID, m.MatchID, role)
		result = &Result{Match: m, Role: string(role), Waiting: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Resign finishes an ongoing match in the opponent's favor, tells the
// room, and closes it.
func (s *Service) Resign(ctx context.Context, matchID, userID int64) (*models.Match, error) {
	m, err := s.matches.Resign(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}

	log.Printf("[MATCHMAKING] User %d resigned match %d; result=%s", userID, matchID, m.Result)
	s.hub.Broadcast(matchID, session.FinishedMessage(m))
	s.hub.CloseMatch(matchID, websocket.CloseNormalClosure)
	return m, nil
}
