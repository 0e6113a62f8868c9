package session

import (
	"time"

	"checkers-platform/backend/engine"
	"checkers-platform/backend/internal/models"
	ws "checkers-platform/backend/internal/server/websocket"
)

// Frame types of the match socket protocol.
const (
	TypeSync          = "sync"
	TypePing          = "ping"
	TypePong          = "pong"
	TypeMove          = "move"
	TypeError         = "error"
	TypeMatchFinished = "match_finished"
)

// syncPayload is sent once after connect: full move history plus the
// authoritative turn state derived from it.
type syncPayload struct {
	MatchID     int64              `json:"matchid"`
	Status      models.MatchStatus `json:"status"`
	YourRole    string             `json:"your_role"`
	NextTurn    string             `json:"next_turn"`
	ForcedFrom  *engine.Pos        `json:"forced_from"`
	MustCapture bool               `json:"must_capture"`
	Moves       []models.MatchMove `json:"moves"`
}

// moveBroadcast is the accepted-move fanout: the stored row plus the turn
// state that follows from it.
type moveBroadcast struct {
	models.MatchMove
	NextTurn     string      `json:"next_turn"`
	MustContinue bool        `json:"must_continue"`
	ForcedFrom   *engine.Pos `json:"forced_from"`
}

// errorPayload is a bare rejection.
type errorPayload struct {
	Detail string `json:"detail"`
}

// errorStatePayload is a rejection carrying the authoritative turn state
// so the client can reconcile without resyncing.
type errorStatePayload struct {
	Detail      string      `json:"detail"`
	NextTurn    string      `json:"next_turn"`
	ForcedFrom  *engine.Pos `json:"forced_from"`
	MustCapture bool        `json:"must_capture"`
}

// finishedPayload announces the terminal result to the room.
type finishedPayload struct {
	MatchID    int64              `json:"matchid"`
	Status     models.MatchStatus `json:"status"`
	Result     models.MatchResult `json:"result"`
	Reason     models.MatchReason `json:"reason"`
	FinishedAt *time.Time         `json:"finished_at"`
}

// FinishedMessage builds the match_finished frame for a finished match.
// The matchmaker broadcasts it on resign; the session on terminal moves.
func FinishedMessage(m *models.Match) ws.Message {
	return ws.Message{
		Type: TypeMatchFinished,
		Payload: finishedPayload{
			MatchID:    m.MatchID,
			Status:     m.Status,
			Result:     m.Result,
			Reason:     m.Reason,
			FinishedAt: m.FinishedAt,
		},
	}
}
