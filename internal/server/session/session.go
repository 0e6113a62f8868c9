package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"checkers-platform/backend/engine"
	"checkers-platform/backend/internal/auth"
	"checkers-platform/backend/internal/db"
	"checkers-platform/backend/internal/match"
	"checkers-platform/backend/internal/models"
	ws "checkers-platform/backend/internal/server/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler upgrades match socket connections and runs their game sessions.
type Handler struct {
	db      *db.DB
	matches *match.Service
	hub     *ws.Hub
	auth    *auth.Service
}

func NewHandler(database *db.DB, matches *match.Service, hub *ws.Hub, authService *auth.Service) *Handler {
	return &Handler{
		db:      database,
		matches: matches,
		hub:     hub,
		auth:    authService,
	}
}

// session is the per-connection state. The role never changes while the
// connection lives; everything else is recomputed from the move log on
// every message.
type session struct {
	h    *Handler
	role engine.Role
	ctx  context.Context
}

// HandleMatchSocket serves GET /api/v1/ws/match/:matchid.
//
// Pipeline: upgrade, authenticate from the access_token cookie, check
// participation (policy close 1008 on failure), register with the hub,
// send sync, then run the message loop until disconnect.
func (h *Handler) HandleMatchSocket(c *gin.Context) {
	matchID, err := strconv.ParseInt(c.Param("matchid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid match id"})
		return
	}

	conn, err := ws.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[SESSION] WebSocket upgrade failed for match %d: %v", matchID, err)
		return
	}

	user, err := h.authenticate(c.Request)
	if err != nil {
		closeConn(conn, websocket.ClosePolicyViolation)
		return
	}

	// The request context dies with this handler; session work outlives it.
	ctx := context.Background()

	m, err := h.matches.Get(ctx, matchID)
	if err != nil {
		closeConn(conn, websocket.ClosePolicyViolation)
		return
	}

	role := engine.Role(m.RoleOf(user.UserID))
	if !role.Valid() {
		log.Printf("[SESSION] User %d is not a participant of match %d", user.UserID, matchID)
		closeConn(conn, websocket.ClosePolicyViolation)
		return
	}

	client := ws.NewClient(matchID, user.UserID, conn)
	h.hub.Connect(client)
	log.Printf("[SESSION] User %d connected to match %d as %s (conn %s)", user.UserID, matchID, role, client.ConnID)

	rows, err := h.matches.LoadMoves(ctx, matchID)
	if err != nil {
		h.fatal(client, "load moves", err)
		return
	}
	state, err := replayRows(rows)
	if err != nil {
		h.fatal(client, "replay log", err)
		return
	}

	sync := ws.Message{
		Type: TypeSync,
		Payload: syncPayload{
			MatchID:     matchID,
			Status:      m.Status,
			YourRole:    string(role),
			NextTurn:    string(state.NextTurn),
			ForcedFrom:  state.ForcedFrom,
			MustCapture: state.MustCapture,
			Moves:       rows,
		},
	}
	// Written directly: the write pump starts only after the sync frame
	// and the ongoing check are done. Exits before that point must tear
	// the connection down themselves; no pump will.
	if err := conn.WriteJSON(sync); err != nil {
		h.hub.Disconnect(client)
		client.CloseNow(websocket.CloseNormalClosure, "")
		return
	}

	if m.Status != models.StatusOngoing {
		h.hub.Disconnect(client)
		client.CloseNow(websocket.CloseNormalClosure, "")
		return
	}

	sess := &session{h: h, role: role, ctx: ctx}
	go client.WritePump()
	go client.ReadPump(h.hub, sess.handleMessage)
}

// authenticate resolves the connecting user from the access_token cookie.
func (h *Handler) authenticate(r *http.Request) (*models.User, error) {
	cookie, err := r.Cookie("access_token")
	if err != nil || cookie.Value == "" {
		return nil, auth.ErrInvalidToken
	}

	username, err := h.auth.ValidateToken(cookie.Value)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := h.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// fatal unregisters the client and closes 1011 at once. Used for faults
// the peer cannot fix by retrying, a corrupt move log above all; some
// callers run before the write pump exists, so the close cannot be left
// to it.
func (h *Handler) fatal(client *ws.Client, op string, err error) {
	log.Printf("[SESSION] Fatal error on match %d (%s): %v", client.MatchID, op, err)
	h.hub.Disconnect(client)
	client.CloseNow(websocket.CloseInternalServerErr, "")
}

func (s *session) handleMessage(c *ws.Client, msg ws.Inbound) {
	switch msg.Type {
	case TypePing:
		ws.SendMessage(c, ws.Message{Type: TypePong, Payload: struct{}{}})
	case TypeMove:
		s.handleMove(c, msg.Payload)
	default:
		s.sendError(c, "Unknown message type")
	}
}

// handleMove runs the move pipeline: reload, replay, turn check, rules
// engine, row-locked append, broadcast. Every rejection answers only the
// sender; only a committed move reaches the room.
func (s *session) handleMove(c *ws.Client, payload json.RawMessage) {
	m, err := s.h.matches.Get(s.ctx, c.MatchID)
	if err != nil || m.Status != models.StatusOngoing {
		s.sendError(c, "Match not ongoing")
		return
	}

	rows, err := s.h.matches.LoadMoves(s.ctx, c.MatchID)
	if err != nil {
		log.Printf("[SESSION] Failed to load moves for match %d: %v", c.MatchID, err)
		s.sendError(c, "DB error while loading moves")
		return
	}
	state, err := replayRows(rows)
	if err != nil {
		s.h.fatal(c, "replay log", err)
		return
	}

	if state.NextTurn != s.role {
		s.sendStateError(c, "Not your turn", state)
		return
	}

	var mp struct {
		Move json.RawMessage `json:"move"`
	}
	if err := json.Unmarshal(payload, &mp); err != nil || len(mp.Move) == 0 || string(mp.Move) == "null" {
		s.sendError(c, "Invalid move payload")
		return
	}
	var doc struct {
		From []int `json:"from"`
		To   []int `json:"to"`
	}
	if err := json.Unmarshal(mp.Move, &doc); err != nil {
		s.sendError(c, "Invalid move payload")
		return
	}
	if len(doc.From) != 2 || len(doc.To) != 2 {
		s.sendStateError(c, "Move must contain from/to as [row, col]", state)
		return
	}
	mv := engine.Move{
		From: engine.Pos{doc.From[0], doc.From[1]},
		To:   engine.Pos{doc.To[0], doc.To[1]},
	}

	mustCap := state.MustCapture || state.ForcedFrom != nil
	applied, err := engine.ValidateAndApply(state.Board, s.role.Color(), mv, state.ForcedFrom, mustCap)
	if err != nil {
		var illegal *engine.IllegalMoveError
		if errors.As(err, &illegal) {
			s.sendStateError(c, illegal.Detail, state)
		} else {
			s.sendStateError(c, err.Error(), state)
		}
		return
	}

	mustContinue := applied.MustContinue()

	nextTurn := s.role
	var newForced *engine.Pos
	var finish *match.Finish
	if mustContinue {
		pos := applied.NewPos
		newForced = &pos
	} else {
		nextTurn = s.role.Opponent()
		// The side to move with no legal move loses.
		if winner, over := engine.Winner(applied.Board, nextTurn); over {
			finish = &match.Finish{
				Result: models.MatchResult(winner),
				Reason: models.ReasonNormal,
			}
		}
	}

	stored := match.StoredMove{From: mv.From, To: mv.To, WasCapture: applied.WasCapture}
	savedMove, updatedMatch, err := s.h.matches.AppendMove(s.ctx, c.MatchID, s.role, stored, finish)
	if err != nil {
		switch {
		case errors.Is(err, match.ErrNumberingConflict):
			s.sendError(c, "Move numbering conflict. Please resend.")
		case errors.Is(err, match.ErrMatchNotOngoing):
			s.sendError(c, "Match not ongoing")
		default:
			log.Printf("[SESSION] Failed to save move for match %d: %v", c.MatchID, err)
			s.sendError(c, "DB error while saving move")
		}
		return
	}

	s.h.hub.Broadcast(c.MatchID, ws.Message{
		Type: TypeMove,
		Payload: moveBroadcast{
			MatchMove:    *savedMove,
			NextTurn:     string(nextTurn),
			MustContinue: mustContinue,
			ForcedFrom:   newForced,
		},
	})

	if finish != nil {
		s.h.hub.Broadcast(c.MatchID, FinishedMessage(updatedMatch))
		log.Printf("[SESSION] Match %d finished: result=%s reason=%s", c.MatchID, updatedMatch.Result, updatedMatch.Reason)
		s.h.hub.CloseMatch(c.MatchID, websocket.CloseNormalClosure)
	}
}

func (s *session) sendError(c *ws.Client, detail string) {
	ws.SendMessage(c, ws.Message{Type: TypeError, Payload: errorPayload{Detail: detail}})
}

func (s *session) sendStateError(c *ws.Client, detail string, state *engine.State) {
	ws.SendMessage(c, ws.Message{
		Type: TypeError,
		Payload: errorStatePayload{
			Detail:      detail,
			NextTurn:    string(state.NextTurn),
			ForcedFrom:  state.ForcedFrom,
			MustCapture: state.MustCapture,
		},
	})
}

// replayRows rebuilds the authoritative state from stored move rows.
func replayRows(rows []models.MatchMove) (*engine.State, error) {
	logEntries, err := match.ToLog(rows)
	if err != nil {
		return nil, err
	}
	return engine.Replay(logEntries)
}

func closeConn(conn *websocket.Conn, code int) {
	msg := websocket.FormatCloseMessage(code, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.Close()
}
