package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub is the process-local session registry: matchid -> userid -> client.
// The mutex guards room mutation only; connection I/O always happens
// outside it.
type Hub struct {
	mu    sync.Mutex
	rooms map[int64]map[int64]*Client
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[int64]map[int64]*Client),
	}
}

// Connect registers the client in its match room. A previous connection
// by the same user is displaced and closed.
func (h *Hub) Connect(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.MatchID]
	if !ok {
		room = make(map[int64]*Client)
		h.rooms[client.MatchID] = room
	}
	displaced := room[client.UserID]
	room[client.UserID] = client
	h.mu.Unlock()

	if displaced != nil {
		log.Printf("[WS] User %d reconnected to match %d, displacing conn %s", client.UserID, client.MatchID, displaced.ConnID)
		displaced.Close(websocket.CloseNormalClosure, "connected from another session")
	}
}

// Disconnect removes the client from its room and drops the room once
// empty. A displaced client cannot remove its replacement: the entry is
// only deleted when it still points at this exact client.
func (h *Hub) Disconnect(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[client.MatchID]
	if !ok {
		return
	}
	if room[client.UserID] != client {
		return
	}
	delete(room, client.UserID)
	if len(room) == 0 {
		delete(h.rooms, client.MatchID)
	}
}

// Broadcast sends a frame to everyone in the match room. Iteration runs
// over a snapshot so slow peers never hold the lock; a peer whose buffer
// is full is detached, not fatal to the room.
func (h *Hub) Broadcast(matchID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] Failed to marshal %s broadcast for match %d: %v", msg.Type, matchID, err)
		return
	}

	h.mu.Lock()
	room := h.rooms[matchID]
	clients := make([]*Client, 0, len(room))
	for _, c := range room {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if !c.enqueue(data) {
			// A full buffer means the pump may be wedged mid-write, so a
			// graceful close would never finish. Tear the conn down to
			// unblock it.
			log.Printf("[WS] Detaching slow peer %d from match %d (conn %s)", c.UserID, matchID, c.ConnID)
			go c.CloseNow(websocket.CloseGoingAway, "send buffer full")
		}
	}
}

// CloseMatch closes every connection in the room with the given code and
// drops the room. Frames already broadcast still reach each peer before
// its close frame: the per-client write pump drains the queue first.
func (h *Hub) CloseMatch(matchID int64, code int) {
	h.mu.Lock()
	room := h.rooms[matchID]
	clients := make([]*Client, 0, len(room))
	for _, c := range room {
		clients = append(clients, c)
	}
	delete(h.rooms, matchID)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close(code, "")
	}
}

// CloseAllRooms drains the registry on shutdown. Connections are torn
// down immediately: server shutdown does not wait for write pumps.
func (h *Hub) CloseAllRooms(code int) {
	h.mu.Lock()
	var clients []*Client
	for _, room := range h.rooms {
		for _, c := range room {
			clients = append(clients, c)
		}
	}
	h.rooms = make(map[int64]map[int64]*Client)
	h.mu.Unlock()

	log.Printf("[WS] Closing %d connections across all rooms", len(clients))
	for _, c := range clients {
		c.CloseNow(code, "server shutting down")
	}
}

// RoomSize reports how many peers a match room currently holds.
func (h *Hub) RoomSize(matchID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[matchID])
}
