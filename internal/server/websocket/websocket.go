package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/websocket"
)

// Message is one outbound wire frame: {type, payload}.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Inbound is one received frame. The payload stays raw so each handler
// binds the shape for its own type.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AllowedOrigins holds the origins accepted for WebSocket upgrades.
// Initialized from ALLOWED_ORIGINS at startup; tests override it directly.
var AllowedOrigins = getAllowedOrigins()

// Upgrader configures the WebSocket upgrader
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// getAllowedOrigins reads ALLOWED_ORIGINS (comma-separated) or falls back
// to the local development origins.
func getAllowedOrigins() []string {
	env := os.Getenv("ALLOWED_ORIGINS")
	if env == "" {
		return []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		}
	}

	parts := strings.Split(env, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// checkOrigin matches the Origin header against AllowedOrigins exactly:
// scheme, host, and port all count.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}

	for _, allowed := range AllowedOrigins {
		if origin == allowed {
			return true
		}
	}

	log.Printf("[WS] Rejected connection from origin: %s", origin)
	return false
}

// SendMessage queues a frame for one client. A full send buffer drops the
// frame rather than blocking the caller.
func SendMessage(c *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] Failed to marshal %s frame: %v", msg.Type, err)
		return
	}
	if !c.enqueue(data) {
		log.Printf("[WS] Dropped %s frame for user %d (conn %s)", msg.Type, c.UserID, c.ConnID)
	}
}
