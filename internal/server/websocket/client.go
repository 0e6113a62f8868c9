package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds how long a write (including close frames) may block.
	writeWait = 10 * time.Second
	// maxMessageSize bounds inbound frames; move frames are tiny.
	maxMessageSize = 4096
	// sendBufferSize is the per-client outbound queue depth.
	sendBufferSize = 256
)

// Client is one authenticated WebSocket connection bound to a match room.
type Client struct {
	UserID  int64
	MatchID int64
	ConnID  string
	Conn    *websocket.Conn
	Send    chan []byte

	mu        sync.Mutex
	closed    bool
	closeCode int
	closeText string
}

// NewClient wraps an upgraded connection. ConnID tags log lines so
// overlapping connections from the same user can be told apart.
func NewClient(matchID, userID int64, conn *websocket.Conn) *Client {
	return &Client{
		UserID:  userID,
		MatchID: matchID,
		ConnID:  uuid.NewString(),
		Conn:    conn,
		Send:    make(chan []byte, sendBufferSize),
	}
}

// enqueue queues raw bytes for the write pump. Returns false when the
// client is closed or its buffer is full.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Close marks the client closed and releases its send queue. The write
// pump finishes the shutdown: it drains queued frames onto the wire and
// then sends a close frame with the code recorded here. Safe to call
// from any goroutine, any number of times; only the first call's code
// reaches the peer.
func (c *Client) Close(code int, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeCode = code
	c.closeText = text
	close(c.Send)
}

// CloseNow tears the connection down immediately, discarding queued
// frames. For connections whose write pump never started, and for faults
// where delivery no longer matters.
func (c *Client) CloseNow(code int, text string) {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.closeCode = code
		c.closeText = text
		close(c.Send)
	}
	code, text = c.closeCode, c.closeText
	c.mu.Unlock()

	msg := websocket.FormatCloseMessage(code, text)
	c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.Conn.Close()
}

// ReadPump reads frames and hands them to the session's handler. It owns
// registry cleanup: on any exit the client leaves its room. Malformed
// JSON is an internal fault (1011); a peer close is not.
func (c *Client) ReadPump(hub *Hub, handler func(*Client, Inbound)) {
	defer func() {
		hub.Disconnect(c)
		c.Close(websocket.CloseNormalClosure, "")
		log.Printf("[WS] Connection %s closed (user %d, match %d)", c.ConnID, c.UserID, c.MatchID)
	}()

	c.Conn.SetReadLimit(maxMessageSize)

	for {
		var msg Inbound
		if err := c.Conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.Close(websocket.CloseInternalServerErr, "")
			}
			return
		}

		handler(c, msg)
	}
}

// WritePump is the connection's only frame writer. It drains the send
// queue onto the wire; once Close ends the queue, every frame accepted
// before the close has been delivered, and the pump finishes with the
// recorded close frame.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	c.mu.Lock()
	code, text := c.closeCode, c.closeText
	c.mu.Unlock()

	msg := websocket.FormatCloseMessage(code, text)
	c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
