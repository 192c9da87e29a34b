package termhttp

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 15 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 90 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Pasting into a terminal
	// can produce large input frames, so this is generous.
	maxMessageSize = 512 * 1024

	// Send buffer size per client. Shell output arrives in bursts, so
	// the channel is deep enough to absorb a full redraw.
	sendBufferSize = 1024
)

// FrameHandler is a function that handles incoming frames from a client.
type FrameHandler func(clientID string, message []byte)

// Client represents a WebSocket terminal client connection.
//
// A Client wraps a WebSocket connection and provides:
//   - Concurrent-safe message sending via buffered channel
//   - Automatic connection health monitoring via ping/pong
//   - Graceful shutdown with proper close frame handling
//
// Send() is safe to call from any goroutine and Close() is safe to call
// multiple times.
type Client struct {
	id           string
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	frameHandler FrameHandler
	onClose      func(id string)

	mu     sync.Mutex
	closed bool
}

// NewClient creates a new WebSocket client.
func NewClient(conn *websocket.Conn, frameHandler FrameHandler, onClose func(id string)) *Client {
	return &Client{
		id:           uuid.New().String(),
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
		done:         make(chan struct{}),
		frameHandler: frameHandler,
		onClose:      onClose,
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() string {
	return c.id
}

// Start starts the client's read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Send queues a message to be sent to the client.
func (c *Client) Send(message []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	select {
	case c.send <- message:
	default:
		// Channel full, client is too slow
		log.Warn().Str("client_id", c.id).Msg("client send channel full, dropping message")
	}
}

// Close closes the client connection.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
}

// Done is closed when the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// readPump pumps frames from the WebSocket connection to the frame handler.
func (c *Client) readPump() {
	defer func() {
		c.Close()
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose(c.id)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client_id", c.id).Msg("websocket read error")
			}
			return
		}

		if c.frameHandler != nil {
			c.frameHandler(c.id, message)
		}
	}
}

// writePump pumps messages from the send channel to the WebSocket connection.
// Each message is sent as a separate WebSocket frame to avoid JSON corruption.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		// Send close frame with deadline to prevent blocking on laggy connections
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message, ok := <-c.send:
			if !ok {
				return
			}

			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("client_id", c.id).Msg("write error")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("client_id", c.id).Msg("ping error")
				return
			}
		}
	}
}
