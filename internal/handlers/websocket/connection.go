package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"swapStreamApp/internal/lib/logger/sl"
)

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024
)

var (
	// ErrSendQueueFull means the subscriber is not draining its queue fast enough.
	ErrSendQueueFull = errors.New("send queue full")
	// ErrConnectionClosed means the subscriber is already gone.
	ErrConnectionClosed = errors.New("connection closed")
)

// connection is a Subscriber backed by a gorilla websocket. A single
// writePump goroutine owns all writes; Send only touches the bounded queue.
type connection struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	log       *slog.Logger
}

func newConnection(conn *websocket.Conn, queueSize int, log *slog.Logger) *connection {
	id := uuid.NewString()
	return &connection{
		id:   id,
		conn: conn,
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
		log:  log.With(slog.String("subscriber", id), slog.String("remote", conn.RemoteAddr().String())),
	}
}

func (c *connection) ID() string {
	return c.id
}

func (c *connection) Send(msg []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close stops delivery immediately; queued frames are discarded.
func (c *connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *connection) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// readPump watches the connection for close frames and pong replies. Viewers
// send no commands, so any data frame is discarded.
func (c *connection) readPump(onGone func()) {
	defer onGone()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read error", sl.Err(err))
			}
			return
		}
	}
}

// writePump sends queued frames and pings until the connection is closed or
// a write fails.
func (c *connection) writePump(onGone func()) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return

		case msg := <-c.send:
			if c.closed() {
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("websocket write error", sl.Err(err))
				onGone()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				onGone()
				return
			}
		}
	}
}
