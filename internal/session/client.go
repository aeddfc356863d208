package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"collabdocs/internal/models"
)

const (
	DefaultQueueSize = 256

	writeWait  = 10 * time.Second
	PongWait   = 60 * time.Second
	pingPeriod = (PongWait * 9) / 10
)

// Client is one live connection. Frames are queued and written by WritePump so a slow
// peer never blocks whoever is sending to it.
type Client struct {
	ID   string
	Conn *websocket.Conn

	mu     sync.Mutex
	hook   func(models.WSFrame)
	send   chan models.WSFrame
	closed bool
}

func NewClient(conn *websocket.Conn) *Client {
	return NewClientWithQueue(uuid.NewString(), conn, DefaultQueueSize)
}

func NewClientWithQueue(id string, conn *websocket.Conn, size int) *Client {
	if size < 1 {
		size = DefaultQueueSize
	}
	return &Client{ID: id, Conn: conn, send: make(chan models.WSFrame, size)}
}

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.WSFrame)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Send queues a frame without blocking. It reports false when the frame was dropped
// because the client is closed, has no connection, or its queue is full.
func (c *Client) Send(frame models.WSFrame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if c.hook != nil {
		c.hook(frame)
		return true
	}
	if c.Conn == nil {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops further sends and lets WritePump drain and exit. Safe to call twice.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// WritePump writes queued frames and keepalive pings until the client is closed or a
// write fails. It must run in its own goroutine.
func (c *Client) WritePump() error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return nil
			}
			if err := c.Conn.WriteJSON(frame); err != nil {
				return err
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}
