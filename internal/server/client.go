package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is one connected operator session on /ui: its socket, its
// subscription set, and the identity it was assigned at accept time.
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time

	mu            sync.Mutex
	Name          string
	Subscriptions map[string]bool
	closed        bool
}

// NewClient constructs a Client with the default Client-<id> name.
func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		ID:            id,
		Conn:          conn,
		Send:          make(chan []byte, 256),
		ConnectedAt:   time.Now(),
		Name:          "Client-" + id,
		Subscriptions: make(map[string]bool),
	}
}

// Subscribe adds robotID to the client's subscription set and, if
// name is non-empty, updates the client's display name.
func (c *Client) Subscribe(robotID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Subscriptions[robotID] = true
	if name != "" {
		c.Name = name
	}
}

// Unsubscribe removes robotID from the subscription set.
func (c *Client) Unsubscribe(robotID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Subscriptions, robotID)
}

// IsSubscribed reports whether the client currently subscribes to robotID.
func (c *Client) IsSubscribed(robotID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Subscriptions[robotID]
}

// DisplayName returns the client's current name, possibly updated by
// subscribe/control frames since connect.
func (c *Client) DisplayName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Name
}

// SetName overwrites the client's display name, used by control frames
// (any action) that carry a clientName.
func (c *Client) SetName(name string) {
	if name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Name = name
}

// TrySend enqueues a frame for delivery, dropping it if the outbound
// buffer is full or the client has already been closed, rather than
// blocking the caller or sending on a closed channel. Mirrors
// robot.RobotRecord.TrySend's closed-flag-under-mutex discipline.
func (c *Client) TrySend(data []byte) (dropped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.Send <- data:
		return false
	default:
		return true
	}
}

// Close marks the client closed and closes its Send channel. Safe to
// call more than once; guarded by the same lock TrySend checks, so no
// send can race a close.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}
