package server

import (
	"go.uber.org/zap"
)

// Hub tracks every connected operator and fans broadcasts out to
// them. Adapted from the teacher's Hub: a channel-driven
// register/unregister event loop serialises membership changes, and
// broadcasts take a point-in-time snapshot through that same loop, then
// send without blocking so a slow peer never blocks delivery to the
// others.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	logger     *zap.Logger

	snapshot chan chan []*Client
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		snapshot:   make(chan chan []*Client),
		logger:     logger,
	}
}

// Register adds a client to the hub, to be observed by the next broadcast.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister removes a client and closes its Send channel.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Run is the hub's single-goroutine event loop; every membership
// mutation passes through it, so clients map access never races.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c.ID] = c
			h.logger.Debug("operator connected", zap.String("client_id", c.ID), zap.Int("total", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c.ID]; ok {
				delete(h.clients, c.ID)
				c.Close()
				h.logger.Debug("operator disconnected", zap.String("client_id", c.ID), zap.Int("total", len(h.clients)))
			}

		case reply := <-h.snapshot:
			list := make([]*Client, 0, len(h.clients))
			for _, c := range h.clients {
				list = append(list, c)
			}
			reply <- list
		}
	}
}

// clientSnapshot takes a point-in-time copy of the client set via the
// event loop, avoiding both a races-with-register/unregister and a
// reentrancy hazard when a send triggers a close.
func (h *Hub) clientSnapshot() []*Client {
	reply := make(chan []*Client, 1)
	h.snapshot <- reply
	return <-reply
}

// BroadcastToAll delivers msg to every currently connected operator.
func (h *Hub) BroadcastToAll(msg []byte) {
	for _, c := range h.clientSnapshot() {
		h.send(c, msg)
	}
}

// BroadcastToSubscribers delivers msg to every operator subscribed to robotID.
func (h *Hub) BroadcastToSubscribers(robotID string, msg []byte) {
	for _, c := range h.clientSnapshot() {
		if c.IsSubscribed(robotID) {
			h.send(c, msg)
		}
	}
}

// Count returns the number of currently connected operators.
func (h *Hub) Count() int {
	return len(h.clientSnapshot())
}

// SendToClient delivers msg to a single operator.
func (h *Hub) SendToClient(c *Client, msg []byte) {
	h.send(c, msg)
}

func (h *Hub) send(c *Client, msg []byte) {
	if c.TrySend(msg) {
		h.logger.Warn("dropping frame: operator outbound buffer full or closed", zap.String("client_id", c.ID))
	}
}
