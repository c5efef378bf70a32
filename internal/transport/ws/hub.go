package ws

import (
	"context"

	"go.uber.org/zap"

	"github.com/vedran77/dermacheck/internal/domain"
	"github.com/vedran77/dermacheck/internal/notify"
)

// Source is the session the hub streams from.
type Source interface {
	Watch(ctx context.Context) <-chan domain.SessionState
	Notifications() *notify.Slot
}

// Hub manages all active WebSocket clients. Every client receives every
// state snapshot; a notification goes to the clients connected when it is
// consumed.
type Hub struct {
	source Source
	logger *zap.Logger

	clients map[*Client]struct{}
	last    []byte

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(source Source, logger *zap.Logger) *Hub {
	return &Hub{
		source:     source,
		logger:     logger,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's main event loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	states := h.source.Watch(ctx)
	slot := h.source.Notifications()

	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Info("ws client connected", zap.Int("clients", len(h.clients)))
			if h.last != nil {
				h.send(client, h.last)
			}
			h.deliverNotification(slot)

		case client := <-h.unregister:
			h.remove(client)

		case state, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			h.publishState(state)

		case <-slot.Ready():
			h.deliverNotification(slot)

		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			return
		}
	}
}

func (h *Hub) add(ctx context.Context, c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.done)
	h.logger.Info("ws client disconnected", zap.Int("clients", len(h.clients)))
}

func (h *Hub) broadcast(data []byte) {
	for client := range h.clients {
		h.send(client, data)
	}
}

// send drops a client whose buffer is full.
func (h *Hub) send(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Warn("ws client too slow, disconnecting")
		h.remove(c)
	}
}
