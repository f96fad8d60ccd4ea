// Package websocket streams scan progress events to connected clients.
// Subscriptions are per scan; a scan moving through the pipeline
// publishes one event per status change.
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/vibescan/api/pkg/logger"
)

const (
	// Max connections per user for rate limiting
	maxConnectionsPerUser = 10

	// Broadcast buffer size
	broadcastBufferSize = 256
)

// Event is one scan progress message.
type Event struct {
	ScanID        string    `json:"scan_id"`
	Status        string    `json:"status"`
	FindingsCount int       `json:"findings_count,omitempty"`
	Failure       string    `json:"failure,omitempty"`
	At            time.Time `json:"at"`
}

// Hub maintains the set of active clients and routes scan events to
// subscribers of the corresponding scan.
type Hub struct {
	clients        map[*Client]bool
	userConnCounts map[string]int

	// Scan subscriptions: scan id -> set of clients
	scans map[string]map[*Client]bool

	broadcast  chan Event
	register   chan *Client
	unregister chan *Client

	logger *logger.Logger
	mu     sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		userConnCounts: make(map[string]int),
		scans:          make(map[string]map[*Client]bool),
		broadcast:      make(chan Event, broadcastBufferSize),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		logger:         log.With("component", "websocket_hub"),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("websocket hub started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("websocket hub stopping")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			if client.UserID != "" {
				count := h.userConnCounts[client.UserID]
				if count >= maxConnectionsPerUser {
					h.mu.Unlock()
					h.logger.Warn("connection limit exceeded",
						"user_id", client.UserID,
						"max", maxConnectionsPerUser,
					)
					client.Close()
					continue
				}
				h.userConnCounts[client.UserID] = count + 1
			}
			h.clients[client] = true
			if h.scans[client.ScanID] == nil {
				h.scans[client.ScanID] = make(map[*Client]bool)
			}
			h.scans[client.ScanID][client] = true
			h.mu.Unlock()

			h.logger.Debug("client registered",
				"user_id", client.UserID,
				"scan_id", client.ScanID,
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if subs, ok := h.scans[client.ScanID]; ok {
					delete(subs, client)
					if len(subs) == 0 {
						delete(h.scans, client.ScanID)
					}
				}
				if client.UserID != "" {
					if count := h.userConnCounts[client.UserID]; count > 1 {
						h.userConnCounts[client.UserID] = count - 1
					} else {
						delete(h.userConnCounts, client.UserID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// RegisterClient registers a new client.
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient unregisters a client.
func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// Publish sends a scan event to all subscribers of the scan. Non-nil
// hubs never block the pipeline; a full buffer drops the event.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("event buffer full, dropping scan event", "scan_id", event.ScanID)
	}
}

func (h *Hub) deliver(event Event) {
	h.mu.RLock()
	subs := h.scans[event.ScanID]
	clients := make([]*Client, 0, len(subs))
	for client := range subs {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.Send(event); err != nil {
			h.logger.Debug("failed to send event to client",
				"scan_id", event.ScanID,
				"error", err,
			)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
	h.scans = make(map[string]map[*Client]bool)
}
