package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"scopeboard/internal/models"
)

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Type        string          `json:"type"` // "refresh", "subscribe", "ping", "pong", "error"
	Timestamp   time.Time       `json:"timestamp"`
	DashboardID string          `json:"dashboard_id,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// ClientConnection represents a connected WebSocket client
type ClientConnection struct {
	ID    string
	Conn  *websocket.Conn
	Send  chan WebSocketMessage
	Close chan bool

	mu         sync.RWMutex
	dashboards map[string]bool
}

// NewClientConnection wraps an upgraded connection
func NewClientConnection(id string, conn *websocket.Conn) *ClientConnection {
	return &ClientConnection{
		ID:         id,
		Conn:       conn,
		Send:       make(chan WebSocketMessage, 256),
		Close:      make(chan bool),
		dashboards: make(map[string]bool),
	}
}

// Subscribe makes the client receive refresh events of a dashboard
func (c *ClientConnection) Subscribe(dashboardID string) {
	c.mu.Lock()
	c.dashboards[dashboardID] = true
	c.mu.Unlock()
}

func (c *ClientConnection) Unsubscribe(dashboardID string) {
	c.mu.Lock()
	delete(c.dashboards, dashboardID)
	c.mu.Unlock()
}

func (c *ClientConnection) subscribed(dashboardID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dashboards[dashboardID]
}

// RefreshHub fans refresh events out to subscribed WebSocket clients
type RefreshHub struct {
	clients    map[string]*ClientConnection
	broadcast  chan WebSocketMessage
	register   chan *ClientConnection
	unregister chan string
	mu         sync.RWMutex
	done       chan bool
	logger     *zap.Logger
}

// NewRefreshHub creates the hub and starts its event loop
func NewRefreshHub(logger *zap.Logger) *RefreshHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := &RefreshHub{
		clients:    make(map[string]*ClientConnection),
		broadcast:  make(chan WebSocketMessage, 256),
		register:   make(chan *ClientConnection),
		unregister: make(chan string),
		done:       make(chan bool),
		logger:     logger,
	}

	go hub.run()

	return hub
}

// run manages the hub's event loop
func (h *RefreshHub) run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("websocket client connected", zap.String("client", client.ID), zap.Int("total", total))

		case clientID := <-h.unregister:
			h.mu.Lock()
			if client, exists := h.clients[clientID]; exists {
				delete(h.clients, clientID)
				close(client.Send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("websocket client disconnected", zap.String("client", clientID), zap.Int("total", total))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				if !client.subscribed(msg.DashboardID) {
					continue
				}
				select {
				case client.Send <- msg:
				default:
					// Client's send channel is full, skip this message
					h.logger.Warn("websocket client lagging, refresh dropped", zap.String("client", client.ID))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NotifyRefresh queues a refresh event for subscribers of its dashboard.
// It never blocks the committing caller.
func (h *RefreshHub) NotifyRefresh(event models.RefreshEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal refresh event", zap.Error(err))
		return
	}
	msg := WebSocketMessage{
		Type:        "refresh",
		Timestamp:   event.Timestamp,
		DashboardID: event.DashboardID,
		Data:        data,
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("refresh broadcast queue full", zap.String("dashboard", event.DashboardID))
	}
}

// Register adds a new client to the hub
func (h *RefreshHub) Register(client *ClientConnection) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *RefreshHub) Unregister(clientID string) {
	h.unregister <- clientID
}

// Stop gracefully stops the hub
func (h *RefreshHub) Stop() {
	h.done <- true
}
