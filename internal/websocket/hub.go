package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/platewise/api/internal/model"
)

// Client is one socket watching one estimate
type Client struct {
	EstimateID string
	Send       chan []byte
}

// Hub tracks sockets per estimate and pushes terminal status to them
type Hub struct {
	// Clients grouped by estimate ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	logger *zap.Logger
	mu     sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	EstimateID string
	Message    []byte
}

// NewHub creates a new Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		logger:     logger.Named("ws"),
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.EstimateID] == nil {
				h.clients[client.EstimateID] = make(map[*Client]bool)
			}
			h.clients[client.EstimateID][client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("estimate_id", client.EstimateID))

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.logger.Debug("client unregistered", zap.String("estimate_id", client.EstimateID))

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.EstimateID] {
				select {
				case client.Send <- msg.Message:
				default:
					// slow consumer
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.EstimateID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.EstimateID)
	}
}

// Subscribers reports how many sockets watch an estimate
func (h *Hub) Subscribers(estimateID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[estimateID])
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Notify queues a status frame for every socket watching the estimate.
// It drops the frame when the broadcast buffer is full.
func (h *Hub) Notify(ctx context.Context, n model.Notification) error {
	data, err := json.Marshal(model.WSStatusFrom(n))
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- &BroadcastMessage{EstimateID: n.EstimateID.String(), Message: data}:
	case <-ctx.Done():
		return ctx.Err()
	default:
		h.logger.Warn("broadcast buffer full, dropping status", zap.String("estimate_id", n.EstimateID.String()))
	}
	return nil
}

// HandleConnection serves one socket. If initial is non-nil it is sent
// first so a client that connects after completion still sees the result.
func (h *Hub) HandleConnection(c *websocket.Conn, estimateID string, initial *model.WSStatusMessage) {
	client := &Client{
		EstimateID: estimateID,
		Send:       make(chan []byte, 16),
	}

	h.Register(client)
	defer h.Unregister(client)

	if initial != nil {
		if data, err := json.Marshal(initial); err == nil {
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					_ = c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read failed", zap.Error(err))
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			select {
			case client.Send <- pong:
			default:
			}
		}
	}
}
