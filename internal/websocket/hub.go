package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gearshelf/api/internal/model"
	"github.com/gearshelf/api/internal/progress"
	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog/log"
)

// Client represents a WebSocket client following one run
type Client struct {
	RunID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub maintains active WebSocket connections
type Hub struct {
	// Clients grouped by run ID
	clients map[string]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Broadcast messages to run subscribers
	broadcast chan *BroadcastMessage

	// Receives cancel requests sent by clients
	canceller progress.Canceller

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	RunID   string
	Message []byte
}

// NewHub creates a new Hub. canceller may be nil, in which case client
// cancel messages are ignored.
func NewHub(canceller progress.Canceller) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		canceller:  canceller,
	}
}

// SetCanceller attaches the cancel target after construction
func (h *Hub) SetCanceller(c progress.Canceller) {
	h.mu.Lock()
	h.canceller = c
	h.mu.Unlock()
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.RunID] == nil {
				h.clients[client.RunID] = make(map[*Client]bool)
			}
			h.clients[client.RunID][client] = true
			h.mu.Unlock()
			log.Debug().Str("run_id", client.RunID).Msg("Client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.RunID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.RunID)
					}
				}
			}
			h.mu.Unlock()
			log.Debug().Str("run_id", client.RunID).Msg("Client unregistered")

		case msg := <-h.broadcast:
			h.mu.Lock()
			if clients, ok := h.clients[msg.RunID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						// slow consumer
						close(client.Send)
						delete(clients, client)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.RunID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribers returns the number of clients following a run
func (h *Hub) Subscribers(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[runID])
}

// BroadcastProgress sends the projected progress to all run subscribers
func (h *Hub) BroadcastProgress(runID string, stageIndex int, status model.RunStatus) {
	h.send(runID, model.WSProgressMessage{
		Type:     model.WSMessageTypeProgress,
		RunID:    runID,
		Status:   status,
		Progress: progress.Project(stageIndex),
	})
}

// BroadcastComplete sends a completion message to all run subscribers
func (h *Hub) BroadcastComplete(runID string, result *model.ProcessingResult) {
	h.send(runID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		RunID:  runID,
		Result: result,
	})
}

// BroadcastError sends an error message to all run subscribers
func (h *Hub) BroadcastError(runID string, code, message string) {
	h.send(runID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		RunID: runID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

func (h *Hub) send(runID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal websocket message")
		return
	}

	h.broadcast <- &BroadcastMessage{
		RunID:   runID,
		Message: data,
	}
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, runID string) {
	client := &Client{
		RunID: runID,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	h.mu.RLock()
	canceller := h.canceller
	h.mu.RUnlock()
	var overlay *progress.Overlay
	if canceller != nil {
		overlay = progress.NewOverlay(runID, canceller)
	}

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				// Send ping for keep-alive
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("run_id", runID).Msg("WebSocket error")
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case model.WSMessageTypePing:
			pong := model.WSMessage{Type: model.WSMessageTypePong}
			data, _ := json.Marshal(pong)
			client.Send <- data
		case model.WSMessageTypeCancel:
			if overlay == nil {
				continue
			}
			if err := overlay.Cancel(); err != nil {
				log.Debug().Err(err).Str("run_id", runID).Msg("Cancel over websocket ignored")
			}
		}
	}
}
