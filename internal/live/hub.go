// Package live pushes annotation changes to connected viewers over
// websockets, so embedded viewers stay current without polling. Clients
// subscribe per model id; every label/question mutation on that model is
// broadcast as a JSON event.
package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Event is one annotation change notification.
type Event struct {
	Type    string      `json:"type"`
	ModelID string      `json:"modelId"`
	Payload interface{} `json:"payload,omitempty"`
}

// Event types sent to subscribers.
const (
	EventLabelCreated    = "label_created"
	EventLabelDeleted    = "label_deleted"
	EventQuestionCreated = "question_created"
	EventQuestionUpdated = "question_updated"
	EventQuestionDeleted = "question_deleted"
	EventModelDeleted    = "model_deleted"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Embed viewers are served from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn    *websocket.Conn
	send    chan Event
	modelID string
}

// Hub tracks subscribers per model and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	log     zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		log:     log,
	}
}

// Serve upgrades the request to a websocket subscribed to the given model.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, modelID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{
		conn:    conn,
		send:    make(chan Event, sendBufferSize),
		modelID: modelID,
	}
	h.register(c)
	h.log.Debug().Str("modelId", modelID).Msg("Viewer subscribed")

	go c.writePump(h)
	go c.readPump(h)
}

// Broadcast sends an event to every subscriber of the event's model.
// Slow subscribers are disconnected rather than blocking the sender.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	var stale []*client
	for c := range h.clients[ev.ModelID] {
		select {
		case c.send <- ev:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.log.Warn().Str("modelId", ev.ModelID).Msg("Dropping slow websocket subscriber")
		h.unregister(c)
	}
}

// SubscriberCount returns the number of subscribers for a model.
func (h *Hub) SubscriberCount(modelID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[modelID])
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.modelID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.modelID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	set, ok := h.clients[c.modelID]
	if ok {
		if _, present := set[c]; present {
			delete(set, c)
			close(c.send)
			if len(set) == 0 {
				delete(h.clients, c.modelID)
			}
		}
	}
	h.mu.Unlock()
	c.conn.Close()
}

func (c *client) writePump(h *Hub) {
	for ev := range c.send {
		data, err := json.Marshal(ev)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to encode websocket event")
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
	c.conn.Close()
}

// readPump discards inbound messages; its job is to notice disconnects.
func (c *client) readPump(h *Hub) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(c)
}
