package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"shuttle/internal/domain/models"
	"shuttle/internal/services"
)

// Hub fans shift events out to the driver's open UI connections. A driver may
// have several tabs open; each gets every message.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// Message is addressed to every connection of one driver.
type Message struct {
	DriverID string
	Data     any
}

// Envelope is the wire format pushed to clients.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is done; a hub is not
// restartable.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			set := h.clients[client.DriverID]
			if set == nil {
				set = make(map[*Client]bool)
				h.clients[client.DriverID] = set
			}
			set[client] = true
			h.mu.Unlock()
			log.Printf("[WS] action=connect driver=%s connections=%d", client.DriverID, len(set))

		case client := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(client)
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message.Data)
			if err != nil {
				log.Printf("[WS] action=marshal driver=%s err=%v", message.DriverID, err)
				continue
			}
			h.mu.Lock()
			for client := range h.clients[message.DriverID] {
				select {
				case client.send <- data:
				default:
					log.Printf("[WS] action=drop_slow_client driver=%s", message.DriverID)
					h.dropLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) dropLocked(client *Client) {
	set, ok := h.clients[client.DriverID]
	if !ok || !set[client] {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.DriverID)
	}
	log.Printf("[WS] action=disconnect driver=%s connections=%d", client.DriverID, len(set))
}

// BroadcastToDriver queues data for the driver's connections. It never
// blocks; when the queue is full the message is dropped.
func (h *Hub) BroadcastToDriver(driverID string, data any) bool {
	select {
	case h.broadcast <- &Message{DriverID: driverID, Data: data}:
		return true
	default:
		log.Printf("[WS] action=drop_message driver=%s", driverID)
		return false
	}
}

// Sink returns an event sink that pushes the driver's shift events to the hub.
func (h *Hub) Sink(driverID string) services.EventSink {
	return services.EventSinkFunc(func(ev models.Event) {
		h.BroadcastToDriver(driverID, Envelope{Type: "event", Data: ev})
	})
}

func (h *Hub) ClientCount(driverID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[driverID])
}
