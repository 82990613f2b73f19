package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Client is one UI connection of a driver.
type Client struct {
	DriverID string
	conn     *websocket.Conn
	hub      *Hub
	send     chan []byte
}

// IncomingMessage is what the UI may send. Only pings are understood; intents
// go through the REST endpoints.
type IncomingMessage struct {
	Type string `json:"type"`
}

func NewClient(driverID string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		DriverID: driverID,
		conn:     conn,
		hub:      hub,
		send:     make(chan []byte, 256),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SetAllowedOrigins restricts which browser origins may open a socket. An
// empty list accepts any origin.
func SetAllowedOrigins(origins []string) {
	if len(origins) == 0 {
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
		return
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

// Serve upgrades the request and attaches the connection to driverID. The
// caller must have authenticated the driver.
func Serve(hub *Hub, driverID string, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := NewClient(driverID, conn, hub)
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return nil
	}
	go client.WritePump()
	go client.ReadPump()
	return nil
}

// ReadPump reads until the connection fails, answering pings.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] action=read driver=%s err=%v", c.DriverID, err)
			}
			return
		}
		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			c.hub.BroadcastToDriver(c.DriverID, Envelope{Type: "pong", Data: time.Now().UTC().Format(time.RFC3339)})
		}
	}
}

// WritePump writes hub messages and keepalive pings to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
