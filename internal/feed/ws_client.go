package feed

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"smartnagrik/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// WebSocketClient is a feed subscriber on a websocket connection. The feed is
// push-only; anything the browser sends is read and discarded.
type WebSocketClient struct {
	Filter
	Conn *websocket.Conn
	Hub  *Hub
	Send chan models.StatusEvent

	ctx       context.Context
	closeOnce sync.Once
}

// NewWebSocketClient wraps conn. ctx bounds the unregister call on disconnect.
func NewWebSocketClient(ctx context.Context, conn *websocket.Conn, hub *Hub, f Filter) *WebSocketClient {
	return &WebSocketClient{
		Filter: f,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.StatusEvent, sendBuffer),
		ctx:    ctx,
	}
}

func (c *WebSocketClient) GetSendChannel() chan<- models.StatusEvent { return c.Send }

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes Send, which stops writePump and closes the connection.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c.ctx, c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: feed: read error for %s: %v", c.UserID, err)
			}
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("ERROR: feed: encoding event for %s: %v", c.UserID, err)
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
