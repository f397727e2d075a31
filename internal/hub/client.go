package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akorchak/groundlink/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one subscriber channel. It starts unauthenticated; only after a
// successful auth frame does it receive telemetry or accept commands.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	queue *sendQueue

	mu        sync.RWMutex
	principal *auth.Principal
	openedAt  time.Time
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:      h,
		conn:     conn,
		queue:    newSendQueue(),
		openedAt: time.Now(),
	}
}

// authenticated reports whether the channel has a verified principal.
func (c *Client) authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.principal != nil
}

// who returns the channel's principal, or nil.
func (c *Client) who() *auth.Principal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.principal
}

func (c *Client) setPrincipal(p auth.Principal) {
	c.mu.Lock()
	c.principal = &p
	c.mu.Unlock()
}

// send queues a prepared frame for delivery.
func (c *Client) send(frameType string, data any, droppable bool) {
	raw, err := marshalFrame(frameType, data)
	if err != nil {
		log.Printf("hub: marshal %s frame: %v", frameType, err)
		return
	}
	c.queue.push(outFrame{data: raw, droppable: droppable})
}

// sendError queues an error frame; error frames are never dropped.
func (c *Client) sendError(message string) {
	c.send(TypeError, map[string]string{"message": message}, false)
}

// writePump drains the send queue onto the socket and keeps the
// websocket-level ping alive. One writer goroutine per channel guarantees
// per-channel delivery order.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	done := make(chan struct{})
	defer close(done)

	frames := make(chan outFrame)
	go func() {
		defer close(frames)
		for {
			f, ok := c.queue.pop()
			if !ok {
				return
			}
			select {
			case frames <- f:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, f.data); err != nil {
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

// readPump consumes inbound frames until the socket closes, then detaches
// the channel from the hub.
func (c *Client) readPump() {
	defer c.hub.remove(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.sendError("malformed message")
			continue
		}
		c.hub.handleInbound(c, &env)
	}
}
