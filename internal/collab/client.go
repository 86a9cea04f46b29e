package collab

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/inamate/canvas/internal/render"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 256 * 1024
	sendBuffer = 256
)

// Client is one websocket connection to a board room.
//
// Control messages (ops, presence, sync) are queued in order on send.
// Frames travel separately: only the latest undelivered frame per layer is
// kept, so a slow reader skips stale frames instead of losing acks.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	frameReady chan struct{}

	mu     sync.Mutex
	closed bool
	frames map[render.LayerName][]byte

	UserID      string
	DisplayName string
	BoardID     string
	ClientID    string
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, displayName, boardID, clientID string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		frameReady:  make(chan struct{}, 1),
		frames:      make(map[render.LayerName][]byte),
		UserID:      userID,
		DisplayName: displayName,
		BoardID:     boardID,
		ClientID:    clientID,
	}
}

func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMsgSize)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return
			}
			c.hub.log.Debug("read error", "error", err, "user", c.UserID)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.log.Warn("invalid message", "error", err, "user", c.UserID)
			continue
		}

		// Never trust identity fields from the wire
		msg.UserID = c.UserID
		msg.ClientID = c.ClientID
		msg.BoardID = c.BoardID

		c.hub.handleMessage(c, &msg)
	}
}

func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(ctx, message); err != nil {
				c.hub.log.Debug("write error", "error", err, "user", c.UserID)
				return
			}

		case <-c.frameReady:
			for _, frame := range c.takeFrames() {
				if err := c.write(ctx, frame); err != nil {
					c.hub.log.Debug("write frame error", "error", err, "user", c.UserID)
					return
				}
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}

// Send queues msg. It drops the message when the buffer is full or the
// client has left.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.Error("marshal message", "error", err, "type", msg.Type)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.log.Warn("client send buffer full, dropping message", "user", c.UserID, "type", msg.Type)
	}
}

// SendFrame queues an encoded frame message for layer, replacing any frame
// of the same layer not yet written.
func (c *Client) SendFrame(layer render.LayerName, data []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.frames[layer] = data
	c.mu.Unlock()

	select {
	case c.frameReady <- struct{}{}:
	default:
	}
}

// takeFrames removes and returns pending frames in layer z-order.
func (c *Client) takeFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]byte, 0, len(c.frames))
	for _, layer := range render.LayerOrder {
		if data, ok := c.frames[layer]; ok {
			out = append(out, data)
			delete(c.frames, layer)
		}
	}
	return out
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
		clear(c.frames)
	}
}
