package chathub

import (
	"encoding/json"
	"sync"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer; SDP offers need several KB.
	maxMessageSize = 64 * 1024
)

// WebSocketClient implements Client over a gorilla websocket connection.
type WebSocketClient struct {
	ConnID string
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan models.OutboundEvent

	logger    *zap.Logger
	closeOnce sync.Once
}

var _ Client = (*WebSocketClient)(nil)

func NewWebSocketClient(conn *websocket.Conn, hub *ManagerService, sendBuffer int, logger *zap.Logger) *WebSocketClient {
	if sendBuffer <= 0 {
		sendBuffer = config.DefaultSendBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &WebSocketClient{
		ConnID: id,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.OutboundEvent, sendBuffer),
		logger: logger.Named("ws").With(zap.String("conn_id", id)),
	}
}

func (c *WebSocketClient) GetConnID() string                           { return c.ConnID }
func (c *WebSocketClient) GetSendChannel() chan<- models.OutboundEvent { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes Send, which stops writePump. Safe to call more than once.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// readPump decodes frames and hands them to the hub one at a time. The
// connection is unregistered when reading fails.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("error reading message", zap.Error(err))
			}
			return
		}

		var ev models.InboundEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			c.logger.Debug("malformed frame", zap.Error(err))
			ev = models.InboundEvent{Malformed: true}
		}
		ev.ConnID = c.ConnID

		if !c.Hub.Dispatch(ev) {
			return
		}
	}
}

// writePump writes events from Send to the connection, one frame each, and
// keeps the connection alive with pings.
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
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(ev); err != nil {
				c.logger.Debug("error writing event", zap.String("type", ev.Type), zap.Error(err))
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
