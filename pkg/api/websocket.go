package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aegis-otc/aegis-core/pkg/rfq"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is enforced by the outer middleware.
		return true
	},
}

// wsClient bridges one WebSocket connection to a bus subscription. The bus
// already queues a snapshot as the subscription's first event, so a client
// is never missing state on connect.
type wsClient struct {
	conn *websocket.Conn
	sub  *rfq.Subscription
	log  *zap.Logger
}

// handleWebSocket upgrades the connection and starts the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn: conn,
		sub:  s.bus.Subscribe(),
		log:  s.log.With(zap.String("remote", conn.RemoteAddr().String())),
	}
	s.wsConns.Add(1)
	client.log.Info("ws client connected", zap.Int64("total", s.wsConns.Load()))

	go client.writePump()
	go func() {
		client.readPump()
		s.bus.Unsubscribe(client.sub)
		s.wsConns.Add(-1)
		client.log.Info("ws client disconnected", zap.Int64("total", s.wsConns.Load()))
	}()
}

// readPump drains inbound frames so pong handling works and close frames are
// noticed. Clients do not send application messages on this surface.
func (c *wsClient) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("ws read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump forwards bus events to the connection and keeps it alive with
// pings. A closed subscription (unsubscribe or prune for falling behind)
// terminates the connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.sub.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(wsMessageFor(evt)); err != nil {
				c.log.Debug("ws write error", zap.Error(err))
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

func wsMessageFor(evt rfq.Event) WSMessage {
	switch evt.Type {
	case rfq.EventFill:
		return WSMessage{Type: string(rfq.EventFill), Data: evt.Order}
	default:
		book := evt.Book
		if book == nil {
			book = []rfq.Order{}
		}
		return WSMessage{Type: string(rfq.EventSnapshot), Data: book}
	}
}
