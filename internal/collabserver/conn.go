package collabserver

import (
	"time"

	"github.com/codefionn/codebridge/internal/collab"
	"github.com/codefionn/codebridge/internal/logger"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

// connState is the per-connection lifecycle. It is only read and written by
// the hub goroutine.
type connState int

const (
	stateConnected connState = iota
	stateAnnounced
	stateDisconnected
)

func (s connState) String() string {
	switch s {
	case stateConnected:
		return "connected"
	case stateAnnounced:
		return "announced"
	case stateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// conn is one websocket connection. The hub closes send when it removes the
// connection, which ends the write pump.
type conn struct {
	id    string
	hub   *Hub
	ws    *websocket.Conn
	send  chan []byte
	state connState
	log   *logger.Logger
}

func newConn(id string, hub *Hub, ws *websocket.Conn, queue int) *conn {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return &conn{
		id:   id,
		hub:  hub,
		ws:   ws,
		send: make(chan []byte, queue),
		log:  hub.log.WithPrefix(short),
	}
}

// readPump decodes messages from the peer and hands them to the hub.
func (c *conn) readPump() {
	defer func() {
		c.hub.leave(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("read error: %v", err)
			}
			return
		}

		msg, err := collab.Decode(data)
		if err != nil {
			c.log.Debug("rejecting message: %v", err)
		}
		c.hub.deliver(inbound{conn: c, msg: msg, err: err})
	}
}

// writePump writes queued messages and keeps the connection alive with pings.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Warn("write error: %v", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
