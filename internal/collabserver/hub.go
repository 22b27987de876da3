package collabserver

import (
	"context"
	"errors"

	"github.com/codefionn/codebridge/internal/collab"
	"github.com/codefionn/codebridge/internal/logger"
)

// inbound is a decoded client message, or the decode error, for one
// connection.
type inbound struct {
	conn *conn
	msg  collab.Message
	err  error
}

// Snapshot is a point-in-time view of the hub.
type Snapshot struct {
	Connections  int                  `json:"connections"`
	Participants []collab.Participant `json:"participants"`
}

// Hub owns the connection registry and the roster. Only the Run goroutine
// touches them; everything else talks to it through channels.
type Hub struct {
	register   chan *conn
	unregister chan *conn
	inbound    chan inbound
	snapshot   chan chan Snapshot
	done       chan struct{}

	metrics *metrics
	log     *logger.Logger

	// owned by Run
	conns  map[string]*conn
	roster []collab.Participant
}

func newHub(m *metrics) *Hub {
	return &Hub{
		register:   make(chan *conn),
		unregister: make(chan *conn),
		inbound:    make(chan inbound, 256),
		snapshot:   make(chan chan Snapshot),
		done:       make(chan struct{}),
		metrics:    m,
		log:        logger.Global().WithPrefix("hub"),
		conns:      make(map[string]*conn),
		roster:     []collab.Participant{},
	}
}

// Run processes hub events until ctx is done. On exit every connection is
// closed and later calls into the hub return immediately.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("collaboration hub started")
	defer h.log.Info("collaboration hub stopped")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, c := range h.conns {
				close(c.send)
				c.state = stateDisconnected
			}
			h.conns = map[string]*conn{}
			h.roster = []collab.Participant{}
			h.metrics.connections.Set(0)
			h.metrics.participants.Set(0)
			return

		case c := <-h.register:
			h.conns[c.id] = c
			c.state = stateConnected
			h.metrics.connections.Set(float64(len(h.conns)))
			h.log.Debug("connection registered: %s", c.id)
			h.sendTo(c, collab.Welcome{ID: c.id})

		case c := <-h.unregister:
			h.remove(c)

		case in := <-h.inbound:
			h.handle(in)

		case reply := <-h.snapshot:
			reply <- Snapshot{
				Connections:  len(h.conns),
				Participants: append([]collab.Participant{}, h.roster...),
			}
		}
	}
}

func (h *Hub) handle(in inbound) {
	c := in.conn
	if _, ok := h.conns[c.id]; !ok {
		return
	}

	if in.err != nil {
		code := collab.CodeMalformed
		if errors.Is(in.err, collab.ErrUnknownType) {
			code = collab.CodeUnknownType
		}
		h.sendTo(c, collab.Error{Code: code, Message: in.err.Error()})
		return
	}

	switch msg := in.msg.(type) {
	case collab.Announce:
		h.announce(c, msg)
	case collab.EditChange:
		h.relay(c, msg)
	default:
		h.sendTo(c, collab.Error{
			Code:    collab.CodeUnexpected,
			Message: "clients may not send " + string(msg.Type()),
		})
	}
}

// announce inserts or updates the participant of c and broadcasts the roster.
func (h *Hub) announce(c *conn, a collab.Announce) {
	a, err := a.Normalize()
	if err != nil {
		h.sendTo(c, collab.Error{Code: collab.CodeInvalidAnnounce, Message: err.Error()})
		return
	}

	p := collab.Participant{ID: c.id, Name: a.Name, Color: a.Color}
	if i := h.rosterIndex(c.id); i >= 0 {
		h.roster[i] = p
	} else {
		h.roster = append(h.roster, p)
	}
	c.state = stateAnnounced
	h.log.Info("%s announced as %q", c.id, p.Name)
	h.broadcastRoster()
}

// relay forwards an edit to every connection except its sender.
func (h *Hub) relay(c *conn, e collab.EditChange) {
	data, err := collab.Encode(collab.EditRelay{SenderID: c.id, Payload: e.Payload})
	if err != nil {
		h.sendTo(c, collab.Error{Code: collab.CodeMalformed, Message: err.Error()})
		return
	}
	h.metrics.editRelays.Inc()
	h.broadcast(data, c.id)
}

// remove unregisters c. The roster is broadcast only if c had announced.
func (h *Hub) remove(c *conn) {
	if _, ok := h.conns[c.id]; !ok {
		return
	}
	delete(h.conns, c.id)
	close(c.send)
	c.state = stateDisconnected
	h.metrics.connections.Set(float64(len(h.conns)))
	h.log.Debug("connection removed: %s", c.id)

	if i := h.rosterIndex(c.id); i >= 0 {
		h.roster = append(h.roster[:i], h.roster[i+1:]...)
		h.broadcastRoster()
	}
}

func (h *Hub) rosterIndex(id string) int {
	for i, p := range h.roster {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (h *Hub) broadcastRoster() {
	h.metrics.participants.Set(float64(len(h.roster)))

	data, err := collab.Encode(collab.Roster{Participants: h.roster})
	if err != nil {
		h.log.Error("failed to encode roster: %v", err)
		return
	}
	h.metrics.rosterBroadcasts.Inc()
	h.broadcast(data, "")
}

// broadcast queues data on every connection but except. Connections whose
// queue is full are dropped afterwards.
func (h *Hub) broadcast(data []byte, except string) {
	var slow []*conn
	for id, c := range h.conns {
		if id == except {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.dropAll(slow)
}

func (h *Hub) sendTo(c *conn, msg collab.Message) {
	data, err := collab.Encode(msg)
	if err != nil {
		h.log.Error("failed to encode %s: %v", msg.Type(), err)
		return
	}
	select {
	case c.send <- data:
	default:
		h.dropAll([]*conn{c})
	}
}

func (h *Hub) dropAll(slow []*conn) {
	for _, c := range slow {
		h.log.Warn("send queue of %s full, dropping connection", c.id)
		h.metrics.dropped.Inc()
		h.remove(c)
	}
}

// join adds c to the hub. Returns false once the hub has stopped.
func (h *Hub) join(c *conn) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave removes c. Unknown or already removed connections are ignored.
func (h *Hub) leave(c *conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) deliver(in inbound) {
	select {
	case h.inbound <- in:
	case <-h.done:
	}
}

// Snapshot returns the current roster and connection count.
func (h *Hub) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case h.snapshot <- reply:
	case <-h.done:
		return Snapshot{Participants: []collab.Participant{}}, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}
