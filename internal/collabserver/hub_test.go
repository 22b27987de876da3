package collabserver

import (
	"context"
	"testing"
	"time"

	"github.com/codefionn/codebridge/internal/collab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	h := newHub(newMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func snapshot(t *testing.T, h *Hub) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := h.Snapshot(ctx)
	require.NoError(t, err)
	return s
}

func next(t *testing.T, c *conn) collab.Message {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send queue closed")
		msg, err := collab.Decode(data)
		require.NoError(t, err)
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("no message")
		return nil
	}
}

func TestHub_ConnectionStates(t *testing.T) {
	h := runHub(t)

	c := newConn("conn-a", h, nil, 8)
	require.True(t, h.join(c))
	assert.Equal(t, collab.Welcome{ID: "conn-a"}, next(t, c))

	snapshot(t, h)
	assert.Equal(t, stateConnected, c.state)

	h.deliver(inbound{conn: c, msg: collab.Announce{Name: "A", Color: "#123456"}})
	r, ok := next(t, c).(collab.Roster)
	require.True(t, ok)
	assert.Len(t, r.Participants, 1)
	assert.Equal(t, stateAnnounced, c.state)

	h.leave(c)
	s := snapshot(t, h)
	assert.Equal(t, stateDisconnected, c.state)
	assert.Equal(t, 0, s.Connections)
	assert.Empty(t, s.Participants)

	// leaving twice is harmless
	h.leave(c)
	snapshot(t, h)
}

func TestHub_DropsSlowConnection(t *testing.T) {
	h := runHub(t)

	slow := newConn("slow", h, nil, 1)
	require.True(t, h.join(slow))
	fast := newConn("fast", h, nil, 8)
	require.True(t, h.join(fast))
	next(t, fast)

	// slow still holds its welcome, so the roster does not fit
	h.deliver(inbound{conn: fast, msg: collab.Announce{Name: "F", Color: "#abcdef"}})
	next(t, fast)

	s := snapshot(t, h)
	assert.Equal(t, 1, s.Connections)

	_, ok := <-slow.send
	assert.True(t, ok)
	_, ok = <-slow.send
	assert.False(t, ok, "dropped connection must have its queue closed")
}

func TestHub_StoppedHub(t *testing.T) {
	h := newHub(newMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := newConn("c", h, nil, 4)
	require.True(t, h.join(c))
	cancel()
	<-h.done

	assert.False(t, h.join(newConn("late", h, nil, 4)))
	h.leave(c)
	h.deliver(inbound{conn: c, msg: collab.Announce{Name: "x", Color: "#000000"}})

	s, err := h.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Connections)
}
