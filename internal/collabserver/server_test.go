package collabserver

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/codefionn/codebridge/internal/collab"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(Options{Addr: "127.0.0.1:0"})
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		if err := s.Stop(); err != nil {
			t.Errorf("failed to stop server: %v", err)
		}
	})
	return s
}

type peer struct {
	t  *testing.T
	ws *websocket.Conn
	id string
}

// dial connects and consumes the welcome message.
func dial(t *testing.T, s *Server) *peer {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(s.URL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	p := &peer{t: t, ws: ws}
	welcome, ok := p.read().(collab.Welcome)
	require.True(t, ok, "first message must be welcome")
	require.NotEmpty(t, welcome.ID)
	p.id = welcome.ID
	return p
}

func (p *peer) send(msg collab.Message) {
	p.t.Helper()
	data, err := collab.Encode(msg)
	require.NoError(p.t, err)
	require.NoError(p.t, p.ws.WriteMessage(websocket.TextMessage, data))
}

func (p *peer) read() collab.Message {
	p.t.Helper()
	require.NoError(p.t, p.ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := p.ws.ReadMessage()
	require.NoError(p.t, err)
	msg, err := collab.Decode(data)
	require.NoError(p.t, err)
	return msg
}

// rosterWith reads until a roster with n participants arrives.
func (p *peer) rosterWith(n int) collab.Roster {
	p.t.Helper()
	for {
		if r, ok := p.read().(collab.Roster); ok && len(r.Participants) == n {
			return r
		}
	}
}

func names(r collab.Roster) []string {
	var out []string
	for _, p := range r.Participants {
		out = append(out, p.Name)
	}
	sort.Strings(out)
	return out
}

func TestServer_AliceAndBob(t *testing.T) {
	s := startServer(t)

	alice := dial(t, s)
	alice.send(collab.Announce{Name: "Alice", Color: "#ff0000"})
	r := alice.rosterWith(1)
	assert.Equal(t, []collab.Participant{{ID: alice.id, Name: "Alice", Color: "#ff0000"}}, r.Participants)

	bob := dial(t, s)
	bob.send(collab.Announce{Name: "Bob", Color: "#0000ff"})

	assert.Equal(t, []string{"Alice", "Bob"}, names(bob.rosterWith(2)))
	ar := alice.rosterWith(2)
	assert.Equal(t, []string{"Alice", "Bob"}, names(ar))
	// join order
	assert.Equal(t, alice.id, ar.Participants[0].ID)
	assert.Equal(t, bob.id, ar.Participants[1].ID)
}

func TestServer_DisconnectBroadcastsRoster(t *testing.T) {
	s := startServer(t)

	alice := dial(t, s)
	alice.send(collab.Announce{Name: "Alice", Color: "#ff0000"})
	alice.rosterWith(1)

	bob := dial(t, s)
	bob.send(collab.Announce{Name: "Bob", Color: "#0000ff"})
	alice.rosterWith(2)

	require.NoError(t, bob.ws.Close())

	r := alice.rosterWith(1)
	assert.Equal(t, "Alice", r.Participants[0].Name)
}

func TestServer_ReannounceUpdatesParticipant(t *testing.T) {
	s := startServer(t)

	alice := dial(t, s)
	alice.send(collab.Announce{Name: "Alice", Color: "#ff0000"})
	alice.rosterWith(1)

	alice.send(collab.Announce{Name: "Alicia", Color: "#00FF00"})
	r := alice.rosterWith(1)
	assert.Equal(t, collab.Participant{ID: alice.id, Name: "Alicia", Color: "#00ff00"}, r.Participants[0])
}

func TestServer_RelayNeverEchoes(t *testing.T) {
	s := startServer(t)

	a := dial(t, s)
	b := dial(t, s)
	c := dial(t, s)

	a.send(collab.EditChange{Payload: json.RawMessage(`{"line":1,"text":"x"}`)})

	for _, p := range []*peer{b, c} {
		relay, ok := p.read().(collab.EditRelay)
		require.True(t, ok)
		assert.Equal(t, a.id, relay.SenderID)
		assert.JSONEq(t, `{"line":1,"text":"x"}`, string(relay.Payload))
	}

	// messages to a are ordered, so a relay would arrive before this roster
	a.send(collab.Announce{Name: "A", Color: "#111111"})
	_, ok := a.read().(collab.Roster)
	assert.True(t, ok)
}

func TestServer_AnonymousConnectionsSeeRoster(t *testing.T) {
	s := startServer(t)

	watcher := dial(t, s)
	alice := dial(t, s)
	alice.send(collab.Announce{Name: "Alice", Color: "#ff0000"})

	r := watcher.rosterWith(1)
	assert.Equal(t, "Alice", r.Participants[0].Name)
}

func TestServer_AnnounceWithoutColor(t *testing.T) {
	s := startServer(t)

	alice := dial(t, s)
	require.NoError(t, alice.ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"announce","data":{"name":"Alice"}}`)))
	r := alice.rosterWith(1)
	assert.Equal(t, []collab.Participant{{ID: alice.id, Name: "Alice", Color: collab.NameColor("Alice")}}, r.Participants)

	bob := dial(t, s)
	require.NoError(t, bob.ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"announce","data":{"name":"Bob","color":"#abcde"}}`)))
	r = bob.rosterWith(2)
	assert.Equal(t, []string{"Alice", "Bob"}, names(r))
	for _, p := range r.Participants {
		if p.Name == "Bob" {
			assert.Equal(t, "#0abcde", p.Color)
		}
	}
}

func TestServer_RejectsBadMessages(t *testing.T) {
	s := startServer(t)
	p := dial(t, s)

	p.send(collab.Announce{Name: "  ", Color: "#ff0000"})
	e, ok := p.read().(collab.Error)
	require.True(t, ok)
	assert.Equal(t, collab.CodeInvalidAnnounce, e.Code)

	require.NoError(t, p.ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"cursor","data":{}}`)))
	e, ok = p.read().(collab.Error)
	require.True(t, ok)
	assert.Equal(t, collab.CodeUnknownType, e.Code)

	require.NoError(t, p.ws.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	e, ok = p.read().(collab.Error)
	require.True(t, ok)
	assert.Equal(t, collab.CodeMalformed, e.Code)

	p.send(collab.Roster{Participants: []collab.Participant{}})
	e, ok = p.read().(collab.Error)
	require.True(t, ok)
	assert.Equal(t, collab.CodeUnexpected, e.Code)

	snap := getSnapshot(t, s)
	assert.Empty(t, snap.Participants)
	assert.Equal(t, 1, snap.Connections)
}

func getSnapshot(t *testing.T, s *Server) Snapshot {
	t.Helper()
	resp, err := http.Get("http://" + s.Addr() + "/roster")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func scrapeMetrics(t *testing.T, s *Server) string {
	t.Helper()
	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestServer_AnonymousDisconnectDoesNotBroadcast(t *testing.T) {
	s := startServer(t)

	alice := dial(t, s)
	alice.send(collab.Announce{Name: "Alice", Color: "#ff0000"})
	alice.rosterWith(1)

	anon := dial(t, s)
	require.NoError(t, anon.ws.Close())

	assert.Eventually(t, func() bool {
		return getSnapshot(t, s).Connections == 1
	}, 5*time.Second, 10*time.Millisecond)

	body := scrapeMetrics(t, s)
	assert.Contains(t, body, "codebridge_collab_roster_broadcasts_total 1")
	assert.Contains(t, body, "codebridge_collab_participants 1")
	assert.Contains(t, body, "codebridge_collab_connections 1")
}

func TestServer_Health(t *testing.T) {
	s := startServer(t)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `"status":"ok"`))
}

func TestServer_StopClosesConnections(t *testing.T) {
	s := NewServer(Options{Addr: "127.0.0.1:0"})
	require.NoError(t, s.Start())
	p := dial(t, s)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	require.NoError(t, p.ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := p.ws.ReadMessage()
	assert.Error(t, err)

	assert.Error(t, s.Start())
}
