package testutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bissquit/incident-garden-live/internal/realtime"
	"github.com/gorilla/websocket"
)

// Room event names understood by StatusServer.
const (
	EventJoin = "join"
)

// StatusServer is an in-process push server speaking the realtime frame
// protocol. It answers get-* requests from fixtures and lets tests push
// events to joined connections.
type StatusServer struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu         sync.Mutex
	authorize  func(token string) error
	rejectCode int
	conns      map[*serverConn]struct{}
	handshakes int
	tokens     []string
	joins      []string
	requests   map[string]int
	fixtures   map[string]json.RawMessage
	silenced   map[string]bool
	received   []realtime.Frame
	mutePongs  bool
}

type serverConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	rooms   map[string]bool
}

func (c *serverConn) send(frame realtime.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(frame)
}

// NewStatusServer starts a server that accepts any non-empty bearer token.
// It is closed automatically when the test ends.
func NewStatusServer(t *testing.T) *StatusServer {
	t.Helper()

	s := &StatusServer{
		t:        t,
		conns:    make(map[*serverConn]struct{}),
		requests: make(map[string]int),
		fixtures: make(map[string]json.RawMessage),
		silenced: make(map[string]bool),
		authorize: func(token string) error {
			if token == "" {
				return errors.New("empty token")
			}
			return nil
		},
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// URL returns the ws:// address of the server.
func (s *StatusServer) URL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

// SetAuthorizer replaces the bearer token check.
func (s *StatusServer) SetAuthorizer(fn func(token string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorize = fn
}

// RejectHandshakes makes every following handshake fail with code.
// Zero restores normal behavior.
func (s *StatusServer) RejectHandshakes(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectCode = code
}

// SetFixture sets the acknowledgement payload returned for a request event
// such as get-components.
func (s *StatusServer) SetFixture(event string, v any) {
	s.t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		s.t.Fatalf("marshal fixture %s: %v", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixtures[event] = data
}

// Silence stops the server from acknowledging event.
func (s *StatusServer) Silence(event string, silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silenced[event] = silent
}

// MutePongs makes the server ignore websocket pings from clients.
func (s *StatusServer) MutePongs(mute bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutePongs = mute
}

// Push sends a named event to every connection joined to room. A
// connection stays in every room it joined until it closes.
func (s *StatusServer) Push(room, event string, v any) {
	s.t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		s.t.Fatalf("marshal push %s: %v", event, err)
	}

	for _, c := range s.connections() {
		s.mu.Lock()
		joined := c.rooms[room]
		s.mu.Unlock()
		if !joined {
			continue
		}
		_ = c.send(realtime.Frame{Type: realtime.FrameEvent, Event: event, Data: data})
	}
}

// PushRaw sends an arbitrary frame to every connection.
func (s *StatusServer) PushRaw(frame realtime.Frame) {
	for _, c := range s.connections() {
		_ = c.send(frame)
	}
}

// DropConnections closes every open socket without a close frame.
func (s *StatusServer) DropConnections() {
	for _, c := range s.connections() {
		_ = c.ws.Close()
	}
}

// Handshakes returns the number of accepted handshakes.
func (s *StatusServer) Handshakes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakes
}

// Tokens returns the bearer tokens of accepted handshakes in order.
func (s *StatusServer) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

// Joins returns every room join in order.
func (s *StatusServer) Joins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.joins...)
}

// Requests returns how many times event was received.
func (s *StatusServer) Requests(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[event]
}

// Received returns every frame read from clients.
func (s *StatusServer) Received() []realtime.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]realtime.Frame(nil), s.received...)
}

// OpenConnections returns the number of live sockets.
func (s *StatusServer) OpenConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close drops all connections and stops the listener.
func (s *StatusServer) Close() {
	s.DropConnections()
	s.server.Close()
}

func (s *StatusServer) connections() []*serverConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *StatusServer) handle(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	s.mu.Lock()
	reject, authorize := s.rejectCode, s.authorize
	s.mu.Unlock()

	if reject != 0 {
		http.Error(w, http.StatusText(reject), reject)
		return
	}
	if err := authorize(token); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &serverConn{ws: ws, rooms: make(map[string]bool)}
	ws.SetPingHandler(func(data string) error {
		s.mu.Lock()
		mute := s.mutePongs
		s.mu.Unlock()
		if mute {
			return nil
		}
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.handshakes++
	s.tokens = append(s.tokens, token)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		var frame realtime.Frame
		if err := ws.ReadJSON(&frame); err != nil {
			return
		}
		s.serve(c, frame)
	}
}

func (s *StatusServer) serve(c *serverConn, frame realtime.Frame) {
	s.mu.Lock()
	s.received = append(s.received, frame)
	s.requests[frame.Event]++

	if frame.Event == EventJoin {
		var room string
		_ = json.Unmarshal(frame.Data, &room)
		c.rooms[room] = true
		s.joins = append(s.joins, room)
	}

	fixture, ok := s.fixtures[frame.Event]
	silenced := s.silenced[frame.Event]
	s.mu.Unlock()

	if frame.AckID == "" || silenced {
		return
	}
	if !ok {
		fixture = json.RawMessage("null")
	}
	_ = c.send(realtime.Frame{Type: realtime.FrameAck, AckID: frame.AckID, Data: fixture})
}
