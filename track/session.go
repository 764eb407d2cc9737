package track

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/sivakumar999/village-eats/auth"
)

// ConnID is the opaque handle a connection is referenced by. Nothing outside
// the session manager holds a live connection pointer.
type ConnID string

func newConnID() ConnID {
	return ConnID(uuid.NewString())
}

// sink abstracts the writable side of a connection so fan-out and tests do
// not depend on a live socket.
type sink interface {
	writeMessage(data []byte) error
	writePing(deadline time.Time) error
	close() error
}

// wsSink wraps a gorilla connection. The write mutex is required: gorilla
// panics on concurrent writes to the same connection.
type wsSink struct {
	conn         *websocket.Conn
	mu           sync.Mutex
	writeTimeout time.Duration
}

func newWSSink(conn *websocket.Conn, writeTimeout time.Duration) *wsSink {
	return &wsSink{conn: conn, writeTimeout: writeTimeout}
}

func (s *wsSink) writeMessage(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSink) writePing(deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (s *wsSink) close() error {
	return s.conn.Close()
}

// session is one live connection with its per-connection state.
type session struct {
	id          ConnID
	identity    *auth.Identity // nil = anonymous
	sink        sink
	connectedAt time.Time

	// Liveness: cleared before each ping, set on pong. A session that stays
	// false across a full heartbeat interval is evicted.
	alive atomic.Bool

	closed atomic.Bool

	// Throttle for agent_location_update frames.
	locationLimiter *rate.Limiter
}

func (s *session) agentID() string {
	if s.identity == nil {
		return ""
	}
	return s.identity.SubjectID
}

// sessionManager owns every live session plus the subscription index. All
// collections are exclusively owned here; cleanup is an explicit remove of
// the opaque handle, never garbage collection of a shared pointer.
type sessionManager struct {
	mu       sync.RWMutex
	sessions map[ConnID]*session
	topics   map[Topic]map[ConnID]struct{}
	agents   map[string]ConnID // agentID -> most recent connection
}

func newSessionManager() *sessionManager {
	return &sessionManager{
		sessions: make(map[ConnID]*session),
		topics:   make(map[Topic]map[ConnID]struct{}),
		agents:   make(map[string]ConnID),
	}
}

// register adds a session to the arena.
func (m *sessionManager) register(s *session) {
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
}

// remove deletes a session from the arena, from every topic's subscriber set
// and from the agent reverse index, so no future lookup can target the stale
// handle.
func (m *sessionManager) remove(id ConnID) *session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	delete(m.sessions, id)

	for topic, subs := range m.topics {
		delete(subs, id)
		if len(subs) == 0 {
			delete(m.topics, topic)
		}
	}

	for agentID, connID := range m.agents {
		if connID == id {
			delete(m.agents, agentID)
		}
	}

	return s
}

// get returns the session for a handle, or nil.
func (m *sessionManager) get(id ConnID) *session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// subscribe adds the session to a topic's subscriber set, creating the set if
// absent. Idempotent: a second subscribe of the same session is a no-op.
func (m *sessionManager) subscribe(id ConnID, topic Topic) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return
	}
	subs := m.topics[topic]
	if subs == nil {
		subs = make(map[ConnID]struct{})
		m.topics[topic] = subs
	}
	subs[id] = struct{}{}
}

// unsubscribe removes the session from a topic; the topic entry itself is
// dropped once its subscriber set empties.
func (m *sessionManager) unsubscribe(id ConnID, topic Topic) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.topics[topic]
	if subs == nil {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(m.topics, topic)
	}
}

// bindAgent records the connection currently speaking for an agent identity.
func (m *sessionManager) bindAgent(agentID string, id ConnID) {
	m.mu.Lock()
	m.agents[agentID] = id
	m.mu.Unlock()
}

// subscribers snapshots the sessions currently subscribed to a topic.
func (m *sessionManager) subscribers(topic Topic) []*session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := m.topics[topic]
	if len(subs) == 0 {
		return nil
	}
	out := make([]*session, 0, len(subs))
	for id := range subs {
		if s := m.sessions[id]; s != nil && !s.closed.Load() {
			out = append(out, s)
		}
	}
	return out
}

// publish delivers data to every open subscriber of topic. Best-effort:
// sessions that are mid-close or fail the write are skipped silently, and
// no error is surfaced to the publisher. Returns the delivered count.
func (m *sessionManager) publish(topic Topic, data []byte) int {
	delivered := 0
	for _, s := range m.subscribers(topic) {
		if err := s.sink.writeMessage(data); err != nil {
			// The read loop will observe the broken socket and clean up.
			s.closed.Store(true)
			continue
		}
		delivered++
	}
	return delivered
}

// trackedOrderIDs returns the order ids of every order topic with at least
// one subscriber. Fallback scope for agent position broadcasts when no
// assignment store is wired.
func (m *sessionManager) trackedOrderIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for topic := range m.topics {
		if id, ok := topic.OrderID(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// snapshot returns every live session. Used by the liveness sweep.
func (m *sessionManager) snapshot() []*session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// counts returns live session and topic totals for metrics and health.
func (m *sessionManager) counts() (sessions, topics int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), len(m.topics)
}

// hasTopic reports whether a topic currently has subscribers.
func (m *sessionManager) hasTopic(topic Topic) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.topics[topic]
	return ok
}
