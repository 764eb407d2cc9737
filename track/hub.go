// Package track implements the real-time order tracking hub: a WebSocket
// server that fans order status, agent position and new-order events out to
// subscribed customers, delivery agents and vendors.
package track

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/sivakumar999/village-eats/assignment"
	"github.com/sivakumar999/village-eats/auth"
	"github.com/sivakumar999/village-eats/errors"
	"github.com/sivakumar999/village-eats/metric"
)

// Config holds construction parameters for the Hub.
type Config struct {
	Port int    // Listen port; 0 disables the built-in server (handler-only mode)
	Path string // WebSocket endpoint path

	HeartbeatInterval time.Duration // Ping cadence for the liveness sweep
	WriteTimeout      time.Duration // Per-frame write deadline
	ReadLimit         int64         // Max inbound frame size in bytes

	Verifier        *auth.Verifier          // Token verifier; nil = every connection is anonymous
	Assignments     assignment.Store        // Optional agent/order assignment lookup
	MetricsRegistry *metric.MetricsRegistry // Optional Prometheus metrics registry
	Logger          *slog.Logger
}

// DefaultConfig returns sensible defaults for Hub construction.
func DefaultConfig() Config {
	return Config{
		Port:              8090,
		Path:              "/ws",
		HeartbeatInterval: 30 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadLimit:         64 * 1024,
	}
}

// Hub is the WebSocket server side of the tracking subsystem. It owns every
// live connection, the subscription index and the liveness sweep. Events
// reach subscribers through PublishOrderUpdate, PublishAgentLocation and
// PublishNewOrder on the router.
type Hub struct {
	port              int
	path              string
	heartbeatInterval time.Duration
	writeTimeout      time.Duration
	readLimit         int64

	verifier    *auth.Verifier
	assignments assignment.Store

	sessions *sessionManager
	router   *Router
	upgrader websocket.Upgrader

	server *http.Server

	shutdown    chan struct{}
	done        chan struct{}
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex
	wg          *sync.WaitGroup

	metrics *Metrics
	logger  *slog.Logger
}

// NewHub creates a Hub from cfg. Zero values fall back to DefaultConfig.
func NewHub(cfg Config) *Hub {
	def := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	h := &Hub{
		port:              cfg.Port,
		path:              cfg.Path,
		heartbeatInterval: cfg.HeartbeatInterval,
		writeTimeout:      cfg.WriteTimeout,
		readLimit:         cfg.ReadLimit,
		verifier:          cfg.Verifier,
		assignments:       cfg.Assignments,
		sessions:          newSessionManager(),
		upgrader: websocket.Upgrader{
			// Browser clients connect from the marketplace web app; origin
			// enforcement belongs to the fronting proxy.
			CheckOrigin:     func(_ *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		metrics: newMetrics(cfg.MetricsRegistry),
		logger:  cfg.Logger.With("component", "track.hub"),
	}
	h.router = newRouter(h)
	return h
}

// Router returns the event entry point for publishers (the NATS bridge, the
// HTTP API, tests).
func (h *Hub) Router() *Router {
	return h.router
}

// Handler returns the WebSocket upgrade handler so the hub can be mounted on
// an external mux or an httptest server.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(h.handleWebSocket)
}

// Start launches the liveness sweep and, when a port is configured, the
// built-in HTTP server. Starting a running hub is a no-op.
func (h *Hub) Start(ctx context.Context) error {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return nil
	}
	if ctx == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Hub", "Start", "context cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "Hub", "Start", "context already cancelled")
	}
	if h.port != 0 && (h.port < 1024 || h.port > 65535) {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Hub", "Start",
			fmt.Sprintf("invalid port %d (out of range 1024-65535)", h.port))
	}

	h.shutdown = make(chan struct{})
	h.done = make(chan struct{})
	h.wg = &sync.WaitGroup{}

	if h.port != 0 {
		mux := http.NewServeMux()
		mux.HandleFunc(h.path, h.handleWebSocket)
		h.server = &http.Server{
			Addr:    fmt.Sprintf(":%d", h.port),
			Handler: mux,
		}
		h.wg.Add(1)
		go func(wg *sync.WaitGroup) {
			defer wg.Done()
			h.runServer()
		}(h.wg)
	}

	h.wg.Add(1)
	go func(wg *sync.WaitGroup, shutdown <-chan struct{}) {
		defer wg.Done()
		h.sweepLoop(ctx, shutdown)
	}(h.wg, h.shutdown)

	h.running = true
	h.startTime = time.Now()
	h.logger.Info("tracking hub started", "port", h.port, "path", h.path)

	return nil
}

// Stop closes the server, evicts every connection and waits for background
// goroutines up to timeout. Stopping a stopped hub is a no-op.
func (h *Hub) Stop(timeout time.Duration) error {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()

	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false

	if h.shutdown != nil {
		close(h.shutdown)
	}
	wg := h.wg
	server := h.server
	h.mu.Unlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			h.logger.Warn("http server shutdown error", "error", err)
		}
	}

	for _, s := range h.sessions.snapshot() {
		h.dropSession(s, "shutdown")
	}

	if wg != nil {
		waited := make(chan struct{})
		go func() {
			wg.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-time.After(timeout):
			h.logger.Warn("hub goroutines did not exit within timeout")
		}
	}

	h.mu.Lock()
	h.server = nil
	if h.done != nil {
		close(h.done)
		h.done = nil
	}
	h.shutdown = nil
	h.wg = nil
	h.mu.Unlock()

	h.logger.Info("tracking hub stopped", "uptime", time.Since(h.startTime).Round(time.Second))
	return nil
}

// Running reports whether the hub has been started and not yet stopped.
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	sessions, _ := h.sessions.counts()
	return sessions
}

func (h *Hub) runServer() {
	h.mu.RLock()
	server := h.server
	h.mu.RUnlock()
	if server == nil {
		return
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		h.logger.Error("http server failed", "error", err)
	}
}

// handleWebSocket upgrades the connection and registers a session. A missing
// or invalid token downgrades the connection to anonymous instead of
// rejecting it: customers track orders without accounts.
func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var identity *auth.Identity
	if h.verifier != nil {
		if token := r.URL.Query().Get("token"); token != "" {
			id, err := h.verifier.Verify(token)
			if err != nil {
				h.logger.Debug("token rejected, continuing anonymous", "error", err)
			} else {
				identity = id
			}
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("connection upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(h.readLimit)

	s := &session{
		id:              newConnID(),
		identity:        identity,
		sink:            newWSSink(conn, h.writeTimeout),
		connectedAt:     time.Now(),
		locationLimiter: rate.NewLimiter(rate.Limit(1), 5),
	}
	s.alive.Store(true)
	h.sessions.register(s)

	if identity != nil && identity.Role == auth.RoleAgent {
		h.sessions.bindAgent(identity.SubjectID, s.id)
	}

	if h.metrics != nil {
		h.metrics.connectionsTotal.Inc()
		h.metrics.connectionsActive.Set(float64(h.ConnectionCount()))
	}

	h.sendGreeting(s)

	h.mu.RLock()
	wg := h.wg
	h.mu.RUnlock()
	if wg != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.readLoop(conn, s)
		}()
	} else {
		// Handler mounted without Start; still serve the connection.
		go h.readLoop(conn, s)
	}
}

// sendGreeting confirms the connection and echoes the resolved identity.
func (h *Hub) sendGreeting(s *session) {
	greeting := Connected{Authenticated: s.identity != nil}
	if s.identity != nil {
		userID := s.identity.SubjectID
		greeting.UserID = &userID
	}
	data, err := EncodeEnvelope(MsgConnected, greeting)
	if err != nil {
		h.logger.Error("encode greeting failed", "error", err)
		return
	}
	if err := s.sink.writeMessage(data); err != nil {
		h.dropSession(s, "write_failed")
	}
}

// readLoop consumes inbound frames until the connection dies. Pongs refresh
// the liveness mark; everything else goes through the router.
func (h *Hub) readLoop(conn *websocket.Conn, s *session) {
	defer h.dropSession(s, "read_closed")

	conn.SetPongHandler(func(string) error {
		s.alive.Store(true)
		return nil
	})

	for {
		select {
		case <-h.shutdownChan():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		// Any inbound traffic proves the peer is alive.
		s.alive.Store(true)
		h.router.dispatch(s, data)
	}
}

func (h *Hub) shutdownChan() <-chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	// A nil channel never fires, which is correct for a handler mounted
	// without Start.
	return h.shutdown
}

// dropSession removes a session from every index and closes the socket.
// Safe to call from multiple paths; only the first caller does the work.
func (h *Hub) dropSession(s *session, reason string) {
	if s.closed.Swap(true) {
		// Already dropped elsewhere; the arena entry may still need removal.
		h.sessions.remove(s.id)
		return
	}
	h.sessions.remove(s.id)
	_ = s.sink.close()

	if h.metrics != nil {
		h.metrics.disconnectsTotal.WithLabelValues(reason).Inc()
		h.metrics.connectionsActive.Set(float64(h.ConnectionCount()))
		_, topics := h.sessions.counts()
		h.metrics.topicsActive.Set(float64(topics))
	}
	h.logger.Debug("connection closed",
		"conn", string(s.id),
		"reason", reason,
		"connectedFor", time.Since(s.connectedAt).Round(time.Millisecond))
}

// sweepLoop runs the mark and sweep liveness check. Each tick evicts every
// session that failed to answer the previous ping, then pings the rest. A
// dead peer is therefore gone within two heartbeat intervals.
func (h *Hub) sweepLoop(ctx context.Context, shutdown <-chan struct{}) {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-shutdown:
			return
		case <-ticker.C:
			h.sweepOnce()
		}
	}
}

func (h *Hub) sweepOnce() {
	for _, s := range h.sessions.snapshot() {
		if s.closed.Load() {
			h.sessions.remove(s.id)
			continue
		}
		if !s.alive.Load() {
			if h.metrics != nil {
				h.metrics.heartbeatEvictions.Inc()
			}
			h.dropSession(s, "heartbeat_timeout")
			continue
		}
		s.alive.Store(false)
		if err := s.sink.writePing(time.Now().Add(h.writeTimeout)); err != nil {
			h.dropSession(s, "ping_failed")
		}
	}
}
