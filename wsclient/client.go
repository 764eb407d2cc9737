// Package wsclient is the Go client for the tracking hub: it maintains the
// WebSocket connection (reconnect with backoff, pending sends queued while
// offline) and dispatches incoming events to typed subscribers.
package wsclient

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sivakumar999/village-eats/errors"
	"github.com/sivakumar999/village-eats/pkg/queue"
	"github.com/sivakumar999/village-eats/pkg/retry"
	"github.com/sivakumar999/village-eats/track"
)

// Config holds construction parameters for the Client.
type Config struct {
	URL   string // ws:// or wss:// endpoint
	Token string // Optional JWT, appended as ?token=

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Reconnect        retry.Config // Zero value falls back to retry.Reconnect()
	Logger           *slog.Logger
}

// Client is a tracking hub client connection. All methods are safe for
// concurrent use. Send never blocks on a dead connection: frames queue until
// the link is back.
type Client struct {
	url              string
	token            string
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	reconnect        retry.Config
	logger           *slog.Logger

	dialer *websocket.Dialer

	// sendMu orders writes and guards the conn/pending handoff: the pending
	// queue flushes to a fresh connection before any new Send can write, so
	// queued frames keep their order.
	sendMu  sync.Mutex
	conn    *websocket.Conn
	pending queue.Queue[outFrame]

	stateMu           sync.Mutex
	connecting        bool
	suppressReconnect bool
	reconnectAttempts int

	handlersMu         sync.Mutex
	nextHandlerID      int
	messageHandlers    map[string]map[int]func(json.RawMessage)
	connectHandlers    map[int]func()
	disconnectHandlers map[int]func()
}

type outFrame struct {
	msgType string
	payload any
}

// New creates a Client. No connection is attempted until Connect.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Client", "New", "url cannot be empty")
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Reconnect.MaxAttempts == 0 {
		cfg.Reconnect = retry.Reconnect()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		url:              cfg.URL,
		token:            cfg.Token,
		handshakeTimeout: cfg.HandshakeTimeout,
		writeTimeout:     cfg.WriteTimeout,
		reconnect:        cfg.Reconnect,
		logger:           cfg.Logger.With("component", "wsclient"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		messageHandlers:    make(map[string]map[int]func(json.RawMessage)),
		connectHandlers:    make(map[int]func()),
		disconnectHandlers: make(map[int]func()),
	}, nil
}

// Connect dials the hub. A call while already connected or while a dial is
// in flight is a no-op. On success the pending queue is flushed in order and
// the read pump starts. Connect also lifts any previous Disconnect, so a
// login cycle can reuse the same Client.
func (c *Client) Connect() error {
	return c.connect(false)
}

func (c *Client) connect(auto bool) error {
	c.stateMu.Lock()
	if auto && c.suppressReconnect {
		c.stateMu.Unlock()
		return nil
	}
	c.suppressReconnect = false
	if c.connecting || c.isConnected() {
		c.stateMu.Unlock()
		return nil
	}
	c.connecting = true
	c.stateMu.Unlock()

	err := c.dial()

	c.stateMu.Lock()
	c.connecting = false
	if err == nil {
		c.reconnectAttempts = 0
	}
	c.stateMu.Unlock()

	if err != nil {
		c.scheduleReconnect()
		return errors.WrapTransient(err, "Client", "Connect", "dial "+c.url)
	}
	return nil
}

func (c *Client) dial() error {
	url := c.url
	if c.token != "" {
		url += "?token=" + c.token
	}

	conn, resp, err := c.dialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return err
	}

	// Hold sendMu across the conn swap and the flush so nothing can jump
	// ahead of queued frames.
	c.sendMu.Lock()
	c.conn = conn
	flushErr := c.flushPendingLocked()
	c.sendMu.Unlock()

	if flushErr != nil {
		c.logger.Warn("pending flush failed", "error", flushErr)
	}

	c.notifyConnect()
	go c.readPump(conn)

	c.logger.Info("connected", "url", c.url)
	return nil
}

func (c *Client) flushPendingLocked() error {
	for {
		frame, ok := c.pending.Pop()
		if !ok {
			return nil
		}
		if err := c.writeFrameLocked(frame); err != nil {
			// Put it back for the next connection.
			c.pending.Requeue([]outFrame{frame})
			return err
		}
	}
}

func (c *Client) writeFrameLocked(frame outFrame) error {
	data, err := track.EncodeEnvelope(frame.msgType, frame.payload)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Send transmits a frame, or queues it when the connection is down. Queued
// frames flush in FIFO order on the next successful connect.
func (c *Client) Send(msgType string, payload any) {
	frame := outFrame{msgType: msgType, payload: payload}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.conn == nil {
		c.pending.Push(frame)
		return
	}
	if err := c.writeFrameLocked(frame); err != nil {
		c.logger.Debug("send failed, queueing", "type", msgType, "error", err)
		c.pending.Push(frame)
	}
}

// IsConnected reports whether the link is currently up.
func (c *Client) IsConnected() bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.conn != nil
}

func (c *Client) isConnected() bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.conn != nil
}

// Disconnect closes the connection and suppresses automatic reconnection.
// A later Connect opens a fresh connection.
func (c *Client) Disconnect() {
	c.stateMu.Lock()
	c.suppressReconnect = true
	// Exhaust the budget so an in-flight reconnect gives up.
	c.reconnectAttempts = c.reconnect.MaxAttempts
	c.stateMu.Unlock()

	c.sendMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.sendMu.Unlock()
}

// readPump consumes frames until the connection dies, then kicks off
// reconnection.
func (c *Client) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		c.dispatch(data)
	}

	c.sendMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.sendMu.Unlock()
	_ = conn.Close()

	c.notifyDisconnect()
	c.scheduleReconnect()
}

// scheduleReconnect retries the dial on the linear backoff schedule until
// the attempt budget runs out. The counter resets on every successful
// connect.
func (c *Client) scheduleReconnect() {
	c.stateMu.Lock()
	if c.suppressReconnect || c.connecting || c.reconnectAttempts >= c.reconnect.MaxAttempts {
		c.stateMu.Unlock()
		return
	}
	c.reconnectAttempts++
	attempt := c.reconnectAttempts
	c.stateMu.Unlock()

	delay := c.reconnect.Delay(attempt)
	c.logger.Info("reconnecting", "attempt", attempt, "max", c.reconnect.MaxAttempts, "delay", delay)

	time.AfterFunc(delay, func() {
		if err := c.connect(true); err != nil {
			c.logger.Debug("reconnect attempt failed", "attempt", attempt, "error", err)
		}
	})
}

// dispatch decodes a frame and fans it out to the handlers registered for
// its type. Malformed frames are dropped.
func (c *Client) dispatch(data []byte) {
	var env track.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Debug("dropping malformed frame", "error", err)
		return
	}

	c.handlersMu.Lock()
	registered := c.messageHandlers[env.Type]
	handlers := make([]func(json.RawMessage), 0, len(registered))
	for _, h := range registered {
		handlers = append(handlers, h)
	}
	c.handlersMu.Unlock()

	for _, h := range handlers {
		h(env.Payload)
	}
}

// on registers a raw handler for a message type and returns its remover.
func (c *Client) on(msgType string, handler func(json.RawMessage)) func() {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	id := c.nextHandlerID
	c.nextHandlerID++
	if c.messageHandlers[msgType] == nil {
		c.messageHandlers[msgType] = make(map[int]func(json.RawMessage))
	}
	c.messageHandlers[msgType][id] = handler

	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()
		delete(c.messageHandlers[msgType], id)
	}
}

// OnConnect registers a handler invoked after every successful connect,
// including reconnects. Returns an unsubscribe func.
func (c *Client) OnConnect(handler func()) func() {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	id := c.nextHandlerID
	c.nextHandlerID++
	c.connectHandlers[id] = handler
	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()
		delete(c.connectHandlers, id)
	}
}

// OnDisconnect registers a handler invoked when the link drops.
func (c *Client) OnDisconnect(handler func()) func() {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	id := c.nextHandlerID
	c.nextHandlerID++
	c.disconnectHandlers[id] = handler
	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()
		delete(c.disconnectHandlers, id)
	}
}

func (c *Client) notifyConnect() {
	for _, h := range c.snapshotConnHandlers(true) {
		h()
	}
}

func (c *Client) notifyDisconnect() {
	for _, h := range c.snapshotConnHandlers(false) {
		h()
	}
}

func (c *Client) snapshotConnHandlers(connect bool) []func() {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	src := c.disconnectHandlers
	if connect {
		src = c.connectHandlers
	}
	out := make([]func(), 0, len(src))
	for _, h := range src {
		out = append(out, h)
	}
	return out
}

// OnConnected registers a typed handler for the post-handshake greeting.
func (c *Client) OnConnected(handler func(track.Connected)) func() {
	return c.on(track.MsgConnected, func(payload json.RawMessage) {
		var greeting track.Connected
		if err := json.Unmarshal(payload, &greeting); err != nil {
			return
		}
		handler(greeting)
	})
}

// OnOrderUpdate registers a typed handler for order status transitions.
func (c *Client) OnOrderUpdate(handler func(track.OrderUpdate)) func() {
	return c.on(track.MsgOrderUpdate, func(payload json.RawMessage) {
		var update track.OrderUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			return
		}
		handler(update)
	})
}

// OnAgentLocation registers a typed handler for agent position pings.
func (c *Client) OnAgentLocation(handler func(track.AgentLocation)) func() {
	return c.on(track.MsgAgentLocation, func(payload json.RawMessage) {
		var loc track.AgentLocation
		if err := json.Unmarshal(payload, &loc); err != nil {
			return
		}
		handler(loc)
	})
}

// OnNewOrder registers a typed handler for new-order notifications.
func (c *Client) OnNewOrder(handler func(track.NewOrder)) func() {
	return c.on(track.MsgNewOrder, func(payload json.RawMessage) {
		var order track.NewOrder
		if err := json.Unmarshal(payload, &order); err != nil {
			return
		}
		handler(order)
	})
}

// PendingCount returns the number of frames waiting for a connection.
func (c *Client) PendingCount() int {
	return c.pending.Len()
}
