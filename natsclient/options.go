package natsclient

import (
	"log/slog"
	"time"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithName sets the client name reported to the server.
func WithName(name string) ClientOption {
	return func(c *Client) { c.clientName = name }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxReconnects sets the reconnect attempt budget. Negative means
// unlimited.
func WithMaxReconnects(n int) ClientOption {
	return func(c *Client) { c.maxReconnects = n }
}

// WithReconnectWait sets the delay between reconnect attempts.
func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *Client) { c.reconnectWait = d }
}

// WithPingInterval sets the server ping cadence.
func WithPingInterval(d time.Duration) ClientOption {
	return func(c *Client) { c.pingInterval = d }
}

// WithTimeout sets the dial timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithDisconnectHandler registers a callback for connection loss.
func WithDisconnectHandler(fn func(error)) ClientOption {
	return func(c *Client) { c.onDisconnect = fn }
}

// WithReconnectHandler registers a callback for successful reconnects.
func WithReconnectHandler(fn func()) ClientOption {
	return func(c *Client) { c.onReconnect = fn }
}
