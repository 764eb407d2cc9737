// Package bridge feeds order events from NATS into the tracking hub. The
// REST layer publishes a JSON event when an order is created or changes
// status; the bridge decodes it and fans it out to WebSocket subscribers.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sivakumar999/village-eats/errors"
	"github.com/sivakumar999/village-eats/natsclient"
	"github.com/sivakumar999/village-eats/track"
)

// NATS subjects the REST layer publishes on.
const (
	SubjectOrderUpdated = "orders.updated"
	SubjectOrderCreated = "orders.created"
)

// Publisher is the slice of the hub router the bridge needs.
type Publisher interface {
	PublishOrderUpdate(update track.OrderUpdate) int
	PublishNewOrder(order track.NewOrder) int
}

// Bridge subscribes to order subjects and relays events to the hub.
type Bridge struct {
	client    *natsclient.Client
	publisher Publisher
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
}

// New creates a Bridge. The NATS client must already be connected before
// Start is called.
func New(client *natsclient.Client, publisher Publisher, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		client:    client,
		publisher: publisher,
		logger:    logger.With("component", "bridge"),
	}
}

// Start subscribes to the order subjects. Starting a running bridge is a
// no-op.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}
	if b.client == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Bridge", "Start", "nats client required")
	}

	if err := b.client.Subscribe(ctx, SubjectOrderUpdated, b.handleOrderUpdated); err != nil {
		return errors.Wrap(err, "Bridge", "Start", "subscribe "+SubjectOrderUpdated)
	}
	if err := b.client.Subscribe(ctx, SubjectOrderCreated, b.handleOrderCreated); err != nil {
		return errors.Wrap(err, "Bridge", "Start", "subscribe "+SubjectOrderCreated)
	}

	b.running = true
	b.logger.Info("bridge started", "subjects", []string{SubjectOrderUpdated, SubjectOrderCreated})
	return nil
}

// Stop marks the bridge stopped. Subscriptions are torn down with the NATS
// client.
func (b *Bridge) Stop(time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = false
	return nil
}

func (b *Bridge) handleOrderUpdated(_ context.Context, data []byte) {
	var update track.OrderUpdate
	if err := json.Unmarshal(data, &update); err != nil || update.OrderID == "" {
		b.logger.Warn("dropping malformed order update", "error", err)
		return
	}
	delivered := b.publisher.PublishOrderUpdate(update)
	b.logger.Debug("relayed order update",
		"order", update.OrderID, "status", string(update.Status), "delivered", delivered)
}

func (b *Bridge) handleOrderCreated(_ context.Context, data []byte) {
	var order track.NewOrder
	if err := json.Unmarshal(data, &order); err != nil || order.OrderID == "" || order.LocationID == "" {
		b.logger.Warn("dropping malformed new order", "error", err)
		return
	}
	delivered := b.publisher.PublishNewOrder(order)
	b.logger.Debug("relayed new order",
		"order", order.OrderID, "location", order.LocationID, "delivered", delivered)
}
