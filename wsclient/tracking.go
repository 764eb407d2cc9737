package wsclient

import (
	"sync"
	"time"

	"github.com/sivakumar999/village-eats/track"
)

// OrderStatusUpdate is one status transition enriched with the per-status
// timestamps accumulated over the order's lifetime on this client. The
// derived fields fill in as transitions arrive; an update for a status never
// clears a timestamp set by an earlier one.
type OrderStatusUpdate struct {
	track.OrderUpdate

	AcceptedAt  *time.Time
	PreparedAt  *time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

// orderTimeline accumulates per-status timestamps for one order.
type orderTimeline struct {
	acceptedAt  *time.Time
	preparedAt  *time.Time
	pickedUpAt  *time.Time
	deliveredAt *time.Time
	cancelledAt *time.Time
}

func (tl *orderTimeline) record(update track.OrderUpdate) {
	ts := update.UpdatedAt
	switch update.Status {
	case track.StatusAccepted:
		tl.acceptedAt = &ts
	case track.StatusPreparing:
		tl.preparedAt = &ts
	case track.StatusOnTheWay:
		tl.pickedUpAt = &ts
	case track.StatusDelivered:
		tl.deliveredAt = &ts
	case track.StatusCancelled:
		tl.cancelledAt = &ts
	}
}

func (tl *orderTimeline) enrich(update track.OrderUpdate) OrderStatusUpdate {
	return OrderStatusUpdate{
		OrderUpdate: update,
		AcceptedAt:  tl.acceptedAt,
		PreparedAt:  tl.preparedAt,
		PickedUpAt:  tl.pickedUpAt,
		DeliveredAt: tl.deliveredAt,
		CancelledAt: tl.cancelledAt,
	}
}

// Tracker layers the order tracking API over a Client: per-order status
// subscriptions with derived timestamps, agent position watching and the
// agent-side announcements.
type Tracker struct {
	client *Client

	mu        sync.Mutex
	timelines map[string]*orderTimeline
}

// NewTracker creates a Tracker over an existing client connection.
func NewTracker(client *Client) *Tracker {
	return &Tracker{
		client:    client,
		timelines: make(map[string]*orderTimeline),
	}
}

// Client returns the underlying transport.
func (t *Tracker) Client() *Client { return t.client }

// SubscribeOrderStatus subscribes to one order's status stream. The callback
// receives every transition for that order, enriched with the accumulated
// per-status timestamps. The returned func unsubscribes server-side and
// removes the handler.
func (t *Tracker) SubscribeOrderStatus(orderID string, callback func(OrderStatusUpdate)) func() {
	t.client.Send(track.MsgSubscribeOrder, track.SubscribeOrderPayload{OrderID: orderID})

	remove := t.client.OnOrderUpdate(func(update track.OrderUpdate) {
		if update.OrderID != orderID {
			return
		}
		t.mu.Lock()
		tl := t.timelines[orderID]
		if tl == nil {
			tl = &orderTimeline{}
			t.timelines[orderID] = tl
		}
		tl.record(update)
		enriched := tl.enrich(update)
		t.mu.Unlock()

		callback(enriched)
	})

	return func() {
		t.client.Send(track.MsgUnsubscribeOrder, track.SubscribeOrderPayload{OrderID: orderID})
		remove()
		t.mu.Lock()
		delete(t.timelines, orderID)
		t.mu.Unlock()
	}
}

// SubscribeAgentLocation watches position pings for one order. Purely local:
// the pings ride the order subscription opened by SubscribeOrderStatus, so
// this only filters the stream.
func (t *Tracker) SubscribeAgentLocation(orderID string, callback func(track.AgentLocation)) func() {
	return t.client.OnAgentLocation(func(loc track.AgentLocation) {
		if loc.OrderID == orderID {
			callback(loc)
		}
	})
}

// SubscribeAreaOrders subscribes an agent to new-order notifications for a
// delivery area.
func (t *Tracker) SubscribeAreaOrders(locationID string, callback func(track.NewOrder)) func() {
	t.client.Send(track.MsgSubscribeNewOrders, track.SubscribeAreaPayload{LocationID: locationID})

	remove := t.client.OnNewOrder(callback)

	return func() {
		t.client.Send(track.MsgUnsubscribeNewOrder, track.SubscribeAreaPayload{LocationID: locationID})
		remove()
	}
}

// PushAgentLocation announces the agent's current position.
func (t *Tracker) PushAgentLocation(latitude, longitude float64) {
	t.client.Send(track.MsgAgentLocationUpdate, track.AgentLocationUpdatePayload{
		Latitude:  latitude,
		Longitude: longitude,
	})
}

// PushStatusChange announces an order status transition.
func (t *Tracker) PushStatusChange(orderID string, status track.OrderStatus) {
	t.client.Send(track.MsgOrderStatusChange, track.StatusChangePayload{
		OrderID: orderID,
		Status:  status,
	})
}
