// Package track implements the real-time order-tracking hub: a WebSocket
// fan-out server that propagates order-status transitions and delivery-agent
// positions to subscribed customers and agents.
//
// The hub is a relay, not a source of truth. Order state lives in the REST
// layer's database; the hub broadcasts whatever it is told, best-effort, with
// no persistence or replay. A client that connects after an event was sent
// never sees it.
package track

import (
	"encoding/json"
	"strings"
	"time"
)

// OrderStatus is the delivery lifecycle state carried in order_update events.
type OrderStatus string

const (
	StatusPlaced    OrderStatus = "placed"
	StatusAccepted  OrderStatus = "accepted"
	StatusPreparing OrderStatus = "preparing"
	StatusOnTheWay  OrderStatus = "on_the_way"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPlaced, StatusAccepted, StatusPreparing, StatusOnTheWay, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal state.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// InTransit reports whether agent position pings are meaningful for an order
// in this state.
func (s OrderStatus) InTransit() bool {
	return s == StatusAccepted || s == StatusPreparing || s == StatusOnTheWay
}

// CanTransition reports whether next is a legal forward move from s.
// The hub itself never enforces this - the REST layer owns the state machine
// and the hub relays whatever status it is handed. Exported as vocabulary for
// collaborators that do enforce it.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case StatusPlaced:
		return next == StatusAccepted || next == StatusCancelled
	case StatusAccepted:
		return next == StatusPreparing || next == StatusCancelled
	case StatusPreparing:
		return next == StatusOnTheWay
	case StatusOnTheWay:
		return next == StatusDelivered
	}
	return false
}

// Topic is a subscribable broadcast channel, derived from an order id or a
// delivery-area (location) id. Not stored anywhere; created on first
// subscribe, dropped when its last subscriber leaves.
type Topic string

const (
	orderTopicPrefix = "order:"
	areaTopicPrefix  = "area:"
)

// OrderTopic returns the status/location stream topic for one order.
func OrderTopic(orderID string) Topic {
	return Topic(orderTopicPrefix + orderID)
}

// AreaTopic returns the new-order stream topic for one delivery area.
func AreaTopic(locationID string) Topic {
	return Topic(areaTopicPrefix + locationID)
}

// OrderID returns the order id for an order topic.
func (t Topic) OrderID() (string, bool) {
	id, ok := strings.CutPrefix(string(t), orderTopicPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Message types on the wire. Every frame is {"type": ..., "payload": ...}.
const (
	// Client -> server
	MsgSubscribeOrder      = "subscribe_order"
	MsgUnsubscribeOrder    = "unsubscribe_order"
	MsgSubscribeNewOrders  = "subscribe_new_orders"
	MsgUnsubscribeNewOrder = "unsubscribe_new_orders"
	MsgAgentLocationUpdate = "agent_location_update"
	MsgOrderStatusChange   = "order_status_change"

	// Server -> client
	MsgConnected     = "connected"
	MsgOrderUpdate   = "order_update"
	MsgAgentLocation = "agent_location"
	MsgNewOrder      = "new_order"
)

// Envelope is the wire frame shared by both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeEnvelope marshals payload and wraps it in an Envelope.
func EncodeEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// GeoPoint is a GPS coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// OrderUpdate is the order_update event payload: one status transition.
type OrderUpdate struct {
	OrderID       string      `json:"orderId"`
	Status        OrderStatus `json:"status"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	AgentID       string      `json:"agentId,omitempty"`
	AgentName     string      `json:"agentName,omitempty"`
	AgentLocation *GeoPoint   `json:"agentLocation,omitempty"`
}

// AgentLocation is the agent_location event payload: one position ping,
// independent of status transitions.
type AgentLocation struct {
	OrderID   string    `json:"orderId"`
	AgentID   string    `json:"agentId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewOrder is the new_order event payload, broadcast to agents watching a
// delivery area when a customer places an order there.
type NewOrder struct {
	OrderID     string    `json:"orderId"`
	LocationID  string    `json:"locationId"`
	VendorName  string    `json:"vendorName,omitempty"`
	TotalAmount float64   `json:"totalAmount"`
	PlacedAt    time.Time `json:"placedAt"`
}

// Connected is sent once per connection immediately after the handshake,
// acknowledging identity. UserID is null for anonymous peers.
type Connected struct {
	UserID        *string `json:"userId"`
	Authenticated bool    `json:"authenticated"`
}

// Client -> server payloads.

// SubscribeOrderPayload is the payload of subscribe_order / unsubscribe_order.
type SubscribeOrderPayload struct {
	OrderID string `json:"orderId"`
}

// SubscribeAreaPayload is the payload of subscribe_new_orders /
// unsubscribe_new_orders.
type SubscribeAreaPayload struct {
	LocationID string `json:"locationId"`
}

// AgentLocationUpdatePayload is the payload of agent_location_update.
type AgentLocationUpdatePayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// StatusChangePayload is the payload of order_status_change.
type StatusChangePayload struct {
	OrderID string      `json:"orderId"`
	Status  OrderStatus `json:"status"`
}
