package track

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sivakumar999/village-eats/auth"
)

// Router dispatches inbound client frames and exposes the publish API for
// event producers (the NATS bridge and the REST layer). All fan-out is
// best-effort: a dead subscriber never fails a publish.
type Router struct {
	hub *Hub
}

func newRouter(h *Hub) *Router {
	return &Router{hub: h}
}

// dispatch routes one inbound frame. Malformed and unknown frames are dropped
// without closing the connection, matching the forgiveness the browser client
// expects.
func (r *Router) dispatch(s *session, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.dropFrame("malformed")
		return
	}

	if r.hub.metrics != nil {
		r.hub.metrics.messagesReceived.WithLabelValues(env.Type).Inc()
	}

	switch env.Type {
	case MsgSubscribeOrder:
		r.handleSubscribeOrder(s, env.Payload, true)
	case MsgUnsubscribeOrder:
		r.handleSubscribeOrder(s, env.Payload, false)
	case MsgSubscribeNewOrders:
		r.handleSubscribeArea(s, env.Payload, true)
	case MsgUnsubscribeNewOrder:
		r.handleSubscribeArea(s, env.Payload, false)
	case MsgAgentLocationUpdate:
		r.handleAgentLocation(s, env.Payload)
	case MsgOrderStatusChange:
		r.handleStatusChange(s, env.Payload)
	default:
		r.hub.logger.Debug("unknown message type", "type", env.Type)
		r.dropFrame("unknown_type")
	}
}

func (r *Router) dropFrame(reason string) {
	if r.hub.metrics != nil {
		r.hub.metrics.messagesDropped.WithLabelValues(reason).Inc()
	}
}

func (r *Router) handleSubscribeOrder(s *session, payload json.RawMessage, subscribe bool) {
	var p SubscribeOrderPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.OrderID == "" {
		r.dropFrame("bad_payload")
		return
	}
	if subscribe {
		r.hub.sessions.subscribe(s.id, OrderTopic(p.OrderID))
	} else {
		r.hub.sessions.unsubscribe(s.id, OrderTopic(p.OrderID))
	}
	r.updateTopicGauge()
}

func (r *Router) handleSubscribeArea(s *session, payload json.RawMessage, subscribe bool) {
	var p SubscribeAreaPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.LocationID == "" {
		r.dropFrame("bad_payload")
		return
	}
	if subscribe {
		r.hub.sessions.subscribe(s.id, AreaTopic(p.LocationID))
	} else {
		r.hub.sessions.unsubscribe(s.id, AreaTopic(p.LocationID))
	}
	r.updateTopicGauge()
}

func (r *Router) updateTopicGauge() {
	if r.hub.metrics != nil {
		_, topics := r.hub.sessions.counts()
		r.hub.metrics.topicsActive.Set(float64(topics))
	}
}

// handleAgentLocation relays a position ping from an agent connection to the
// watchers of that agent's active orders. Anonymous connections cannot speak
// for an agent, so their pings are dropped. Pings above the per-connection
// rate are shed silently; GPS jitter at 1 Hz is plenty for a village map.
func (r *Router) handleAgentLocation(s *session, payload json.RawMessage) {
	agentID := s.agentID()
	if agentID == "" {
		r.dropFrame("anonymous_agent")
		return
	}
	if s.locationLimiter != nil && !s.locationLimiter.Allow() {
		r.dropFrame("rate_limited")
		return
	}

	var p AgentLocationUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.dropFrame("bad_payload")
		return
	}

	orderIDs := r.scopeForAgent(agentID)
	for _, orderID := range orderIDs {
		event := AgentLocation{
			OrderID:   orderID,
			AgentID:   agentID,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			UpdatedAt: time.Now().UTC(),
		}
		r.PublishAgentLocation(event)
	}
}

// scopeForAgent resolves which orders an agent's position ping should reach.
// With an assignment store wired, only the agent's active orders receive it.
// Without one, the hub falls back to every order anyone is currently
// tracking; the frame carries the agent id so clients can filter.
func (r *Router) scopeForAgent(agentID string) []string {
	if r.hub.assignments != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ids, err := r.hub.assignments.ActiveOrderIDs(ctx, agentID)
		if err != nil {
			r.hub.logger.Warn("assignment lookup failed, widening broadcast",
				"agent", agentID, "error", err)
			return r.hub.sessions.trackedOrderIDs()
		}
		return ids
	}
	return r.hub.sessions.trackedOrderIDs()
}

// handleStatusChange relays a status transition announced over the socket.
// The hub does not enforce the order state machine; the REST layer owns it
// and clients receive whatever was announced.
func (r *Router) handleStatusChange(s *session, payload json.RawMessage) {
	var p StatusChangePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.OrderID == "" {
		r.dropFrame("bad_payload")
		return
	}
	update := OrderUpdate{
		OrderID:   p.OrderID,
		Status:    p.Status,
		UpdatedAt: time.Now().UTC(),
	}
	if s.identity != nil && s.identity.Role == auth.RoleAgent {
		update.AgentID = s.identity.SubjectID
	}
	r.PublishOrderUpdate(update)
}

// PublishOrderUpdate fans a status transition out to the order's watchers.
// Returns the number of frames delivered.
func (r *Router) PublishOrderUpdate(update OrderUpdate) int {
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = time.Now().UTC()
	}
	return r.broadcast(MsgOrderUpdate, OrderTopic(update.OrderID), update)
}

// PublishAgentLocation fans a position ping out to one order's watchers.
func (r *Router) PublishAgentLocation(event AgentLocation) int {
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = time.Now().UTC()
	}
	return r.broadcast(MsgAgentLocation, OrderTopic(event.OrderID), event)
}

// PublishNewOrder notifies agents watching the order's delivery area.
func (r *Router) PublishNewOrder(order NewOrder) int {
	return r.broadcast(MsgNewOrder, AreaTopic(order.LocationID), order)
}

func (r *Router) broadcast(msgType string, topic Topic, payload any) int {
	start := time.Now()

	data, err := EncodeEnvelope(msgType, payload)
	if err != nil {
		r.hub.logger.Error("encode event failed", "type", msgType, "error", err)
		return 0
	}

	if r.hub.metrics != nil {
		r.hub.metrics.eventsPublished.WithLabelValues(msgType).Inc()
	}

	delivered := r.hub.sessions.publish(topic, data)

	if r.hub.metrics != nil {
		r.hub.metrics.framesDelivered.WithLabelValues(msgType).Add(float64(delivered))
		r.hub.metrics.broadcastDuration.WithLabelValues(msgType).Observe(time.Since(start).Seconds())
	}
	return delivered
}
