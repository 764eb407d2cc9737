// Package villageeats provides the real-time order tracking subsystem for a
// village-local food delivery marketplace.
//
// # Architecture
//
// The system is a best-effort fan-out relay between the marketplace's REST
// layer (the source of truth for orders) and the browsers and phones watching
// those orders live:
//
//	┌──────────────┐  orders.updated   ┌──────────────┐   order_update
//	│  REST layer  │ ───── NATS ─────▶ │  track.Hub   │ ── WebSocket ──▶ customers
//	│ (not here)   │  orders.created   │  (trackerd)  │   agent_location    agents
//	└──────────────┘                   └──────────────┘   new_order        vendors
//
// Events flow one way and are never stored: a client that connects after a
// transition was broadcast has to fetch current state over REST.
//
// Packages:
//   - track: the hub - connection registry, subscription index, event router
//     and liveness monitor.
//   - wsclient: the Go client - reconnecting transport with a pending send
//     queue plus the typed order tracking API.
//   - bridge: NATS ingress feeding the hub from the REST layer.
//   - assignment: agent-to-order assignment lookup (Redis or in-memory),
//     used to scope agent position broadcasts.
//   - auth: connect-time token verification; failures downgrade to anonymous
//     instead of rejecting, because customers track orders without accounts.
//   - natsclient, metric, config, errors, pkg/retry, pkg/queue: supporting
//     infrastructure.
//
// The trackerd daemon in cmd/trackerd wires it all together.
package villageeats
