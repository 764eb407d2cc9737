// Package assignment exposes the order-assignment collaborator the hub uses
// to scope agent position broadcasts to the orders an agent is actually
// delivering. The REST layer owns assignments; this package only reads them.
package assignment

import (
	"context"
	"sync"
)

// Store answers "which orders is this agent currently delivering".
type Store interface {
	// ActiveOrderIDs returns the ids of the agent's in-flight orders.
	// An unknown agent yields an empty slice, not an error.
	ActiveOrderIDs(ctx context.Context, agentID string) ([]string, error)
}

// MemoryStore is an in-process Store for tests and single-process wiring
// where the REST layer shares the tracker's address space.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]map[string]struct{} // agentID -> set of orderIDs
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]map[string]struct{})}
}

// Assign records an order as actively assigned to an agent.
func (s *MemoryStore) Assign(agentID, orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orders[agentID] == nil {
		s.orders[agentID] = make(map[string]struct{})
	}
	s.orders[agentID][orderID] = struct{}{}
}

// Complete removes an order from an agent's active set (delivered or
// cancelled).
func (s *MemoryStore) Complete(agentID, orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set := s.orders[agentID]; set != nil {
		delete(set, orderID)
		if len(set) == 0 {
			delete(s.orders, agentID)
		}
	}
}

// ActiveOrderIDs implements Store.
func (s *MemoryStore) ActiveOrderIDs(_ context.Context, agentID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.orders[agentID]
	if len(set) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids, nil
}
