package assignment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AssignAndQuery(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Assign("agent-1", "order-1")
	store.Assign("agent-1", "order-2")
	store.Assign("agent-2", "order-3")

	ids, err := store.ActiveOrderIDs(ctx, "agent-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"order-1", "order-2"}, ids)

	ids, err = store.ActiveOrderIDs(ctx, "agent-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"order-3"}, ids)
}

func TestMemoryStore_UnknownAgent(t *testing.T) {
	store := NewMemoryStore()

	ids, err := store.ActiveOrderIDs(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryStore_Complete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Assign("agent-1", "order-1")
	store.Assign("agent-1", "order-2")
	store.Complete("agent-1", "order-1")

	ids, err := store.ActiveOrderIDs(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"order-2"}, ids)

	// Completing the last order drops the agent entry entirely
	store.Complete("agent-1", "order-2")
	ids, err = store.ActiveOrderIDs(ctx, "agent-1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryStore_CompleteUnknownIsNoop(t *testing.T) {
	store := NewMemoryStore()
	store.Complete("agent-1", "order-1")

	ids, err := store.ActiveOrderIDs(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_KeyNaming(t *testing.T) {
	store := NewRedisStore(nil, "")
	assert.Equal(t, "villageeats:agent:agent-9:orders", store.key("agent-9"))

	store = NewRedisStore(nil, "test:")
	assert.Equal(t, "test:agent-9:orders", store.key("agent-9"))
}
