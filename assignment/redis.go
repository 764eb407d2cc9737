package assignment

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sivakumar999/village-eats/errors"
)

// DefaultKeyPrefix namespaces assignment sets in a shared Redis.
const DefaultKeyPrefix = "villageeats:agent:"

// RedisStore reads agent assignments from Redis sets maintained by the REST
// layer (one set per agent, keyed "<prefix><agentID>:orders").
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore creates a RedisStore over an existing client.
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) key(agentID string) string {
	return fmt.Sprintf("%s%s:orders", s.keyPrefix, agentID)
}

// ActiveOrderIDs implements Store.
func (s *RedisStore) ActiveOrderIDs(ctx context.Context, agentID string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.key(agentID)).Result()
	if err != nil {
		return nil, errors.WrapTransient(err, "RedisStore", "ActiveOrderIDs", "read assignment set")
	}
	return ids, nil
}

// Assign records an active assignment. Exposed for single-process wiring
// where the REST layer shares the tracker's Redis client.
func (s *RedisStore) Assign(ctx context.Context, agentID, orderID string) error {
	if err := s.client.SAdd(ctx, s.key(agentID), orderID).Err(); err != nil {
		return errors.WrapTransient(err, "RedisStore", "Assign", "add to assignment set")
	}
	return nil
}

// Complete removes an assignment once the order reaches a terminal state.
func (s *RedisStore) Complete(ctx context.Context, agentID, orderID string) error {
	if err := s.client.SRem(ctx, s.key(agentID), orderID).Err(); err != nil {
		return errors.WrapTransient(err, "RedisStore", "Complete", "remove from assignment set")
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
var _ Store = (*MemoryStore)(nil)
