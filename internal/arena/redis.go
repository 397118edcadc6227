package arena

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisPairStore keeps pending pairs in Redis so sessions survive process
// restarts. Expiry rides on the key TTL.
type RedisPairStore struct {
	client *redis.Client
	prefix string
}

// NewRedisPairStore constructs a RedisPairStore.
func NewRedisPairStore(client *redis.Client, prefix string) *RedisPairStore {
	return &RedisPairStore{client: client, prefix: strings.TrimSpace(prefix)}
}

func (s *RedisPairStore) key(sessionID string) string {
	if s.prefix == "" {
		return "arena:pair:" + sessionID
	}
	return s.prefix + ":arena:pair:" + sessionID
}

// Put stores the pending pair for a session, replacing any unvoted one.
func (s *RedisPairStore) Put(ctx context.Context, sessionID string, pair Pair) error {
	payload, errMarshal := json.Marshal(pair)
	if errMarshal != nil {
		return fmt.Errorf("arena: marshal pair: %w", errMarshal)
	}
	if errSet := s.client.Set(ctx, s.key(sessionID), payload, pendingPairTTL).Err(); errSet != nil {
		return fmt.Errorf("arena: store pair: %w", errSet)
	}
	return nil
}

// Get returns the pending pair for a session, if any. A corrupt payload is
// reported as an error, not a pair.
func (s *RedisPairStore) Get(ctx context.Context, sessionID string) (Pair, bool, error) {
	raw, errGet := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errGet == redis.Nil {
		return Pair{}, false, nil
	}
	if errGet != nil {
		return Pair{}, false, fmt.Errorf("arena: load pair: %w", errGet)
	}
	return decodePair(raw)
}

// Take removes and returns the pending pair for a session. GETDEL makes the
// fetch and the delete one server-side step, so only one of two concurrent
// takers wins. A corrupt payload is already gone by the time it is reported.
func (s *RedisPairStore) Take(ctx context.Context, sessionID string) (Pair, bool, error) {
	raw, errGet := s.client.GetDel(ctx, s.key(sessionID)).Bytes()
	if errGet == redis.Nil {
		return Pair{}, false, nil
	}
	if errGet != nil {
		return Pair{}, false, fmt.Errorf("arena: take pair: %w", errGet)
	}
	return decodePair(raw)
}

func decodePair(raw []byte) (Pair, bool, error) {
	var pair Pair
	if errUnmarshal := json.Unmarshal(raw, &pair); errUnmarshal != nil {
		return Pair{}, false, fmt.Errorf("arena: decode pair: %w", errUnmarshal)
	}
	return pair, true, nil
}
