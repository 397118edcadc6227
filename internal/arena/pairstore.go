package arena

import (
	"context"
	"sync"
	"time"
)

// pendingPairTTL bounds how long an unvoted pair survives. An abandoned
// round simply expires.
const pendingPairTTL = 24 * time.Hour

// Pair is the ephemeral per-session state of an arena round awaiting a vote.
// It stores plain model ids, not live handles, so it can survive a process
// restart when kept in an external store.
type Pair struct {
	First     string    `json:"first"`
	Second    string    `json:"second"`
	Class     Class     `json:"class"`
	CreatedAt time.Time `json:"created_at"`
}

// expired reports whether the pair outlived the pending TTL. A zero
// CreatedAt never expires.
func (p Pair) expired(now time.Time) bool {
	return !p.CreatedAt.IsZero() && now.Sub(p.CreatedAt) > pendingPairTTL
}

// PairStore keeps at most one pending pair per session. Sessions never
// interact with each other. Take is the consuming read: fetch and remove
// must be one atomic step so two concurrent votes can never both observe
// the same pair.
type PairStore interface {
	Put(ctx context.Context, sessionID string, pair Pair) error
	Get(ctx context.Context, sessionID string) (Pair, bool, error)
	Take(ctx context.Context, sessionID string) (Pair, bool, error)
}

// MemoryPairStore keeps pending pairs in process memory. Expired pairs are
// dropped lazily on access.
type MemoryPairStore struct {
	mu    sync.Mutex
	pairs map[string]Pair
}

// NewMemoryPairStore constructs a MemoryPairStore.
func NewMemoryPairStore() *MemoryPairStore {
	return &MemoryPairStore{pairs: make(map[string]Pair)}
}

// Put stores the pending pair for a session, replacing any unvoted one.
func (s *MemoryPairStore) Put(_ context.Context, sessionID string, pair Pair) error {
	s.mu.Lock()
	s.pairs[sessionID] = pair
	s.mu.Unlock()
	return nil
}

// Get returns the pending pair for a session, if any.
func (s *MemoryPairStore) Get(_ context.Context, sessionID string) (Pair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair, ok := s.pairs[sessionID]
	if ok && pair.expired(time.Now()) {
		delete(s.pairs, sessionID)
		return Pair{}, false, nil
	}
	return pair, ok, nil
}

// Take removes and returns the pending pair for a session. The read and the
// delete happen under one lock, so only one of two concurrent takers wins.
func (s *MemoryPairStore) Take(_ context.Context, sessionID string) (Pair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair, ok := s.pairs[sessionID]
	if !ok {
		return Pair{}, false, nil
	}
	delete(s.pairs, sessionID)
	if pair.expired(time.Now()) {
		return Pair{}, false, nil
	}
	return pair, true, nil
}
