package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// redisBreakerDuration is how long the manager sticks to the memory
// limiter after a Redis failure before probing Redis again.
const redisBreakerDuration = 30 * time.Second

// Options configures a Manager.
type Options struct {
	// Limit is the number of requests allowed per window per user.
	// Zero or negative disables limiting.
	Limit int
	// Window is the fixed window size. Defaults to one second.
	Window time.Duration
	// RedisAddr enables the Redis-backed limiter when non-empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Prefix namespaces the Redis keys.
	Prefix string
}

// Manager enforces per-user limits, preferring Redis when configured
// and falling back to the in-memory limiter while Redis is unhealthy.
type Manager struct {
	opts   Options
	memory *MemoryLimiter

	mu          sync.Mutex
	redisLim    *RedisLimiter
	redisClient *redis.Client
	redisDownAt time.Time
}

// NewManager creates a limiter manager.
func NewManager(opts Options) *Manager {
	if opts.Window <= 0 {
		opts.Window = time.Second
	}
	return &Manager{
		opts:   opts,
		memory: NewMemoryLimiter(),
	}
}

// AllowUser consumes one request slot for the user. A disabled limit
// always allows. Redis errors are logged, trip the breaker and degrade
// to the memory limiter rather than rejecting requests.
func (m *Manager) AllowUser(ctx context.Context, userID uint64) Result {
	if m.opts.Limit <= 0 {
		return Result{Allowed: true, Limit: m.opts.Limit}
	}

	key := KeyForUser(userID)

	if lim := m.redisLimiter(ctx); lim != nil {
		res, err := lim.Allow(ctx, key, m.opts.Limit, m.opts.Window)
		if err == nil {
			return res
		}
		log.WithError(err).Warn("ratelimit: redis limiter failed, falling back to memory")
		m.tripBreaker()
	}

	res, err := m.memory.Allow(ctx, key, m.opts.Limit, m.opts.Window)
	if err != nil {
		// The memory limiter cannot fail today; allow if it ever does.
		log.WithError(err).Warn("ratelimit: memory limiter failed")
		return Result{Allowed: true, Limit: m.opts.Limit}
	}
	return res
}

// redisLimiter returns the Redis limiter when configured and the
// breaker is closed, constructing and pinging the client on first use.
func (m *Manager) redisLimiter(ctx context.Context) *RedisLimiter {
	if m.opts.RedisAddr == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.redisDownAt.IsZero() && time.Since(m.redisDownAt) < redisBreakerDuration {
		return nil
	}
	m.redisDownAt = time.Time{}

	if m.redisLim != nil {
		return m.redisLim
	}

	client := redis.NewClient(&redis.Options{
		Addr:     m.opts.RedisAddr,
		Password: m.opts.RedisPassword,
		DB:       m.opts.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	err := client.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		log.WithError(err).Warn("ratelimit: redis unreachable, using memory limiter")
		_ = client.Close()
		m.redisDownAt = time.Now()
		return nil
	}

	m.redisClient = client
	m.redisLim = NewRedisLimiter(client, m.opts.Prefix)
	return m.redisLim
}

func (m *Manager) tripBreaker() {
	m.mu.Lock()
	m.redisDownAt = time.Now()
	if m.redisClient != nil {
		_ = m.redisClient.Close()
		m.redisClient = nil
		m.redisLim = nil
	}
	m.mu.Unlock()
}

// Close releases the Redis client if one was built.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redisClient != nil {
		_ = m.redisClient.Close()
		m.redisClient = nil
		m.redisLim = nil
	}
}
