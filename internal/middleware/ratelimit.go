// ratelimit.go enforces per-client request rate limits. Two implementations
// back the same middleware: a Redis-backed limiter (redis_rate GCRA) shared
// across replicas, and an in-process token bucket used when no Redis address
// is configured. Single-instance deployments lose nothing with the in-process
// limiter; multi-replica ones need Redis or each replica enforces the limit
// independently.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Stop()
}

// RedisLimiter enforces limits through redis_rate so all replicas share one
// budget per client.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisLimiter creates a Redis-backed limiter allowing requestsPerMinute
// sustained with the given burst.
func NewRedisLimiter(rdb *redis.Client, requestsPerMinute, burst int) *RedisLimiter {
	if burst < requestsPerMinute {
		burst = requestsPerMinute
	}
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit: redis_rate.Limit{
			Rate:   requestsPerMinute,
			Burst:  burst,
			Period: time.Minute,
		},
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := l.limiter.Allow(ctx, key, l.limit)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:    res.Allowed > 0,
		Limit:      l.limit.Rate,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

func (l *RedisLimiter) Stop() {}

// memoryEntry tracks the token bucket for one client.
type memoryEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// MemoryLimiter is an in-process token bucket limiter. A cleanup goroutine
// evicts buckets idle for ten minutes so the map does not grow with every
// client ever seen.
type MemoryLimiter struct {
	requestsPerMinute int
	burst             int

	mu      sync.Mutex
	entries map[string]*memoryEntry
	stopCh  chan struct{}
}

// NewMemoryLimiter creates an in-process limiter allowing requestsPerMinute
// sustained with the given burst.
func NewMemoryLimiter(requestsPerMinute, burst int) *MemoryLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &MemoryLimiter{
		requestsPerMinute: requestsPerMinute,
		burst:             burst,
		entries:           make(map[string]*memoryEntry),
		stopCh:            make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			now := time.Now()
			for key, entry := range l.entries {
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(l.entries, key)
				}
			}
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *MemoryLimiter) Stop() {
	close(l.stopCh)
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, exists := l.entries[key]
	if !exists {
		entry = &memoryEntry{tokens: float64(l.burst), lastUpdate: now}
		l.entries[key] = entry
	} else {
		elapsed := now.Sub(entry.lastUpdate)
		refill := elapsed.Seconds() * float64(l.requestsPerMinute) / 60.0
		entry.tokens = min(float64(l.burst), entry.tokens+refill)
		entry.lastUpdate = now
	}

	d := Decision{Limit: l.requestsPerMinute}
	if entry.tokens >= 1 {
		entry.tokens--
		d.Allowed = true
		d.Remaining = int(entry.tokens)
		return d, nil
	}

	// Seconds until one token refills.
	d.RetryAfter = time.Duration((1 - entry.tokens) * 60 / float64(l.requestsPerMinute) * float64(time.Second))
	return d, nil
}

// RateLimitMiddleware rejects requests over the limit with 429. A limiter
// error (Redis unreachable) fails open: availability of the API is worth more
// than strict enforcement during a cache outage.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		d, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			retryAfter := int(d.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}

// rateLimitKey identifies the client. Authenticated users are limited per
// account so shared NATs do not starve each other; everyone else is limited
// per IP.
func rateLimitKey(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok && id != "" {
			return "user:" + id
		}
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
