package httpmiddleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"attendance-kiosk/internal/audit"
	"attendance-kiosk/internal/metrics"
)

// DefaultMaxAttempts is the per-session ceiling on check-in posts.
const DefaultMaxAttempts = 20

const (
	attemptsKey = "rl_count"
	sidKey      = "rl_sid"
)

// ErrTooManyAttempts signals a session over its attempt ceiling.
var ErrTooManyAttempts = errors.New("too many attempts")

// Session is the small key-value store owned by one client. It matches
// sessions.Session so the cookie session can be passed directly.
type Session interface {
	Get(key interface{}) interface{}
	Set(key interface{}, val interface{})
}

// AttemptCounter increments and returns the attempt count for a session.
type AttemptCounter interface {
	Increment(ctx context.Context, s Session) (int64, error)
}

// SessionCounter keeps the count inside the session itself.
type SessionCounter struct{}

func (SessionCounter) Increment(_ context.Context, s Session) (int64, error) {
	n := toInt64(s.Get(attemptsKey)) + 1
	s.Set(attemptsKey, n)
	return n, nil
}

// RedisCounter keeps counts in Redis, keyed by a random id stored in the
// session. Keys expire with the session cookie.
type RedisCounter struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCounter creates a Redis-backed counter.
func NewRedisCounter(client *redis.Client, ttl time.Duration) *RedisCounter {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCounter{client: client, ttl: ttl, prefix: "kiosk:attempts:"}
}

func (r *RedisCounter) Increment(ctx context.Context, s Session) (int64, error) {
	sid, _ := s.Get(sidKey).(string)
	if sid == "" {
		sid = uuid.NewString()
		s.Set(sidKey, sid)
	}
	key := r.prefix + sid
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr attempts: %w", err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
			return n, fmt.Errorf("expire attempts: %w", err)
		}
	}
	return n, nil
}

// AttemptLimiter caps check-in posts per session. The count never resets for
// the life of the session.
type AttemptLimiter struct {
	counter AttemptCounter
	max     int64
	audit   audit.Recorder
	logger  *slog.Logger

	// Reject writes the response for a refused request.
	Reject gin.HandlerFunc
}

// NewAttemptLimiter creates a limiter allowing max attempts per session.
func NewAttemptLimiter(counter AttemptCounter, max int, rec audit.Recorder, logger *slog.Logger) *AttemptLimiter {
	if max <= 0 {
		max = DefaultMaxAttempts
	}
	return &AttemptLimiter{
		counter: counter,
		max:     int64(max),
		audit:   rec,
		logger:  logger,
		Reject: func(c *gin.Context) {
			c.String(http.StatusTooManyRequests, "Too many attempts.")
		},
	}
}

// CheckAndIncrement counts one attempt and reports whether it is allowed.
// A counter failure is returned together with allowed = true.
func (l *AttemptLimiter) CheckAndIncrement(ctx context.Context, s Session) (bool, error) {
	n, err := l.counter.Increment(ctx, s)
	if err != nil {
		return true, err
	}
	if n > l.max {
		return false, ErrTooManyAttempts
	}
	return true, nil
}

// GinMiddleware enforces the limit before the handler sees the request.
// Requires the sessions middleware.
func (l *AttemptLimiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		allowed, err := l.CheckAndIncrement(c.Request.Context(), s)
		if err != nil && !errors.Is(err, ErrTooManyAttempts) {
			l.logger.Warn("attempt counter failed, allowing request", "error", err)
		}
		if serr := s.Save(); serr != nil {
			l.logger.Error("session save failed", "error", serr)
		}
		if !allowed {
			metrics.RateLimited.WithLabelValues("checkin").Inc()
			l.audit.Record(c.Request.Context(), audit.KindRateLimited, fmt.Sprintf("ip=%s, limit=%d", c.ClientIP(), l.max))
			l.Reject(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
