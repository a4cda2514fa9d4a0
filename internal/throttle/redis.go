package throttle

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed token_bucket.lua
var tokenBucketScript string

// Redis is a Limiter whose buckets live in Redis, shared by every replica.
type Redis struct {
	client *redis.Client
	script *redis.Script
	limit  Limit
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// RedisOption configures a Redis limiter.
type RedisOption func(*Redis)

// WithKeyPrefix sets the key prefix, default "txtconvert:throttle".
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = strings.Trim(prefix, ":") }
}

// WithKeyTTL sets how long an untouched bucket key survives. It is raised
// to the window when set lower.
func WithKeyTTL(d time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = d }
}

// WithRedisClock replaces time.Now, for tests.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *Redis) { r.now = now }
}

// NewRedis pings the server and loads the token bucket script.
func NewRedis(ctx context.Context, client *redis.Client, limit Limit, opts ...RedisOption) (*Redis, error) {
	if err := limit.validate(); err != nil {
		return nil, err
	}

	r := &Redis{
		client: client,
		script: redis.NewScript(tokenBucketScript),
		limit:  limit,
		prefix: "txtconvert:throttle",
		ttl:    15 * time.Minute,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.ttl < limit.Window {
		r.ttl = limit.Window
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("throttle: ping redis: %w", err)
	}
	if err := r.script.Load(ctx, client).Err(); err != nil {
		return nil, fmt.Errorf("throttle: load script: %w", err)
	}
	return r, nil
}

// Limit returns the bucket shape.
func (r *Redis) Limit() Limit {
	return r.limit
}

func (r *Redis) key(clientID string) string {
	return r.prefix + ":bucket:" + clientID
}

// TryConsume implements Limiter. Redis errors are returned unchanged; the
// caller decides whether to fail open.
func (r *Redis) TryConsume(ctx context.Context, clientID string) (Decision, error) {
	now := float64(r.now().UnixMicro()) / 1e6
	perSecond := float64(r.limit.Capacity) / r.limit.Window.Seconds()

	// Run uses EVALSHA and falls back to EVAL if the script was flushed.
	result, err := r.script.Run(ctx, r.client, []string{r.key(clientID)},
		r.limit.Capacity,
		perSecond,
		now,
		r.ttl.Milliseconds(),
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("throttle: eval token bucket: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return Decision{}, errors.New("throttle: invalid token bucket response")
	}

	admitted, _ := values[0].(int64)
	remaining, _ := values[1].(int64)

	d := Decision{Admitted: admitted == 1, Remaining: remaining}
	if !d.Admitted {
		d.Remaining = 0
		d.RetryAfter = time.Duration(toFloat(values[2]) * float64(time.Second))
	}
	return d, nil
}

// Reset deletes the bucket of a client.
func (r *Redis) Reset(ctx context.Context, clientID string) error {
	return r.client.Del(ctx, r.key(clientID)).Err()
}

func toFloat(v interface{}) float64 {
	switch v := v.(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}
