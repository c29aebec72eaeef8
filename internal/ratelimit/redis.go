package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces limiter counters in Redis.
const KeyPrefix = "ratelimit"

// Redis shares counters between server instances. Each window is its own key and expires with it.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedis returns a Redis-backed limiter.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

// Allow implements Limiter.
func (r *Redis) Allow(ctx context.Context, rule Rule, key string) (Result, error) {
	now := r.now()
	start := windowStart(now, rule.Window)
	k := fmt.Sprintf("%s:%s:%s:%d", KeyPrefix, rule.Name, key, start.Unix())

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{Allowed: true}, fmt.Errorf("ratelimit: %w", err)
	}
	return result(incr.Val(), rule, now), nil
}
