package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "videoresearch:ratelimit:"

// Redis shares windows across replicas with one counter per key and window.
type Redis struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisClient connects to the server named by a redis:// URL.
func NewRedisClient(rawURL string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return redis.NewClient(opts), nil
}

func NewRedis(client redis.UniversalClient, limit int, window time.Duration) *Redis {
	if limit <= 0 {
		limit = DefaultLimit
	}

	if window <= 0 {
		window = DefaultWindow
	}

	return &Redis{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	start := r.now().Truncate(r.window)
	resetAt := start.Add(r.window)
	redisKey := windowKey(key, start)

	var incr *redis.IntCmd

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, r.window)

		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count request for %s: %w", key, err)
	}

	count := int(incr.Val())
	if count > r.limit {
		return Decision{Limit: r.limit, ResetAt: resetAt}, nil
	}

	return Decision{
		Allowed:   true,
		Limit:     r.limit,
		Remaining: r.limit - count,
		ResetAt:   resetAt,
	}, nil
}

func windowKey(key string, start time.Time) string {
	return keyPrefix + key + ":" + strconv.FormatInt(start.Unix(), 10)
}
