package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisConnectTimeout bounds how long startup waits on the initial ping.
// The progress cache this client backs is best-effort and never
// load-bearing, so a slow or absent Redis should fail fast rather than
// stall process startup.
const redisConnectTimeout = 3 * time.Second

// NewRedisClient creates a Redis client from redisURL and verifies
// connectivity with a bounded ping. A small PoolSize suits the cache's only
// caller (one SET per progress tick per running job), rather than the
// request-serving concurrency a web handler pool would need.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 5
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}
