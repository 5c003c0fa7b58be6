package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProgressCache publishes best-effort run progress for cheap external
// polling. It backs no invariant: a cache write failure is swallowed.
type ProgressCache interface {
	SetProgress(ctx context.Context, job JobName, processed, total int) error
}

// RedisProgressCache publishes progress as a JSON blob at "sync:progress:<job>".
type RedisProgressCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProgressCache builds a RedisProgressCache over client.
func NewRedisProgressCache(client *redis.Client) *RedisProgressCache {
	return &RedisProgressCache{client: client, ttl: 5 * time.Minute}
}

type progressPayload struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

func (c *RedisProgressCache) SetProgress(ctx context.Context, job JobName, processed, total int) error {
	percent := 0
	if total > 0 {
		percent = processed * 100 / total
	}
	payload, err := json.Marshal(progressPayload{Processed: processed, Total: total, Percent: percent})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "sync:progress:"+string(job), payload, c.ttl).Err()
}
