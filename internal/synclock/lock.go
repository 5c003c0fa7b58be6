// Package synclock implements the distributed sync lock registry: a
// Postgres-backed mutual-exclusion primitive with no fairness, no waiter
// queue, and no renewal — callers that miss the lock skip their work.
package synclock

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Registry acquires and releases sync locks backed by the sync_locks table.
type Registry struct {
	pool *pgxpool.Pool
}

// NewRegistry builds a lock Registry over the given pool.
func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool}
}

// Acquire sweeps expired rows (best-effort) and attempts to insert a live
// lock row for lockKey. It returns true only if the insert succeeded; a
// uniqueness violation (lock already held) returns false, never an error.
func (r *Registry) Acquire(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	now := time.Now()

	if _, err := r.pool.Exec(ctx, `DELETE FROM sync_locks WHERE expires_at < $1`, now); err != nil {
		// Sweep is best-effort; a failure here must not block acquisition.
		_ = err
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO sync_locks (lock_key, acquired_at, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (lock_key) DO NOTHING`,
		lockKey, now, now.Add(ttl),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Release deletes the lock row for lockKey. It is a no-op, never an error,
// if the lock isn't held.
func (r *Registry) Release(ctx context.Context, lockKey string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sync_locks WHERE lock_key = $1`, lockKey)
	return err
}
