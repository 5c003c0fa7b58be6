package synclock

import (
	"context"
	"sync"
	"time"
)

// MemRegistry is an in-process lock registry with the same Acquire/Release
// contract as Registry, used in tests and anywhere a Postgres-backed
// registry would be overkill (single-process deployments).
type MemRegistry struct {
	mu    sync.Mutex
	locks map[string]time.Time // lock_key -> expires_at
}

// NewMemRegistry builds an empty in-memory lock registry.
func NewMemRegistry() *MemRegistry {
	return &MemRegistry{locks: make(map[string]time.Time)}
}

// Acquire mirrors Registry.Acquire: an expired entry for lockKey is replaced,
// and a live one makes it return false. Expired entries for other keys are
// left in place.
func (m *MemRegistry) Acquire(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if expiresAt, ok := m.locks[lockKey]; ok {
		if now.Before(expiresAt) {
			return false, nil
		}
		delete(m.locks, lockKey)
	}

	m.locks[lockKey] = now.Add(ttl)
	return true, nil
}

// Release deletes the lock entry, a no-op if not held.
func (m *MemRegistry) Release(ctx context.Context, lockKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, lockKey)
	return nil
}
