package tokenstore

import (
	"context"
	"sync"
	"time"

	"github.com/clipmetrics/syncengine/internal/model"
)

// memStore is an in-memory AccountStore used only by this package's tests.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*model.StoreAccount
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]*model.StoreAccount)}
}

func (m *memStore) Get(ctx context.Context, storeID string) (*model.StoreAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[storeID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) UpsertConnected(ctx context.Context, storeID, platformOpenID, accessCipher, refreshCipher, scope string, accessExpiresAt, refreshExpiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	connectedAt := now
	if existing, ok := m.accounts[storeID]; ok {
		connectedAt = existing.ConnectedAt
	}
	m.accounts[storeID] = &model.StoreAccount{
		StoreID:            storeID,
		PlatformOpenID:     platformOpenID,
		AccessTokenCipher:  accessCipher,
		RefreshTokenCipher: refreshCipher,
		AccessExpiresAt:    accessExpiresAt,
		RefreshExpiresAt:   refreshExpiresAt,
		Scope:              scope,
		Status:             model.StatusConnected,
		ConnectedAt:        connectedAt,
		UpdatedAt:          now,
	}
	return nil
}

func (m *memStore) UpdateStatus(ctx context.Context, storeID string, status model.AccountStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[storeID]
	if !ok {
		return nil
	}
	a.Status = status
	return nil
}

func (m *memStore) UpdateLastSync(ctx context.Context, storeID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[storeID]
	if !ok {
		return nil
	}
	a.LastSyncAt = &at
	return nil
}

func (m *memStore) ListConnected(ctx context.Context, refreshBefore time.Time) ([]*model.StoreAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.StoreAccount
	for _, a := range m.accounts {
		if a.Status != model.StatusConnected {
			continue
		}
		if !refreshBefore.IsZero() && !a.AccessExpiresAt.Before(refreshBefore) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}
