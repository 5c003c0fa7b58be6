// Package tokenstore manages StoreAccount lifecycle: encrypted token
// storage, refresh-on-demand access token retrieval, and status transitions.
package tokenstore

import (
	"context"
	"time"

	"github.com/clipmetrics/syncengine/internal/model"
)

// AccountStore persists StoreAccount rows.
type AccountStore interface {
	// Get returns the account for storeID, or nil if none exists.
	Get(ctx context.Context, storeID string) (*model.StoreAccount, error)

	// UpsertConnected writes a fresh CONNECTED account after a successful
	// token exchange or refresh, encrypting nothing itself — ciphertexts are
	// supplied by the caller.
	UpsertConnected(ctx context.Context, storeID, platformOpenID, accessCipher, refreshCipher, scope string, accessExpiresAt, refreshExpiresAt time.Time) error

	// UpdateStatus transitions status without touching tokens.
	UpdateStatus(ctx context.Context, storeID string, status model.AccountStatus) error

	// UpdateLastSync sets last_sync_at to at.
	UpdateLastSync(ctx context.Context, storeID string, at time.Time) error

	// ListConnected returns every CONNECTED account. When refreshBefore is
	// non-zero, results are further filtered to access_expires_at < refreshBefore.
	ListConnected(ctx context.Context, refreshBefore time.Time) ([]*model.StoreAccount, error)
}
