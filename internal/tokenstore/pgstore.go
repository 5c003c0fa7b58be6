package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipmetrics/syncengine/internal/model"
)

// PgAccountStore is the Postgres-backed AccountStore.
type PgAccountStore struct {
	pool *pgxpool.Pool
}

// NewPgAccountStore builds a PgAccountStore over the given pool.
func NewPgAccountStore(pool *pgxpool.Pool) *PgAccountStore {
	return &PgAccountStore{pool: pool}
}

func (s *PgAccountStore) Get(ctx context.Context, storeID string) (*model.StoreAccount, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT store_id, platform_open_id, access_token_ciphertext, refresh_token_ciphertext,
		       access_expires_at, refresh_expires_at, scope, status, last_sync_at, connected_at, updated_at
		FROM store_accounts WHERE store_id = $1`, storeID)

	var a model.StoreAccount
	var lastSync *time.Time
	err := row.Scan(&a.StoreID, &a.PlatformOpenID, &a.AccessTokenCipher, &a.RefreshTokenCipher,
		&a.AccessExpiresAt, &a.RefreshExpiresAt, &a.Scope, &a.Status, &lastSync, &a.ConnectedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.LastSyncAt = lastSync
	return &a, nil
}

func (s *PgAccountStore) UpsertConnected(ctx context.Context, storeID, platformOpenID, accessCipher, refreshCipher, scope string, accessExpiresAt, refreshExpiresAt time.Time) error {
	now := time.Now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO store_accounts
			(store_id, platform_open_id, access_token_ciphertext, refresh_token_ciphertext,
			 access_expires_at, refresh_expires_at, scope, status, connected_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'CONNECTED', $8, $8)
		ON CONFLICT (store_id) DO UPDATE SET
			platform_open_id = EXCLUDED.platform_open_id,
			access_token_ciphertext = EXCLUDED.access_token_ciphertext,
			refresh_token_ciphertext = EXCLUDED.refresh_token_ciphertext,
			access_expires_at = EXCLUDED.access_expires_at,
			refresh_expires_at = EXCLUDED.refresh_expires_at,
			scope = EXCLUDED.scope,
			status = 'CONNECTED',
			updated_at = EXCLUDED.updated_at`,
		storeID, platformOpenID, accessCipher, refreshCipher, scope, accessExpiresAt, refreshExpiresAt, now)
	return err
}

func (s *PgAccountStore) UpdateStatus(ctx context.Context, storeID string, status model.AccountStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE store_accounts SET status = $2, updated_at = $3 WHERE store_id = $1`,
		storeID, status, time.Now())
	return err
}

func (s *PgAccountStore) UpdateLastSync(ctx context.Context, storeID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE store_accounts SET last_sync_at = $2 WHERE store_id = $1`,
		storeID, at)
	return err
}

func (s *PgAccountStore) ListConnected(ctx context.Context, refreshBefore time.Time) ([]*model.StoreAccount, error) {
	query := `
		SELECT store_id, platform_open_id, access_token_ciphertext, refresh_token_ciphertext,
		       access_expires_at, refresh_expires_at, scope, status, last_sync_at, connected_at, updated_at
		FROM store_accounts WHERE status = 'CONNECTED'`
	args := []any{}
	if !refreshBefore.IsZero() {
		query += ` AND access_expires_at < $1`
		args = append(args, refreshBefore)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*model.StoreAccount
	for rows.Next() {
		var a model.StoreAccount
		var lastSync *time.Time
		if err := rows.Scan(&a.StoreID, &a.PlatformOpenID, &a.AccessTokenCipher, &a.RefreshTokenCipher,
			&a.AccessExpiresAt, &a.RefreshExpiresAt, &a.Scope, &a.Status, &lastSync, &a.ConnectedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.LastSyncAt = lastSync
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}
