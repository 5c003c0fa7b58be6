package oauthflow

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipmetrics/syncengine/internal/model"
)

// PgPendingStateStore is the Postgres-backed PendingStateStore.
type PgPendingStateStore struct {
	pool *pgxpool.Pool
}

// NewPgPendingStateStore builds a PgPendingStateStore over the given pool.
func NewPgPendingStateStore(pool *pgxpool.Pool) *PgPendingStateStore {
	return &PgPendingStateStore{pool: pool}
}

func (s *PgPendingStateStore) Create(ctx context.Context, st model.OAuthPendingState) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO oauth_pending_state (state, code_verifier, store_id, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		st.State, st.CodeVerifier, st.StoreID, st.ExpiresAt)
	return err
}

func (s *PgPendingStateStore) SweepExpired(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM oauth_pending_state WHERE expires_at < $1`, time.Now())
	return err
}

// TakeByState atomically loads and deletes the row for state via a single
// DELETE ... RETURNING statement, so a racing duplicate callback can never
// consume the same row twice.
func (s *PgPendingStateStore) TakeByState(ctx context.Context, state string) (*model.OAuthPendingState, error) {
	row := s.pool.QueryRow(ctx,
		`DELETE FROM oauth_pending_state WHERE state = $1 RETURNING state, code_verifier, store_id, expires_at`,
		state)

	var st model.OAuthPendingState
	err := row.Scan(&st.State, &st.CodeVerifier, &st.StoreID, &st.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}
