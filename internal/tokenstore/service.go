package tokenstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/clipmetrics/syncengine/internal/crypto"
	syncerrors "github.com/clipmetrics/syncengine/internal/errors"
	"github.com/clipmetrics/syncengine/internal/model"
	"github.com/clipmetrics/syncengine/internal/oauthflow"
)

// refreshHorizon is how far ahead of expiry a token is proactively refreshed.
const refreshHorizon = 5 * time.Minute

// Refresher exchanges a refresh_token for a new token pair. Implemented by
// *oauthflow.Handler.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (oauthflow.TokenResult, error)
}

// Service implements the token store contract: store_tokens, get_valid_access_token,
// update_last_sync.
type Service struct {
	store     AccountStore
	vault     *crypto.Vault
	refresher Refresher
	logger    *slog.Logger
}

// NewService builds a token store Service.
func NewService(store AccountStore, vault *crypto.Vault, refresher Refresher, logger *slog.Logger) *Service {
	return &Service{store: store, vault: vault, refresher: refresher, logger: logger}
}

// StoreTokens encrypts and persists a fresh token pair, marking the account CONNECTED.
func (s *Service) StoreTokens(ctx context.Context, storeID, platformOpenID, accessToken, refreshToken, scope string, accessExpiresAt, refreshExpiresAt time.Time) error {
	accessCipher, err := s.vault.Encrypt(accessToken)
	if err != nil {
		return err
	}
	refreshCipher, err := s.vault.Encrypt(refreshToken)
	if err != nil {
		return err
	}
	return s.store.UpsertConnected(ctx, storeID, platformOpenID, accessCipher, refreshCipher, scope, accessExpiresAt, refreshExpiresAt)
}

// GetValidAccessToken returns a usable plaintext access token for storeID, or
// "" if none is available (absent account, a non-CONNECTED status, or a
// refresh that failed). Status transitions on refresh failure are persisted
// before returning.
func (s *Service) GetValidAccessToken(ctx context.Context, storeID string) (string, error) {
	account, err := s.store.Get(ctx, storeID)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", nil
	}
	switch account.Status {
	case model.StatusNeedReconnect, model.StatusDisabled, model.StatusError:
		return "", nil
	case model.StatusConnected:
		// fall through
	default:
		return "", nil
	}

	if time.Now().Add(refreshHorizon).Before(account.AccessExpiresAt) {
		token, err := s.vault.Decrypt(account.AccessTokenCipher)
		if err != nil {
			s.markError(ctx, storeID, err)
			return "", nil
		}
		return token, nil
	}

	return s.refresh(ctx, storeID, account)
}

func (s *Service) refresh(ctx context.Context, storeID string, account *model.StoreAccount) (string, error) {
	refreshToken, err := s.vault.Decrypt(account.RefreshTokenCipher)
	if err != nil {
		s.markError(ctx, storeID, err)
		return "", nil
	}

	result, err := s.refresher.RefreshToken(ctx, refreshToken)
	if err != nil {
		if syncerrors.IsTokenRevoked(err) {
			s.logger.Warn("refresh token revoked, marking store for reconnect", "store_id", storeID, "error", err)
			if uerr := s.store.UpdateStatus(ctx, storeID, model.StatusNeedReconnect); uerr != nil {
				return "", uerr
			}
			return "", nil
		}
		s.logger.Error("token refresh failed", "store_id", storeID, "error", err)
		if uerr := s.store.UpdateStatus(ctx, storeID, model.StatusError); uerr != nil {
			return "", uerr
		}
		return "", nil
	}

	accessCipher, err := s.vault.Encrypt(result.AccessToken)
	if err != nil {
		return "", err
	}
	refreshCipher, err := s.vault.Encrypt(result.RefreshToken)
	if err != nil {
		return "", err
	}

	if err := s.store.UpsertConnected(ctx, storeID, account.PlatformOpenID, accessCipher, refreshCipher,
		account.Scope, result.AccessExpiresAt, result.RefreshExpiresAt); err != nil {
		return "", err
	}

	return result.AccessToken, nil
}

func (s *Service) markError(ctx context.Context, storeID string, cause error) {
	s.logger.Error("crypto integrity failure on stored token", "store_id", storeID, "error", cause)
	if err := s.store.UpdateStatus(ctx, storeID, model.StatusError); err != nil {
		s.logger.Error("marking store ERROR after crypto failure", "store_id", storeID, "error", err)
	}
}

// UpdateLastSync sets the account's last_sync_at to now.
func (s *Service) UpdateLastSync(ctx context.Context, storeID string) error {
	return s.store.UpdateLastSync(ctx, storeID, time.Now())
}

// ListConnected returns every CONNECTED store account. When refreshBefore is
// non-zero, results are further filtered to access_expires_at < refreshBefore
// (used by the token-refresh sweep to pick stores nearing expiry).
func (s *Service) ListConnected(ctx context.Context, refreshBefore time.Time) ([]*model.StoreAccount, error) {
	return s.store.ListConnected(ctx, refreshBefore)
}
