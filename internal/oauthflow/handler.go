// Package oauthflow implements the PKCE authorization-code OAuth flow against
// the platform: authorize-URL generation with signed CSRF state, one-shot
// pending-state persistence, callback code exchange, and token refresh.
package oauthflow

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/clipmetrics/syncengine/internal/errors"
	"github.com/clipmetrics/syncengine/internal/model"
	"github.com/clipmetrics/syncengine/internal/resync"
)

// PendingStateStore persists and atomically consumes OAuthPendingState rows.
type PendingStateStore interface {
	Create(ctx context.Context, s model.OAuthPendingState) error
	// SweepExpired deletes rows whose expires_at has passed.
	SweepExpired(ctx context.Context) error
	// TakeByState atomically loads and deletes the row for state. Returns
	// (nil, nil) if no such row exists.
	TakeByState(ctx context.Context, state string) (*model.OAuthPendingState, error)
}

// Config holds the platform OAuth client's static settings.
type Config struct {
	ClientKey    string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	Scope        string
	StateSecret  string
}

func (c Config) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientKey,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       []string{c.Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.AuthURL,
			TokenURL: c.TokenURL,
			// The platform names the client identifier "client_key" rather
			// than the OAuth2-standard "client_id"; AuthStyleInParams keeps
			// client_secret as a body param too, matching the token endpoint.
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// TokenResult is the outcome of a successful code exchange or refresh.
type TokenResult struct {
	AccessToken      string
	RefreshToken     string
	OpenID           string
	Scope            string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Handler drives the OAuth connect/callback/refresh flows.
type Handler struct {
	cfg     Config
	oauth2  *oauth2.Config
	pending PendingStateStore
	http    *http.Client
	pacer   *resync.Pacer
	logger  *slog.Logger
}

// NewHandler builds an OAuth flow Handler.
func NewHandler(cfg Config, pending PendingStateStore, httpClient *http.Client, pacer *resync.Pacer, logger *slog.Logger) *Handler {
	return &Handler{cfg: cfg, oauth2: cfg.oauth2Config(), pending: pending, http: httpClient, pacer: pacer, logger: logger}
}

func (h *Handler) ctxWithHTTPClient(ctx context.Context) context.Context {
	if h.http == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, h.http)
}

// GenerateAuthURL mints a PKCE verifier/challenge and a signed CSRF state,
// persists the pending row, and returns the platform authorize URL. The
// pending row is written before the URL is returned to the caller.
func (h *Handler) GenerateAuthURL(ctx context.Context, storeID string) (string, error) {
	verifier, err := newCodeVerifier()
	if err != nil {
		return "", fmt.Errorf("generating code verifier: %w", err)
	}

	state, err := mintState(storeID, h.cfg.StateSecret)
	if err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}

	if err := h.pending.Create(ctx, model.OAuthPendingState{
		State:        state,
		CodeVerifier: verifier,
		StoreID:      storeID,
		ExpiresAt:    time.Now().Add(10 * time.Minute),
	}); err != nil {
		return "", fmt.Errorf("persisting pending state: %w", err)
	}

	return h.oauth2.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("client_key", h.cfg.ClientKey),
	), nil
}

// HandleCallback validates the state, consumes the matching pending row, and
// exchanges the authorization code for tokens.
func (h *Handler) HandleCallback(ctx context.Context, code, state string) (TokenResult, string, error) {
	storeID, ok := validateState(state, h.cfg.StateSecret)
	if !ok {
		return TokenResult{}, "", &errors.OAuthStateInvalidError{}
	}

	if err := h.pending.SweepExpired(ctx); err != nil {
		h.logger.Warn("sweeping expired oauth pending state", "error", err)
	}

	row, err := h.pending.TakeByState(ctx, state)
	if err != nil {
		return TokenResult{}, "", fmt.Errorf("loading pending state: %w", err)
	}
	if row == nil {
		return TokenResult{}, "", &errors.OAuthStateMissingError{}
	}

	result, err := h.exchangeCode(ctx, code, row.CodeVerifier)
	if err != nil {
		return TokenResult{}, "", &errors.OAuthExchangeFailedError{Err: err}
	}

	return result, storeID, nil
}

func (h *Handler) exchangeCode(ctx context.Context, code, codeVerifier string) (TokenResult, error) {
	if h.pacer != nil {
		if err := h.pacer.Wait(ctx); err != nil {
			return TokenResult{}, err
		}
	}

	tok, err := h.oauth2.Exchange(h.ctxWithHTTPClient(ctx), code,
		oauth2.VerifierOption(codeVerifier),
		oauth2.SetAuthURLParam("client_key", h.cfg.ClientKey),
	)
	if err != nil {
		return TokenResult{}, classifyTokenError(err)
	}
	return toTokenResult(tok), nil
}

// RefreshToken exchanges a refresh_token for a new token pair. A 400/401
// response is surfaced as TokenRevokedError (non-retryable); other failures
// are returned unchanged. tokenstore.Service, the caller, does not retry
// them: it marks the account ERROR.
func (h *Handler) RefreshToken(ctx context.Context, refreshToken string) (TokenResult, error) {
	if h.pacer != nil {
		if err := h.pacer.Wait(ctx); err != nil {
			return TokenResult{}, err
		}
	}

	src := h.oauth2.TokenSource(h.ctxWithHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return TokenResult{}, classifyTokenError(err)
	}
	return toTokenResult(tok), nil
}

func toTokenResult(tok *oauth2.Token) TokenResult {
	result := TokenResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scope:        extraString(tok, "scope"),
		OpenID:       extraString(tok, "open_id"),
	}
	if tok.Expiry.IsZero() {
		result.AccessExpiresAt = time.Now().Add(time.Hour)
	} else {
		result.AccessExpiresAt = tok.Expiry
	}
	if refreshExpiresIn := extraInt64(tok, "refresh_expires_in"); refreshExpiresIn > 0 {
		result.RefreshExpiresAt = time.Now().Add(time.Duration(refreshExpiresIn) * time.Second)
	} else {
		result.RefreshExpiresAt = time.Now().Add(24 * time.Hour)
	}
	return result
}

func extraString(tok *oauth2.Token, key string) string {
	v, _ := tok.Extra(key).(string)
	return v
}

func extraInt64(tok *oauth2.Token, key string) int64 {
	switch v := tok.Extra(key).(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

// classifyTokenError surfaces a 400/401 response from the token endpoint as
// TokenRevokedError (non-retryable); anything else is returned unchanged.
func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if stderrors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		status := retrieveErr.Response.StatusCode
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return &errors.TokenRevokedError{Reason: fmt.Sprintf("token endpoint returned HTTP %d: %s", status, string(retrieveErr.Body))}
		}
	}
	return err
}
