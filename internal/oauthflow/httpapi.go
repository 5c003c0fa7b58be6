package oauthflow

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/clipmetrics/syncengine/internal/errors"
)

var storeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// TokenStorer persists a fresh token pair for a store, implemented by
// *internal/tokenstore.Service. A narrow seam so this package never imports
// tokenstore (which itself imports oauthflow for its Refresher).
type TokenStorer interface {
	StoreTokens(ctx context.Context, storeID, platformOpenID, accessToken, refreshToken, scope string, accessExpiresAt, refreshExpiresAt time.Time) error
}

// HTTPHandler adapts a *Handler to plain http.HandlerFunc-shaped methods, for
// an external router to mount at /connect/initiate, /auth/url, /auth/callback.
type HTTPHandler struct {
	h      *Handler
	tokens TokenStorer
}

// NewHTTPHandler wraps handler for HTTP use. tokens persists the token pair
// a successful callback exchange produces.
func NewHTTPHandler(handler *Handler, tokens TokenStorer) *HTTPHandler {
	return &HTTPHandler{h: handler, tokens: tokens}
}

// HandleAuthURL serves GET /auth/url?store_id=..., returning {"auth_url": "..."}.
func (a *HTTPHandler) HandleAuthURL(w http.ResponseWriter, r *http.Request) {
	storeID := r.URL.Query().Get("store_id")
	if !storeIDPattern.MatchString(storeID) {
		writeOAuthError(w, http.StatusBadRequest, "invalid_store_id", "store_id must be 1-50 chars of [A-Za-z0-9_-]")
		return
	}

	authURL, err := a.h.GenerateAuthURL(r.Context(), storeID)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "oauth_url_failed", err.Error())
		return
	}
	writeOAuthJSON(w, http.StatusOK, map[string]string{"auth_url": authURL})
}

// HandleInitiate serves GET /connect/initiate?store_id=..., redirecting the
// browser directly to the platform authorize URL.
func (a *HTTPHandler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	storeID := r.URL.Query().Get("store_id")
	if !storeIDPattern.MatchString(storeID) {
		writeOAuthError(w, http.StatusBadRequest, "invalid_store_id", "store_id must be 1-50 chars of [A-Za-z0-9_-]")
		return
	}

	authURL, err := a.h.GenerateAuthURL(r.Context(), storeID)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "oauth_url_failed", err.Error())
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback serves GET /auth/callback?code=...&state=....
func (a *HTTPHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeOAuthError(w, http.StatusBadRequest, "missing_params", "code and state are required")
		return
	}

	result, storeID, err := a.h.HandleCallback(r.Context(), code, state)
	if err != nil {
		code, status := classifyCallbackError(err)
		writeOAuthError(w, status, code, err.Error())
		return
	}

	if err := a.tokens.StoreTokens(r.Context(), storeID, result.OpenID, result.AccessToken, result.RefreshToken,
		result.Scope, result.AccessExpiresAt, result.RefreshExpiresAt); err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "TOKEN_STORE_FAILED", err.Error())
		return
	}

	writeOAuthJSON(w, http.StatusOK, map[string]string{
		"store_id": storeID,
		"open_id":  result.OpenID,
	})
}

func classifyCallbackError(err error) (code string, status int) {
	switch err.(type) {
	case *errors.OAuthStateInvalidError:
		return "OAUTH_STATE_INVALID", http.StatusBadRequest
	case *errors.OAuthStateMissingError:
		return "OAUTH_STATE_MISSING", http.StatusBadRequest
	case *errors.OAuthExchangeFailedError:
		return "OAUTH_EXCHANGE_FAILED", http.StatusBadGateway
	default:
		return "OAUTH_EXCHANGE_FAILED", http.StatusInternalServerError
	}
}

func writeOAuthJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOAuthError(w http.ResponseWriter, status int, code, message string) {
	writeOAuthJSON(w, status, map[string]string{"error_code": code, "message": message})
}
