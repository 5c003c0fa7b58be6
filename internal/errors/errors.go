// Package errors defines the concrete error types the sync engine's
// components use to signal conditions callers must branch on — retryability,
// token revocation, lock contention — rather than an interface hierarchy.
package errors

import (
	"fmt"
	"strings"
)

// CryptoKeyMissingError indicates the configured encryption key is absent or malformed.
type CryptoKeyMissingError struct {
	Reason string
}

func (e *CryptoKeyMissingError) Error() string {
	return fmt.Sprintf("crypto key missing: %s", e.Reason)
}

// CryptoIntegrityFailureError indicates AEAD tag verification failed on decrypt —
// the ciphertext was tampered with or encrypted under a different key.
type CryptoIntegrityFailureError struct {
	Err error
}

func (e *CryptoIntegrityFailureError) Error() string {
	return fmt.Sprintf("crypto integrity failure: %v", e.Err)
}

func (e *CryptoIntegrityFailureError) Unwrap() error { return e.Err }

// APIErrorKind classifies a platform API error for retry and handling purposes.
type APIErrorKind string

const (
	APIErrorAuth      APIErrorKind = "auth"
	APIErrorRateLimit APIErrorKind = "rate_limit"
	APIErrorServer    APIErrorKind = "server"
	APIErrorClient    APIErrorKind = "client"
	APIErrorHTTP      APIErrorKind = "http"
	APIErrorParse     APIErrorKind = "parse"
)

// APIError is the tagged-union error returned by the platform API client.
type APIError struct {
	Kind       APIErrorKind
	Code       string
	LogID      string
	HTTPStatus int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform api error [%s] code=%s status=%d log_id=%s: %s",
		e.Kind, e.Code, e.HTTPStatus, e.LogID, e.Message)
}

// Retryable reports whether the kernel should retry a call that failed with this error.
func (e *APIError) Retryable() bool {
	return e.Kind == APIErrorRateLimit || e.Kind == APIErrorServer
}

// TokenRevokedError indicates the platform rejected a refresh_token as revoked,
// expired, or otherwise invalid. Non-retryable.
type TokenRevokedError struct {
	Reason string
}

func (e *TokenRevokedError) Error() string {
	return fmt.Sprintf("token revoked: %s", e.Reason)
}

// IsTokenRevoked recognizes a TokenRevokedError, or (as a documented
// compatibility shim) an error whose message case-insensitively contains one
// of "revoked"/"invalid"/"expired"/"unauthorized" together with "token".
func IsTokenRevoked(err error) bool {
	if err == nil {
		return false
	}
	var tr *TokenRevokedError
	if asTokenRevoked(err, &tr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "token") {
		return false
	}
	for _, substr := range []string{"revoked", "invalid", "expired", "unauthorized"} {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func asTokenRevoked(err error, target **TokenRevokedError) bool {
	for err != nil {
		if tr, ok := err.(*TokenRevokedError); ok {
			*target = tr
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// OAuthStateInvalidError indicates the OAuth state parameter failed signature validation.
type OAuthStateInvalidError struct{}

func (e *OAuthStateInvalidError) Error() string { return "oauth state invalid" }

// OAuthStateMissingError indicates a validly-signed state had no matching pending row.
type OAuthStateMissingError struct{}

func (e *OAuthStateMissingError) Error() string { return "oauth state missing or expired" }

// OAuthExchangeFailedError wraps a failure exchanging an authorization code for tokens.
type OAuthExchangeFailedError struct {
	Err error
}

func (e *OAuthExchangeFailedError) Error() string {
	return fmt.Sprintf("oauth exchange failed: %v", e.Err)
}

func (e *OAuthExchangeFailedError) Unwrap() error { return e.Err }

// LockNotAcquiredError indicates a distributed lock was already held.
type LockNotAcquiredError struct {
	LockKey string
}

func (e *LockNotAcquiredError) Error() string {
	return fmt.Sprintf("lock not acquired: %s", e.LockKey)
}
