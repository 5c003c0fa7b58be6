package oauthflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

type fakeTokenStorer struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeTokenStorer) StoreTokens(ctx context.Context, storeID, platformOpenID, accessToken, refreshToken, scope string, accessExpiresAt, refreshExpiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, storeID)
	return nil
}

func TestHandleAuthURLRejectsBadStoreID(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	h, _ := newTestHandler(t, srv)
	api := NewHTTPHandler(h, &fakeTokenStorer{})

	req := httptest.NewRequest(http.MethodGet, "/auth/url?store_id=bad/id!", nil)
	rec := httptest.NewRecorder()
	api.HandleAuthURL(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleAuthURLReturnsURL(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	h, _ := newTestHandler(t, srv)
	api := NewHTTPHandler(h, &fakeTokenStorer{})

	req := httptest.NewRequest(http.MethodGet, "/auth/url?store_id=store-1", nil)
	rec := httptest.NewRecorder()
	api.HandleAuthURL(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestHandleInitiateRedirects(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	h, _ := newTestHandler(t, srv)
	api := NewHTTPHandler(h, &fakeTokenStorer{})

	req := httptest.NewRequest(http.MethodGet, "/connect/initiate?store_id=store-1", nil)
	rec := httptest.NewRecorder()
	api.HandleInitiate(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc == "" {
		t.Error("missing Location header")
	}
}

func TestHandleCallbackMissingParams(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	h, _ := newTestHandler(t, srv)
	api := NewHTTPHandler(h, &fakeTokenStorer{})

	req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
	rec := httptest.NewRecorder()
	api.HandleCallback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleCallbackInvalidState(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	h, _ := newTestHandler(t, srv)
	api := NewHTTPHandler(h, &fakeTokenStorer{})

	q := url.Values{"code": {"c"}, "state": {"store-1_deadbeefdeadbeef_0000000000000000"}}
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	api.HandleCallback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d, body: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

func TestHandleCallbackStoresTokensOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-tok", "refresh_token": "refresh-tok", "token_type": "Bearer",
			"open_id": "open-1", "expires_in": 3600, "refresh_expires_in": 86400,
		})
	}))
	defer srv.Close()
	h, _ := newTestHandler(t, srv)
	tokens := &fakeTokenStorer{}
	api := NewHTTPHandler(h, tokens)

	authReq := httptest.NewRequest(http.MethodGet, "/auth/url?store_id=store-1", nil)
	authRec := httptest.NewRecorder()
	api.HandleAuthURL(authRec, authReq)
	var body map[string]string
	if err := json.Unmarshal(authRec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding auth url response: %v", err)
	}
	parsed, err := url.Parse(body["auth_url"])
	if err != nil {
		t.Fatalf("parsing auth URL: %v", err)
	}
	state := parsed.Query().Get("state")

	q := url.Values{"code": {"auth-code"}, "state": {state}}
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	api.HandleCallback(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if len(tokens.calls) != 1 || tokens.calls[0] != "store-1" {
		t.Errorf("StoreTokens calls = %+v, want one call for store-1", tokens.calls)
	}
}
