package oauthflow

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// mintState builds the signed CSRF state string: "{store_id}_{nonce_hex}_{sig_hex}".
// nonce is 8 random bytes (16 hex chars); sig is the first 16 hex chars of
// HMAC-SHA256(secret, "{store_id}:{nonce_hex}").
func mintState(storeID, secret string) (string, error) {
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	nonceHex := hex.EncodeToString(nonce)
	sig := signState(storeID, nonceHex, secret)
	return fmt.Sprintf("%s_%s_%s", storeID, nonceHex, sig), nil
}

func signState(storeID, nonceHex, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(storeID + ":" + nonceHex))
	full := hex.EncodeToString(mac.Sum(nil))
	return full[:16]
}

// validateState rightmost-splits state into (storeID, nonceHex, sig),
// recomputes the signature in constant time, and returns the store_id on
// success. store_id itself may contain underscores, so the split takes the
// rightmost two "_"-delimited segments as nonce and sig and rejoins
// everything else as store_id.
func validateState(state, secret string) (storeID string, ok bool) {
	parts := strings.Split(state, "_")
	if len(parts) < 3 {
		return "", false
	}

	sig := parts[len(parts)-1]
	nonceHex := parts[len(parts)-2]
	storeID = strings.Join(parts[:len(parts)-2], "_")

	expected := signState(storeID, nonceHex, secret)
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return "", false
	}
	return storeID, true
}
