package crypto

import (
	"strings"
	"testing"
)

const testKeyHex = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := NewVault(testKeyHex)
	if err != nil {
		t.Fatalf("NewVault() error: %v", err)
	}

	plaintext := "super-secret-access-token"
	ciphertext, err := v.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	got, err := v.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if got != plaintext {
		t.Errorf("Decrypt() = %q, want %q", got, plaintext)
	}
}

func TestEncryptProducesUniqueNonces(t *testing.T) {
	v, err := NewVault(testKeyHex)
	if err != nil {
		t.Fatalf("NewVault() error: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		ct, err := v.Encrypt("same-plaintext")
		if err != nil {
			t.Fatalf("Encrypt() error: %v", err)
		}
		if seen[ct] {
			t.Fatalf("duplicate ciphertext on iteration %d", i)
		}
		seen[ct] = true
	}
}

func TestDecryptCorruptCiphertextFails(t *testing.T) {
	v, err := NewVault(testKeyHex)
	if err != nil {
		t.Fatalf("NewVault() error: %v", err)
	}

	ct, err := v.Encrypt("hello")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	tampered := ct[:len(ct)-2] + "xx"
	if _, err := v.Decrypt(tampered); err == nil {
		t.Fatal("expected error decrypting tampered ciphertext")
	}
}

func TestNewVaultRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not hex", "not-hex-at-all-zz"},
		{"wrong length", "0123456789abcdef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewVault(tt.key); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestEnvelopeHasVersionPrefix(t *testing.T) {
	v, err := NewVault(testKeyHex)
	if err != nil {
		t.Fatalf("NewVault() error: %v", err)
	}
	ct, err := v.Encrypt("x")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if !strings.HasPrefix(ct, envelopePrefix) {
		t.Errorf("ciphertext %q missing prefix %q", ct, envelopePrefix)
	}
}
