package auth

import (
	"strings"
	"testing"
	"time"
)

func TestHashAndCheckPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Fatalf("expected correct password to check out")
	}
	if CheckPassword(hash, "wrong password") {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestGenerateAPIKeyFormat(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("expected a 32-character key, got %d", len(key))
	}
	for _, r := range key {
		if !strings.ContainsRune(apiKeyAlphabet, r) {
			t.Fatalf("key contains character outside alphabet: %q", r)
		}
	}

	other, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}
	if key == other {
		t.Fatalf("expected two distinct keys")
	}
}

func TestIssueAndVerifyTokenRoundTrip(t *testing.T) {
	secret := "test-secret"
	tok, err := IssueToken(secret, "user-123", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	userID, err := VerifyToken(secret, tok)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if userID != "user-123" {
		t.Fatalf("expected subject user-123, got %q", userID)
	}
}

func TestVerifyTokenRejectsWrongSecretAndExpired(t *testing.T) {
	tok, err := IssueToken("right-secret", "user-123", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := VerifyToken("wrong-secret", tok); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	expired, err := IssueToken("right-secret", "user-123", -time.Minute)
	if err != nil {
		t.Fatalf("issue expired token: %v", err)
	}
	if _, err := VerifyToken("right-secret", expired); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}
