package auth

import (
	"context"
	"testing"
	"time"
)

func newTestManager(clock func() time.Time) *TokenManager {
	return NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("test-signing-secret"),
		Issuer:        "storyloom-auth",
		Audience:      "storyloom-api",
		TokenTTL:      time.Minute,
		Clock:         clock,
	})
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	manager := newTestManager(nil)

	token, expiresIn, err := manager.IssueToken(context.Background(), "user-1", "admin")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if expiresIn != 60 {
		t.Fatalf("expected 60 second expiry, got %d", expiresIn)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %#v", claims)
	}
}

func TestIssueTokenRequiresSubject(t *testing.T) {
	manager := newTestManager(nil)
	if _, _, err := manager.IssueToken(context.Background(), "", "reader"); err == nil {
		t.Fatal("expected error for empty subject")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Unix(1700000000, 0)
	manager := newTestManager(func() time.Time { return issuedAt })

	token, _, err := manager.IssueToken(context.Background(), "user-1", "reader")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	later := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("test-signing-secret"),
		Issuer:        "storyloom-auth",
		Audience:      "storyloom-api",
		Clock:         func() time.Time { return issuedAt.Add(2 * time.Minute) },
	})
	if _, err := later.ValidateToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	manager := newTestManager(nil)
	token, _, err := manager.IssueToken(context.Background(), "user-1", "reader")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	other := NewTokenManager(TokenManagerConfig{
		SigningSecret: []byte("different-secret"),
		Issuer:        "storyloom-auth",
		Audience:      "storyloom-api",
	})
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatal("expected token signed by another secret to be rejected")
	}
}
