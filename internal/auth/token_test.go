package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	tk := NewTokens("test-secret-long-enough-for-hs256", time.Hour)
	raw, err := tk.Issue("u1@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	email, err := tk.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if email != "u1@example.com" {
		t.Fatalf("expected subject u1@example.com, got %q", email)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	tk := NewTokens("test-secret-long-enough-for-hs256", -time.Minute)
	raw, err := tk.Issue("u1@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := tk.Verify(raw); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	tk := NewTokens("test-secret-long-enough-for-hs256", time.Hour)
	raw, err := tk.Issue("u1@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	if _, err := tk.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	issuer := NewTokens("issuer-secret-long-enough-12345", time.Hour)
	verifier := NewTokens("verifier-secret-long-enough-123", time.Hour)
	raw, err := issuer.Issue("u1@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
