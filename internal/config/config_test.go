package config

import (
	"net/http/httptest"
	"testing"
)

func TestLoadRejectsDefaultJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "CHANGE_ME_PRODUCTION_JWT_SECRET")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected Load to fail with default JWT secret")
	}
}

func TestLoadRejectsInvalidCookieSecureMode(t *testing.T) {
	t.Setenv("JWT_SECRET", "this_is_a_valid_long_jwt_secret_123456")
	t.Setenv("COOKIE_SECURE_MODE", "sometimes")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected Load to fail for invalid COOKIE_SECURE_MODE")
	}
}

func TestLoadRejectsLedgerDriverWithoutDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", "this_is_a_valid_long_jwt_secret_123456")
	t.Setenv("PAYMENT_LEDGER_DRIVER", "pgx")
	t.Setenv("PAYMENT_LEDGER_DSN", "")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected Load to fail when ledger driver has no DSN")
	}
}

func TestLoadRejectsUnknownLedgerDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "this_is_a_valid_long_jwt_secret_123456")
	t.Setenv("PAYMENT_LEDGER_DRIVER", "oracle")
	t.Setenv("PAYMENT_LEDGER_DSN", "x")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected Load to fail for unsupported ledger driver")
	}
}

func TestResolveCookieSecureAuto(t *testing.T) {
	t.Setenv("JWT_SECRET", "this_is_a_valid_long_jwt_secret_123456")
	t.Setenv("COOKIE_SECURE_MODE", "auto")
	t.Setenv("TRUST_PROXY", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest("GET", "http://example.test", nil)
	if got := cfg.ResolveCookieSecure(req); got {
		t.Fatalf("expected http request to resolve secure=false")
	}

	req.Header.Set("X-Forwarded-Proto", "https")
	if got := cfg.ResolveCookieSecure(req); !got {
		t.Fatalf("expected proxied https request to resolve secure=true")
	}

	tlsReq := httptest.NewRequest("GET", "https://example.test", nil)
	if got := cfg.ResolveCookieSecure(tlsReq); !got {
		t.Fatalf("expected tls request to resolve secure=true")
	}
}
