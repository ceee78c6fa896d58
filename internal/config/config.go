package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr string

	DBPath            string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	SessionCookieName string
	SessionHours      int
	JWTSecret         string
	CSRFCookieName    string
	CookieSecureMode  string
	TrustProxy        bool
	CORSAllowedOrigins []string

	HTTPReadTimeoutSec       int
	HTTPReadHeaderTimeoutSec int
	HTTPWriteTimeoutSec      int
	HTTPIdleTimeoutSec       int

	BootstrapAdminEmail string
	BootstrapAdminName  string

	LedgerDriver    string
	LedgerDSN       string
	LedgerTable     string
	LedgerEmailCol  string
	LedgerAmountCol string
	LedgerMonthCol  string
	LedgerRefCol    string
	LedgerPaidAtCol string

	NotifySender string
	SMTPHost     string
	SMTPPort     int
	NotifyFrom   string

	SweepIntervalMin int
}

func Load() (Config, error) {
	cfg := Config{
		ListenAddr:               env("LISTEN_ADDR", ":9000"),
		DBPath:                   env("APP_DB_PATH", "./data/app.db"),
		DBMaxOpenConns:           envInt("APP_DB_MAX_OPEN_CONNS", 4),
		DBMaxIdleConns:           envInt("APP_DB_MAX_IDLE_CONNS", 2),
		DBConnMaxLifetime:        time.Duration(envInt("APP_DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
		SessionCookieName:        env("SESSION_COOKIE_NAME", "skyflow_session"),
		SessionHours:             envInt("SESSION_HOURS", 24),
		JWTSecret:                env("JWT_SECRET", "CHANGE_ME_PRODUCTION_JWT_SECRET"),
		CSRFCookieName:           env("CSRF_COOKIE_NAME", "skyflow_csrf"),
		CookieSecureMode:         strings.ToLower(env("COOKIE_SECURE_MODE", "auto")),
		TrustProxy:               envBool("TRUST_PROXY", false),
		CORSAllowedOrigins:       envCSV("CORS_ALLOWED_ORIGINS"),
		HTTPReadTimeoutSec:       envInt("HTTP_READ_TIMEOUT_SEC", 10),
		HTTPReadHeaderTimeoutSec: envInt("HTTP_READ_HEADER_TIMEOUT_SEC", 5),
		HTTPWriteTimeoutSec:      envInt("HTTP_WRITE_TIMEOUT_SEC", 30),
		HTTPIdleTimeoutSec:       envInt("HTTP_IDLE_TIMEOUT_SEC", 60),
		BootstrapAdminEmail:      env("BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminName:       env("BOOTSTRAP_ADMIN_NAME", "Administrator"),
		LedgerDriver:             strings.ToLower(env("PAYMENT_LEDGER_DRIVER", "")),
		LedgerDSN:                env("PAYMENT_LEDGER_DSN", ""),
		LedgerTable:              env("PAYMENT_LEDGER_TABLE", "rent_payments"),
		LedgerEmailCol:           env("PAYMENT_LEDGER_EMAIL_COL", "email"),
		LedgerAmountCol:          env("PAYMENT_LEDGER_AMOUNT_COL", "amount"),
		LedgerMonthCol:           env("PAYMENT_LEDGER_MONTH_COL", "month"),
		LedgerRefCol:             env("PAYMENT_LEDGER_REF_COL", "reference"),
		LedgerPaidAtCol:          env("PAYMENT_LEDGER_PAID_AT_COL", "paid_at"),
		NotifySender:             strings.ToLower(env("NOTIFY_SENDER", "log")),
		SMTPHost:                 env("SMTP_HOST", "127.0.0.1"),
		SMTPPort:                 envInt("SMTP_PORT", 587),
		NotifyFrom:               env("NOTIFY_FROM", "no-reply@skyflow.example"),
		SweepIntervalMin:         envInt("RECON_SWEEP_INTERVAL_MIN", 10),
	}

	if cfg.SessionHours <= 0 {
		return Config{}, fmt.Errorf("session lifetime must be positive")
	}
	if cfg.DBMaxOpenConns <= 0 || cfg.DBMaxIdleConns < 0 {
		return Config{}, fmt.Errorf("invalid DB pool config")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" ||
		cfg.JWTSecret == "CHANGE_ME_PRODUCTION_JWT_SECRET" ||
		len(cfg.JWTSecret) < 24 {
		return Config{}, fmt.Errorf("JWT_SECRET must be set to a strong non-default value (>=24 chars)")
	}
	switch cfg.CookieSecureMode {
	case "auto", "always", "never":
	default:
		return Config{}, fmt.Errorf("COOKIE_SECURE_MODE must be one of: auto, always, never")
	}
	if cfg.CookieSecureMode == "never" && !isLocalListen(cfg.ListenAddr) {
		return Config{}, fmt.Errorf("COOKIE_SECURE_MODE=never is allowed only for local listen addresses")
	}
	switch cfg.LedgerDriver {
	case "", "pgx", "mysql", "sqlite":
	default:
		return Config{}, fmt.Errorf("PAYMENT_LEDGER_DRIVER must be one of: pgx, mysql, sqlite")
	}
	if cfg.LedgerDriver != "" && strings.TrimSpace(cfg.LedgerDSN) == "" {
		return Config{}, fmt.Errorf("PAYMENT_LEDGER_DSN is required when PAYMENT_LEDGER_DRIVER is set")
	}
	switch cfg.NotifySender {
	case "log", "smtp":
	default:
		return Config{}, fmt.Errorf("NOTIFY_SENDER must be one of: log, smtp")
	}
	if cfg.SMTPPort <= 0 {
		return Config{}, fmt.Errorf("invalid SMTP port")
	}
	if cfg.SweepIntervalMin <= 0 {
		return Config{}, fmt.Errorf("reconciliation sweep interval must be positive")
	}
	return cfg, nil
}

func (c Config) SessionDuration() time.Duration {
	return time.Duration(c.SessionHours) * time.Hour
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMin) * time.Minute
}

// ResolveCookieSecure decides the Secure cookie attribute per request so a
// deployment behind a TLS-terminating proxy still gets secure cookies.
func (c Config) ResolveCookieSecure(r *http.Request) bool {
	switch c.CookieSecureMode {
	case "always":
		return true
	case "never":
		return false
	}
	if r == nil {
		return true
	}
	if r.TLS != nil {
		return true
	}
	if c.TrustProxy && strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return false
}

func env(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}

func envCSV(k string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isLocalListen(addr string) bool {
	a := strings.ToLower(strings.TrimSpace(addr))
	return strings.Contains(a, "127.0.0.1") || strings.Contains(a, "localhost") || strings.Contains(a, "[::1]") || strings.HasPrefix(a, ":")
}
