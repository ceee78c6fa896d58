package payments

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"skyflow/internal/config"
	"skyflow/internal/models"
)

func TestSQLLedgerAppend(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "ledger.db")
	setup, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = setup.Exec(`CREATE TABLE rent_payments (
        email TEXT NOT NULL,
        amount INTEGER NOT NULL,
        month TEXT NOT NULL,
        reference TEXT NOT NULL UNIQUE,
        paid_at TIMESTAMP NOT NULL
    )`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	_ = setup.Close()

	cfg := config.Config{
		LedgerDriver:    "sqlite",
		LedgerDSN:       dsn,
		LedgerTable:     "rent_payments",
		LedgerEmailCol:  "email",
		LedgerAmountCol: "amount",
		LedgerMonthCol:  "month",
		LedgerRefCol:    "reference",
		LedgerPaidAtCol: "paid_at",
	}
	ledger, err := NewLedger(cfg)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if _, ok := ledger.(*SQLLedger); !ok {
		t.Fatalf("expected SQLLedger, got %T", ledger)
	}

	p := models.Payment{
		ID:     "pay-1",
		Email:  "member@example.com",
		Month:  "2026-08",
		Amount: 25000,
		PaidAt: time.Now().UTC(),
	}
	if err := ledger.Append(context.Background(), p); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Mirroring the same payment again must not error.
	if err := ledger.Append(context.Background(), p); err != nil {
		t.Fatalf("repeat append: %v", err)
	}

	check, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer check.Close()
	var n int
	if err := check.QueryRow("SELECT COUNT(*) FROM rent_payments WHERE reference = 'pay-1'").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 mirrored row, got %d", n)
	}
}

func TestNewLedgerRejectsBadIdentifier(t *testing.T) {
	cfg := config.Config{
		LedgerDriver:    "sqlite",
		LedgerDSN:       "file:whatever",
		LedgerTable:     "rent_payments; DROP TABLE users",
		LedgerEmailCol:  "email",
		LedgerAmountCol: "amount",
		LedgerMonthCol:  "month",
		LedgerRefCol:    "reference",
		LedgerPaidAtCol: "paid_at",
	}
	if _, err := NewLedger(cfg); err == nil {
		t.Fatal("expected identifier validation error")
	}
}

func TestNewLedgerDefaultsToNoop(t *testing.T) {
	l, err := NewLedger(config.Config{})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if _, ok := l.(NoopLedger); !ok {
		t.Fatalf("expected NoopLedger, got %T", l)
	}
}
