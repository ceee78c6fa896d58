package payments

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"skyflow/internal/config"
	"skyflow/internal/models"
)

var identRx = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Ledger mirrors accepted rent payments into an external accounting
// table. The primary record always lives in the application database;
// the mirror is best effort.
type Ledger interface {
	Append(ctx context.Context, p models.Payment) error
}

type NoopLedger struct{}

func (NoopLedger) Append(ctx context.Context, p models.Payment) error { return nil }

type SQLLedger struct {
	db        *sql.DB
	driver    string
	table     string
	emailCol  string
	amountCol string
	monthCol  string
	refCol    string
	paidAtCol string
}

func NewLedger(cfg config.Config) (Ledger, error) {
	if strings.TrimSpace(cfg.LedgerDriver) == "" || strings.TrimSpace(cfg.LedgerDSN) == "" {
		return NoopLedger{}, nil
	}
	for _, ident := range []string{cfg.LedgerTable, cfg.LedgerEmailCol, cfg.LedgerAmountCol, cfg.LedgerMonthCol, cfg.LedgerRefCol, cfg.LedgerPaidAtCol} {
		if !identRx.MatchString(ident) {
			return nil, fmt.Errorf("invalid SQL identifier %q", ident)
		}
	}
	db, err := sql.Open(cfg.LedgerDriver, cfg.LedgerDSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &SQLLedger{
		db:        db,
		driver:    cfg.LedgerDriver,
		table:     cfg.LedgerTable,
		emailCol:  cfg.LedgerEmailCol,
		amountCol: cfg.LedgerAmountCol,
		monthCol:  cfg.LedgerMonthCol,
		refCol:    cfg.LedgerRefCol,
		paidAtCol: cfg.LedgerPaidAtCol,
	}, nil
}

func (l *SQLLedger) Append(ctx context.Context, p models.Payment) error {
	cols := []string{l.emailCol, l.amountCol, l.monthCol, l.refCol, l.paidAtCol}
	vals := []any{p.Email, p.Amount, p.Month, p.ID, p.PaidAt}
	phs := make([]string, len(vals))
	for i := range vals {
		phs[i] = l.ph(i + 1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", l.table, strings.Join(cols, ","), strings.Join(phs, ","))
	_, err := l.db.ExecContext(ctx, q, vals...)
	if err != nil && isDuplicate(err) {
		// Same payment mirrored twice (retry after a partial failure).
		return nil
	}
	return err
}

func (l *SQLLedger) ph(i int) string {
	if strings.Contains(strings.ToLower(l.driver), "pgx") || strings.Contains(strings.ToLower(l.driver), "postgres") {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func isDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
