package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"skyflow/internal/models"
)

const agreementCols = `id,email,apartment_id,block,floor_no,apartment_no,rent,status,requested_at,decided_at,decided_by`

// CreateAgreement inserts a new pending request. The partial unique index on
// agreements(email) over the active status class is the source of truth for
// the one-active-agreement invariant; a concurrent duplicate insert comes
// back as ErrConflict.
func (s *Store) CreateAgreement(ctx context.Context, a models.Agreement) (models.Agreement, error) {
	a.ID = uuid.NewString()
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.Status = models.AgreementPending
	a.RequestedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agreements(id,email,apartment_id,block,floor_no,apartment_no,rent,status,requested_at) VALUES(?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Email, a.ApartmentID, a.Block, a.FloorNo, a.ApartmentNo, a.Rent, a.Status, a.RequestedAt,
	)
	if isUniqueViolation(err) {
		return models.Agreement{}, ErrConflict
	}
	if err != nil {
		return models.Agreement{}, err
	}
	return a, nil
}

func (s *Store) GetAgreementByID(ctx context.Context, id string) (models.Agreement, error) {
	return s.scanAgreement(s.db.QueryRowContext(ctx,
		`SELECT `+agreementCols+` FROM agreements WHERE id=?`, id,
	))
}

// GetActiveAgreementByEmail returns the email's agreement in the active
// status class, of which at most one can exist.
func (s *Store) GetActiveAgreementByEmail(ctx context.Context, email string) (models.Agreement, error) {
	return s.scanAgreement(s.db.QueryRowContext(ctx,
		`SELECT `+agreementCols+` FROM agreements
		 WHERE email=? AND status IN ('pending','approved','booked','checked')`,
		strings.ToLower(strings.TrimSpace(email)),
	))
}

// DeleteRejectedAgreements purges leftover rejected records for an email so
// a fresh request can be inserted.
func (s *Store) DeleteRejectedAgreements(ctx context.Context, email string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM agreements WHERE email=? AND status='rejected'`,
		strings.ToLower(strings.TrimSpace(email)),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ListAgreementsByStatus(ctx context.Context, status models.AgreementStatus, limit, offset int) ([]models.Agreement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+agreementCols+` FROM agreements WHERE status=? ORDER BY requested_at ASC LIMIT ? OFFSET ?`,
		status, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Agreement
	for rows.Next() {
		a, err := scanAgreementRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CountAgreementsByStatus(ctx context.Context, status models.AgreementStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agreements WHERE status=?`, status).Scan(&n)
	return n, err
}

// DecideAgreement applies one status transition, conditional on the row
// still holding the expected current status; the loser of a race observes
// ErrConflict. An empty apartmentID keeps the one requested at submission.
func (s *Store) DecideAgreement(ctx context.Context, id string, from, to models.AgreementStatus, apartmentID, decidedBy string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE agreements
		 SET status=?, apartment_id=CASE WHEN ?<>'' THEN ? ELSE apartment_id END, decided_at=?, decided_by=?
		 WHERE id=? AND status=?`,
		to, apartmentID, apartmentID, now, decidedBy, id, from,
	)
	return affectedOrConflict(res, err)
}

// RejectAgreement does not require the prior status to be pending; a repeat
// call matches zero rows and surfaces ErrConflict so callers can report
// NoChange instead of pretending the write happened.
func (s *Store) RejectAgreement(ctx context.Context, id, decidedBy string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE agreements SET status='rejected', decided_at=?, decided_by=? WHERE id=? AND status<>'rejected'`,
		now, decidedBy, id,
	)
	return affectedOrConflict(res, err)
}

// ForceRejectApprovedByEmail flips an email's approved agreement to rejected
// as part of the admin downgrade; returns the number of rows touched (zero
// when the member had no approved agreement, which is not an error).
func (s *Store) ForceRejectApprovedByEmail(ctx context.Context, email, decidedBy string) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE agreements SET status='rejected', decided_at=?, decided_by=? WHERE email=? AND status='approved'`,
		now, decidedBy, strings.ToLower(strings.TrimSpace(email)),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ApproveAgreement runs the approval's three writes in one transaction, in
// the fixed order apartment -> user -> agreement. Every write is conditional
// on the expected prior state, so a racing approval rolls back with
// ErrConflict rather than double-applying occupancy or role changes.
func (s *Store) ApproveAgreement(ctx context.Context, agreementID, apartmentID, email, decidedBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	email = strings.ToLower(strings.TrimSpace(email))

	res, err := tx.ExecContext(ctx,
		`UPDATE apartments SET occupancy='rented' WHERE id=? AND occupancy='available'`, apartmentID)
	if err := affectedOrConflict(res, err); err != nil {
		return err
	}
	res, err = tx.ExecContext(ctx,
		`UPDATE users SET role='member' WHERE email=? AND role='user'`, email)
	if err := affectedOrConflict(res, err); err != nil {
		return err
	}
	res, err = tx.ExecContext(ctx,
		`UPDATE agreements SET status='approved', apartment_id=?, decided_at=?, decided_by=? WHERE id=? AND status='pending'`,
		apartmentID, now, decidedBy, agreementID)
	if err := affectedOrConflict(res, err); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) scanAgreement(row *sql.Row) (models.Agreement, error) {
	var a models.Agreement
	var decidedAt sql.NullTime
	var decidedBy sql.NullString
	err := row.Scan(&a.ID, &a.Email, &a.ApartmentID, &a.Block, &a.FloorNo, &a.ApartmentNo, &a.Rent, &a.Status, &a.RequestedAt, &decidedAt, &decidedBy)
	if err == sql.ErrNoRows {
		return models.Agreement{}, ErrNotFound
	}
	if err != nil {
		return models.Agreement{}, err
	}
	applyAgreementNullables(&a, decidedAt, decidedBy)
	return a, nil
}

func scanAgreementRow(rows *sql.Rows) (models.Agreement, error) {
	var a models.Agreement
	var decidedAt sql.NullTime
	var decidedBy sql.NullString
	if err := rows.Scan(&a.ID, &a.Email, &a.ApartmentID, &a.Block, &a.FloorNo, &a.ApartmentNo, &a.Rent, &a.Status, &a.RequestedAt, &decidedAt, &decidedBy); err != nil {
		return models.Agreement{}, err
	}
	applyAgreementNullables(&a, decidedAt, decidedBy)
	return a, nil
}

func applyAgreementNullables(a *models.Agreement, decidedAt sql.NullTime, decidedBy sql.NullString) {
	if decidedAt.Valid {
		t := decidedAt.Time
		a.DecidedAt = &t
	}
	if decidedBy.Valid {
		v := decidedBy.String
		a.DecidedBy = &v
	}
}
