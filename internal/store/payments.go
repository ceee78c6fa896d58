package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"skyflow/internal/models"
)

func (s *Store) InsertPayment(ctx context.Context, p models.Payment) (models.Payment, error) {
	p.ID = uuid.NewString()
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.PaidAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments(id,email,agreement_id,apartment_no,month,amount,coupon_code,paid_at) VALUES(?,?,?,?,?,?,?,?)`,
		p.ID, p.Email, p.AgreementID, p.ApartmentNo, p.Month, p.Amount, p.CouponCode, p.PaidAt,
	)
	return p, err
}

func (s *Store) ListPaymentsByEmail(ctx context.Context, email string, limit, offset int) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,email,agreement_id,apartment_no,month,amount,coupon_code,paid_at FROM payments WHERE email=? ORDER BY paid_at DESC LIMIT ? OFFSET ?`,
		strings.ToLower(strings.TrimSpace(email)), limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.Email, &p.AgreementID, &p.ApartmentNo, &p.Month, &p.Amount, &p.CouponCode, &p.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
