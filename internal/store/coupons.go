package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"skyflow/internal/models"
)

func (s *Store) CreateCoupon(ctx context.Context, c models.Coupon) (models.Coupon, error) {
	c.ID = uuid.NewString()
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	c.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO coupons(id,code,discount_pct,description,active,created_at) VALUES(?,?,?,?,?,?)`,
		c.ID, c.Code, c.DiscountPct, c.Description, boolToInt(c.Active), c.CreatedAt,
	)
	if isUniqueViolation(err) {
		return models.Coupon{}, ErrConflict
	}
	if err != nil {
		return models.Coupon{}, err
	}
	return c, nil
}

func (s *Store) GetCouponByCode(ctx context.Context, code string) (models.Coupon, error) {
	var c models.Coupon
	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT id,code,discount_pct,description,active,created_at FROM coupons WHERE code=?`,
		strings.ToUpper(strings.TrimSpace(code)),
	).Scan(&c.ID, &c.Code, &c.DiscountPct, &c.Description, &active, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Coupon{}, ErrNotFound
	}
	if err != nil {
		return models.Coupon{}, err
	}
	c.Active = active == 1
	return c, nil
}

func (s *Store) ListCoupons(ctx context.Context, activeOnly bool) ([]models.Coupon, error) {
	q := `SELECT id,code,discount_pct,description,active,created_at FROM coupons ORDER BY created_at DESC`
	if activeOnly {
		q = `SELECT id,code,discount_pct,description,active,created_at FROM coupons WHERE active=1 ORDER BY created_at DESC`
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Coupon
	for rows.Next() {
		var c models.Coupon
		var active int
		if err := rows.Scan(&c.ID, &c.Code, &c.DiscountPct, &c.Description, &active, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Active = active == 1
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) SetCouponActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE coupons SET active=? WHERE id=?`, boolToInt(active), id)
	return affectedOrConflict(res, err)
}

func (s *Store) DeleteCoupon(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM coupons WHERE id=?`, id)
	return affectedOrConflict(res, err)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
