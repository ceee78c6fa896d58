package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"skyflow/internal/models"
)

func (s *Store) CreateApartment(ctx context.Context, a models.Apartment) (models.Apartment, error) {
	a.ID = uuid.NewString()
	a.Occupancy = models.OccupancyAvailable
	a.ListedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO apartments(id,block,floor_no,apartment_no,rent,image_url,occupancy,listed_at) VALUES(?,?,?,?,?,?,?,?)`,
		a.ID, a.Block, a.FloorNo, a.ApartmentNo, a.Rent, a.ImageURL, a.Occupancy, a.ListedAt,
	)
	return a, err
}

func (s *Store) GetApartmentByID(ctx context.Context, id string) (models.Apartment, error) {
	var a models.Apartment
	err := s.db.QueryRowContext(ctx,
		`SELECT id,block,floor_no,apartment_no,rent,image_url,occupancy,listed_at FROM apartments WHERE id=?`, id,
	).Scan(&a.ID, &a.Block, &a.FloorNo, &a.ApartmentNo, &a.Rent, &a.ImageURL, &a.Occupancy, &a.ListedAt)
	if err == sql.ErrNoRows {
		return models.Apartment{}, ErrNotFound
	}
	if err != nil {
		return models.Apartment{}, err
	}
	return a, nil
}

// ListApartments returns one page plus the total count for the filter so the
// client can render pagination.
func (s *Store) ListApartments(ctx context.Context, q models.ApartmentQuery) ([]models.Apartment, int, error) {
	where := `WHERE rent >= ?`
	args := []any{q.MinRent}
	if q.MaxRent > 0 {
		where += ` AND rent <= ?`
		args = append(args, q.MaxRent)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM apartments `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, q.Limit, q.Offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,block,floor_no,apartment_no,rent,image_url,occupancy,listed_at FROM apartments `+where+` ORDER BY listed_at DESC LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Apartment
	for rows.Next() {
		var a models.Apartment
		if err := rows.Scan(&a.ID, &a.Block, &a.FloorNo, &a.ApartmentNo, &a.Rent, &a.ImageURL, &a.Occupancy, &a.ListedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// SetOccupancy flips the occupancy flag only from its expected current
// state; the loser of a race observes ErrConflict instead of double-applying.
func (s *Store) SetOccupancy(ctx context.Context, id string, from, to models.Occupancy) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE apartments SET occupancy=? WHERE id=? AND occupancy=?`, to, id, from,
	)
	return affectedOrConflict(res, err)
}

// DeleteApartment removes a listing; rented apartments cannot be removed.
func (s *Store) DeleteApartment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM apartments WHERE id=? AND occupancy='available'`, id,
	)
	return affectedOrConflict(res, err)
}

func (s *Store) CountApartmentsByOccupancy(ctx context.Context) (available, rented int, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT occupancy, COUNT(1) FROM apartments GROUP BY occupancy`)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var occ models.Occupancy
		var n int
		if err := rows.Scan(&occ, &n); err != nil {
			return 0, 0, err
		}
		switch occ {
		case models.OccupancyAvailable:
			available = n
		case models.OccupancyRented:
			rented = n
		}
	}
	return available, rented, rows.Err()
}

// ListOrphanRentedApartments finds apartments stuck in occupancy=rented with
// no active agreement referencing them: the crash window between Approve's
// writes and the downgrade path (which deliberately leaves occupancy alone)
// both produce these.
func (s *Store) ListOrphanRentedApartments(ctx context.Context) ([]models.Apartment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id,a.block,a.floor_no,a.apartment_no,a.rent,a.image_url,a.occupancy,a.listed_at
		 FROM apartments a
		 WHERE a.occupancy='rented'
		   AND NOT EXISTS (
		     SELECT 1 FROM agreements g
		     WHERE g.apartment_id=a.id
		       AND g.status IN ('approved','booked','checked')
		   )`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Apartment
	for rows.Next() {
		var a models.Apartment
		if err := rows.Scan(&a.ID, &a.Block, &a.FloorNo, &a.ApartmentNo, &a.Rent, &a.ImageURL, &a.Occupancy, &a.ListedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
