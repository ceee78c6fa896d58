package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"skyflow/internal/models"
)

// UpsertUserOnLogin creates the user with default role user on first login
// and refreshes last_login_at (and name, when provided) afterwards.
func (s *Store) UpsertUserOnLogin(ctx context.Context, email, name string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id,email,name,role,created_at,last_login_at) VALUES(?,?,?,?,?,?)
		 ON CONFLICT(email) DO UPDATE SET
		   last_login_at=excluded.last_login_at,
		   name=CASE WHEN excluded.name<>'' THEN excluded.name ELSE users.name END`,
		uuid.NewString(), email, strings.TrimSpace(name), models.RoleUser, now, now,
	)
	if err != nil {
		return models.User{}, err
	}
	return s.GetUserByEmail(ctx, email)
}

func (s *Store) EnsureAdmin(ctx context.Context, email, name string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id,email,name,role,created_at) VALUES(?,?,?,?,?)
		 ON CONFLICT(email) DO UPDATE SET role='admin'`,
		uuid.NewString(), email, name, models.RoleAdmin, now,
	)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id,email,name,role,created_at,last_login_at FROM users WHERE email=?`,
		strings.ToLower(strings.TrimSpace(email)),
	))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id,email,name,role,created_at,last_login_at FROM users WHERE id=?`, id,
	))
}

func (s *Store) scanUser(row *sql.Row) (models.User, error) {
	var u models.User
	var lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt, &lastLogin)
	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

// SetUserRole moves a user's role only when it still has the expected
// current value, so two racing role transitions cannot both apply.
func (s *Store) SetUserRole(ctx context.Context, email string, from, to models.Role) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET role=? WHERE email=? AND role=?`,
		to, strings.ToLower(strings.TrimSpace(email)), from,
	)
	return affectedOrConflict(res, err)
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,email,name,role,created_at,last_login_at FROM users ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		var lastLogin sql.NullTime
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt, &lastLogin); err != nil {
			return nil, err
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			u.LastLoginAt = &t
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) CountUsersByRole(ctx context.Context, role models.Role) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE role=?`, role).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
