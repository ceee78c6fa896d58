package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"skyflow/internal/models"
)

func (s *Store) CreateAnnouncement(ctx context.Context, a models.Announcement) (models.Announcement, error) {
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO announcements(id,title,body,created_at) VALUES(?,?,?,?)`,
		a.ID, a.Title, a.Body, a.CreatedAt,
	)
	return a, err
}

func (s *Store) ListAnnouncements(ctx context.Context, limit, offset int) ([]models.Announcement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,title,body,created_at FROM announcements ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Announcement
	for rows.Next() {
		var a models.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
