package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/els777/TGtoWP/internal/core/domain"
	"github.com/els777/TGtoWP/internal/core/ports"
)

// PostgresStorage keeps one draft row per user id in Postgres.
type PostgresStorage struct {
	Pool *pgxpool.Pool
}

var _ ports.SessionStore = (*PostgresStorage)(nil)

func NewPostgresStorage(ctx context.Context, connStr string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	s := &PostgresStorage{Pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStorage) initSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS drafts (
		user_id BIGINT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		category_id INT NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		schedule_date TEXT NOT NULL DEFAULT '',
		schedule_time TEXT NOT NULL DEFAULT '',
		schedule_at TEXT NOT NULL DEFAULT '',
		preview_shown BOOLEAN NOT NULL DEFAULT FALSE
	)`)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Save(ctx context.Context, userID int64, d domain.Draft) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO drafts (user_id, title, body, category_id, tags, image, image_url,
			schedule_date, schedule_time, schedule_at, preview_shown)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (user_id) DO UPDATE SET
			title = $2, body = $3, category_id = $4, tags = $5, image = $6,
			image_url = $7, schedule_date = $8, schedule_time = $9,
			schedule_at = $10, preview_shown = $11`,
		userID, d.Title, d.Body, d.CategoryID, joinTags(d.Tags), d.Image, d.MirrorURL,
		d.ScheduleDate, d.ScheduleTime, d.ScheduleAt, d.PreviewShown)
	return err
}

func (s *PostgresStorage) Load(ctx context.Context, userID int64) (domain.Draft, bool, error) {
	var d domain.Draft
	var tags string
	err := s.Pool.QueryRow(ctx,
		`SELECT title, body, category_id, tags, image, image_url,
			schedule_date, schedule_time, schedule_at, preview_shown
		 FROM drafts WHERE user_id = $1`, userID).
		Scan(&d.Title, &d.Body, &d.CategoryID, &tags, &d.Image, &d.MirrorURL,
			&d.ScheduleDate, &d.ScheduleTime, &d.ScheduleAt, &d.PreviewShown)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Draft{}, false, nil
	}
	if err != nil {
		return domain.Draft{}, false, err
	}
	d.Tags = splitTags(tags)
	return d, true, nil
}

func (s *PostgresStorage) Delete(ctx context.Context, userID int64) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM drafts WHERE user_id = $1`, userID)
	return err
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
