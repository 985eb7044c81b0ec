package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/els777/TGtoWP/internal/core/domain"
	"github.com/els777/TGtoWP/internal/core/ports"
)

// SQLiteStorage is the default session store: a single-file sqlite database
// with one draft row per user id. Survives restarts, so a half-collected
// draft reloads where it left off.
type SQLiteStorage struct {
	DB *sql.DB
}

var _ ports.SessionStore = (*SQLiteStorage)(nil)

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	s := &SQLiteStorage{DB: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStorage) initSchema() error {
	_, err := s.DB.Exec(`CREATE TABLE IF NOT EXISTS drafts (
		user_id INTEGER PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		category_id INTEGER NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		schedule_date TEXT NOT NULL DEFAULT '',
		schedule_time TEXT NOT NULL DEFAULT '',
		schedule_at TEXT NOT NULL DEFAULT '',
		preview_shown INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Save(ctx context.Context, userID int64, d domain.Draft) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT OR REPLACE INTO drafts (user_id, title, body, category_id, tags, image,
			image_url, schedule_date, schedule_time, schedule_at, preview_shown)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, d.Title, d.Body, d.CategoryID, joinTags(d.Tags), d.Image, d.MirrorURL,
		d.ScheduleDate, d.ScheduleTime, d.ScheduleAt, d.PreviewShown)
	return err
}

func (s *SQLiteStorage) Load(ctx context.Context, userID int64) (domain.Draft, bool, error) {
	var d domain.Draft
	var tags string
	err := s.DB.QueryRowContext(ctx,
		`SELECT title, body, category_id, tags, image, image_url,
			schedule_date, schedule_time, schedule_at, preview_shown
		 FROM drafts WHERE user_id = ?`, userID).
		Scan(&d.Title, &d.Body, &d.CategoryID, &tags, &d.Image, &d.MirrorURL,
			&d.ScheduleDate, &d.ScheduleTime, &d.ScheduleAt, &d.PreviewShown)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Draft{}, false, nil
	}
	if err != nil {
		return domain.Draft{}, false, err
	}
	d.Tags = splitTags(tags)
	return d, true, nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, userID int64) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM drafts WHERE user_id = ?`, userID)
	return err
}

func (s *SQLiteStorage) Close() error {
	return s.DB.Close()
}
