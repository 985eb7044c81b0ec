package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/els777/TGtoWP/internal/core/domain"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "bot_data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	draft := domain.Draft{
		Title:        "Hello",
		Body:         "Intro <!--more--> Rest",
		CategoryID:   21,
		Tags:         []string{"Go", "Tips"},
		Image:        "https://files.example/pic.jpg",
		MirrorURL:    "https://wp.example/cover.jpg",
		ScheduleDate: "2025-03-01",
		ScheduleTime: "14:30",
		ScheduleAt:   "2025-03-01T14:30:00",
		PreviewShown: true,
	}
	require.NoError(t, s.Save(ctx, 1, draft))

	got, ok, err := s.Load(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, draft, got, "date and time values round-trip losslessly")
}

func TestSQLiteLoadMissing(t *testing.T) {
	s := newTestStore(t)

	got, ok, err := s.Load(context.Background(), 42)
	require.NoError(t, err, "missing key is not an error")
	assert.False(t, ok)
	assert.True(t, got.Empty())
}

func TestSQLiteSaveOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, 1, domain.Draft{Title: "first", Tags: []string{"a"}}))
	require.NoError(t, s.Save(ctx, 1, domain.Draft{Title: "second"}))

	got, ok, err := s.Load(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", got.Title)
	assert.Empty(t, got.Tags, "save replaces the record wholesale")
}

func TestSQLiteDeleteIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, 1, domain.Draft{Title: "x"}))
	require.NoError(t, s.Delete(ctx, 1))
	require.NoError(t, s.Delete(ctx, 1))

	_, ok, err := s.Load(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteIsolatesUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, 1, domain.Draft{Title: "one"}))
	require.NoError(t, s.Save(ctx, 2, domain.Draft{Title: "two"}))
	require.NoError(t, s.Delete(ctx, 1))

	got, ok, err := s.Load(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "two", got.Title)
}
