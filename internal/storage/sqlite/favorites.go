package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"storysync/internal/domain"
)

type FavoriteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewFavoriteStore(db *sqlx.DB) *FavoriteStore {
	return &FavoriteStore{db: db, now: time.Now}
}

// Add upserts the story into the favorites collection, stamping saved_at
// with the time of favoriting. Re-favoriting refreshes the stamp.
func (s *FavoriteStore) Add(ctx context.Context, story domain.Story) error {
	if story.ID == "" {
		return fmt.Errorf("%w: story has empty id", domain.ErrWriteFailed)
	}

	query := `
		INSERT INTO favorites (
			id, name, description, photo_url, created_at, lat, lon, saved_at, is_favorite
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			photo_url = excluded.photo_url,
			created_at = excluded.created_at,
			lat = excluded.lat,
			lon = excluded.lon,
			saved_at = excluded.saved_at,
			is_favorite = excluded.is_favorite`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		story.ID,
		story.Name,
		story.Description,
		story.PhotoURL,
		story.CreatedAt,
		story.Lat,
		story.Lon,
		s.now().UTC().Format(savedAtFormat),
	)
	if err != nil {
		return fmt.Errorf("%w: favorite %s: %v", domain.ErrWriteFailed, story.ID, err)
	}
	return nil
}

// Remove is idempotent: removing an id that is not favorited succeeds.
func (s *FavoriteStore) Remove(ctx context.Context, id string) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, `DELETE FROM favorites WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: remove favorite %s: %v", domain.ErrWriteFailed, id, err)
	}
	return nil
}

func (s *FavoriteStore) List(ctx context.Context) ([]domain.FavoriteStory, error) {
	var stories []domain.FavoriteStory
	query := `
		SELECT id, name, description, photo_url, created_at, lat, lon, saved_at, is_favorite
		FROM favorites
		ORDER BY saved_at DESC, id DESC`

	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &stories, query); err != nil {
		return nil, fmt.Errorf("%w: list favorites: %v", domain.ErrReadFailed, err)
	}
	return stories, nil
}

func (s *FavoriteStore) Get(ctx context.Context, id string) (domain.FavoriteStory, error) {
	var story domain.FavoriteStory
	query := `
		SELECT id, name, description, photo_url, created_at, lat, lon, saved_at, is_favorite
		FROM favorites
		WHERE id = ?`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &story, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FavoriteStory{}, fmt.Errorf("%w: favorite %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.FavoriteStory{}, fmt.Errorf("%w: favorite %s: %v", domain.ErrReadFailed, id, err)
	}
	return story, nil
}

func (s *FavoriteStore) IsFavorite(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM favorites WHERE id = ?)`

	if err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &exists, query, id); err != nil {
		return false, fmt.Errorf("%w: favorite %s: %v", domain.ErrReadFailed, id, err)
	}
	return exists, nil
}

func (s *FavoriteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &count, `SELECT COUNT(*) FROM favorites`)
	if err != nil {
		return 0, fmt.Errorf("%w: count favorites: %v", domain.ErrReadFailed, err)
	}
	return count, nil
}
