package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"storysync/internal/domain"
)

// savedAtFormat is a fixed-width RFC 3339 variant (millisecond precision,
// no trimmed zeros) so that lexicographic order on saved_at is
// chronological.
const savedAtFormat = "2006-01-02T15:04:05.000Z07:00"

type CacheStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewCacheStore(db *sqlx.DB) *CacheStore {
	return &CacheStore{db: db, now: time.Now}
}

const upsertCachedQuery = `
	INSERT INTO cached_stories (
		id, name, description, photo_url, created_at, lat, lon, saved_at, is_offline
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		description = excluded.description,
		photo_url = excluded.photo_url,
		created_at = excluded.created_at,
		lat = excluded.lat,
		lon = excluded.lon,
		saved_at = excluded.saved_at,
		is_offline = excluded.is_offline`

// UpsertMany writes the batch inside one transaction. Every record gets a
// fresh saved_at and the is_offline marker; a failing record rolls the
// whole batch back. An empty batch succeeds without touching the store.
func (s *CacheStore) UpsertMany(ctx context.Context, stories []domain.Story) error {
	if len(stories) == 0 {
		return nil
	}

	if tx := GetTxFromContext(ctx); tx != nil {
		return s.upsertAll(ctx, tx, stories)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", domain.ErrWriteFailed, err)
	}

	if err := s.upsertAll(ctx, tx, stories); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrWriteFailed, err)
	}

	return nil
}

func (s *CacheStore) upsertAll(ctx context.Context, ex sqlx.ExtContext, stories []domain.Story) error {
	savedAt := s.now().UTC().Format(savedAtFormat)

	for _, story := range stories {
		if story.ID == "" {
			return fmt.Errorf("%w: story has empty id", domain.ErrWriteFailed)
		}
		_, err := ex.ExecContext(ctx, upsertCachedQuery,
			story.ID,
			story.Name,
			story.Description,
			story.PhotoURL,
			story.CreatedAt,
			story.Lat,
			story.Lon,
			savedAt,
		)
		if err != nil {
			return fmt.Errorf("%w: story %s: %v", domain.ErrWriteFailed, story.ID, err)
		}
	}

	return nil
}

// UpsertOne is the single-record analog of UpsertMany.
func (s *CacheStore) UpsertOne(ctx context.Context, story domain.Story) error {
	return s.UpsertMany(ctx, []domain.Story{story})
}

func (s *CacheStore) List(ctx context.Context) ([]domain.CachedStory, error) {
	var stories []domain.CachedStory
	query := `
		SELECT id, name, description, photo_url, created_at, lat, lon, saved_at, is_offline
		FROM cached_stories
		ORDER BY created_at DESC, id`

	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &stories, query); err != nil {
		return nil, fmt.Errorf("%w: list cached stories: %v", domain.ErrReadFailed, err)
	}
	return stories, nil
}

// Get returns domain.ErrNotFound for a missing id; any other error means
// the read itself failed.
func (s *CacheStore) Get(ctx context.Context, id string) (domain.CachedStory, error) {
	var story domain.CachedStory
	query := `
		SELECT id, name, description, photo_url, created_at, lat, lon, saved_at, is_offline
		FROM cached_stories
		WHERE id = ?`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &story, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CachedStory{}, fmt.Errorf("%w: story %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.CachedStory{}, fmt.Errorf("%w: story %s: %v", domain.ErrReadFailed, id, err)
	}
	return story, nil
}

// Delete is idempotent: deleting an id that is not cached succeeds.
func (s *CacheStore) Delete(ctx context.Context, id string) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, `DELETE FROM cached_stories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete story %s: %v", domain.ErrWriteFailed, id, err)
	}
	return nil
}

func (s *CacheStore) Clear(ctx context.Context) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, `DELETE FROM cached_stories`)
	if err != nil {
		return fmt.Errorf("%w: clear cached stories: %v", domain.ErrWriteFailed, err)
	}
	return nil
}

func (s *CacheStore) Count(ctx context.Context) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &count, `SELECT COUNT(*) FROM cached_stories`)
	if err != nil {
		return 0, fmt.Errorf("%w: count cached stories: %v", domain.ErrReadFailed, err)
	}
	return count, nil
}

// Search filters the full listing by a case-insensitive substring match on
// name or description, preserving List ordering. Filtering happens here
// rather than in SQL: LIKE is only case-insensitive for ASCII.
func (s *CacheStore) Search(ctx context.Context, query string) ([]domain.CachedStory, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var matched []domain.CachedStory
	for _, story := range all {
		if strings.Contains(strings.ToLower(story.Name), needle) ||
			strings.Contains(strings.ToLower(story.Description), needle) {
			matched = append(matched, story)
		}
	}
	return matched, nil
}
