package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"storysync/internal/domain"
)

// migrations is an ordered list of SQL migrations. Each migration runs
// exactly once, tracked by the schema_version table. The version only
// grows; migrations are additive and never touch existing rows.
var migrations = []string{
	// Migration 1: cached stories with secondary orderings
	`
CREATE TABLE IF NOT EXISTS cached_stories (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL,
	photo_url TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	lat REAL,
	lon REAL,
	saved_at TEXT NOT NULL,
	is_offline INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_cached_stories_created_at ON cached_stories(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_cached_stories_name ON cached_stories(name);
`,
	// Migration 2: favorites, independent of the cache
	`
CREATE TABLE IF NOT EXISTS favorites (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL,
	photo_url TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	lat REAL,
	lon REAL,
	saved_at TEXT NOT NULL,
	is_favorite INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_favorites_saved_at ON favorites(saved_at DESC);
`,
}

// Open connects to the database at path and brings the schema up to date.
// Failures to open the engine or migrate wrap domain.ErrStoreUnavailable.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrStoreUnavailable, path, err)
	}

	// modernc.org/sqlite serializes writes itself, but a single connection
	// avoids SQLITE_BUSY between concurrent transactions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: set journal mode: %v", domain.ErrStoreUnavailable, err)
	}

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return db, nil
}

func applySchema(db *sqlx.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration number.
func SchemaVersion(db *sqlx.DB) (int, error) {
	var version int
	err := db.Get(&version, `SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err != nil {
		return 0, fmt.Errorf("%w: schema version: %v", domain.ErrReadFailed, err)
	}
	return version, nil
}
