package catalog

import (
	"context"
	"fmt"
)

// Schema mirrors the subset of the external tool's database this pipeline
// touches. CREATE TABLE IF NOT EXISTS keeps us compatible with databases the
// tool has already populated; the unique index on media.path matches the
// tool's own constraint.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS media (
        id INTEGER PRIMARY KEY,
        playlists_id INTEGER,
        path TEXT,
        webpath TEXT,
        extractor_id TEXT,
        title TEXT,
        uploader TEXT,
        duration REAL,
        view_count INTEGER,
        time_uploaded INTEGER,
        live_status TEXT,
        error TEXT,
        download_attempts INTEGER DEFAULT 0
    )`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_media_path ON media(path)`,
	`CREATE INDEX IF NOT EXISTS idx_media_webpath ON media(webpath)`,
	`CREATE TABLE IF NOT EXISTS captions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        media_id INTEGER REFERENCES media(id),
        time REAL,
        text TEXT
    )`,
	`CREATE INDEX IF NOT EXISTS idx_captions_media ON captions(media_id, time)`,
	`CREATE TABLE IF NOT EXISTS playlists (
        id INTEGER PRIMARY KEY,
        extractor_playlist_id TEXT,
        title TEXT,
        path TEXT
    )`,
	`CREATE TABLE IF NOT EXISTS media_books_mapping (
        media_id INTEGER PRIMARY KEY,
        book_id INTEGER NOT NULL
    )`,
}

func (s *Store) applySchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
