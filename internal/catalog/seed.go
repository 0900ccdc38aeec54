package catalog

import (
	"context"
	"fmt"
)

// In production the external fetch tool writes media, caption, and playlist
// rows itself. These inserts exist for seeding fixtures and for import
// tooling that mirrors the tool's writes.

// InsertMedia creates a media row and returns its id.
func (s *Store) InsertMedia(ctx context.Context, m Media) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO media
	         (playlists_id, path, webpath, extractor_id, title, uploader, duration,
	          view_count, time_uploaded, live_status, error)
	         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.PlaylistID,
		m.Path,
		m.Webpath,
		nullableString(m.ExtractorID),
		nullableString(m.Title),
		nullableString(m.Uploader),
		m.Duration,
		m.ViewCount,
		m.TimeUploaded,
		nullableString(m.LiveStatus),
		nullableString(m.Error),
	)
	if err != nil {
		return 0, fmt.Errorf("insert media: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert media id: %w", err)
	}
	return id, nil
}

// InsertCaption creates one caption fragment.
func (s *Store) InsertCaption(ctx context.Context, c Caption) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO captions (media_id, time, text) VALUES (?, ?, ?)`,
		c.MediaID,
		c.Time,
		c.Text,
	)
	if err != nil {
		return fmt.Errorf("insert caption: %w", err)
	}
	return nil
}

// InsertPlaylist creates a playlist row.
func (s *Store) InsertPlaylist(ctx context.Context, path, title string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO playlists (path, title) VALUES (?, ?)`,
		path,
		title,
	)
	if err != nil {
		return fmt.Errorf("insert playlist: %w", err)
	}
	return nil
}

// UpdateViewStats fills in view count and upload time for a media path, the
// way the tool's per-item metadata pass does.
func (s *Store) UpdateViewStats(ctx context.Context, path string, viewCount, timeUploaded int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE media SET view_count = ?, time_uploaded = ? WHERE path = ?`,
		viewCount,
		timeUploaded,
		path,
	)
	if err != nil {
		return fmt.Errorf("update view stats: %w", err)
	}
	return nil
}

// UpdateMediaPath points a media row at a new path, the way the download
// tool replaces the URL with a filesystem location.
func (s *Store) UpdateMediaPath(ctx context.Context, id int64, path string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE media SET path = ? WHERE id = ?`, nullableString(path), id)
	if err != nil {
		return fmt.Errorf("update media path: %w", err)
	}
	return nil
}
