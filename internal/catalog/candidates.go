package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Candidates returns media rows still pointing at http(s) paths with no
// recorded error. Rows without a positive duration are returned separately
// as unavailable rather than treated as errors.
func (t *Tx) Candidates(ctx context.Context) (candidates []Candidate, unavailable []string, err error) {
	rows, err := t.tx.QueryContext(
		ctx,
		`SELECT path, duration, live_status FROM media
         WHERE path LIKE 'http%' AND (error IS NULL OR error = '')
         ORDER BY id`,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			path       string
			duration   sql.NullFloat64
			liveStatus sql.NullString
		)
		if err := rows.Scan(&path, &duration, &liveStatus); err != nil {
			return nil, nil, fmt.Errorf("scan candidate: %w", err)
		}
		if !duration.Valid || duration.Float64 <= 0 {
			unavailable = append(unavailable, path)
			continue
		}
		candidates = append(candidates, Candidate{
			Path:       path,
			Duration:   duration.Float64,
			LiveStatus: liveStatus.String,
		})
	}
	return candidates, unavailable, rows.Err()
}

// ViewStats returns view count and upload time for a media path. ok is false
// when the row is missing or either field is unset, which disqualifies the
// item from ranking. It reads in autocommit mode on purpose: the external
// tool backfills these columns through its own connection while a task is
// mid-flight, and a read inside an older transaction would never see them.
func (s *Store) ViewStats(ctx context.Context, path string) (viewCount int64, timeUploaded int64, ok bool, err error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT view_count, time_uploaded FROM media WHERE path = ?`,
		path,
	)
	var views, uploaded sql.NullInt64
	if scanErr := row.Scan(&views, &uploaded); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return 0, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("view stats: %w", scanErr)
	}
	if !views.Valid || views.Int64 == 0 || !uploaded.Valid || uploaded.Int64 == 0 {
		return 0, 0, false, nil
	}
	return views.Int64, uploaded.Int64, true, nil
}

// ExtractorID returns the extractor id of the first media row whose id is a
// substring of mediaURL. Empty when no row correlates.
func (t *Tx) ExtractorID(ctx context.Context, mediaURL string) (string, error) {
	row := t.tx.QueryRowContext(
		ctx,
		`SELECT extractor_id FROM media
         WHERE extractor_id IS NOT NULL AND extractor_id != ''
           AND instr(?, extractor_id) > 0
         LIMIT 1`,
		mediaURL,
	)
	var id sql.NullString
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("extractor id: %w", err)
	}
	return id.String, nil
}

// UpdatePlaylistPath appends a retry marker to the playlist row matching
// mediaURL so a resubmission of the same URL starts a fresh cycle. A single
// statement with its own commit; it must not share a snapshot with reads
// taken before the tool's backfill writes landed.
func (s *Store) UpdatePlaylistPath(ctx context.Context, mediaURL, suffixed string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE playlists SET path = ? WHERE path = ?`,
		suffixed,
		mediaURL,
	)
	if err != nil {
		return false, fmt.Errorf("update playlist path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ErrorForWebpath returns the stored error message for a webpath, or empty
// when the row is missing or carries no error.
func (t *Tx) ErrorForWebpath(ctx context.Context, webpath string) (string, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT error FROM media WHERE webpath = ? LIMIT 1`, webpath)
	var msg sql.NullString
	if err := row.Scan(&msg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("read error for webpath: %w", err)
	}
	return msg.String, nil
}

// LocalMediaByWebpath returns the media row whose webpath matches and whose
// path has been resolved away from an http(s) URL, i.e. the download tool
// wrote a filesystem location. Nil when no such row exists.
func (t *Tx) LocalMediaByWebpath(ctx context.Context, webpath string) (*Media, error) {
	row := t.tx.QueryRowContext(
		ctx,
		`SELECT id, path, webpath, extractor_id, title, duration, live_status
         FROM media
         WHERE webpath = ? AND path NOT LIKE 'http%'
         LIMIT 1`,
		webpath,
	)
	var (
		m           Media
		path        sql.NullString
		extractorID sql.NullString
		title       sql.NullString
		duration    sql.NullFloat64
		liveStatus  sql.NullString
	)
	if err := row.Scan(&m.ID, &path, &m.Webpath, &extractorID, &title, &duration, &liveStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("media by webpath: %w", err)
	}
	m.Path = path.String
	m.ExtractorID = extractorID.String
	m.Title = title.String
	m.Duration = duration.Float64
	m.LiveStatus = liveStatus.String
	return &m, nil
}

// MediaIDByWebpath returns the id of any media row with the given webpath.
func (t *Tx) MediaIDByWebpath(ctx context.Context, webpath string) (int64, bool, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT id FROM media WHERE webpath = ? LIMIT 1`, webpath)
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("media id by webpath: %w", err)
	}
	return id, true, nil
}

// SetMediaDownloaded records the final filesystem path and the retry-marked
// webpath for a completed download.
func (t *Tx) SetMediaDownloaded(ctx context.Context, id int64, localPath, webpath string) error {
	_, err := t.tx.ExecContext(
		ctx,
		`UPDATE media SET path = ?, webpath = ?, error = NULL WHERE id = ?`,
		nullableString(localPath),
		webpath,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark media downloaded: %w", err)
	}
	return nil
}

// StoredError reads the error message for a webpath outside any task
// transaction, mirroring ErrorForWebpath for callers that only need a peek.
func (s *Store) StoredError(ctx context.Context, webpath string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT error FROM media WHERE webpath = ? LIMIT 1`, webpath)
	var msg sql.NullString
	if err := row.Scan(&msg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("read error for webpath: %w", err)
	}
	return msg.String, nil
}

// DeleteMediaAndCaptions purges a media row and its caption fragments. This
// is the compensating cleanup for orphaned records and runs in its own
// commit boundary, distinct from any enclosing task transaction.
func (s *Store) DeleteMediaAndCaptions(ctx context.Context, mediaID int64, webpath string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cleanup: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM captions WHERE media_id = ?`, mediaID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete captions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM media WHERE webpath = ?`, webpath); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete media: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cleanup: %w", err)
	}
	return nil
}
