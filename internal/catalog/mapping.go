package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertBookMapping records the media↔book bridge reported by the external
// catalog. Last write wins per media id.
func (s *Store) UpsertBookMapping(ctx context.Context, mediaID, bookID int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO media_books_mapping (media_id, book_id) VALUES (?, ?)`,
		mediaID,
		bookID,
	)
	if err != nil {
		return fmt.Errorf("upsert book mapping: %w", err)
	}
	return nil
}

// BookIDForMedia returns the mapped external book id for a media row.
func (s *Store) BookIDForMedia(ctx context.Context, mediaID int64) (int64, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT book_id FROM media_books_mapping WHERE media_id = ?`,
		mediaID,
	)
	var bookID int64
	if err := row.Scan(&bookID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("book id for media: %w", err)
	}
	return bookID, true, nil
}

// BookIDsForMedia resolves mappings for a batch of media ids. Media without
// a mapping are simply absent from the result.
func (s *Store) BookIDsForMedia(ctx context.Context, mediaIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(mediaIDs))
	if len(mediaIDs) == 0 {
		return result, nil
	}

	placeholders := make([]byte, 0, len(mediaIDs)*2)
	args := make([]any, 0, len(mediaIDs))
	for i, id := range mediaIDs {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT media_id, book_id FROM media_books_mapping WHERE media_id IN (`+string(placeholders)+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query book mappings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mediaID, bookID int64
		if err := rows.Scan(&mediaID, &bookID); err != nil {
			return nil, fmt.Errorf("scan book mapping: %w", err)
		}
		result[mediaID] = bookID
	}
	return result, rows.Err()
}
