package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// CaptionsMatching returns caption fragments whose text contains term,
// ordered by owning media then time offset so downstream merging can sweep
// left to right. The empty-term guard lives in the search index; this method
// always issues the query it is given.
func (s *Store) CaptionsMatching(ctx context.Context, term string) ([]Caption, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT media_id, time, text FROM captions
         WHERE text LIKE '%' || ? || '%'
         ORDER BY media_id, time`,
		term,
	)
	if err != nil {
		return nil, fmt.Errorf("query captions: %w", err)
	}
	defer rows.Close()

	var fragments []Caption
	for rows.Next() {
		var (
			c    Caption
			text sql.NullString
		)
		if err := rows.Scan(&c.MediaID, &c.Time, &text); err != nil {
			return nil, fmt.Errorf("scan caption: %w", err)
		}
		c.Text = text.String
		fragments = append(fragments, c)
	}
	return fragments, rows.Err()
}
