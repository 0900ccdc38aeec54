package captions

import (
	"context"
	"strings"

	"github.com/iiab/tubeshelf/internal/catalog"
)

// SearchIndex answers temporal caption searches against the catalog store.
type SearchIndex struct {
	store *catalog.Store
}

// NewSearchIndex wraps a catalog store for caption lookups.
func NewSearchIndex(store *catalog.Store) *SearchIndex {
	return &SearchIndex{store: store}
}

// SearchPassages returns merged passages whose text contains term, ordered
// by (media, time). An empty term yields no results and issues no query.
func (s *SearchIndex) SearchPassages(ctx context.Context, term string) ([]Passage, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	fragments, err := s.store.CaptionsMatching(ctx, term)
	if err != nil {
		return nil, err
	}
	return Merge(fragments), nil
}

// Search returns the de-duplicated identifiers of items whose captions match
// term. When a media id has a book mapping, the mapped book id is returned
// in its place.
func (s *SearchIndex) Search(ctx context.Context, term string) ([]int64, error) {
	passages, err := s.SearchPassages(ctx, term)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return nil, nil
	}

	seen := make(map[int64]struct{}, len(passages))
	mediaIDs := make([]int64, 0, len(passages))
	for _, p := range passages {
		if _, ok := seen[p.MediaID]; ok {
			continue
		}
		seen[p.MediaID] = struct{}{}
		mediaIDs = append(mediaIDs, p.MediaID)
	}

	mappings, err := s.store.BookIDsForMedia(ctx, mediaIDs)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(mediaIDs))
	for _, mediaID := range mediaIDs {
		if bookID, ok := mappings[mediaID]; ok {
			ids = append(ids, bookID)
			continue
		}
		ids = append(ids, mediaID)
	}
	return ids, nil
}
