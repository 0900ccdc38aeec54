package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/iiab/tubeshelf/internal/catalog"
)

// NewStore opens a catalog store backed by a per-test temp database.
func NewStore(t testing.TB) *catalog.Store {
	t.Helper()

	store, err := catalog.OpenPath(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

// MediaRow seeds one media record the way the external tool would write it.
type MediaRow struct {
	Path         string
	Webpath      string
	ExtractorID  string
	Title        string
	Duration     float64
	ViewCount    int64
	TimeUploaded int64
	LiveStatus   string
	Error        string
}

// SeedMedia inserts a media row and returns its id.
func SeedMedia(t testing.TB, store *catalog.Store, row MediaRow) int64 {
	t.Helper()

	id, err := store.InsertMedia(context.Background(), catalog.Media{
		Path:         row.Path,
		Webpath:      row.Webpath,
		ExtractorID:  row.ExtractorID,
		Title:        row.Title,
		Duration:     row.Duration,
		ViewCount:    row.ViewCount,
		TimeUploaded: row.TimeUploaded,
		LiveStatus:   row.LiveStatus,
		Error:        row.Error,
	})
	if err != nil {
		t.Fatalf("seed media: %v", err)
	}
	return id
}

// SeedCaption inserts one caption fragment.
func SeedCaption(t testing.TB, store *catalog.Store, mediaID int64, at float64, text string) {
	t.Helper()

	if err := store.InsertCaption(context.Background(), catalog.Caption{
		MediaID: mediaID,
		Time:    at,
		Text:    text,
	}); err != nil {
		t.Fatalf("seed caption: %v", err)
	}
}

// SeedPlaylist inserts a playlist row.
func SeedPlaylist(t testing.TB, store *catalog.Store, path, title string) {
	t.Helper()

	if err := store.InsertPlaylist(context.Background(), path, title); err != nil {
		t.Fatalf("seed playlist: %v", err)
	}
}
