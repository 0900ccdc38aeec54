package shelf_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iiab/tubeshelf/internal/shelf"
)

func TestResolveShelfParsesNumericID(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"current_user_name": r.URL.Query().Get("current_user_name"),
			"shelf_title":       r.URL.Query().Get("shelf_title"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"shelf_id": 9, "shelf_title": "My Playlist"}`))
	}))
	defer server.Close()

	client := shelf.NewClient(5 * time.Second)
	resolved, err := client.ResolveShelf(context.Background(), server.URL+"/meta", "alice", "My Playlist")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ID != "9" || resolved.Title != "My Playlist" {
		t.Fatalf("unexpected shelf %+v", resolved)
	}
	if gotQuery["current_user_name"] != "alice" || gotQuery["shelf_title"] != "My Playlist" {
		t.Fatalf("unexpected query %v", gotQuery)
	}
}

func TestResolveShelfParsesStringID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"shelf_id": "17", "shelf_title": "T"}`))
	}))
	defer server.Close()

	client := shelf.NewClient(5 * time.Second)
	resolved, err := client.ResolveShelf(context.Background(), server.URL+"/meta", "alice", "T")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ID != "17" {
		t.Fatalf("expected string id to pass through, got %q", resolved.ID)
	}
}

func TestDeliverFileReportsAndParses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("requested_file") != "/staging/a.webm" {
			t.Errorf("unexpected requested_file %q", r.URL.Query().Get("requested_file"))
		}
		if r.URL.Query().Get("media_id") != "12" {
			t.Errorf("unexpected media_id %q", r.URL.Query().Get("media_id"))
		}
		_, _ = w.Write([]byte(`{"file_downloaded": "A.webm", "new_book_path": "/books/A", "book_id": 42}`))
	}))
	defer server.Close()

	client := shelf.NewClient(5 * time.Second)
	delivery, err := client.DeliverFile(context.Background(), server.URL+"/meta", shelf.FileReport{
		RequestedFile: "/staging/a.webm",
		UserName:      "alice",
		ShelfID:       "9",
		MediaID:       12,
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivery.FileDownloaded != "A.webm" || delivery.NewBookPath != "/books/A" || delivery.BookID != 42 {
		t.Fatalf("unexpected delivery %+v", delivery)
	}
}

func TestNon200WrapsErrNotify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "shelf limit reached", http.StatusConflict)
	}))
	defer server.Close()

	client := shelf.NewClient(5 * time.Second)
	_, err := client.ResolveShelf(context.Background(), server.URL+"/meta", "alice", "T")
	if !errors.Is(err, shelf.ErrNotify) {
		t.Fatalf("expected ErrNotify, got %v", err)
	}
}

func TestQueryAppendedToExistingParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "abc" {
			t.Errorf("existing query lost: %v", r.URL.Query())
		}
		_, _ = w.Write([]byte(`{"shelf_id": null}`))
	}))
	defer server.Close()

	client := shelf.NewClient(5 * time.Second)
	resolved, err := client.ResolveShelf(context.Background(), server.URL+"/meta?token=abc", "alice", "T")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ID != "" {
		t.Fatalf("null id should map to empty, got %q", resolved.ID)
	}
}
