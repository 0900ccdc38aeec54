package tasks_test

import (
	"testing"
	"time"

	"github.com/iiab/tubeshelf/internal/tasks"
)

func TestClassifyURL(t *testing.T) {
	cases := []struct {
		url  string
		want tasks.URLKind
	}{
		{"https://www.youtube.com/watch?v=abc&list=PL123", tasks.KindPlaylist},
		{"https://www.youtube.com/playlist?list=PL123", tasks.KindPlaylist},
		{"https://www.youtube.com/@somechannel", tasks.KindChannel},
		{"https://www.youtube.com/watch?v=abc123", tasks.KindVideo},
		{"https://youtu.be/abc123", tasks.KindVideo},
	}
	for _, tc := range cases {
		if got := tasks.ClassifyURL(tc.url); got != tc.want {
			t.Errorf("ClassifyURL(%q) = %s, want %s", tc.url, got, tc.want)
		}
	}
}

func TestFormatMediaURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://www.youtube.com/watch?v=abc&t=120s&pp=xyz", "https://www.youtube.com/watch?v=abc"},
		{"https://www.youtube.com/watch?v=abc", "https://www.youtube.com/watch?v=abc"},
		{"https://youtu.be/abc&feature=share", "https://youtu.be/abc"},
	}
	for _, tc := range cases {
		if got := tasks.FormatMediaURL(tc.in); got != tc.want {
			t.Errorf("FormatMediaURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatNotifyURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"http://calibre.local/media?user=1", "http://calibre.local/meta?user=1"},
		{"http://calibre.local/media", "http://calibre.local/meta"},
		{"http://calibre.local/mediafiles", "http://calibre.local/mediafiles"},
		{"http://calibre.local/media/extra", "http://calibre.local/media/extra"},
	}
	for _, tc := range cases {
		if got := tasks.FormatNotifyURL(tc.in); got != tc.want {
			t.Errorf("FormatNotifyURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestShelfURL(t *testing.T) {
	got := tasks.ShelfURL("http://calibre.local/meta?user=1", "9")
	want := "http://calibre.local/shelf?user=1/9"
	if got != want {
		t.Fatalf("ShelfURL = %q, want %q", got, want)
	}

	got = tasks.ShelfURL("http://calibre.local/meta", "9")
	if got != "http://calibre.local/shelf/9" {
		t.Fatalf("ShelfURL = %q", got)
	}
}

func TestLink(t *testing.T) {
	got := tasks.Link("https://youtu.be/abc")
	want := `<a href="https://youtu.be/abc" target="_blank">https://youtu.be/abc</a>`
	if got != want {
		t.Fatalf("Link = %q, want %q", got, want)
	}
}

func TestRetryStamp(t *testing.T) {
	at := time.Unix(1700000000, 0)
	got := tasks.RetryStamp("https://youtu.be/abc", at)
	if got != "https://youtu.be/abc&timestamp=1700000000" {
		t.Fatalf("RetryStamp = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{3661, "01:01:01"},
		{-5, "00:00:00"},
	}
	for _, tc := range cases {
		if got := tasks.FormatDuration(tc.seconds); got != tc.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}
