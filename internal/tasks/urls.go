package tasks

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// URLKind classifies an inbound media URL by string heuristic alone; no
// network call is involved.
type URLKind int

const (
	KindVideo URLKind = iota
	KindChannel
	KindPlaylist
)

func (k URLKind) String() string {
	switch k {
	case KindChannel:
		return "channel"
	case KindPlaylist:
		return "playlist"
	}
	return "video"
}

// ClassifyURL decides whether a URL names a playlist, a channel, or a single
// video.
func ClassifyURL(mediaURL string) URLKind {
	switch {
	case strings.Contains(mediaURL, "list="):
		return KindPlaylist
	case strings.Contains(mediaURL, "@"):
		return KindChannel
	default:
		return KindVideo
	}
}

// FormatMediaURL strips tracking query parameters: everything after the
// first '&' goes.
func FormatMediaURL(mediaURL string) string {
	if idx := strings.Index(mediaURL, "&"); idx >= 0 {
		return mediaURL[:idx]
	}
	return mediaURL
}

var notifyPathPattern = regexp.MustCompile(`/media(\?|$)`)

// FormatNotifyURL rewrites the collaborator's /media path segment to the
// /meta endpoint the pipeline reports to.
func FormatNotifyURL(originalURL string) string {
	return notifyPathPattern.ReplaceAllString(originalURL, "/meta$1")
}

var shelfPathPattern = regexp.MustCompile(`/meta(\?|$)`)

// ShelfURL derives the user-visible shelf page from the notify endpoint.
func ShelfURL(notifyURL, shelfID string) string {
	return shelfPathPattern.ReplaceAllString(notifyURL, "/shelf$1") + "/" + shelfID
}

// Link renders a URL as the HTML anchor the consuming UI expects in task
// messages.
func Link(mediaURL string) string {
	return fmt.Sprintf(`<a href="%s" target="_blank">%s</a>`, mediaURL, mediaURL)
}

// RetryStamp appends the retry timestamp suffix that distinguishes a
// completed cycle's webpath from a fresh submission of the same URL.
func RetryStamp(mediaURL string, now time.Time) string {
	return fmt.Sprintf("%s&timestamp=%d", mediaURL, now.Unix())
}

// FormatDuration renders whole seconds as HH:MM:SS, wrapping at 24 hours
// like the UI it feeds.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return time.Unix(seconds%(24*3600), 0).UTC().Format("15:04:05")
}
