package shelf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const userAgent = "tubeshelf/0.1.0"

// ErrNotify marks collaborator calls that failed or returned non-200. Tasks
// fail on it without committing partial catalog mutations.
var ErrNotify = errors.New("notification collaborator error")

// Shelf is the collaborator's answer to a shelf-naming request.
type Shelf struct {
	ID    string
	Title string
}

// Delivery is the collaborator's answer to a file-delivery report. BookID is
// zero when the collaborator did not report one.
type Delivery struct {
	FileDownloaded string
	NewBookPath    string
	BookID         int64
}

// Notifier is the collaborator surface the tasks depend on.
type Notifier interface {
	ResolveShelf(ctx context.Context, notifyURL, userName, shelfTitle string) (Shelf, error)
	DeliverFile(ctx context.Context, notifyURL string, report FileReport) (Delivery, error)
}

// FileReport describes one completed download.
type FileReport struct {
	RequestedFile string
	UserName      string
	ShelfID       string
	MediaID       int64
}

// Client talks to the notification collaborator over HTTP.
type Client struct {
	httpClient *http.Client
}

// NewClient builds a collaborator client. timeout bounds each request.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// ResolveShelf asks the collaborator to create or look up the shelf that
// downloaded items will be grouped under.
func (c *Client) ResolveShelf(ctx context.Context, notifyURL, userName, shelfTitle string) (Shelf, error) {
	params := url.Values{}
	params.Set("current_user_name", userName)
	params.Set("shelf_title", shelfTitle)

	var payload struct {
		ShelfID    flexibleID `json:"shelf_id"`
		ShelfTitle string     `json:"shelf_title"`
	}
	if err := c.get(ctx, notifyURL, params, &payload); err != nil {
		return Shelf{}, err
	}
	return Shelf{ID: string(payload.ShelfID), Title: payload.ShelfTitle}, nil
}

// DeliverFile reports a downloaded file and returns where the collaborator
// placed it.
func (c *Client) DeliverFile(ctx context.Context, notifyURL string, report FileReport) (Delivery, error) {
	params := url.Values{}
	params.Set("requested_file", report.RequestedFile)
	params.Set("current_user_name", report.UserName)
	params.Set("shelf_id", report.ShelfID)
	params.Set("media_id", strconv.FormatInt(report.MediaID, 10))

	var payload struct {
		FileDownloaded string     `json:"file_downloaded"`
		NewBookPath    string     `json:"new_book_path"`
		BookID         flexibleID `json:"book_id"`
	}
	if err := c.get(ctx, notifyURL, params, &payload); err != nil {
		return Delivery{}, err
	}
	bookID, _ := strconv.ParseInt(string(payload.BookID), 10, 64)
	return Delivery{
		FileDownloaded: payload.FileDownloaded,
		NewBookPath:    payload.NewBookPath,
		BookID:         bookID,
	}, nil
}

func (c *Client) get(ctx context.Context, notifyURL string, params url.Values, out any) error {
	target := notifyURL
	if strings.Contains(target, "?") {
		target += "&" + params.Encode()
	} else {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrNotify, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotify, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: %d %s: %s", ErrNotify, resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrNotify, err)
	}
	return nil
}

// flexibleID tolerates collaborators that send shelf ids as JSON numbers or
// strings.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}
