package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running daemon's HTTP API. Used by the CLI subcommands.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the daemon listening at bind (host:port).
func NewClient(bind string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimSpace(bind)
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Submit sends a new URL for processing.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	var resp SubmitResponse
	err := c.do(ctx, http.MethodPost, "/api/tasks", nil, req, &resp)
	return resp, err
}

// Tasks lists task snapshots, optionally filtered by user.
func (c *Client) Tasks(ctx context.Context, user string) ([]TaskView, error) {
	params := url.Values{}
	if user != "" {
		params.Set("user", user)
	}
	var resp TaskListResponse
	if err := c.do(ctx, http.MethodGet, "/api/tasks", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// Cancel requests cancellation of one task.
func (c *Client) Cancel(ctx context.Context, taskID string) (bool, error) {
	var resp CancelResponse
	err := c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(taskID)+"/cancel", nil, nil, &resp)
	return resp.Cancelled, err
}

// SearchCaptions runs a caption search against the daemon.
func (c *Client) SearchCaptions(ctx context.Context, term string) (CaptionSearchResponse, error) {
	params := url.Values{}
	params.Set("term", term)
	var resp CaptionSearchResponse
	err := c.do(ctx, http.MethodGet, "/api/search/captions", params, nil, &resp)
	return resp, err
}

// SearchTitles runs a title search against the daemon.
func (c *Client) SearchTitles(ctx context.Context, term string) ([]string, error) {
	params := url.Values{}
	params.Set("term", term)
	var resp TitleSearchResponse
	if err := c.do(ctx, http.MethodGet, "/api/search/titles", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Titles, nil
}

// Status fetches daemon runtime state.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var resp DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
