package lbtool

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrSpawn marks failures to start the external tool. Spawn failures are
// fatal to the calling task; retry policy belongs to callers.
var ErrSpawn = errors.New("tool spawn failed")

// Handle is one running tool invocation. Stdout and stderr are merged into a
// single line stream.
type Handle interface {
	// ReadLine returns the next output line, waiting at most timeout.
	// ok is false on timeout or when the stream has ended.
	ReadLine(timeout time.Duration) (line string, ok bool)
	// PollExitCode reports the exit code without blocking; ok is false
	// while the process is still running.
	PollExitCode() (code int, ok bool)
	// Wait blocks until the process exits, draining unread output, and
	// returns its exit code.
	Wait() int
	// Kill terminates the process group.
	Kill()
}

// Starter abstracts process creation for testability.
type Starter interface {
	Start(ctx context.Context, binary string, args []string) (Handle, error)
}

// Option configures the client.
type Option func(*Client)

// WithStarter injects a custom starter (primarily for tests).
func WithStarter(starter Starter) Option {
	return func(c *Client) {
		if starter != nil {
			c.starter = starter
		}
	}
}

// Client wraps invocations of the external media-fetch tool.
type Client struct {
	binary  string
	starter Starter
}

// New constructs a tool client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("tool binary required")
	}
	client := &Client{
		binary:  binary,
		starter: processStarter{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// TubeAdd starts a metadata extraction run for url.
func (c *Client) TubeAdd(ctx context.Context, url string) (Handle, error) {
	return c.start(ctx, "tubeadd", url)
}

// Download starts a download run for url.
func (c *Client) Download(ctx context.Context, url string) (Handle, error) {
	return c.start(ctx, "dl", url)
}

func (c *Client) start(ctx context.Context, verb, arg string) (Handle, error) {
	handle, err := c.starter.Start(ctx, c.binary, []string{verb, arg})
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrSpawn, c.binary, verb, err)
	}
	return handle, nil
}

// titlePattern extracts the title prefix from a "Title - detail" result
// line. Result lines never start with a digit; numeric lines are pagination
// noise from the tool.
var titlePattern = regexp.MustCompile(`^([^\d].*?) - `)

// SearchTitles runs the tool's own full-text search and returns the matching
// item titles. The tool must exit zero for results to be trusted.
func (c *Client) SearchTitles(ctx context.Context, term string) ([]string, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}

	handle, err := c.starter.Start(ctx, c.binary, []string{"search", term})
	if err != nil {
		return nil, fmt.Errorf("%w: %s search: %v", ErrSpawn, c.binary, err)
	}

	var titles []string
	for {
		line, ok := handle.ReadLine(time.Second)
		if !ok {
			if _, exited := handle.PollExitCode(); exited {
				break
			}
			select {
			case <-ctx.Done():
				handle.Kill()
				return nil, ctx.Err()
			default:
			}
			continue
		}
		if match := titlePattern.FindStringSubmatch(line); match != nil {
			titles = append(titles, strings.TrimSpace(match[1]))
		}
	}

	if code := handle.Wait(); code != 0 {
		return nil, fmt.Errorf("search exited with code %d", code)
	}
	return titles, nil
}
