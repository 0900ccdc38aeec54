package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iiab/tubeshelf/internal/api"
	"github.com/iiab/tubeshelf/internal/catalog"
	"github.com/iiab/tubeshelf/internal/lbtool"
	"github.com/iiab/tubeshelf/internal/shelf"
	"github.com/iiab/tubeshelf/internal/testsupport"
)

type idleHandle struct{}

func (idleHandle) ReadLine(timeout time.Duration) (string, bool) { return "", false }

func (idleHandle) PollExitCode() (int, bool) { return 0, true }

func (idleHandle) Wait() int { return 0 }

func (idleHandle) Kill() {}

type idleStarter struct {
	mu    sync.Mutex
	calls int
}

func (s *idleStarter) Start(ctx context.Context, binary string, args []string) (lbtool.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return idleHandle{}, nil
}

type noopNotifier struct{}

func (noopNotifier) ResolveShelf(ctx context.Context, notifyURL, userName, shelfTitle string) (shelf.Shelf, error) {
	return shelf.Shelf{}, nil
}

func (noopNotifier) DeliverFile(ctx context.Context, notifyURL string, report shelf.FileReport) (shelf.Delivery, error) {
	return shelf.Delivery{}, nil
}

func startTestDaemon(t *testing.T) (*Daemon, *api.Client) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	d, err := New(cfg, nil, WithToolStarter(&idleStarter{}), WithNotifier(noopNotifier{}))
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		if err := d.Close(); err != nil {
			t.Errorf("close daemon: %v", err)
		}
	})

	return d, api.NewClient(d.APIAddr(), 5*time.Second)
}

func TestStatusEndpoint(t *testing.T) {
	d, client := startTestDaemon(t)

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Running {
		t.Fatal("daemon should report running")
	}
	if status.Workers != 1 {
		t.Fatalf("unexpected workers %d", status.Workers)
	}
	if status.DatabasePath != d.store.Path() {
		t.Fatalf("unexpected database path %q", status.DatabasePath)
	}
}

func TestSubmitValidation(t *testing.T) {
	_, client := startTestDaemon(t)
	ctx := context.Background()

	if _, err := client.Submit(ctx, api.SubmitRequest{NotifyURL: "http://x/media"}); err == nil {
		t.Fatal("expected rejection without media_url")
	}
	if _, err := client.Submit(ctx, api.SubmitRequest{MediaURL: "https://youtu.be/a"}); err == nil {
		t.Fatal("expected rejection without notify_url")
	}
}

func TestSubmitRunsTaskToTerminalState(t *testing.T) {
	_, client := startTestDaemon(t)
	ctx := context.Background()

	resp, err := client.Submit(ctx, api.SubmitRequest{
		MediaURL:  "https://youtu.be/abc",
		NotifyURL: "http://calibre.local/media",
		User:      "alice",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.TaskID == "" {
		t.Fatal("expected a task id")
	}

	// Empty catalog: the metadata task fails with the extractor diagnosis.
	deadline := time.Now().Add(5 * time.Second)
	for {
		views, err := client.Tasks(ctx, "alice")
		if err != nil {
			t.Fatalf("tasks: %v", err)
		}
		if len(views) == 1 && views[0].Status == "fail" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("task never finished: %+v", views)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCancelUnknownTask(t *testing.T) {
	_, client := startTestDaemon(t)

	cancelled, err := client.Cancel(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled {
		t.Fatal("unknown ids must not cancel")
	}
}

func TestCaptionSearchEndpoint(t *testing.T) {
	d, client := startTestDaemon(t)
	ctx := context.Background()

	id, err := d.store.InsertMedia(ctx, catalog.Media{
		Path: "/library/a.webm", Webpath: "https://youtu.be/a", Duration: 60,
	})
	if err != nil {
		t.Fatalf("seed media: %v", err)
	}
	if err := d.store.InsertCaption(ctx, catalog.Caption{MediaID: id, Time: 3.0, Text: "needle in transcript"}); err != nil {
		t.Fatalf("seed caption: %v", err)
	}

	result, err := client.SearchCaptions(ctx, "needle")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Passages) != 1 || result.Passages[0].MediaID != id {
		t.Fatalf("unexpected passages %+v", result.Passages)
	}
	if len(result.IDs) != 1 {
		t.Fatalf("unexpected ids %v", result.IDs)
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	d, _ := startTestDaemon(t)

	second, err := New(d.cfg, nil, WithToolStarter(&idleStarter{}), WithNotifier(noopNotifier{}))
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	defer second.Close()

	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected lock contention error")
	}
}
