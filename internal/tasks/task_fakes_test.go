package tasks_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iiab/tubeshelf/internal/lbtool"
	"github.com/iiab/tubeshelf/internal/shelf"
	"github.com/iiab/tubeshelf/internal/tasks"
)

type fakeHandle struct {
	mu       sync.Mutex
	lines    []string
	exitCode int
}

func (h *fakeHandle) ReadLine(timeout time.Duration) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.lines) == 0 {
		return "", false
	}
	line := h.lines[0]
	h.lines = h.lines[1:]
	return line, true
}

func (h *fakeHandle) PollExitCode() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode, len(h.lines) == 0
}

func (h *fakeHandle) Wait() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = nil
	return h.exitCode
}

func (h *fakeHandle) Kill() {}

type invocation struct {
	binary string
	args   []string
}

// fakeStarter hands out scripted handles in invocation order.
type fakeStarter struct {
	mu      sync.Mutex
	scripts []*fakeHandle
	calls   []invocation
}

func (s *fakeStarter) Start(ctx context.Context, binary string, args []string) (lbtool.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, invocation{binary: binary, args: args})
	if len(s.scripts) == 0 {
		return &fakeHandle{}, nil
	}
	handle := s.scripts[0]
	s.scripts = s.scripts[1:]
	return handle, nil
}

func (s *fakeStarter) invocations() []invocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]invocation(nil), s.calls...)
}

type fakeNotifier struct {
	mu sync.Mutex

	shelfResult shelf.Shelf
	shelfErr    error
	shelfCalls  int
	shelfTitle  string

	delivery      shelf.Delivery
	deliveryErr   error
	deliveryCalls int
	lastReport    shelf.FileReport
}

func (n *fakeNotifier) ResolveShelf(ctx context.Context, notifyURL, userName, shelfTitle string) (shelf.Shelf, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shelfCalls++
	n.shelfTitle = shelfTitle
	return n.shelfResult, n.shelfErr
}

func (n *fakeNotifier) DeliverFile(ctx context.Context, notifyURL string, report shelf.FileReport) (shelf.Delivery, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveryCalls++
	n.lastReport = report
	return n.delivery, n.deliveryErr
}

type captureQueue struct {
	mu    sync.Mutex
	users []string
	added []tasks.Task
}

func (q *captureQueue) Add(userID string, task tasks.Task) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.users = append(q.users, userID)
	q.added = append(q.added, task)
	return "queued"
}

type fakeReporter struct {
	mu         sync.Mutex
	messages   []string
	progresses []float64
}

func (r *fakeReporter) SetProgress(progress float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progresses = append(r.progresses, progress)
}

func (r *fakeReporter) SetMessage(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *fakeReporter) lastMessage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1]
}

func (r *fakeReporter) lastProgress() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.progresses) == 0 {
		return 0
	}
	return r.progresses[len(r.progresses)-1]
}

func newTestTool(t *testing.T, starter lbtool.Starter) *lbtool.Client {
	t.Helper()
	client, err := lbtool.New("lb-wrapper", lbtool.WithStarter(starter))
	if err != nil {
		t.Fatalf("tool client: %v", err)
	}
	return client
}
