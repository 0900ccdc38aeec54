package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iiab/tubeshelf/internal/tasks"
	"github.com/iiab/tubeshelf/internal/worker"
)

var _ tasks.Queue = (*worker.Pool)(nil)

type stubTask struct {
	name        string
	cancellable bool
	run         func(ctx context.Context, report tasks.Reporter) error
}

func (t *stubTask) DisplayName() string { return t.name }

func (t *stubTask) Cancellable() bool { return t.cancellable }

func (t *stubTask) Run(ctx context.Context, report tasks.Reporter) error {
	if t.run == nil {
		return nil
	}
	return t.run(ctx, report)
}

func waitForStatus(t *testing.T, pool *worker.Pool, id string, want tasks.Status) worker.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if snapshot, ok := pool.Lookup(id); ok && snapshot.Status == want {
			return snapshot
		}
		time.Sleep(5 * time.Millisecond)
	}
	snapshot, _ := pool.Lookup(id)
	t.Fatalf("task %s never reached %s, last %+v", id, want, snapshot)
	return worker.Snapshot{}
}

func TestPoolRunsTaskToSuccess(t *testing.T) {
	pool := worker.NewPool(1, nil)
	pool.Start(context.Background())
	defer pool.Shutdown(time.Second)

	task := &stubTask{name: "Metadata Fetch", run: func(ctx context.Context, report tasks.Reporter) error {
		report.SetProgress(0.5)
		report.SetMessage("halfway")
		return nil
	}}

	id := pool.Add("alice", task)
	if id == "" {
		t.Fatal("expected a task id")
	}

	snapshot := waitForStatus(t, pool, id, tasks.StatusSuccess)
	if snapshot.Progress != 1.0 {
		t.Fatalf("success pins progress at 1.0, got %f", snapshot.Progress)
	}
	if snapshot.Message != "halfway" {
		t.Fatalf("unexpected message %q", snapshot.Message)
	}
	if snapshot.Name != "Metadata Fetch" || snapshot.UserID != "alice" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if snapshot.StartTime.IsZero() || snapshot.EndTime.IsZero() {
		t.Fatal("expected start and end timestamps")
	}
}

func TestPoolFailureKeepsTaskMessage(t *testing.T) {
	pool := worker.NewPool(1, nil)
	pool.Start(context.Background())
	defer pool.Shutdown(time.Second)

	id := pool.Add("alice", &stubTask{name: "Download", run: func(ctx context.Context, report tasks.Reporter) error {
		report.SetMessage("the-link failed: boom")
		return errors.New("boom")
	}})

	snapshot := waitForStatus(t, pool, id, tasks.StatusFail)
	if snapshot.Message != "the-link failed: boom" {
		t.Fatalf("task-set message should win, got %q", snapshot.Message)
	}
}

func TestPoolFailureFallsBackToError(t *testing.T) {
	pool := worker.NewPool(1, nil)
	pool.Start(context.Background())
	defer pool.Shutdown(time.Second)

	id := pool.Add("alice", &stubTask{name: "Download", run: func(ctx context.Context, report tasks.Reporter) error {
		return errors.New("silent failure")
	}})

	snapshot := waitForStatus(t, pool, id, tasks.StatusFail)
	if snapshot.Message != "silent failure" {
		t.Fatalf("expected error text as message, got %q", snapshot.Message)
	}
}

func TestPoolCancelRunningTask(t *testing.T) {
	pool := worker.NewPool(1, nil)
	pool.Start(context.Background())
	defer pool.Shutdown(time.Second)

	started := make(chan struct{})
	id := pool.Add("alice", &stubTask{name: "Download", cancellable: true, run: func(ctx context.Context, report tasks.Reporter) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}})

	<-started
	if !pool.Cancel(id) {
		t.Fatal("cancel should be accepted for a running cancellable task")
	}

	snapshot := waitForStatus(t, pool, id, tasks.StatusFail)
	if snapshot.Message != "Cancelled by user." {
		t.Fatalf("unexpected message %q", snapshot.Message)
	}
}

func TestPoolCancelRejectsFinished(t *testing.T) {
	pool := worker.NewPool(1, nil)
	pool.Start(context.Background())
	defer pool.Shutdown(time.Second)

	id := pool.Add("alice", &stubTask{name: "Download", cancellable: true})
	waitForStatus(t, pool, id, tasks.StatusSuccess)

	if pool.Cancel(id) {
		t.Fatal("finished tasks cannot be cancelled")
	}
	if pool.Cancel("no-such-task") {
		t.Fatal("unknown ids cannot be cancelled")
	}
}

func TestPoolTasksFiltersByUser(t *testing.T) {
	pool := worker.NewPool(2, nil)
	pool.Start(context.Background())
	defer pool.Shutdown(time.Second)

	first := pool.Add("alice", &stubTask{name: "A"})
	second := pool.Add("bob", &stubTask{name: "B"})
	waitForStatus(t, pool, first, tasks.StatusSuccess)
	waitForStatus(t, pool, second, tasks.StatusSuccess)

	aliceTasks := pool.Tasks("alice")
	if len(aliceTasks) != 1 || aliceTasks[0].ID != first {
		t.Fatalf("unexpected alice tasks %+v", aliceTasks)
	}
	if got := len(pool.Tasks("")); got != 2 {
		t.Fatalf("expected all tasks for empty user, got %d", got)
	}
}

func TestPoolAddRacingShutdown(t *testing.T) {
	for i := 0; i < 200; i++ {
		pool := worker.NewPool(1, nil)
		pool.Start(context.Background())

		var wg sync.WaitGroup
		begin := make(chan struct{})
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-begin
				for j := 0; j < 8; j++ {
					pool.Add("alice", &stubTask{name: "Racer"})
				}
			}()
		}
		close(begin)
		pool.Shutdown(10 * time.Millisecond)
		wg.Wait()
	}
}

func TestPoolAddAfterShutdown(t *testing.T) {
	pool := worker.NewPool(1, nil)
	pool.Start(context.Background())
	pool.Shutdown(time.Second)

	if id := pool.Add("alice", &stubTask{name: "Late"}); id != "" {
		t.Fatalf("closed pool must refuse submissions, got id %q", id)
	}
}

func TestPoolRecoversFromPanic(t *testing.T) {
	pool := worker.NewPool(1, nil)
	pool.Start(context.Background())
	defer pool.Shutdown(time.Second)

	id := pool.Add("alice", &stubTask{name: "Broken", run: func(ctx context.Context, report tasks.Reporter) error {
		panic("nil map write")
	}})
	waitForStatus(t, pool, id, tasks.StatusFail)

	// The worker survived and keeps serving.
	next := pool.Add("alice", &stubTask{name: "After"})
	waitForStatus(t, pool, next, tasks.StatusSuccess)
}
