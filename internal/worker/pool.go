package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iiab/tubeshelf/internal/logging"
	"github.com/iiab/tubeshelf/internal/tasks"
)

// queueDepth bounds the intake channel. Submissions beyond it block the
// caller rather than grow without limit.
const queueDepth = 256

// Snapshot is a point-in-time view of one task record for polling clients.
type Snapshot struct {
	ID          string
	UserID      string
	Name        string
	Message     string
	Progress    float64
	Status      tasks.Status
	StartTime   time.Time
	EndTime     time.Time
	Cancellable bool
}

// record is the pool's mutable state for one task. It implements
// tasks.Reporter so the running task can publish progress without knowing
// about the pool.
type record struct {
	id     string
	userID string
	task   tasks.Task

	mu        sync.Mutex
	status    tasks.Status
	message   string
	progress  float64
	startTime time.Time
	endTime   time.Time
	cancel    context.CancelFunc
	cancelled bool
}

func (r *record) SetProgress(progress float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	r.progress = progress
}

func (r *record) SetMessage(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.message = message
}

// reject marks a record that never reached a worker as failed.
func (r *record) reject(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = tasks.StatusFail
	r.message = message
	r.endTime = time.Now()
}

func (r *record) snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		ID:          r.id,
		UserID:      r.userID,
		Name:        r.task.DisplayName(),
		Message:     r.message,
		Progress:    r.progress,
		Status:      r.status,
		StartTime:   r.startTime,
		EndTime:     r.endTime,
		Cancellable: r.task.Cancellable(),
	}
}

// Pool runs tasks on a fixed set of workers and retains finished records for
// polling until Shutdown.
type Pool struct {
	logger  *slog.Logger
	workers int

	intake chan *record

	mu      sync.RWMutex
	records map[string]*record
	order   []string
	closed  bool

	// intakeMu serializes sends on intake against its close: Shutdown takes
	// the write lock only after every in-flight Add has released its read
	// lock, so a send can never hit a closed channel.
	intakeMu sync.RWMutex

	runCtx context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool sizes the pool; Start launches the workers.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{
		logger:  logging.NewComponentLogger(logger, "worker"),
		workers: workers,
		intake:  make(chan *record, queueDepth),
		records: make(map[string]*record),
	}
}

// Start launches the worker goroutines. ctx cancellation stops intake and
// cancels running tasks.
func (p *Pool) Start(ctx context.Context) {
	p.runCtx, p.stop = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.runCtx.Done():
			return
		case rec, ok := <-p.intake:
			if !ok {
				return
			}
			p.run(rec)
		}
	}
}

// Add enqueues a task for a user and returns its id. Implements tasks.Queue.
func (p *Pool) Add(userID string, task tasks.Task) string {
	rec := &record{
		id:     uuid.NewString(),
		userID: userID,
		task:   task,
		status: tasks.StatusWaiting,
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ""
	}
	p.records[rec.id] = rec
	p.order = append(p.order, rec.id)
	p.mu.Unlock()

	var done <-chan struct{}
	if p.runCtx != nil {
		done = p.runCtx.Done()
	}

	p.intakeMu.RLock()
	defer p.intakeMu.RUnlock()
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		// Shutdown began after registration; the channel may close as soon
		// as we release the read lock, so do not send.
		rec.reject("Worker pool is shutting down.")
		return rec.id
	}
	select {
	case p.intake <- rec:
	case <-done:
		rec.reject("Worker pool is shutting down.")
	}
	return rec.id
}

func (p *Pool) run(rec *record) {
	rec.mu.Lock()
	if rec.cancelled {
		rec.status = tasks.StatusFail
		rec.message = "Cancelled by user."
		rec.endTime = time.Now()
		rec.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(p.runCtx)
	rec.cancel = cancel
	rec.status = tasks.StatusStarted
	rec.startTime = time.Now()
	rec.mu.Unlock()
	defer cancel()

	log := p.logger.With(
		logging.String(logging.FieldTaskID, rec.id),
		logging.String(logging.FieldUser, rec.userID),
		logging.String("task", rec.task.DisplayName()),
	)
	log.Info("task started")

	err := p.safeRun(ctx, rec, log)

	rec.mu.Lock()
	rec.endTime = time.Now()
	switch {
	case err == nil:
		rec.status = tasks.StatusSuccess
		rec.progress = 1.0
	case errors.Is(err, context.Canceled) || rec.cancelled:
		rec.status = tasks.StatusFail
		rec.message = "Cancelled by user."
	default:
		rec.status = tasks.StatusFail
		if rec.message == "" {
			rec.message = err.Error()
		}
	}
	status := rec.status
	rec.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("task finished", logging.String("status", string(status)), logging.Error(err))
		return
	}
	log.Info("task finished", logging.String("status", string(status)))
}

// safeRun isolates worker goroutines from task panics; a database hiccup or
// a nil slip in one task must not take the pool down.
func (p *Pool) safeRun(ctx context.Context, rec *record, log *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", logging.String("panic", toString(r)))
			err = errors.New("internal task failure")
		}
	}()
	return rec.task.Run(ctx, rec)
}

func toString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "unknown panic"
}

// Cancel requests cancellation of a waiting or running task. Returns false
// when the task is unknown, finished, or not cancellable.
func (p *Pool) Cancel(id string) bool {
	p.mu.RLock()
	rec, ok := p.records[id]
	p.mu.RUnlock()
	if !ok || !rec.task.Cancellable() {
		return false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	switch rec.status {
	case tasks.StatusWaiting:
		rec.cancelled = true
		return true
	case tasks.StatusStarted:
		rec.cancelled = true
		if rec.cancel != nil {
			rec.cancel()
		}
		return true
	default:
		return false
	}
}

// Tasks returns snapshots for one user, or for everyone when userID is
// empty, in submission order.
func (p *Pool) Tasks(userID string) []Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(p.order))
	for _, id := range p.order {
		rec := p.records[id]
		if userID != "" && rec.userID != userID {
			continue
		}
		snapshots = append(snapshots, rec.snapshot())
	}
	return snapshots
}

// Lookup returns the snapshot for one task id.
func (p *Pool) Lookup(id string) (Snapshot, bool) {
	p.mu.RLock()
	rec, ok := p.records[id]
	p.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return rec.snapshot(), true
}

// Shutdown stops intake, cancels running tasks, and waits up to grace for
// workers to drain.
func (p *Pool) Shutdown(grace time.Duration) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.intakeMu.Lock()
	close(p.intake)
	p.intakeMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		if p.stop != nil {
			p.stop()
		}
		<-done
	}
	if p.stop != nil {
		p.stop()
	}
}
