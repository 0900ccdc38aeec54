package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/iiab/tubeshelf/internal/captions"
	"github.com/iiab/tubeshelf/internal/catalog"
	"github.com/iiab/tubeshelf/internal/config"
	"github.com/iiab/tubeshelf/internal/lbtool"
	"github.com/iiab/tubeshelf/internal/logging"
	"github.com/iiab/tubeshelf/internal/shelf"
	"github.com/iiab/tubeshelf/internal/tasks"
	"github.com/iiab/tubeshelf/internal/worker"
)

// Daemon wires the pipeline together and enforces single-instance execution
// over the shared catalog database.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store    *catalog.Store
	tool     *lbtool.Client
	notifier shelf.Notifier
	pool     *worker.Pool
	search   *captions.SearchIndex

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc

	api *apiServer
}

// Option adjusts daemon construction, primarily for tests.
type Option func(*Daemon)

// WithToolStarter injects a custom subprocess starter into the tool client.
func WithToolStarter(starter lbtool.Starter) Option {
	return func(d *Daemon) {
		client, err := lbtool.New(d.cfg.Tool.LBWrapper, lbtool.WithStarter(starter))
		if err == nil {
			d.tool = client
		}
	}
}

// WithNotifier replaces the HTTP notification client.
func WithNotifier(notifier shelf.Notifier) Option {
	return func(d *Daemon) {
		if notifier != nil {
			d.notifier = notifier
		}
	}
}

// New constructs a daemon from configuration. The catalog store is opened
// here; Start acquires the lock and launches workers.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := catalog.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	tool, err := lbtool.New(cfg.Tool.LBWrapper)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("tool client: %w", err)
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		tool:     tool,
		notifier: shelf.NewClient(time.Duration(cfg.Tool.TimeoutSeconds) * time.Second),
		search:   captions.NewSearchIndex(store),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.pool = worker.NewPool(cfg.Workflow.Workers, logger)
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Env builds the collaborator bundle handed to every task.
func (d *Daemon) Env() tasks.Env {
	return tasks.Env{
		Store:                d.store,
		Tool:                 d.tool,
		Notifier:             d.notifier,
		Queue:                d.pool,
		Logger:               d.logger,
		StallTimeout:         time.Duration(d.cfg.Tool.TimeoutSeconds) * time.Second,
		MaxVideosPerDownload: d.cfg.Tool.MaxVideosPerDownload,
	}
}

// Start acquires the instance lock, launches the worker pool, and brings up
// the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tubeshelf daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.pool.Start(runCtx)

	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.pool.Shutdown(0)
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("db", d.store.Path()),
		logging.Int("workers", d.cfg.Workflow.Workers))
	return nil
}

// Stop shuts the pool down with the configured grace period and releases the
// lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	d.pool.Shutdown(time.Duration(d.cfg.Workflow.ShutdownGraceSeconds) * time.Second)
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the catalog store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Submit normalizes a URL submission into a metadata task and enqueues it.
func (d *Daemon) Submit(mediaURL, notifyURL, userID string) (string, error) {
	if mediaURL == "" {
		return "", errors.New("media_url is required")
	}
	if notifyURL == "" {
		return "", errors.New("notify_url is required")
	}
	task := tasks.NewMetadataExtraction(d.Env(), mediaURL, notifyURL, userID)
	id := d.pool.Add(userID, task)
	if id == "" {
		return "", errors.New("daemon is shutting down")
	}
	d.logger.Info("submission accepted",
		logging.String(logging.FieldTaskID, id),
		logging.String(logging.FieldMediaURL, mediaURL),
		logging.String(logging.FieldUser, userID))
	return id, nil
}

// Tasks lists task snapshots, optionally filtered by user.
func (d *Daemon) Tasks(userID string) []worker.Snapshot {
	return d.pool.Tasks(userID)
}

// Cancel forwards a cancellation request to the pool.
func (d *Daemon) Cancel(taskID string) bool {
	return d.pool.Cancel(taskID)
}

// SearchCaptions answers a temporal caption search.
func (d *Daemon) SearchCaptions(ctx context.Context, term string) ([]int64, []captions.Passage, error) {
	passages, err := d.search.SearchPassages(ctx, term)
	if err != nil {
		return nil, nil, err
	}
	ids, err := d.search.Search(ctx, term)
	if err != nil {
		return nil, nil, err
	}
	return ids, passages, nil
}

// SearchTitles runs the external tool's own full-text search.
func (d *Daemon) SearchTitles(ctx context.Context, term string) ([]string, error) {
	return d.tool.SearchTitles(ctx, term)
}

// APIAddr returns the bound API listener address, empty before Start.
func (d *Daemon) APIAddr() string {
	if d.api == nil || d.api.listener == nil {
		return ""
	}
	return d.api.listener.Addr().String()
}

// Status reports runtime state for the status endpoint and CLI.
type Status struct {
	Running      bool
	PID          int
	Workers      int
	DatabasePath string
	LockFilePath string
	TaskCounts   map[string]int
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	counts := make(map[string]int, 4)
	for _, snapshot := range d.pool.Tasks("") {
		counts[string(snapshot.Status)]++
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workers:      d.cfg.Workflow.Workers,
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		TaskCounts:   counts,
	}
}
