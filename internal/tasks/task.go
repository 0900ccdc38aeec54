package tasks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iiab/tubeshelf/internal/catalog"
	"github.com/iiab/tubeshelf/internal/lbtool"
	"github.com/iiab/tubeshelf/internal/shelf"
)

// Status is the lifecycle of a task as exposed to polling UIs.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusStarted Status = "started"
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
)

// Sentinel errors for task failure classification. lbtool.ErrSpawn and
// shelf.ErrNotify complete the taxonomy.
var (
	// ErrNoCandidates means the metadata step found nothing to download.
	ErrNoCandidates = errors.New("no download candidates")
	// ErrOrphanRecord means a download produced neither a file nor a
	// diagnosable error; the orphaned row has been purged so retries
	// start clean.
	ErrOrphanRecord = errors.New("orphan catalog record")
)

// Reporter receives live progress and status text from a running task.
type Reporter interface {
	SetProgress(progress float64)
	SetMessage(message string)
}

// Task is one unit of pipeline work executed by the worker pool.
type Task interface {
	DisplayName() string
	Cancellable() bool
	Run(ctx context.Context, report Reporter) error
}

// Queue accepts follow-on tasks scoped to a user and returns the task id.
type Queue interface {
	Add(userID string, task Task) string
}

// Env bundles the collaborators a task needs. Repositories and clients are
// constructed once by the daemon and injected here; tasks never reach for
// process-wide state.
type Env struct {
	Store    *catalog.Store
	Tool     *lbtool.Client
	Notifier shelf.Notifier
	Queue    Queue
	Logger   *slog.Logger

	// StallTimeout is how long a download may stay quiet before the
	// user-facing message flags it as stuck.
	StallTimeout time.Duration
	// MaxVideosPerDownload caps ranked channel/playlist candidates.
	MaxVideosPerDownload int
}
