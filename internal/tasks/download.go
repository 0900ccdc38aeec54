package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iiab/tubeshelf/internal/catalog"
	"github.com/iiab/tubeshelf/internal/logging"
	"github.com/iiab/tubeshelf/internal/progress"
	"github.com/iiab/tubeshelf/internal/shelf"
)

// mediaExtensions are the container formats the download tool produces; the
// first matching entry in the delivered directory is the playable file.
var mediaExtensions = []string{".webm", ".mp4"}

// DownloadSpec carries everything a download task needs from the metadata
// phase.
type DownloadSpec struct {
	MediaURL        string
	NotifyURL       string
	UserID          string
	ShelfID         string
	DurationSeconds float64
	LiveStatus      string
}

// DownloadTask fetches one media item, tracks tool progress, and reports the
// delivered file to the notification collaborator.
type DownloadTask struct {
	env  Env
	spec DownloadSpec
	link string

	now func() time.Time
}

// NewDownload builds a download task for one ranked candidate.
func NewDownload(env Env, spec DownloadSpec) *DownloadTask {
	if env.Logger == nil {
		env.Logger = logging.NewNop()
	}
	return &DownloadTask{
		env:  env,
		spec: spec,
		link: Link(spec.MediaURL),
		now:  time.Now,
	}
}

func (t *DownloadTask) DisplayName() string { return "Download" }

func (t *DownloadTask) Cancellable() bool { return true }

// Run drives the tool subprocess to completion and post-processes the result.
// Success is judged by exit code or completed progress, whichever confirms
// first; post-processing failures override either.
func (t *DownloadTask) Run(ctx context.Context, report Reporter) error {
	log := t.env.Logger.With(
		logging.String(logging.FieldComponent, "download"),
		logging.String(logging.FieldMediaURL, t.spec.MediaURL),
		logging.String(logging.FieldUser, t.spec.UserID),
	)

	if t.spec.MediaURL == "" {
		report.SetMessage("Download failed: no media URL provided.")
		return errors.New("no media URL provided")
	}

	message := "Downloading " + t.link + "..."
	if t.spec.LiveStatus == catalog.LiveStatusWasLive {
		message = fmt.Sprintf("Downloading %s (runtime %s, this may take a while)...",
			t.link, FormatDuration(int64(t.spec.DurationSeconds)))
	}
	report.SetMessage(message)

	handle, err := t.env.Tool.Download(ctx, t.spec.MediaURL)
	if err != nil {
		report.SetMessage(t.link + " failed: " + err.Error())
		return err
	}

	monitor := progress.NewMonitor(t.spec.MediaURL, t.link, t.env.StallTimeout)
	runErr := monitor.Run(ctx, handle, func(p float64, msg string) {
		report.SetProgress(p)
		if msg != "" {
			report.SetMessage(msg)
		}
	})
	if runErr != nil {
		return runErr
	}
	exitCode := handle.Wait()
	log.InfoContext(ctx, "download tool finished",
		logging.Int("exit_code", exitCode),
		logging.Float64("progress", monitor.Progress()),
		logging.String("state", monitor.State().String()))

	if err := t.postProcess(ctx, report, monitor); err != nil {
		return err
	}

	if monitor.Finalize(exitCode) != progress.Succeeded {
		report.SetMessage(t.link + " failed to download.")
		return fmt.Errorf("download exited with code %d", exitCode)
	}
	return nil
}

// postProcess confirms the downloaded file in the catalog, reports it to the
// collaborator, and records the final local path. The catalog writes share
// one transaction with the lookup so a concurrent retry of the same URL
// cannot observe a half-updated row. Only the compensating delete for an
// orphaned record commits on its own.
func (t *DownloadTask) postProcess(ctx context.Context, report Reporter, monitor *progress.Monitor) error {
	var (
		orphanID      int64
		orphanWebpath string
		failMessage   string
		bookID        int64
		mediaID       int64
	)
	txErr := t.env.Store.WithTx(ctx, func(tx *catalog.Tx) error {
		entry, err := tx.LocalMediaByWebpath(ctx, t.spec.MediaURL)
		if err != nil {
			return err
		}
		if entry == nil || entry.Path == "" {
			msg, id, webpath, diagErr := t.diagnoseMissing(ctx, tx, entry)
			if diagErr != nil {
				return diagErr
			}
			failMessage = msg
			orphanID = id
			orphanWebpath = webpath
			if webpath != "" {
				return ErrOrphanRecord
			}
			return fmt.Errorf("stored tool error: %s", msg)
		}
		mediaID = entry.ID

		report.SetMessage("Downloading " + t.link + "...\nAlmost done...")
		delivery, err := t.env.Notifier.DeliverFile(ctx, t.spec.NotifyURL, shelf.FileReport{
			RequestedFile: entry.Path,
			UserName:      t.spec.UserID,
			ShelfID:       t.spec.ShelfID,
			MediaID:       entry.ID,
		})
		if err != nil {
			failMessage = t.link + " failed: " + err.Error()
			return err
		}
		if delivery.NewBookPath == "" {
			failMessage = t.link + " failed: 'new_book_path' not found in the response."
			return fmt.Errorf("%w: missing new_book_path", shelf.ErrNotify)
		}
		bookID = delivery.BookID

		localPath := resolveMediaFile(delivery.NewBookPath)
		if err := tx.SetMediaDownloaded(ctx, entry.ID, localPath, RetryStamp(t.spec.MediaURL, t.now())); err != nil {
			return err
		}

		report.SetMessage("Successfully downloaded " + t.link + " to <br><br>" + delivery.FileDownloaded)
		monitor.MarkComplete()
		report.SetProgress(1.0)
		return nil
	})
	if txErr != nil {
		if orphanWebpath != "" {
			if cleanupErr := t.env.Store.DeleteMediaAndCaptions(ctx, orphanID, orphanWebpath); cleanupErr != nil {
				t.env.Logger.ErrorContext(ctx, "cleanup of orphan record", logging.Error(cleanupErr))
			}
		}
		if failMessage != "" {
			report.SetMessage(failMessage)
		}
		return txErr
	}

	if bookID > 0 && mediaID > 0 {
		if err := t.env.Store.UpsertBookMapping(ctx, mediaID, bookID); err != nil {
			t.env.Logger.ErrorContext(ctx, "record book mapping", logging.Error(err))
		}
	}
	return nil
}

// diagnoseMissing explains a download that left no local path behind. A
// stored tool error is surfaced to the user; a row with neither path nor
// error is an orphan and gets purged so a retry starts clean.
func (t *DownloadTask) diagnoseMissing(ctx context.Context, tx *catalog.Tx, entry *catalog.Media) (message string, orphanID int64, orphanWebpath string, err error) {
	storedError, err := tx.ErrorForWebpath(ctx, t.spec.MediaURL)
	if err != nil {
		return "", 0, "", err
	}
	if storedError != "" {
		return t.link + " failed to download: " + storedError, 0, "", nil
	}

	message = t.link + " failed to download: No path or error found in the database."
	if entry != nil {
		return message, entry.ID, t.spec.MediaURL, nil
	}
	id, found, idErr := tx.MediaIDByWebpath(ctx, t.spec.MediaURL)
	if idErr != nil {
		return "", 0, "", idErr
	}
	if found {
		return message, id, t.spec.MediaURL, nil
	}
	return message, 0, "", nil
}

// resolveMediaFile returns the first playable media file in the delivered
// book directory, or empty when none is there yet.
func resolveMediaFile(bookPath string) string {
	entries, err := os.ReadDir(bookPath)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, allowed := range mediaExtensions {
			if ext == allowed {
				return filepath.Join(bookPath, entry.Name())
			}
		}
	}
	return ""
}
