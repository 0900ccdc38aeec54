package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/iiab/tubeshelf/internal/catalog"
	"github.com/iiab/tubeshelf/internal/logging"
)

// playlistMarker is the tool output line that announces a multi-item fetch.
// When it appears, the remainder of the line names the collection and
// overrides whatever the URL heuristic guessed.
const playlistMarker = "[download] Downloading playlist: "

// readTimeout paces the tool output loop so cancellation stays responsive.
const metadataReadTimeout = 500 * time.Millisecond

// MetadataExtractionTask runs the metadata phase for one submitted URL:
// invoke the external tool, rank the resulting candidates, resolve the target
// shelf for collections, and enqueue one download task per selected item.
type MetadataExtractionTask struct {
	env Env

	mediaURL  string
	notifyURL string
	userID    string
	link      string

	isPlaylist bool
	shelfTitle string
	shelf      string

	now func() time.Time
}

// NewMetadataExtraction builds the metadata task for a submitted URL. The raw
// URL is normalized before anything touches the tool or the catalog.
func NewMetadataExtraction(env Env, rawURL, originalURL, userID string) *MetadataExtractionTask {
	mediaURL := FormatMediaURL(rawURL)
	if env.Logger == nil {
		env.Logger = logging.NewNop()
	}
	return &MetadataExtractionTask{
		env:       env,
		mediaURL:  mediaURL,
		notifyURL: FormatNotifyURL(originalURL),
		userID:    userID,
		link:      Link(mediaURL),
		now:       time.Now,
	}
}

func (t *MetadataExtractionTask) DisplayName() string { return "Metadata Fetch" }

func (t *MetadataExtractionTask) Cancellable() bool { return true }

// Run executes the metadata phase. The candidate read and the single-video
// filter share one transaction. The collection flow must not: the backfill
// subprocess writes through the tool's own database connection, which a
// transaction opened before the subprocess ran could never observe, so stat
// reads and the playlist marker run as their own statements instead.
func (t *MetadataExtractionTask) Run(ctx context.Context, report Reporter) error {
	log := t.env.Logger.With(
		logging.String(logging.FieldComponent, "metadata"),
		logging.String(logging.FieldMediaURL, t.mediaURL),
		logging.String(logging.FieldUser, t.userID),
	)
	report.SetMessage("Fetching metadata for " + t.link + "...")

	if err := t.runTool(ctx, log); err != nil {
		report.SetMessage(t.link + " failed: " + err.Error())
		return err
	}

	kind := ClassifyURL(t.mediaURL)
	collection := kind != KindVideo || t.isPlaylist
	log.InfoContext(ctx, "metadata fetched",
		logging.String("kind", kind.String()),
		logging.Bool("collection", collection))

	var (
		selected      []catalog.Candidate
		candidates    []catalog.Candidate
		unavailable   []string
		orphanID      int64
		orphanWebpath string
		failMessage   string
	)
	txErr := t.env.Store.WithTx(ctx, func(tx *catalog.Tx) error {
		var err error
		candidates, unavailable, err = tx.Candidates(ctx)
		if err != nil {
			return err
		}

		if len(candidates) == 0 {
			msg, id, webpath, diagErr := t.diagnoseEmpty(ctx, tx, unavailable)
			if diagErr != nil {
				return diagErr
			}
			failMessage = msg
			orphanID = id
			orphanWebpath = webpath
			return ErrNoCandidates
		}

		if !collection {
			selected, err = t.prepareSingle(ctx, tx, candidates)
		}
		return err
	})
	if txErr != nil {
		if orphanWebpath != "" {
			if cleanupErr := t.env.Store.DeleteMediaAndCaptions(ctx, orphanID, orphanWebpath); cleanupErr != nil {
				log.ErrorContext(ctx, "cleanup of failed record", logging.Error(cleanupErr))
			}
		}
		if failMessage != "" {
			report.SetMessage(failMessage)
		} else {
			report.SetMessage(t.link + " failed: " + txErr.Error())
		}
		return txErr
	}

	if collection {
		var err error
		selected, err = t.prepareCollection(ctx, report, candidates)
		if err != nil {
			report.SetMessage(t.link + " failed: " + err.Error())
			return err
		}
	}

	for _, candidate := range selected {
		download := NewDownload(t.env, DownloadSpec{
			MediaURL:        candidate.Path,
			NotifyURL:       t.notifyURL,
			UserID:          t.userID,
			ShelfID:         t.shelf,
			DurationSeconds: candidate.Duration,
			LiveStatus:      candidate.LiveStatus,
		})
		t.env.Queue.Add(t.userID, download)
	}
	log.InfoContext(ctx, "downloads enqueued", logging.Int("count", len(selected)))

	report.SetMessage(t.summary(selected, unavailable))
	return nil
}

// runTool drives one tubeadd invocation, watching for the playlist marker.
// The tool writes its results straight into the shared database, so its exit
// code is informational; the catalog decides what happened.
func (t *MetadataExtractionTask) runTool(ctx context.Context, log *slog.Logger) error {
	handle, err := t.env.Tool.TubeAdd(ctx, t.mediaURL)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			handle.Kill()
			return ctx.Err()
		default:
		}
		line, ok := handle.ReadLine(metadataReadTimeout)
		if !ok {
			if _, exited := handle.PollExitCode(); exited {
				break
			}
			continue
		}
		if idx := strings.Index(line, playlistMarker); idx >= 0 {
			t.isPlaylist = true
			t.shelfTitle = strings.TrimSpace(line[idx+len(playlistMarker):])
			break
		}
	}

	if code := handle.Wait(); code != 0 {
		log.WarnContext(ctx, "metadata tool exited non-zero", logging.Int("exit_code", code))
	}
	return nil
}

// prepareCollection handles the channel/playlist flow: resolve the shelf,
// backfill missing view stats, rank by views per day, cap, and mark the
// playlist row so a resubmission starts fresh. It runs with no transaction
// open: each backfill spawns the tool, which writes stats through its own
// connection, and only a fresh read issued afterwards can see them.
func (t *MetadataExtractionTask) prepareCollection(ctx context.Context, report Reporter, candidates []catalog.Candidate) ([]catalog.Candidate, error) {
	resolved, err := t.env.Notifier.ResolveShelf(ctx, t.notifyURL, t.userID, t.shelfTitle)
	if err != nil {
		return nil, err
	}
	t.shelf = resolved.ID
	if resolved.Title != "" {
		t.shelfTitle = resolved.Title
	}

	ranked := make([]catalog.Candidate, 0, len(candidates))
	for i, candidate := range candidates {
		views, uploaded, ok, statErr := t.env.Store.ViewStats(ctx, candidate.Path)
		if statErr != nil {
			return nil, statErr
		}
		if !ok {
			if backfillErr := t.backfill(ctx, candidate.Path); backfillErr != nil {
				t.env.Logger.WarnContext(ctx, "metadata backfill failed",
					logging.String(logging.FieldMediaURL, candidate.Path),
					logging.Error(backfillErr))
				continue
			}
			views, uploaded, ok, statErr = t.env.Store.ViewStats(ctx, candidate.Path)
			if statErr != nil {
				return nil, statErr
			}
			if !ok {
				continue
			}
		}
		candidate.ViewsPerDay = viewsPerDay(views, uploaded, t.now())
		ranked = append(ranked, candidate)
		report.SetProgress(float64(i+1) / float64(len(candidates)))
	}

	selected := rankCandidates(ranked, t.env.MaxVideosPerDownload)

	if _, err := t.env.Store.UpdatePlaylistPath(ctx, t.mediaURL, RetryStamp(t.mediaURL, t.now())); err != nil {
		return nil, err
	}
	return selected, nil
}

// prepareSingle handles the plain video flow: correlate the submitted URL to
// its extractor id and keep only the matching candidate rows.
func (t *MetadataExtractionTask) prepareSingle(ctx context.Context, tx *catalog.Tx, candidates []catalog.Candidate) ([]catalog.Candidate, error) {
	extractorID, err := tx.ExtractorID(ctx, t.mediaURL)
	if err != nil {
		return nil, err
	}
	if extractorID == "" {
		return nil, fmt.Errorf("%w: extractor id not found", ErrNoCandidates)
	}

	var selected []catalog.Candidate
	for _, candidate := range candidates {
		if strings.Contains(candidate.Path, extractorID) {
			selected = append(selected, candidate)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no candidate matches extractor id", ErrNoCandidates)
	}
	return selected, nil
}

// backfill issues one per-item metadata invocation for a candidate missing
// view stats. Serial on purpose: the tool writes to the shared database and
// parallel invocations contend on it.
func (t *MetadataExtractionTask) backfill(ctx context.Context, path string) error {
	handle, err := t.env.Tool.TubeAdd(ctx, path)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			handle.Kill()
			return ctx.Err()
		default:
		}
		if _, ok := handle.ReadLine(metadataReadTimeout); !ok {
			if _, exited := handle.PollExitCode(); exited {
				break
			}
		}
	}
	if code := handle.Wait(); code != 0 {
		return fmt.Errorf("backfill exited with code %d", code)
	}
	return nil
}

// diagnoseEmpty explains an empty candidate set and decides whether a stored
// failure record should be purged so the user can force a retry.
func (t *MetadataExtractionTask) diagnoseEmpty(ctx context.Context, tx *catalog.Tx, unavailable []string) (message string, orphanID int64, orphanWebpath string, err error) {
	if len(unavailable) > 0 {
		return t.link + " failed: Video not available.", 0, "", nil
	}

	extractorID, err := tx.ExtractorID(ctx, t.mediaURL)
	if err != nil {
		return "", 0, "", err
	}
	if extractorID == "" {
		return t.link + " failed: Extractor ID not found.", 0, "", nil
	}

	storedError, err := tx.ErrorForWebpath(ctx, t.mediaURL)
	if err != nil {
		return "", 0, "", err
	}
	if storedError != "" {
		id, found, idErr := tx.MediaIDByWebpath(ctx, t.mediaURL)
		if idErr != nil {
			return "", 0, "", idErr
		}
		message = t.link + " failed previously with this error: " + storedError +
			"<br><br>To force a retry, submit the URL again."
		if found {
			return message, id, t.mediaURL, nil
		}
		return message, 0, "", nil
	}
	return t.link + " failed: An error occurred while trying to fetch the requested URLs.", 0, "", nil
}

// summary builds the final success message: counts, total runtime, the shelf
// link for collections, and any items skipped as unavailable or live.
func (t *MetadataExtractionTask) summary(selected []catalog.Candidate, unavailable []string) string {
	var totalSeconds float64
	var upcoming, live []string
	for _, candidate := range selected {
		totalSeconds += candidate.Duration
		switch candidate.LiveStatus {
		case catalog.LiveStatusIsUpcoming:
			upcoming = append(upcoming, Link(candidate.Path))
		case catalog.LiveStatusIsLive:
			live = append(live, Link(candidate.Path))
		}
	}

	var b strings.Builder
	b.WriteString(t.link)
	fmt.Fprintf(&b, "<br><br>Number of Videos: %d", len(selected))
	fmt.Fprintf(&b, "<br>Total Duration: %s", FormatDuration(int64(totalSeconds)))
	if t.shelf != "" {
		fmt.Fprintf(&b, `<br><br>Shelf: <a href="%s" target="_blank">%s</a>`, ShelfURL(t.notifyURL, t.shelf), t.shelfTitle)
	}
	if len(unavailable) > 0 {
		b.WriteString("<br><br>Unavailable: ")
		b.WriteString(joinLinks(unavailable))
	}
	if len(upcoming) > 0 {
		b.WriteString("<br><br>Upcoming: ")
		b.WriteString(strings.Join(upcoming, "<br>"))
	}
	if len(live) > 0 {
		b.WriteString("<br><br>Live now (not downloaded): ")
		b.WriteString(strings.Join(live, "<br>"))
	}
	return b.String()
}

func joinLinks(urls []string) string {
	links := make([]string, len(urls))
	for i, u := range urls {
		links[i] = Link(u)
	}
	return strings.Join(links, "<br>")
}

// viewsPerDay is the ranking signal: lifetime views averaged over days since
// publication, floored at one day so fresh uploads do not divide by zero.
func viewsPerDay(viewCount, timeUploaded int64, now time.Time) float64 {
	days := int64(now.Sub(time.Unix(timeUploaded, 0)).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return float64(viewCount) / float64(days)
}

// rankCandidates orders by views per day, highest first, and caps the list.
// The sort is stable so equal-rate items keep their catalog order.
func rankCandidates(candidates []catalog.Candidate, max int) []catalog.Candidate {
	ranked := make([]catalog.Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ViewsPerDay > ranked[j].ViewsPerDay
	})
	if max > 0 && len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}
