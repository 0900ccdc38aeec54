package progress

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/iiab/tubeshelf/internal/lbtool"
)

// State is the monitor's position in its lifecycle.
type State int

const (
	Idle State = iota
	Running
	Stalled
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stalled:
		return "stalled"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// expectedCycles is the download tool's internal retry/stage count. One run
// emits up to four 0→100% progress sweeps; the estimate divides by this so
// the reported fraction spans the whole run. Versioned against the tool's
// output contract, like the line patterns below.
const expectedCycles = 4

// pollInterval keeps the read loop responsive to cancellation between lines.
const pollInterval = 100 * time.Millisecond

var (
	progressPattern = regexp.MustCompile(`^downloading`)
	percentPattern  = regexp.MustCompile(`\d+`)
)

// Monitor consumes download tool output, classifies lines, and maintains a
// bounded [0,1] progress estimate plus a user-facing status message. It is
// driven from a single task goroutine and is not safe for concurrent use.
type Monitor struct {
	targetURL  string
	link       string
	stallAfter time.Duration

	state           State
	completedCycles int
	progress        float64
	message         string
	lastProgress    time.Time

	now func() time.Time
}

// NewMonitor builds a monitor for one download. targetURL is matched
// literally against output lines as the success signal; link is the display
// form used in messages (the consuming UI renders HTML anchors).
func NewMonitor(targetURL, link string, stallAfter time.Duration) *Monitor {
	return &Monitor{
		targetURL:  targetURL,
		link:       link,
		stallAfter: stallAfter,
		state:      Idle,
		now:        time.Now,
	}
}

func (m *Monitor) State() State { return m.state }

func (m *Monitor) Progress() float64 { return m.progress }

func (m *Monitor) Message() string { return m.message }

// CompletedCycles reports how many full 0→100% sweeps have been observed.
func (m *Monitor) CompletedCycles() int { return m.completedCycles }

// Observe classifies one output line. Progress lines advance the estimate;
// a line echoing the target URL, or completing the expected cycle count,
// transitions to Succeeded at 0.99 (the last 0.01 is reserved for
// post-processing confirmation). Unrecognized lines are noise.
func (m *Monitor) Observe(line string) {
	if m.state == Idle {
		m.state = Running
		m.lastProgress = m.now()
	}

	if strings.Contains(line, m.targetURL) || m.completedCycles == expectedCycles {
		m.succeed()
		return
	}

	if !progressPattern.MatchString(line) {
		return
	}
	m.state = Running

	match := percentPattern.FindString(line)
	if match == "" {
		return
	}
	pct, err := strconv.Atoi(match)
	if err != nil {
		return
	}
	if pct < 100 {
		estimate := (float64(m.completedCycles) + float64(pct)/100) / expectedCycles
		if estimate > 0.99 {
			estimate = 0.99
		}
		m.progress = estimate
		return
	}
	m.completedCycles++
	m.lastProgress = m.now()
	if m.completedCycles == expectedCycles {
		m.succeed()
	}
}

func (m *Monitor) succeed() {
	m.state = Succeeded
	m.progress = 0.99
}

// CheckStall moves a quiet Running monitor to Stalled once no recognized
// line has arrived within the configured window. Stalled is non-terminal:
// only the message changes and polling continues.
func (m *Monitor) CheckStall() bool {
	if m.state != Running || m.stallAfter <= 0 {
		return false
	}
	if m.now().Sub(m.lastProgress) < m.stallAfter {
		return false
	}
	m.state = Stalled
	m.message = m.link + " is taking longer than expected. It could be a stuck download due to unavailable fragments. Please wait as we keep trying."
	return true
}

// MarkComplete pins progress at 1.0 after post-processing confirms the file.
func (m *Monitor) MarkComplete() {
	m.progress = 1.0
	m.state = Succeeded
}

// Finalize resolves the terminal state from the subprocess exit code and the
// final progress value jointly: exit code 0 or progress 1.0 means success.
// The dual check tolerates tools that exit zero without reporting completion
// lines; it also means a tool that echoes the URL and then crashes is still
// treated as failed only if its exit code is non-zero. Preserved as-is for
// compatibility with the tool this contract is versioned against.
func (m *Monitor) Finalize(exitCode int) State {
	if exitCode == 0 || m.progress == 1.0 {
		if m.state != Succeeded {
			m.succeed()
		}
		if m.progress < 0.99 {
			m.progress = 0.99
		}
		m.state = Succeeded
		return Succeeded
	}
	m.state = Failed
	return Failed
}

// Run drives the monitor against a tool handle until the subprocess exits or
// the success signal lands. update (optional) receives progress/message
// changes as they happen. Cancellation kills the handle via its context
// watcher; Run returns ctx.Err() in that case.
func (m *Monitor) Run(ctx context.Context, handle lbtool.Handle, update func(progress float64, message string)) error {
	notify := func() {
		if update != nil {
			update(m.progress, m.message)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, exited := handle.PollExitCode(); exited {
			return nil
		}

		line, ok := handle.ReadLine(pollInterval)
		if !ok {
			if m.CheckStall() {
				notify()
			}
			continue
		}

		before := m.progress
		m.Observe(line)
		if m.state == Succeeded {
			notify()
			return nil
		}
		if m.progress != before {
			notify()
		}
	}
}
