package lbtool

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// processStarter launches real OS processes. Each process gets its own
// process group so Kill can take down the tool together with any helpers it
// forks (ffmpeg, fragment fetchers).
type processStarter struct{}

func (processStarter) Start(ctx context.Context, binary string, args []string) (Handle, error) {
	cmd := exec.Command(binary, args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, err
	}
	_ = pw.Close()

	h := &processHandle{
		cmd:   cmd,
		lines: make(chan string, 256),
		done:  make(chan struct{}),
	}

	go h.pump(pr)
	go h.watchContext(ctx)

	return h, nil
}

type processHandle struct {
	cmd      *exec.Cmd
	lines    chan string
	done     chan struct{}
	exitCode int
	killOnce sync.Once
}

func (h *processHandle) pump(r *os.File) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		h.lines <- scanner.Text()
	}
	close(h.lines)
	_ = r.Close()

	if err := h.cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			h.exitCode = exitErr.ExitCode()
		} else {
			h.exitCode = -1
		}
	}
	close(h.done)
}

func (h *processHandle) watchContext(ctx context.Context) {
	select {
	case <-ctx.Done():
		h.Kill()
	case <-h.done:
	}
}

func (h *processHandle) ReadLine(timeout time.Duration) (string, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case line, ok := <-h.lines:
		return line, ok
	case <-timer.C:
		return "", false
	}
}

func (h *processHandle) PollExitCode() (int, bool) {
	select {
	case <-h.done:
		return h.exitCode, true
	default:
		return 0, false
	}
}

func (h *processHandle) Wait() int {
	for {
		select {
		case _, ok := <-h.lines:
			if ok {
				continue
			}
			<-h.done
			return h.exitCode
		case <-h.done:
			return h.exitCode
		}
	}
}

func (h *processHandle) Kill() {
	h.killOnce.Do(func() {
		if h.cmd.Process == nil {
			return
		}
		pid := h.cmd.Process.Pid
		// Negative pid addresses the whole process group.
		if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
			_ = h.cmd.Process.Kill()
		}
	})
}
