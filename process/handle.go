package process

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sys/unix"
)

// ExitStatus describes how a process ended
type ExitStatus struct {
	Code     int // Exit code, -1 if the process was killed by a signal
	Signaled bool
	Signal   syscall.Signal
}

// Success reports whether the process exited with code 0
func (s ExitStatus) Success() bool {
	return !s.Signaled && s.Code == 0
}

// Handle is a running (or finished) process.
// A single goroutine reaps the process; all other methods are safe for concurrent use.
type Handle struct {
	cmd   *exec.Cmd
	pid   int
	clock clock.Clock
	log   log.Logger

	done     chan struct{}
	mu       sync.Mutex
	status   ExitStatus
	waitErr  error
	killOnce sync.Once
}

func newHandle(cmd *exec.Cmd, c clock.Clock, logger log.Logger) *Handle {
	h := &Handle{
		cmd:   cmd,
		pid:   cmd.Process.Pid,
		clock: c,
		log:   logger,
		done:  make(chan struct{}),
	}
	go h.reap()
	return h
}

func (h *Handle) reap() {
	err := h.cmd.Wait()

	status := ExitStatus{Code: -1}
	if state := h.cmd.ProcessState; state != nil {
		status.Code = state.ExitCode()
		if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			status.Signaled = true
			status.Signal = ws.Signal()
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		err = nil
	}

	h.mu.Lock()
	h.status = status
	h.waitErr = err
	h.mu.Unlock()
	close(h.done)
}

// PID returns the process id, which is also its process group id
func (h *Handle) PID() int {
	return h.pid
}

// Done is closed once the process has been reaped
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether the process has been reaped
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Status returns the exit status. It is only meaningful once Done is closed.
func (h *Handle) Status() ExitStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Wait blocks until the process exits or ctx is done
func (h *Handle) Wait(ctx context.Context) (ExitStatus, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.status, h.waitErr
	case <-ctx.Done():
		return ExitStatus{Code: -1}, ctx.Err()
	}
}

// Terminate asks the process group to stop with SIGTERM, polls up to attempts
// times, then kills it. It returns once the process has been reaped.
func (h *Handle) Terminate(ctx context.Context, attempts int, interval time.Duration) error {
	if h.Exited() {
		h.signalGroup(unix.SIGKILL)
		return nil
	}
	if err := h.signalGroup(unix.SIGTERM); err != nil {
		h.log.Debug("SIGTERM failed", "pid", h.pid, "err", err)
	}

	for i := 0; i < attempts; i++ {
		timer := h.clock.NewTimer(interval)
		select {
		case <-h.done:
			timer.Stop()
			// Catch stragglers left in the group by the leader
			h.signalGroup(unix.SIGKILL)
			return nil
		case <-timer.C():
		case <-ctx.Done():
			timer.Stop()
			h.Kill()
			return ctx.Err()
		}
	}

	h.log.Warn("Process ignored SIGTERM, killing", "pid", h.pid)
	h.Kill()
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Kill sends SIGKILL to the process group. It does not wait for the process.
func (h *Handle) Kill() {
	h.killOnce.Do(func() {
		if err := h.signalGroup(unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			h.log.Debug("SIGKILL failed", "pid", h.pid, "err", err)
		}
	})
}

func (h *Handle) signalGroup(sig unix.Signal) error {
	err := unix.Kill(-h.pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
