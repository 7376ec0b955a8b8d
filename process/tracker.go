package process

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	gopsprocess "github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"
)

// Tracker keeps the set of live handles so they can be killed on abnormal exit
type Tracker struct {
	mu      sync.Mutex
	handles map[int]*Handle
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{handles: make(map[int]*Handle)}
}

func (t *Tracker) add(h *Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handles[h.PID()] = h
}

func (t *Tracker) remove(h *Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handles, h.PID())
}

// Live returns the pids of handles that have not exited yet
func (t *Tracker) Live() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	pids := make([]int, 0, len(t.handles))
	for pid := range t.handles {
		pids = append(pids, pid)
	}
	return pids
}

// KillAll sends SIGKILL to every tracked process group and returns how many were signalled
func (t *Tracker) KillAll() int {
	t.mu.Lock()
	handles := make([]*Handle, 0, len(t.handles))
	for _, h := range t.handles {
		handles = append(handles, h)
	}
	t.mu.Unlock()

	for _, h := range handles {
		h.Kill()
	}
	return len(handles)
}

// KillChildren terminates any direct child of this process that is still running.
// It covers processes started outside a Launcher.
func KillChildren(logger log.Logger) {
	procs, err := gopsprocess.Processes()
	if err != nil {
		logger.Warn("Failed to list processes", "err", err)
		return
	}

	selfPid := int32(os.Getpid())
	for _, proc := range procs {
		ppid, err := proc.Ppid()
		if err != nil || ppid != selfPid {
			continue
		}
		if err := proc.Kill(); err != nil {
			logger.Debug("Failed to kill child process", "pid", proc.Pid, "err", err)
		}
	}
}

// InstallCleanup registers a handler that kills every tracked process when the
// harness receives SIGINT or SIGTERM, then invokes onSignal. It is installed once
// at startup and removed when ctx is done.
func InstallCleanup(ctx context.Context, tracker *Tracker, logger log.Logger, onSignal func(os.Signal)) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGINT, unix.SIGTERM)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			n := tracker.KillAll()
			KillChildren(logger)
			logger.Warn("Caught signal, killed running processes", "signal", sig, "killed", n)
			if onSignal != nil {
				onSignal(sig)
			}
		case <-ctx.Done():
		}
	}()
}
