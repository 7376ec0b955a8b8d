// Package process starts server and client programs and guarantees that
// every started process is eventually reaped or killed.
package process

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/ethereum/go-ethereum/log"
)

// waitDelay bounds how long Wait keeps copying output after the process exited
const waitDelay = time.Second

// ProgramSpec describes one program invocation
type ProgramSpec struct {
	Path string
	Args []string
	Dir  string // Working directory, empty for the current one
	Env  []string
}

// Output receives the standard streams of a launched program.
// Nil writers discard the stream.
type Output struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Launcher starts programs in their own process group
type Launcher struct {
	log     log.Logger
	clock   clock.Clock
	tracker *Tracker
}

// LauncherOption configures a Launcher
type LauncherOption func(*Launcher)

// WithClock sets the clock used for termination polling
func WithClock(c clock.Clock) LauncherOption {
	return func(l *Launcher) {
		l.clock = c
	}
}

// WithTracker records every started handle in t until it exits
func WithTracker(t *Tracker) LauncherOption {
	return func(l *Launcher) {
		l.tracker = t
	}
}

// NewLauncher creates a launcher
func NewLauncher(logger log.Logger, opts ...LauncherOption) *Launcher {
	l := &Launcher{
		log:   logger,
		clock: clock.NewClock(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolve returns the absolute path of an executable program
func Resolve(path string) (string, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return "", &StartError{Path: path, Err: ErrNotFound}
		}
		return "", &StartError{Path: path, Err: err}
	}
	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}
	return resolved, nil
}

// Start launches the program and returns immediately.
// The process is not tied to ctx; callers stop it with Terminate or Kill.
func (l *Launcher) Start(ctx context.Context, spec ProgramSpec, out Output) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := Resolve(spec.Path)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.Stdout = out.Stdout
	cmd.Stderr = out.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return nil, &StartError{Path: path, Err: err}
	}

	h := newHandle(cmd, l.clock, l.log)
	l.log.Debug("Started process", "path", path, "args", spec.Args, "pid", h.PID())

	if l.tracker != nil {
		l.tracker.add(h)
		go func() {
			<-h.Done()
			l.tracker.remove(h)
		}()
	}
	return h, nil
}
