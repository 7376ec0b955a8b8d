package readiness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
)

// ListeningPattern matches the announcement both FIX and FAST servers print on startup
var ListeningPattern = regexp.MustCompile(`is listening to port \d+`)

// maxPartialLine bounds how much of an unterminated line is kept for matching
const maxPartialLine = 4096

// LogLineProbe waits until the server writes a line matching ListeningPattern.
// The original engines print the line before listen(), so Settle is waited
// out after the match.
type LogLineProbe struct {
	Settle time.Duration

	timeout time.Duration
	clock   clock.Clock
	watcher *lineWatcher
}

// NewLogLineProbe creates a probe that gives up after timeout
func NewLogLineProbe(timeout time.Duration, clk clock.Clock) *LogLineProbe {
	return &LogLineProbe{
		timeout: timeout,
		clock:   clk,
		watcher: newLineWatcher(ListeningPattern),
	}
}

// Output returns the writer the server output must be copied to
func (p *LogLineProbe) Output() io.Writer {
	return p.watcher
}

func (p *LogLineProbe) Wait(ctx context.Context, server Server) error {
	var timeout <-chan time.Time
	if p.timeout > 0 {
		timer := p.clock.NewTimer(p.timeout)
		defer timer.Stop()
		timeout = timer.C()
	}
	select {
	case <-p.watcher.matched:
	case <-server.Done():
		return ErrServerExited
	case <-timeout:
		return fmt.Errorf("server did not announce listening within %v", p.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.settle(ctx, server)
}

func (p *LogLineProbe) settle(ctx context.Context, server Server) error {
	if p.Settle <= 0 {
		return nil
	}
	timer := p.clock.NewTimer(p.Settle)
	defer timer.Stop()
	select {
	case <-timer.C():
		return nil
	case <-server.Done():
		return ErrServerExited
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lineWatcher splits written bytes into lines and signals the first match
type lineWatcher struct {
	pattern *regexp.Regexp

	mu      sync.Mutex
	partial []byte
	once    sync.Once
	matched chan struct{}
}

func newLineWatcher(pattern *regexp.Regexp) *lineWatcher {
	return &lineWatcher{
		pattern: pattern,
		matched: make(chan struct{}),
	}
}

func (w *lineWatcher) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done() {
		return len(p), nil
	}
	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		if w.check(w.partial[:i]) {
			return len(p), nil
		}
		w.partial = w.partial[i+1:]
	}
	// Servers may announce without a trailing newline
	if len(w.partial) > 0 && w.check(w.partial) {
		return len(p), nil
	}
	if len(w.partial) > maxPartialLine {
		w.partial = append([]byte(nil), w.partial[len(w.partial)-maxPartialLine:]...)
	}
	return len(p), nil
}

// check signals a match and drops the buffer once the pattern is seen
func (w *lineWatcher) check(line []byte) bool {
	if !w.pattern.Match(line) {
		return false
	}
	w.once.Do(func() { close(w.matched) })
	w.partial = nil
	return true
}

func (w *lineWatcher) done() bool {
	select {
	case <-w.matched:
		return true
	default:
		return false
	}
}
