// Package readiness decides when a freshly started server may be given a client.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
)

// Mode selects how server readiness is established
type Mode string

const (
	// ModeDelay waits a fixed settle delay
	ModeDelay Mode = "delay"
	// ModeTCP polls the server port until it accepts a connection.
	// The probe connection is a session of its own, so servers that accept only
	// once must not be probed this way.
	ModeTCP Mode = "tcp"
	// ModeLog waits for the server to announce that it is listening, then settles
	ModeLog Mode = "log"
)

const (
	DefaultMode         = ModeDelay
	DefaultSettleDelay  = time.Second
	DefaultTimeout      = 5 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
	// DefaultListenSettle covers servers that announce before calling listen()
	DefaultListenSettle = 100 * time.Millisecond
)

// ErrServerExited is returned when the server stops before becoming ready
var ErrServerExited = errors.New("server exited before becoming ready")

// ParseMode parses a readiness mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDelay, ModeTCP, ModeLog:
		return m, nil
	case "":
		return DefaultMode, nil
	default:
		return "", fmt.Errorf("unknown readiness mode %q (expected delay, tcp or log)", s)
	}
}

// Server is the view of a running server a probe needs
type Server interface {
	Done() <-chan struct{}
}

// Probe blocks until the server is ready, the server exits, or ctx is done
type Probe interface {
	Wait(ctx context.Context, server Server) error
}

// OutputWatcher is implemented by probes that inspect server output.
// The returned writer must receive everything the server writes.
type OutputWatcher interface {
	Output() io.Writer
}

// Config configures probe construction
type Config struct {
	Mode         Mode
	SettleDelay  time.Duration // Used by ModeDelay
	Timeout      time.Duration // Upper bound for ModeTCP and ModeLog
	PollInterval time.Duration // Used by ModeTCP
	ListenSettle time.Duration // Used by ModeLog after the announcement
	Clock        clock.Clock
}

// DefaultConfig returns the default readiness configuration
func DefaultConfig() Config {
	return Config{
		Mode:         DefaultMode,
		SettleDelay:  DefaultSettleDelay,
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
		ListenSettle: DefaultListenSettle,
	}
}

// NewProbe returns a fresh probe for a server listening on host:port.
// Log probes carry per-server state, so every trial needs its own probe.
func (c Config) NewProbe(host string, port int) Probe {
	clk := c.Clock
	if clk == nil {
		clk = clock.NewClock()
	}
	switch c.Mode {
	case ModeDelay:
		return &FixedDelay{Delay: c.SettleDelay, Clock: clk}
	case ModeLog:
		probe := NewLogLineProbe(c.Timeout, clk)
		probe.Settle = c.ListenSettle
		return probe
	default:
		interval := c.PollInterval
		if interval <= 0 {
			interval = DefaultPollInterval
		}
		return &TCPProbe{
			Address:  joinHostPort(host, port),
			Timeout:  c.Timeout,
			Interval: interval,
		}
	}
}

// FixedDelay waits for a fixed duration
type FixedDelay struct {
	Delay time.Duration
	Clock clock.Clock
}

func (p *FixedDelay) Wait(ctx context.Context, server Server) error {
	if p.Delay <= 0 {
		return nil
	}
	timer := p.Clock.NewTimer(p.Delay)
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
