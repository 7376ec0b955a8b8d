package runner

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
)

const bindPollInterval = 50 * time.Millisecond

// PortUnavailableError is returned when the trial port stays bound by someone else
type PortUnavailableError struct {
	Port int
	Err  error
}

func (e *PortUnavailableError) Error() string {
	return fmt.Sprintf("port %d unavailable: %v", e.Port, e.Err)
}

func (e *PortUnavailableError) Unwrap() error {
	return e.Err
}

// PortLease grants exclusive use of the trial port to one trial at a time
type PortLease struct {
	port        int
	bindTimeout time.Duration
	clock       clock.Clock
	sem         chan struct{}
}

// NewPortLease creates a lease for port. Acquire waits up to bindTimeout for a
// previous listener to let go of the port.
func NewPortLease(port int, bindTimeout time.Duration, clk clock.Clock) *PortLease {
	if clk == nil {
		clk = clock.NewClock()
	}
	return &PortLease{
		port:        port,
		bindTimeout: bindTimeout,
		clock:       clk,
		sem:         make(chan struct{}, 1),
	}
}

// Port returns the leased port number
func (l *PortLease) Port() int {
	return l.port
}

// Acquire blocks until the lease is free and the port can be bound.
// The returned release function is idempotent.
func (l *PortLease) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	release := sync.OnceFunc(func() { <-l.sem })

	if err := l.waitBindable(ctx); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

func (l *PortLease) waitBindable(ctx context.Context) error {
	if l.port == 0 {
		return nil
	}
	addr := net.JoinHostPort("", strconv.Itoa(l.port))
	deadline := l.clock.Now().Add(l.bindTimeout)
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln.Close()
		}
		if !l.clock.Now().Before(deadline) {
			return &PortUnavailableError{Port: l.port, Err: err}
		}
		select {
		case <-l.clock.After(bindPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
