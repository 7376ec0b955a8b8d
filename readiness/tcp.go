package readiness

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/retry"
)

const dialTimeout = 200 * time.Millisecond

// TCPProbe polls a TCP address until a connection succeeds
type TCPProbe struct {
	Address  string
	Timeout  time.Duration
	Interval time.Duration
}

func (p *TCPProbe) Wait(ctx context.Context, server Server) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	// Stop polling as soon as the server goes away
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case <-server.Done():
			cancel(ErrServerExited)
		case <-ctx.Done():
		}
	}()

	attempts := 1
	if p.Timeout > 0 && p.Interval > 0 {
		attempts = int(p.Timeout/p.Interval) + 1
	}
	var dialer net.Dialer
	err := retry.Do0(ctx, attempts, retry.Fixed(p.Interval), func() error {
		dialCtx, dialCancel := context.WithTimeout(ctx, dialTimeout)
		defer dialCancel()
		conn, err := dialer.DialContext(dialCtx, "tcp", p.Address)
		if err != nil {
			return err
		}
		return conn.Close()
	})
	if err == nil {
		return nil
	}
	if errors.Is(context.Cause(ctx), ErrServerExited) {
		return ErrServerExited
	}
	return fmt.Errorf("server at %s not accepting connections: %w", p.Address, err)
}

func joinHostPort(host string, port int) string {
	if host == "" {
		host = "localhost"
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
