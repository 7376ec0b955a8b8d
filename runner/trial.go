package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum-optimism/infra/fix-acceptor/metrics"
	"github.com/ethereum-optimism/infra/fix-acceptor/process"
	"github.com/ethereum-optimism/infra/fix-acceptor/readiness"
	"github.com/ethereum-optimism/infra/fix-acceptor/types"
	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Trial runs one test case against a fresh server
type Trial interface {
	RunTrial(ctx context.Context, suite types.Suite, tc types.TestCase) (*types.TrialOutcome, error)
}

// TrialConfig holds configuration for creating a TrialRunner
type TrialConfig struct {
	Launcher  *process.Launcher
	Log       log.Logger
	Endpoint  Endpoint
	Readiness readiness.Config

	TrialTimeout      time.Duration // Zero waits for the client forever
	TerminateAttempts int
	TerminateInterval time.Duration
	BindTimeout       time.Duration

	// Live receives server and client output as it is produced, nil to suppress it
	Live io.Writer
}

// TrialRunner pairs one server launch with one client launch per test case
type TrialRunner struct {
	cfg    TrialConfig
	log    log.Logger
	lease  *PortLease
	tracer trace.Tracer
}

var _ Trial = (*TrialRunner)(nil)

// NewTrialRunner creates a trial runner
func NewTrialRunner(cfg TrialConfig) (*TrialRunner, error) {
	if cfg.Launcher == nil {
		return nil, fmt.Errorf("launcher is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Endpoint.Host == "" {
		cfg.Endpoint.Host = DefaultHost
	}
	if cfg.Endpoint.Port < 0 || cfg.Endpoint.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Endpoint.Port)
	}
	if cfg.TerminateAttempts <= 0 {
		cfg.TerminateAttempts = DefaultTerminateAttempts
	}
	if cfg.TerminateInterval <= 0 {
		cfg.TerminateInterval = DefaultTerminateInterval
	}
	if cfg.BindTimeout <= 0 {
		cfg.BindTimeout = DefaultBindTimeout
	}

	return &TrialRunner{
		cfg:    cfg,
		log:    cfg.Log,
		lease:  NewPortLease(cfg.Endpoint.Port, cfg.BindTimeout, cfg.Readiness.Clock),
		tracer: otel.Tracer("trial runner"),
	}, nil
}

// RunTrial runs tc and classifies the client's exit. The error is non-nil only
// when a program could not be started, which is fatal for the whole run.
func (r *TrialRunner) RunTrial(ctx context.Context, suite types.Suite, tc types.TestCase) (*types.TrialOutcome, error) {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("trial %s", tc.ID()))
	defer span.End()

	start := time.Now()
	serverSpec := ServerSpec(suite, tc, r.cfg.Endpoint)
	clientSpec := ClientSpec(suite, tc, r.cfg.Endpoint)
	span.SetAttributes(
		attribute.String("suite", suite.ID),
		attribute.String("server.command", CommandLine(serverSpec)),
		attribute.String("client.command", CommandLine(clientSpec)),
	)

	serverTail := newTailBuffer(maxOutputBytes)
	clientTail := newTailBuffer(maxOutputBytes)
	probe := r.cfg.Readiness.NewProbe(r.cfg.Endpoint.Host, r.cfg.Endpoint.Port)

	serverWriters := []io.Writer{serverTail}
	clientWriters := []io.Writer{clientTail}
	if watcher, ok := probe.(readiness.OutputWatcher); ok {
		serverWriters = append(serverWriters, watcher.Output())
	}
	if r.cfg.Live != nil {
		serverWriters = append(serverWriters, newPrefixWriter("[server] ", r.cfg.Live))
		clientWriters = append(clientWriters, newPrefixWriter("[client] ", r.cfg.Live))
	}
	serverOut := io.MultiWriter(serverWriters...)
	clientOut := io.MultiWriter(clientWriters...)

	var outcome *types.TrialOutcome
	err := r.withServer(ctx, serverSpec, serverOut, func(server *process.Handle) error {
		if err := probe.Wait(ctx, server); err != nil {
			// The client's own connection failure decides the verdict
			r.log.Warn("Server not ready, starting client anyway", "test", tc.ID(), "err", err)
		}

		client, err := r.cfg.Launcher.Start(ctx, clientSpec, process.Output{Stdout: clientOut, Stderr: clientOut})
		if err != nil {
			return err
		}
		outcome = r.awaitClient(ctx, tc, client, start)
		return nil
	})

	var leaseErr *PortUnavailableError
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		outcome = types.NewAbortedOutcome(tc, "interrupted", time.Since(start))
	case errors.As(err, &leaseErr):
		outcome = types.NewAbortedOutcome(tc, leaseErr.Error(), time.Since(start))
	default:
		metrics.RecordErrorDetails("trial", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	outcome.Duration = time.Since(start)
	outcome.ServerCommand = CommandLine(serverSpec)
	outcome.ClientCommand = CommandLine(clientSpec)
	outcome.ServerOutput = serverTail.String()
	outcome.ClientOutput = clientTail.String()

	span.SetAttributes(
		attribute.String("result", string(outcome.Status)),
		attribute.Int("exit_code", outcome.ExitCode),
	)
	if !outcome.Passed() {
		span.SetStatus(codes.Error, outcome.Reason)
	}
	metrics.RecordTrial(suite.ID, tc.Name, outcome.Status, outcome.Duration)
	r.log.Debug("Trial finished", "test", tc.ID(), "result", outcome.Status, "exit_code", outcome.ExitCode, "duration", outcome.Duration)
	return outcome, nil
}

// withServer leases the port, starts the server and runs fn with it. The server
// is terminated and the lease released on every path out, panics included.
func (r *TrialRunner) withServer(ctx context.Context, spec process.ProgramSpec, out io.Writer, fn func(server *process.Handle) error) error {
	release, err := r.lease.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	server, err := r.cfg.Launcher.Start(ctx, spec, process.Output{Stdout: out, Stderr: out})
	if err != nil {
		return err
	}
	defer func() {
		// Termination must complete even when the run was interrupted
		termCtx := context.WithoutCancel(ctx)
		if err := server.Terminate(termCtx, r.cfg.TerminateAttempts, r.cfg.TerminateInterval); err != nil {
			r.log.Error("Failed to terminate server", "pid", server.PID(), "err", err)
		}
	}()

	return fn(server)
}

// awaitClient waits for the client within the trial timeout and classifies its exit
func (r *TrialRunner) awaitClient(ctx context.Context, tc types.TestCase, client *process.Handle, start time.Time) *types.TrialOutcome {
	waitCtx := ctx
	if r.cfg.TrialTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.cfg.TrialTimeout)
		defer cancel()
	}

	status, err := client.Wait(waitCtx)
	if err != nil && client.Exited() {
		// Exited while the deadline fired, or output copying was cut short
		r.log.Debug("Client wait returned error after exit", "test", tc.ID(), "err", err)
		status, err = client.Status(), nil
	}
	if err != nil {
		client.Kill()
		<-client.Done()
		if ctx.Err() != nil {
			return types.NewAbortedOutcome(tc, "interrupted", time.Since(start))
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return types.NewAbortedOutcome(tc, fmt.Sprintf("client timed out after %v", r.cfg.TrialTimeout), time.Since(start))
		}
		return types.NewAbortedOutcome(tc, err.Error(), time.Since(start))
	}

	outcome := types.NewExitOutcome(tc, status.Code, time.Since(start))
	if status.Signaled {
		outcome.Reason = fmt.Sprintf("client killed by signal %v", status.Signal)
	}
	if !outcome.Passed() {
		// Children the client left behind in its group
		client.Kill()
	}
	return outcome
}
