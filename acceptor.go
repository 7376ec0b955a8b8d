package acceptor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/oppprof"

	"github.com/ethereum-optimism/infra/fix-acceptor/metrics"
	"github.com/ethereum-optimism/infra/fix-acceptor/process"
	"github.com/ethereum-optimism/infra/fix-acceptor/registry"
	"github.com/ethereum-optimism/infra/fix-acceptor/reporting"
	"github.com/ethereum-optimism/infra/fix-acceptor/runner"
	"github.com/ethereum-optimism/infra/fix-acceptor/service"
	"github.com/ethereum-optimism/infra/fix-acceptor/types"
)

// Acceptor implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = (*Acceptor)(nil)

// Acceptor runs the FIX and FAST suites against the protocol engine executables.
type Acceptor struct {
	config    *Config
	version   string
	registry  *registry.Registry
	tracker   *process.Tracker
	executor  TestExecutor
	scheduler TestScheduler
	service   *service.Service
	pprof     *oppprof.Service

	mu     sync.Mutex
	result *types.RunResult

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New loads the suites and wires the runners. Unreadable fixtures are runtime
// errors; invalid catalog content is not.
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Acceptor, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}
	out := config.Out
	if out == nil {
		out = os.Stdout
	}

	config.Log.Debug("Creating acceptor with config",
		"fixtures", config.FixturesDir,
		"catalog", config.CatalogFile,
		"suites", config.Suites,
		"port", config.Port,
		"readiness", config.Readiness.Mode,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	reg, err := registry.NewRegistry(registry.Config{
		Log:         config.Log,
		CatalogFile: config.CatalogFile,
		FixturesDir: config.FixturesDir,
		FIXBinary:   config.FIXBinary,
		FASTBinary:  config.FASTBinary,
		Suites:      config.Suites,
	})
	if err != nil {
		if errors.Is(err, registry.ErrInvalidCatalog) {
			return nil, fmt.Errorf("failed to create registry: %w", err)
		}
		return nil, NewRuntimeError(fmt.Errorf("failed to create registry: %w", err))
	}

	tracker := process.NewTracker()
	launcher := process.NewLauncher(config.Log, process.WithTracker(tracker))

	var live io.Writer
	if config.Verbosity >= reporting.VerbosityDetailed {
		live = out
	}
	trial, err := runner.NewTrialRunner(runner.TrialConfig{
		Launcher:          launcher,
		Log:               config.Log,
		Endpoint:          runner.Endpoint{Host: config.Host, Port: config.Port},
		Readiness:         config.Readiness,
		TrialTimeout:      config.TrialTimeout,
		TerminateAttempts: config.TerminateAttempts,
		TerminateInterval: config.TerminateInterval,
		Live:              live,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create trial runner: %w", err)
	}

	color := reporting.ColorEnabled(config.NoColor, asFile(out))
	reporters := []runner.Reporter{
		reporting.NewConsoleReporter(reporting.ConsoleOptions{
			Out:       out,
			Verbosity: config.Verbosity,
			Color:     color,
		}),
		NewLogReporter(config.Log),
	}
	if config.Verbosity >= reporting.VerbosityDetailed {
		reporters = append(reporters, NewConsoleResultFormatter(out, color, config.Log))
	}

	a := &Acceptor{
		config:   config,
		version:  version,
		registry: reg,
		tracker:  tracker,
		executor: NewDefaultTestExecutor(ExecutorConfig{
			Suites:    reg.GetSuites(),
			Programs:  reg.Programs(),
			Trial:     trial,
			Reporters: reporters,
			LogDir:    config.LogDir,
			Logger:    config.Log,
		}),
		scheduler:        NewDefaultTestScheduler(config.RunInterval, config.RunOnce, config.Log, nil),
		shutdownCallback: shutdownCallback,
	}
	a.service = service.New(config.Log, a.status)
	a.scheduler.RegisterCallback(a.runTests)

	config.Log.Info("Created acceptor", "suites", len(reg.GetSuites()), "version", version)
	return a, nil
}

// Start runs the suites once, or periodically in continuous mode.
// Start implements the cliapp.Lifecycle interface.
func (a *Acceptor) Start(ctx context.Context) error {
	a.running.Store(true)
	process.InstallCleanup(ctx, a.tracker, a.config.Log, nil)

	if err := a.startServices(ctx); err != nil {
		return NewRuntimeError(err)
	}

	if a.config.RunOnce {
		a.config.Log.Info("Starting fix-acceptor in run-once mode")
	} else {
		a.config.Log.Info("Starting fix-acceptor in continuous mode", "interval", a.config.RunInterval)
	}

	if err := a.scheduler.Start(ctx); err != nil {
		a.config.Log.Error("Runtime error running tests", "err", err)
		return errors.Join(err, a.stopServices(context.WithoutCancel(ctx)))
	}

	if !a.config.RunOnce {
		return nil
	}

	a.config.Log.Info("Tests completed, exiting (run-once mode)")
	if result := a.Result(); result != nil && !result.Passed() {
		a.config.Log.Warn("Run-once test run completed with failures, returning exit code 1")
		return errors.Join(
			NewTestFailureError(fmt.Sprintf("%d of %d tests failed", result.Failures(), result.Total())),
			a.stopServices(context.WithoutCancel(ctx)),
		)
	}

	go a.shutdownCallback(nil)
	return nil
}

// runTests runs every suite and stores the result
func (a *Acceptor) runTests(ctx context.Context) error {
	result, err := a.executor.RunTests(ctx)
	if err != nil {
		metrics.RecordErrorDetails("run failed", err)
		return NewRuntimeError(err)
	}

	a.mu.Lock()
	a.result = result
	a.mu.Unlock()

	a.config.Log.Info("Test run completed", "run_id", result.RunID, "passed", result.Passed())
	return nil
}

// Result returns the result of the most recent completed run
func (a *Acceptor) Result() *types.RunResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

// ExitCode returns the exit code of the most recent run
func (a *Acceptor) ExitCode() int {
	result := a.Result()
	if result == nil {
		return 0
	}
	return reporting.ExitCode(result.Suites)
}

func (a *Acceptor) status() (service.Status, bool) {
	result := a.Result()
	if result == nil {
		return service.Status{}, false
	}
	return service.Status{
		RunID:    result.RunID,
		Passed:   result.Passed(),
		Total:    result.Total(),
		Failures: result.Failures(),
	}, true
}

func (a *Acceptor) startServices(ctx context.Context) error {
	if a.config.PprofConfig.ListenEnabled {
		a.pprof = oppprof.New(
			a.config.PprofConfig.ListenEnabled,
			a.config.PprofConfig.ListenAddr,
			a.config.PprofConfig.ListenPort,
			a.config.PprofConfig.ProfileType,
			a.config.PprofConfig.ProfileDir,
			a.config.PprofConfig.ProfileFilename,
		)
		a.config.Log.Info("Starting pprof server", "addr", a.config.PprofConfig.ListenAddr, "port", a.config.PprofConfig.ListenPort)
		if err := a.pprof.Start(); err != nil {
			return fmt.Errorf("failed to start pprof server: %w", err)
		}
	}

	return a.service.Start(ctx, service.Config{
		HealthzEnabled: a.config.HealthzEnabled,
		HealthzAddr:    a.config.HealthzAddr,
		HealthzPort:    a.config.HealthzPort,
		Metrics:        a.config.MetricsConfig,
	})
}

func (a *Acceptor) stopServices(ctx context.Context) error {
	var result error
	if a.pprof != nil {
		if err := a.pprof.Stop(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop pprof server: %w", err))
		}
		a.pprof = nil
	}
	return errors.Join(result, a.service.Stop(ctx))
}

// Stop stops scheduling, kills any live server or client and shuts the services down.
// Stop implements the cliapp.Lifecycle interface.
func (a *Acceptor) Stop(ctx context.Context) error {
	a.config.Log.Info("Stopping fix-acceptor")
	if !a.running.CompareAndSwap(true, false) {
		a.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	var result error
	if err := a.scheduler.Stop(); err != nil {
		result = errors.Join(result, err)
	}
	if n := a.tracker.KillAll(); n > 0 {
		a.config.Log.Warn("Killed running processes", "count", n)
	}
	if err := a.scheduler.WaitForShutdown(ctx); err != nil {
		result = errors.Join(result, err)
	}
	result = errors.Join(result, a.stopServices(ctx))

	a.config.Log.Info("fix-acceptor stopped")
	return result
}

// Stopped returns true if the fix-acceptor service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (a *Acceptor) Stopped() bool {
	return !a.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated.
func (a *Acceptor) WaitForShutdown(ctx context.Context) error {
	return a.scheduler.WaitForShutdown(ctx)
}

func asFile(w io.Writer) *os.File {
	f, _ := w.(*os.File)
	return f
}
