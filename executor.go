package acceptor

import (
	"context"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/fix-acceptor/logging"
	"github.com/ethereum-optimism/infra/fix-acceptor/process"
	"github.com/ethereum-optimism/infra/fix-acceptor/runner"
	"github.com/ethereum-optimism/infra/fix-acceptor/types"
)

// TestExecutor is responsible for running tests.
type TestExecutor interface {
	RunTests(ctx context.Context) (*types.RunResult, error)
}

// ExecutorConfig holds what a DefaultTestExecutor needs for every run
type ExecutorConfig struct {
	Suites    []types.Suite
	Programs  []string // Executables that must exist before any trial starts
	Trial     runner.Trial
	Reporters []runner.Reporter
	LogDir    string // Per-run log files are written below it, empty disables them
	Logger    log.Logger
}

// DefaultTestExecutor implements the TestExecutor interface.
type DefaultTestExecutor struct {
	cfg ExecutorConfig
}

var _ TestExecutor = (*DefaultTestExecutor)(nil)

// NewDefaultTestExecutor creates a new DefaultTestExecutor.
func NewDefaultTestExecutor(cfg ExecutorConfig) *DefaultTestExecutor {
	return &DefaultTestExecutor{cfg: cfg}
}

// RunTests checks the programs, then runs every suite under a fresh run ID.
// A missing program fails the run before any trial is attempted.
func (e *DefaultTestExecutor) RunTests(ctx context.Context) (*types.RunResult, error) {
	for _, program := range e.cfg.Programs {
		path, err := process.Resolve(program)
		if err != nil {
			return nil, err
		}
		e.cfg.Logger.Debug("Resolved program", "program", program, "path", path)
	}

	runID := uuid.New().String()
	reporters := runner.Reporters(slices.Clone(e.cfg.Reporters))

	var fileLogger *logging.FileLogger
	if e.cfg.LogDir != "" {
		var err error
		fileLogger, err = logging.NewFileLogger(e.cfg.LogDir, runID, e.cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create file logger: %w", err)
		}
		reporters = append(reporters, fileLogger)
	}

	e.cfg.Logger.Info("Running all tests...", "run_id", runID, "suites", len(e.cfg.Suites))
	suiteRunner := runner.NewSuiteRunner(e.cfg.Trial, reporters, e.cfg.Logger)
	result, err := suiteRunner.RunAll(ctx, runID, e.cfg.Suites)
	if err != nil {
		if fileLogger != nil {
			fileLogger.RunCompleted(result)
		}
		return result, err
	}
	return result, nil
}
