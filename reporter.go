package acceptor

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/fix-acceptor/runner"
	"github.com/ethereum-optimism/infra/fix-acceptor/types"
)

// LogReporter mirrors run progress into the structured log.
type LogReporter struct {
	logger log.Logger
}

var _ runner.Reporter = (*LogReporter)(nil)

// NewLogReporter creates a new LogReporter.
func NewLogReporter(logger log.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) TrialStarted(_ types.Suite, tc types.TestCase) {
	r.logger.Debug("Trial started", "test", tc.ID())
}

func (r *LogReporter) TrialCompleted(_ types.Suite, o *types.TrialOutcome) {
	switch o.Status {
	case types.TrialStatusPass:
		r.logger.Debug("Trial passed", "test", o.Case.ID(), "duration", o.Duration)
	case types.TrialStatusFail:
		r.logger.Warn("Trial failed", "test", o.Case.ID(), "exit", o.ExitCode, "duration", o.Duration)
	default:
		r.logger.Warn("Trial aborted", "test", o.Case.ID(), "reason", o.Reason, "duration", o.Duration)
	}
}

func (r *LogReporter) SuiteCompleted(result types.SuiteResult) {
	r.logger.Info("Suite completed", "suite", result.Suite, "tests", result.Total, "failures", result.Failures, "duration", result.Duration)
}

func (r *LogReporter) RunCompleted(run *types.RunResult) {
	r.logger.Info("Run completed", "run_id", run.RunID, "tests", run.Total(), "failures", run.Failures(), "duration", run.Duration)
}
