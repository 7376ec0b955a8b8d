package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/fix-acceptor/metrics"
	"github.com/ethereum-optimism/infra/fix-acceptor/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Reporter receives progress events while suites run
type Reporter interface {
	TrialStarted(suite types.Suite, tc types.TestCase)
	TrialCompleted(suite types.Suite, outcome *types.TrialOutcome)
	SuiteCompleted(result types.SuiteResult)
	RunCompleted(result *types.RunResult)
}

// Reporters fans every event out to each reporter in order
type Reporters []Reporter

var _ Reporter = Reporters(nil)

func (rs Reporters) TrialStarted(suite types.Suite, tc types.TestCase) {
	for _, r := range rs {
		r.TrialStarted(suite, tc)
	}
}

func (rs Reporters) TrialCompleted(suite types.Suite, outcome *types.TrialOutcome) {
	for _, r := range rs {
		r.TrialCompleted(suite, outcome)
	}
}

func (rs Reporters) SuiteCompleted(result types.SuiteResult) {
	for _, r := range rs {
		r.SuiteCompleted(result)
	}
}

func (rs Reporters) RunCompleted(result *types.RunResult) {
	for _, r := range rs {
		r.RunCompleted(result)
	}
}

// SuiteRunner runs suites of test cases one trial at a time
type SuiteRunner struct {
	trial    Trial
	reporter Reporter
	log      log.Logger
	tracer   trace.Tracer
}

// NewSuiteRunner creates a suite runner. reporter may be nil.
func NewSuiteRunner(trial Trial, reporter Reporter, logger log.Logger) *SuiteRunner {
	if reporter == nil {
		reporter = Reporters(nil)
	}
	return &SuiteRunner{
		trial:    trial,
		reporter: reporter,
		log:      logger,
		tracer:   otel.Tracer("suite runner"),
	}
}

// RunSuite runs every test case of suite in order. Failing trials never stop the
// suite; an environment error stops it and is returned.
func (s *SuiteRunner) RunSuite(ctx context.Context, suite types.Suite) (types.SuiteResult, error) {
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("suite %s", suite.ID))
	defer span.End()

	s.log.Info("Running suite", "suite", suite.ID, "tests", len(suite.Tests))
	result := types.NewSuiteResult(suite.ID)
	for _, tc := range suite.Tests {
		s.reporter.TrialStarted(suite, tc)
		outcome, err := s.trial.RunTrial(ctx, suite, tc)
		if err != nil {
			return result, fmt.Errorf("running %s: %w", tc.ID(), err)
		}
		result = result.With(outcome)
		s.reporter.TrialCompleted(suite, outcome)
	}

	metrics.RecordSuite(result)
	s.reporter.SuiteCompleted(result)
	return result, nil
}

// RunAll runs every suite in order under runID, or a fresh one if runID is empty.
// Suites are independent: a failing suite never prevents the next one from running.
func (s *SuiteRunner) RunAll(ctx context.Context, runID string, suites []types.Suite) (*types.RunResult, error) {
	start := time.Now()
	if runID == "" {
		runID = uuid.New().String()
	}
	run := &types.RunResult{RunID: runID}
	s.log.Debug("Running all suites", "run_id", run.RunID, "suites", len(suites))

	for _, suite := range suites {
		result, err := s.RunSuite(ctx, suite)
		if err != nil {
			run.Duration = time.Since(start)
			return run, err
		}
		run.Suites = append(run.Suites, result)
	}

	run.Duration = time.Since(start)
	metrics.RecordRun(run.Passed(), run.Duration)
	s.reporter.RunCompleted(run)
	return run, nil
}
