package acceptor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/fix-acceptor/logging"
	"github.com/ethereum-optimism/infra/fix-acceptor/process"
	"github.com/ethereum-optimism/infra/fix-acceptor/runner"
	"github.com/ethereum-optimism/infra/fix-acceptor/types"
)

type mockTrial struct {
	mock.Mock
}

func (m *mockTrial) RunTrial(ctx context.Context, suite types.Suite, tc types.TestCase) (*types.TrialOutcome, error) {
	args := m.Called(ctx, suite, tc)
	outcome, _ := args.Get(0).(*types.TrialOutcome)
	return outcome, args.Error(1)
}

type recordingReporter struct {
	started   []string
	completed []*types.TrialOutcome
	suites    []types.SuiteResult
	runs      []*types.RunResult
}

func (r *recordingReporter) TrialStarted(_ types.Suite, tc types.TestCase) {
	r.started = append(r.started, tc.ID())
}

func (r *recordingReporter) TrialCompleted(_ types.Suite, o *types.TrialOutcome) {
	r.completed = append(r.completed, o)
}

func (r *recordingReporter) SuiteCompleted(result types.SuiteResult) {
	r.suites = append(r.suites, result)
}

func (r *recordingReporter) RunCompleted(result *types.RunResult) {
	r.runs = append(r.runs, result)
}

var _ runner.Reporter = (*recordingReporter)(nil)

func testSuite(id string, names ...string) types.Suite {
	suite := types.Suite{ID: id, Kind: types.KindFIX, Server: "sh", Client: "sh"}
	for _, name := range names {
		suite.Tests = append(suite.Tests, types.TestCase{Name: name, Suite: id, Kind: types.KindFIX})
	}
	return suite
}

func TestDefaultTestExecutor_RunTests(t *testing.T) {
	suite := testSuite("fix", "logon", "reject")
	trial := new(mockTrial)
	trial.On("RunTrial", mock.Anything, mock.Anything, suite.Tests[0]).
		Return(types.NewExitOutcome(suite.Tests[0], 0, time.Millisecond), nil).Once()
	trial.On("RunTrial", mock.Anything, mock.Anything, suite.Tests[1]).
		Return(types.NewExitOutcome(suite.Tests[1], 7, time.Millisecond), nil).Once()

	reporter := &recordingReporter{}
	logDir := t.TempDir()
	executor := NewDefaultTestExecutor(ExecutorConfig{
		Suites:    []types.Suite{suite},
		Programs:  []string{"sh"},
		Trial:     trial,
		Reporters: []runner.Reporter{reporter},
		LogDir:    logDir,
		Logger:    log.NewLogger(log.DiscardHandler()),
	})

	result, err := executor.RunTests(context.Background())
	require.NoError(t, err)
	trial.AssertExpectations(t)

	require.NotNil(t, result)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 2, result.Total())
	assert.Equal(t, 1, result.Failures())
	assert.Equal(t, 1, result.ExitCode())

	assert.Equal(t, []string{"fix/logon", "fix/reject"}, reporter.started)
	require.Len(t, reporter.suites, 1)
	require.Len(t, reporter.runs, 1)
	assert.Equal(t, result.RunID, reporter.runs[0].RunID)

	// Log files land in a directory named after the run
	_, err = os.Stat(filepath.Join(logDir, logging.RunDirectoryPrefix+result.RunID, logging.PassedDir, "fix_logon.log"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(logDir, logging.RunDirectoryPrefix+result.RunID, logging.FailedDir, "fix_reject.log"))
	assert.NoError(t, err)
}

func TestDefaultTestExecutor_MissingProgram(t *testing.T) {
	trial := new(mockTrial)
	reporter := &recordingReporter{}
	executor := NewDefaultTestExecutor(ExecutorConfig{
		Suites:    []types.Suite{testSuite("fix", "logon")},
		Programs:  []string{filepath.Join(t.TempDir(), "no-such-server"), "sh"},
		Trial:     trial,
		Reporters: []runner.Reporter{reporter},
		Logger:    log.NewLogger(log.DiscardHandler()),
	})

	result, err := executor.RunTests(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, process.IsNotFound(err))

	var startErr *process.StartError
	require.ErrorAs(t, err, &startErr)
	assert.Contains(t, startErr.Path, "no-such-server")

	trial.AssertNotCalled(t, "RunTrial", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, reporter.started)
	assert.Empty(t, reporter.runs)
}

func TestDefaultTestExecutor_TrialError(t *testing.T) {
	first := testSuite("fix", "logon", "reject")
	second := testSuite("fast", "quote")
	trial := new(mockTrial)
	trial.On("RunTrial", mock.Anything, mock.Anything, first.Tests[0]).
		Return(nil, &process.StartError{Path: "sh", Err: process.ErrNotFound}).Once()

	reporter := &recordingReporter{}
	executor := NewDefaultTestExecutor(ExecutorConfig{
		Suites:    []types.Suite{first, second},
		Trial:     trial,
		Reporters: []runner.Reporter{reporter},
		Logger:    log.NewLogger(log.DiscardHandler()),
	})

	result, err := executor.RunTests(context.Background())
	require.Error(t, err)
	assert.True(t, process.IsNotFound(err))
	require.NotNil(t, result)
	assert.Empty(t, result.Suites)
	trial.AssertNumberOfCalls(t, "RunTrial", 1)
	assert.Empty(t, reporter.runs)
}

func TestDefaultTestExecutor_FreshRunIDs(t *testing.T) {
	suite := testSuite("fix", "logon")
	trial := new(mockTrial)
	trial.On("RunTrial", mock.Anything, mock.Anything, mock.Anything).
		Return(types.NewPassOutcome(suite.Tests[0], time.Millisecond), nil)

	reporter := &recordingReporter{}
	executor := NewDefaultTestExecutor(ExecutorConfig{
		Suites:    []types.Suite{suite},
		Trial:     trial,
		Reporters: []runner.Reporter{reporter},
		Logger:    log.NewLogger(log.DiscardHandler()),
	})

	first, err := executor.RunTests(context.Background())
	require.NoError(t, err)
	second, err := executor.RunTests(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Len(t, reporter.runs, 2)
	assert.Len(t, executor.cfg.Reporters, 1)
}
