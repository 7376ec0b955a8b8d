package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExitOutcome(t *testing.T) {
	tc := TestCase{Name: "logon", Suite: "fix", Kind: KindFIX}

	tests := []struct {
		name           string
		exitCode       int
		expectedStatus TrialStatus
		expectedReason string
	}{
		{
			name:           "zero exit code passes",
			exitCode:       0,
			expectedStatus: TrialStatusPass,
		},
		{
			name:           "nonzero exit code fails",
			exitCode:       7,
			expectedStatus: TrialStatusFail,
			expectedReason: "client exited with code 7",
		},
		{
			name:           "exit code one fails",
			exitCode:       1,
			expectedStatus: TrialStatusFail,
			expectedReason: "client exited with code 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := NewExitOutcome(tc, tt.exitCode, time.Second)
			assert.Equal(t, tt.expectedStatus, outcome.Status)
			assert.Equal(t, tt.exitCode, outcome.ExitCode)
			assert.Equal(t, tt.expectedReason, outcome.Reason)
			assert.Equal(t, time.Second, outcome.Duration)
		})
	}
}

func TestNewAbortedOutcome(t *testing.T) {
	tc := TestCase{Name: "hang", Suite: "fast", Kind: KindFAST}
	outcome := NewAbortedOutcome(tc, "client timed out after 1s", 2*time.Second)

	assert.Equal(t, TrialStatusAborted, outcome.Status)
	assert.Equal(t, ExitCodeUnknown, outcome.ExitCode)
	assert.False(t, outcome.Passed())
	assert.Equal(t, "client timed out after 1s", outcome.Reason)
}

func TestTestCaseID(t *testing.T) {
	assert.Equal(t, "fix/logon", TestCase{Name: "logon", Suite: "fix"}.ID())
	assert.Equal(t, "logon", TestCase{Name: "logon"}.ID())
}

func TestKind(t *testing.T) {
	assert.True(t, KindFIX.IsValid())
	assert.True(t, KindFAST.IsValid())
	assert.False(t, Kind("itch").IsValid())

	assert.False(t, KindFIX.NeedsTemplate())
	assert.True(t, KindFAST.NeedsTemplate())
}

func TestSuiteResultWith(t *testing.T) {
	pass := NewExitOutcome(TestCase{Name: "a", Suite: "fix"}, 0, time.Second)
	fail := NewExitOutcome(TestCase{Name: "b", Suite: "fix"}, 7, time.Second)

	start := NewSuiteResult("fix")
	afterPass := start.With(pass)
	afterFail := afterPass.With(fail)

	// Folding never mutates earlier values
	assert.Equal(t, 0, start.Total)
	assert.Equal(t, 1, afterPass.Total)
	assert.Equal(t, 0, afterPass.Failures)
	assert.Empty(t, afterPass.Failed)

	assert.Equal(t, 2, afterFail.Total)
	assert.Equal(t, 1, afterFail.Failures)
	assert.Equal(t, []string{"fix/b"}, afterFail.Failed)
	assert.Equal(t, 2*time.Second, afterFail.Duration)
}

func TestFold(t *testing.T) {
	// Five trials where the second and fourth fail
	var outcomes []*TrialOutcome
	for i, code := range []int{0, 3, 0, 7, 0} {
		tc := TestCase{Name: string(rune('a' + i)), Suite: "fix"}
		outcomes = append(outcomes, NewExitOutcome(tc, code, 0))
	}

	result := Fold("fix", outcomes)
	require.Equal(t, 5, result.Total)
	assert.Equal(t, 2, result.Failures)
	assert.Equal(t, 0, result.Aborted)
	assert.Equal(t, []string{"fix/b", "fix/d"}, result.Failed)
	assert.Equal(t, 1, result.ExitCode())
	assert.Equal(t, "Tests run: 5, Failures: 2", result.Summary())
}

func TestFoldCountsAbortedAsFailure(t *testing.T) {
	outcomes := []*TrialOutcome{
		NewExitOutcome(TestCase{Name: "ok", Suite: "fast"}, 0, 0),
		NewAbortedOutcome(TestCase{Name: "hang", Suite: "fast"}, "timeout", 0),
	}

	result := Fold("fast", outcomes)
	assert.Equal(t, 1, result.Failures)
	assert.Equal(t, 1, result.Aborted)
	assert.False(t, result.Passed())
}

func TestSuiteResultSummaryAllPassed(t *testing.T) {
	result := Fold("fix", []*TrialOutcome{
		NewExitOutcome(TestCase{Name: "a"}, 0, 0),
		NewExitOutcome(TestCase{Name: "b"}, 0, 0),
	})
	assert.True(t, result.Passed())
	assert.Equal(t, 0, result.ExitCode())
	assert.Equal(t, "OK (2 tests)", result.Summary())
}

func TestFoldEmpty(t *testing.T) {
	result := Fold("empty", nil)
	assert.Equal(t, 0, result.Total)
	assert.Equal(t, 0, result.ExitCode())
	assert.Equal(t, "OK (0 tests)", result.Summary())
}

func TestRunResultExitCode(t *testing.T) {
	passing := Fold("fix", []*TrialOutcome{NewExitOutcome(TestCase{Name: "a"}, 0, 0)})
	failing := Fold("fast", []*TrialOutcome{NewExitOutcome(TestCase{Name: "b"}, 7, 0)})

	tests := []struct {
		name     string
		suites   []SuiteResult
		expected int
	}{
		{name: "no suites", suites: nil, expected: 0},
		{name: "all passing", suites: []SuiteResult{passing, passing}, expected: 0},
		{name: "first suite failing", suites: []SuiteResult{failing, passing}, expected: 1},
		{name: "second suite failing", suites: []SuiteResult{passing, failing}, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &RunResult{Suites: tt.suites}
			assert.Equal(t, tt.expected, run.ExitCode())
			assert.Equal(t, tt.expected == 0, run.Passed())
		})
	}

	run := &RunResult{Suites: []SuiteResult{passing, failing}}
	assert.Equal(t, 2, run.Total())
	assert.Equal(t, 1, run.Failures())
}
