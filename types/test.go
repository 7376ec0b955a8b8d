package types

import (
	"fmt"
	"time"
)

// TrialStatus represents the possible classifications of a single trial
type TrialStatus string

const (
	TrialStatusPass    TrialStatus = "pass"
	TrialStatusFail    TrialStatus = "fail"
	TrialStatusAborted TrialStatus = "aborted"
)

// Kind identifies the protocol family a test case exercises
type Kind string

const (
	KindFIX  Kind = "fix"
	KindFAST Kind = "fast"
)

// IsValid reports whether k is a known protocol kind
func (k Kind) IsValid() bool {
	return k == KindFIX || k == KindFAST
}

// NeedsTemplate reports whether test cases of this kind require a template description file
func (k Kind) NeedsTemplate() bool {
	return k == KindFAST
}

// TestCase names a fixture script (and, for FAST, a template) on disk.
// Test cases are immutable once loaded.
type TestCase struct {
	Name     string
	Suite    string
	Kind     Kind
	Script   string // Message-sequence script played by server and client
	Template string // FAST template description file, empty for FIX
}

// ID returns the suite-qualified name of the test case
func (tc TestCase) ID() string {
	if tc.Suite == "" {
		return tc.Name
	}
	return tc.Suite + "/" + tc.Name
}

// ExitCodeUnknown is recorded when the client exit status could not be collected,
// e.g. because the client was killed by a signal.
const ExitCodeUnknown = -1

// TrialOutcome captures the result of running one test case
type TrialOutcome struct {
	Case     TestCase
	Status   TrialStatus
	ExitCode int    // Raw exit status of the client process
	Reason   string // Why the trial failed or was aborted
	Duration time.Duration

	ServerCommand string // Command line the server was started with
	ClientCommand string
	ServerOutput  string // Tail of the combined server stdout and stderr
	ClientOutput  string // Tail of the combined client stdout and stderr
}

// NewPassOutcome returns the outcome of a trial whose client exited cleanly
func NewPassOutcome(tc TestCase, duration time.Duration) *TrialOutcome {
	return &TrialOutcome{
		Case:     tc,
		Status:   TrialStatusPass,
		ExitCode: 0,
		Duration: duration,
	}
}

// NewExitOutcome classifies a trial from the client's exit code alone
func NewExitOutcome(tc TestCase, exitCode int, duration time.Duration) *TrialOutcome {
	if exitCode == 0 {
		return NewPassOutcome(tc, duration)
	}
	return &TrialOutcome{
		Case:     tc,
		Status:   TrialStatusFail,
		ExitCode: exitCode,
		Reason:   fmt.Sprintf("client exited with code %d", exitCode),
		Duration: duration,
	}
}

// NewAbortedOutcome returns the outcome of a trial that never produced a verdict
func NewAbortedOutcome(tc TestCase, reason string, duration time.Duration) *TrialOutcome {
	return &TrialOutcome{
		Case:     tc,
		Status:   TrialStatusAborted,
		ExitCode: ExitCodeUnknown,
		Reason:   reason,
		Duration: duration,
	}
}

// Passed reports whether the trial passed
func (o *TrialOutcome) Passed() bool {
	return o.Status == TrialStatusPass
}
