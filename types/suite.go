package types

import (
	"fmt"
	"time"
)

// Suite is an ordered list of test cases sharing one server and client program
type Suite struct {
	ID          string
	Kind        Kind
	Description string
	Server      string   // Path to the server executable
	Client      string   // Path to the client executable
	Channel     string   // Channel / session identifier passed with -c
	ServerArgs  []string // Extra arguments appended to every server invocation
	ClientArgs  []string // Extra arguments appended to every client invocation
	Tests       []TestCase
}

// SuiteResult captures the aggregated results of one suite.
// It is built by folding trial outcomes with With and never mutated in place.
type SuiteResult struct {
	Suite    string
	Total    int
	Failures int // Failed and aborted trials
	Aborted  int
	Duration time.Duration
	Failed   []string // IDs of the failing trials, in run order
}

// NewSuiteResult returns an empty result for the given suite
func NewSuiteResult(suite string) SuiteResult {
	return SuiteResult{Suite: suite}
}

// With returns a copy of r that includes outcome o
func (r SuiteResult) With(o *TrialOutcome) SuiteResult {
	next := r
	next.Total++
	next.Duration += o.Duration
	if !o.Passed() {
		next.Failures++
		next.Failed = append(append([]string(nil), r.Failed...), o.Case.ID())
	}
	if o.Status == TrialStatusAborted {
		next.Aborted++
	}
	return next
}

// Fold reduces an ordered sequence of outcomes into a suite result
func Fold(suite string, outcomes []*TrialOutcome) SuiteResult {
	result := NewSuiteResult(suite)
	for _, o := range outcomes {
		result = result.With(o)
	}
	return result
}

// Passed reports whether no trial of the suite failed
func (r SuiteResult) Passed() bool {
	return r.Failures == 0
}

// ExitCode is 0 if the suite has no failures and 1 otherwise
func (r SuiteResult) ExitCode() int {
	if r.Passed() {
		return 0
	}
	return 1
}

// Summary renders the one-line suite summary
func (r SuiteResult) Summary() string {
	if r.Passed() {
		return fmt.Sprintf("OK (%d tests)", r.Total)
	}
	return fmt.Sprintf("Tests run: %d, Failures: %d", r.Total, r.Failures)
}
