package types

import "time"

// RunResult captures the results of one complete run over every selected suite
type RunResult struct {
	RunID    string
	Suites   []SuiteResult // In execution order
	Duration time.Duration
}

// Total returns the number of trials across all suites
func (r *RunResult) Total() int {
	total := 0
	for _, s := range r.Suites {
		total += s.Total
	}
	return total
}

// Failures returns the number of failed or aborted trials across all suites
func (r *RunResult) Failures() int {
	failures := 0
	for _, s := range r.Suites {
		failures += s.Failures
	}
	return failures
}

// Passed reports whether every suite passed
func (r *RunResult) Passed() bool {
	for _, s := range r.Suites {
		if !s.Passed() {
			return false
		}
	}
	return true
}

// ExitCode is 0 only if every suite has zero failures
func (r *RunResult) ExitCode() int {
	if r.Passed() {
		return 0
	}
	return 1
}
