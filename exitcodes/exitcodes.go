// Package exitcodes defines the standard exit codes used by fix-acceptor.
package exitcodes

// Exit code constants used by fix-acceptor
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when every trial of every suite passed
// * TestFailure (1): Used when a trial failed or was aborted, or the command line was invalid
// * RuntimeErr (2): Used for environment errors such as a missing server or client executable
const (
	Success     = 0 // All suites pass
	TestFailure = 1 // Trial failures or argument errors
	RuntimeErr  = 2 // Environment errors
)
