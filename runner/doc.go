// Package runner drives server/client trials for FIX and FAST test cases.
//
// The main components are:
//   - ServerSpec / ClientSpec: compose the canonical invocations from a test case
//   - PortLease: grants exclusive use of the trial port to one trial at a time
//   - TrialRunner: launches a server, waits for readiness, runs the client and
//     classifies its exit, always terminating the server afterwards
//   - SuiteRunner: runs test cases in order and folds outcomes into suite results
//
// Trials never run concurrently. The only waits are on child processes, readiness
// probes and termination polling, and all of them are bounded.
package runner
