package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/fix-acceptor/types"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Verbosity levels
const (
	VerbositySummary  = 0 // Suite summaries only
	VerbosityTests    = 1 // One line per test
	VerbosityDetailed = 2 // Test headers, live output and detail blocks
)

// ClampVerbosity limits v to the supported range
func ClampVerbosity(v int) int {
	return max(VerbositySummary, min(v, VerbosityDetailed))
}

// ConsoleOptions configures a ConsoleReporter
type ConsoleOptions struct {
	Out       io.Writer
	Verbosity int
	Color     bool
}

// ConsoleReporter renders per-test lines and suite summaries as suites run
type ConsoleReporter struct {
	out       io.Writer
	verbosity int
	color     bool
	mu        sync.Mutex
}

// NewConsoleReporter creates a console reporter
func NewConsoleReporter(opts ConsoleOptions) *ConsoleReporter {
	return &ConsoleReporter{
		out:       opts.Out,
		verbosity: ClampVerbosity(opts.Verbosity),
		color:     opts.Color,
	}
}

// Verbosity returns the effective verbosity
func (c *ConsoleReporter) Verbosity() int {
	return c.verbosity
}

func (c *ConsoleReporter) TrialStarted(_ types.Suite, tc types.TestCase) {
	if c.verbosity < VerbosityDetailed {
		return
	}
	c.printf("=== RUN   %s\n", tc.ID())
}

func (c *ConsoleReporter) TrialCompleted(_ types.Suite, outcome *types.TrialOutcome) {
	if c.verbosity < VerbosityTests {
		return
	}
	line := FormatTrialLine(outcome, c.color)
	if c.verbosity >= VerbosityDetailed {
		line += "\n" + formatTrialDetail(outcome)
	}
	c.printf("%s\n", line)
}

func (c *ConsoleReporter) SuiteCompleted(result types.SuiteResult) {
	c.printf("%s\n", FormatSuiteSummary(result, c.color))
}

// RunCompleted is a no-op; suite summaries are the final console output
func (c *ConsoleReporter) RunCompleted(*types.RunResult) {}

func (c *ConsoleReporter) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// StatusLabel returns the report label of a trial status
func StatusLabel(status types.TrialStatus) string {
	switch status {
	case types.TrialStatusPass:
		return "PASS"
	case types.TrialStatusFail:
		return "FAIL"
	case types.TrialStatusAborted:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

func statusColors(status types.TrialStatus) text.Colors {
	switch status {
	case types.TrialStatusPass:
		return text.Colors{text.FgGreen}
	case types.TrialStatusFail:
		return text.Colors{text.FgRed}
	default:
		return text.Colors{text.FgYellow}
	}
}

// FormatTrialLine renders the one-line result of a trial:
//
//	PASS fix/logon
//	FAIL fix/logon (exit 7)
//	ABORT fix/logon (client timed out after 1m0s)
func FormatTrialLine(outcome *types.TrialOutcome, color bool) string {
	label := StatusLabel(outcome.Status)
	if color {
		label = statusColors(outcome.Status).Sprint(label)
	}
	line := label + " " + outcome.Case.ID()
	switch outcome.Status {
	case types.TrialStatusFail:
		line += fmt.Sprintf(" (exit %d)", outcome.ExitCode)
	case types.TrialStatusAborted:
		line += fmt.Sprintf(" (%s)", outcome.Reason)
	}
	return line
}

// FormatSuiteSummary renders "<suite>: OK (N tests)" or "<suite>: Tests run: N, Failures: M"
func FormatSuiteSummary(result types.SuiteResult, color bool) string {
	summary := result.Summary()
	if color {
		colors := text.Colors{text.FgGreen, text.Bold}
		if !result.Passed() {
			colors = text.Colors{text.FgRed, text.Bold}
		}
		summary = colors.Sprint(summary)
	}
	return fmt.Sprintf("%s: %s", result.Suite, summary)
}

func formatTrialDetail(outcome *types.TrialOutcome) string {
	var b strings.Builder
	if outcome.ServerCommand != "" {
		fmt.Fprintf(&b, "    server:   %s\n", outcome.ServerCommand)
	}
	if outcome.ClientCommand != "" {
		fmt.Fprintf(&b, "    client:   %s\n", outcome.ClientCommand)
	}
	fmt.Fprintf(&b, "    exit:     %d\n", outcome.ExitCode)
	fmt.Fprintf(&b, "    duration: %s\n", formatDuration(outcome.Duration))
	if outcome.Reason != "" {
		fmt.Fprintf(&b, "    reason:   %s\n", outcome.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}
