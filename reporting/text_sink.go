package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum-optimism/infra/fix-acceptor/types"
)

// SummaryFilename is the name of the summary written into the run directory
const SummaryFilename = "summary.log"

// TextSummarySink collects trial outcomes and writes a plain-text summary.log
type TextSummarySink struct {
	dir      string
	mu       sync.Mutex
	outcomes []*types.TrialOutcome
}

// NewTextSummarySink creates a sink writing into dir
func NewTextSummarySink(dir string) *TextSummarySink {
	return &TextSummarySink{dir: dir}
}

// Consume collects outcomes for later summary generation
func (s *TextSummarySink) Consume(outcome *types.TrialOutcome, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

// Complete writes the summary file
func (s *TextSummarySink) Complete(run *types.RunResult) error {
	s.mu.Lock()
	content := FormatTextSummary(run, s.outcomes)
	s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", s.dir, err)
	}
	summaryFile := filepath.Join(s.dir, SummaryFilename)
	if err := os.WriteFile(summaryFile, []byte(stripansi.Strip(content)), 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return nil
}

// FormatTextSummary renders a run as plain text
func FormatTextSummary(run *types.RunResult, outcomes []*types.TrialOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:      %s\n", run.RunID)
	fmt.Fprintf(&b, "Time:     %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(run.Duration))
	fmt.Fprintf(&b, "Result:   %s\n\n", runLabel(run))

	for _, o := range outcomes {
		fmt.Fprintln(&b, FormatTrialLine(o, false))
	}
	if len(outcomes) > 0 {
		fmt.Fprintln(&b)
	}
	for _, suite := range run.Suites {
		fmt.Fprintln(&b, FormatSuiteSummary(suite, false))
	}
	return b.String()
}

func runLabel(run *types.RunResult) string {
	if run.Passed() {
		return fmt.Sprintf("PASS (%d tests)", run.Total())
	}
	return fmt.Sprintf("FAIL (%d of %d tests failed)", run.Failures(), run.Total())
}
