package acceptor

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/fix-acceptor/runner"
	"github.com/ethereum-optimism/infra/fix-acceptor/types"
)

// ConsoleResultFormatter collects outcomes and renders a results table once the run completes.
type ConsoleResultFormatter struct {
	out    io.Writer
	color  bool
	logger log.Logger

	mu       sync.Mutex
	outcomes map[string][]*types.TrialOutcome
}

var _ runner.Reporter = (*ConsoleResultFormatter)(nil)

// NewConsoleResultFormatter creates a new ConsoleResultFormatter.
func NewConsoleResultFormatter(out io.Writer, color bool, logger log.Logger) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		out:      out,
		color:    color,
		logger:   logger,
		outcomes: make(map[string][]*types.TrialOutcome),
	}
}

func (f *ConsoleResultFormatter) TrialStarted(types.Suite, types.TestCase) {}

func (f *ConsoleResultFormatter) TrialCompleted(suite types.Suite, outcome *types.TrialOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[suite.ID] = append(f.outcomes[suite.ID], outcome)
}

func (f *ConsoleResultFormatter) SuiteCompleted(types.SuiteResult) {}

// RunCompleted renders the table and forgets the collected outcomes
func (f *ConsoleResultFormatter) RunCompleted(run *types.RunResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FormatResults(run); err != nil {
		f.logger.Error("Failed to format results", "err", err)
	}
	f.outcomes = make(map[string][]*types.TrialOutcome)
}

// FormatResults formats and displays the results of a run.
func (f *ConsoleResultFormatter) FormatResults(run *types.RunResult) error {
	if run == nil {
		return fmt.Errorf("no results to format")
	}

	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Acceptance Testing Results (%s)", formatDuration(run.Duration)))

	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Tests", "Passed", "Failed", "Status", "Detail",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Detail", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, suite := range run.Suites {
		t.AppendRow(table.Row{
			"Suite",
			suite.Suite,
			formatDuration(suite.Duration),
			suite.Total,
			suite.Total - suite.Failures,
			suite.Failures,
			getResultString(suite.Passed()),
			"",
		})

		outcomes := f.outcomes[suite.Suite]
		for i, o := range outcomes {
			prefix := "├──"
			if i == len(outcomes)-1 {
				prefix = "└──"
			}
			t.AppendRow(table.Row{
				"Test",
				fmt.Sprintf("%s %s", prefix, o.Case.Name),
				formatDuration(o.Duration),
				"1",
				boolToInt(o.Passed()),
				boolToInt(!o.Passed()),
				getStatusString(o.Status),
				o.Reason,
			})
		}
		t.AppendSeparator()
	}

	if f.color {
		if run.Passed() {
			t.SetStyle(table.StyleColoredBlackOnGreenWhite)
		} else {
			t.SetStyle(table.StyleColoredBlackOnRedWhite)
		}
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(run.Duration),
		run.Total(),
		run.Total() - run.Failures(),
		run.Failures(),
		getResultString(run.Passed()),
		"",
	})

	t.Render()
	return nil
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
