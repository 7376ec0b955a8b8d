package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum-optimism/infra/fix-acceptor/reporting"
	"github.com/ethereum-optimism/infra/fix-acceptor/types"
	"github.com/ethereum/go-ethereum/log"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories
	PassedDir          = "passed"
	FailedDir          = "failed"
	AllLogsFilename    = "all.log"
)

// ResultSink is an interface for different ways of consuming trial outcomes
type ResultSink interface {
	// Consume processes a single trial outcome
	Consume(outcome *types.TrialOutcome, runID string) error
	// Complete is called once every suite has run
	Complete(run *types.RunResult) error
}

// FileLogger writes trial output and summaries below <baseDir>/testrun-<runID>/
type FileLogger struct {
	baseDir      string                // Base directory for logs
	logDir       string                // Directory of this run
	runID        string                // Current run ID
	log          log.Logger            // Sink errors are reported here
	mu           sync.Mutex            // Protects asyncWriters
	sinks        []ResultSink          // Collection of result consumers
	asyncWriters map[string]*AsyncFile // Map of async file writers
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100),
	}
	af.wg.Add(1)
	go af.processQueue()
	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	af.queue <- dataCopy
	return nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	return af.file.Close()
}

// NewFileLogger creates the run directory and the default sinks
func NewFileLogger(baseDir string, runID string, logger log.Logger) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	for _, dir := range []string{logDir, filepath.Join(logDir, PassedDir), filepath.Join(logDir, FailedDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	l := &FileLogger{
		baseDir:      baseDir,
		logDir:       logDir,
		runID:        runID,
		log:          logger,
		asyncWriters: make(map[string]*AsyncFile),
	}
	l.sinks = []ResultSink{
		&AllLogsFileSink{logger: l},
		&PerTrialFileSink{logger: l},
		reporting.NewTextSummarySink(logDir),
	}
	return l, nil
}

// GetRunID returns the current runID
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// GetDirectory returns the directory of this run
func (l *FileLogger) GetDirectory() string {
	return l.logDir
}

// LogTrialResult feeds an outcome to every sink
func (l *FileLogger) LogTrialResult(outcome *types.TrialOutcome) error {
	for _, sink := range l.sinks {
		if err := sink.Consume(outcome, l.runID); err != nil {
			return fmt.Errorf("error in sink: %w", err)
		}
	}
	return nil
}

// Complete finalizes all sinks and closes all file writers
func (l *FileLogger) Complete(run *types.RunResult) error {
	defer l.closeAllWriters()
	for _, sink := range l.sinks {
		if err := sink.Complete(run); err != nil {
			return fmt.Errorf("error completing sink: %w", err)
		}
	}
	return nil
}

// TrialStarted is a no-op; files are written once the outcome is known
func (l *FileLogger) TrialStarted(types.Suite, types.TestCase) {}

// TrialCompleted logs the outcome, reporting sink failures without stopping the run
func (l *FileLogger) TrialCompleted(_ types.Suite, outcome *types.TrialOutcome) {
	if err := l.LogTrialResult(outcome); err != nil {
		l.log.Error("Failed to log trial result", "test", outcome.Case.ID(), "err", err)
	}
}

// SuiteCompleted is a no-op; the summary is written when the run completes
func (l *FileLogger) SuiteCompleted(types.SuiteResult) {}

// RunCompleted writes the summary and closes every file
func (l *FileLogger) RunCompleted(run *types.RunResult) {
	if err := l.Complete(run); err != nil {
		l.log.Error("Failed to complete log files", "err", err)
		return
	}
	l.log.Info("Wrote trial logs", "dir", l.logDir)
}

// getAsyncWriter gets or creates an AsyncFile for the given path
func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}
	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = writer
	return writer, nil
}

// closeAllWriters closes all async writers
func (l *FileLogger) closeAllWriters() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, writer := range l.asyncWriters {
		_ = writer.Close()
	}
	l.asyncWriters = make(map[string]*AsyncFile)
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	return replacer.Replace(s)
}

// trialFilename returns the log file name for an outcome, e.g. fix_logon.log
func trialFilename(outcome *types.TrialOutcome) string {
	name := outcome.Case.Name
	if outcome.Case.Suite != "" {
		name = outcome.Case.Suite + "_" + name
	}
	return safeFilename(name) + ".log"
}

// formatTrial renders an outcome as plain text
func formatTrial(outcome *types.TrialOutcome) string {
	var content strings.Builder

	fmt.Fprintf(&content, "Test:     %s\n", outcome.Case.ID())
	fmt.Fprintf(&content, "Status:   %s\n", outcome.Status)
	fmt.Fprintf(&content, "Exit:     %d\n", outcome.ExitCode)
	fmt.Fprintf(&content, "Duration: %s\n", outcome.Duration.Round(time.Millisecond))
	if outcome.Reason != "" {
		fmt.Fprintf(&content, "Reason:   %s\n", outcome.Reason)
	}
	if outcome.ServerCommand != "" {
		fmt.Fprintf(&content, "Server:   %s\n", outcome.ServerCommand)
	}
	if outcome.ClientCommand != "" {
		fmt.Fprintf(&content, "Client:   %s\n", outcome.ClientCommand)
	}
	if outcome.ServerOutput != "" {
		fmt.Fprintf(&content, "\nSERVER OUTPUT:\n~~~~~~~~~~~~~~\n%s\n", indentText(outcome.ServerOutput, "  "))
	}
	if outcome.ClientOutput != "" {
		fmt.Fprintf(&content, "\nCLIENT OUTPUT:\n~~~~~~~~~~~~~~\n%s\n", indentText(outcome.ClientOutput, "  "))
	}
	return stripansi.Strip(content.String())
}

// indentText adds indentation to each non-empty line
func indentText(text, indent string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}

// AllLogsFileSink appends every outcome to a single all.log file
type AllLogsFileSink struct {
	logger *FileLogger
}

func (s *AllLogsFileSink) Consume(outcome *types.TrialOutcome, runID string) error {
	writer, err := s.logger.getAsyncWriter(filepath.Join(s.logger.logDir, AllLogsFilename))
	if err != nil {
		return err
	}
	return writer.Write([]byte(formatTrial(outcome) + "\n"))
}

// Complete is a no-op for AllLogsFileSink
func (s *AllLogsFileSink) Complete(*types.RunResult) error {
	return nil
}

// PerTrialFileSink writes one file per trial into passed/ or failed/
type PerTrialFileSink struct {
	logger *FileLogger
}

func (s *PerTrialFileSink) Consume(outcome *types.TrialOutcome, runID string) error {
	dir := PassedDir
	if !outcome.Passed() {
		dir = FailedDir
	}
	path := filepath.Join(s.logger.logDir, dir, trialFilename(outcome))
	if err := os.WriteFile(path, []byte(formatTrial(outcome)), 0644); err != nil {
		return fmt.Errorf("failed to write trial log %s: %w", path, err)
	}
	return nil
}

// Complete is a no-op for PerTrialFileSink
func (s *PerTrialFileSink) Complete(*types.RunResult) error {
	return nil
}
