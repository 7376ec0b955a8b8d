package acceptor

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/fix-acceptor/flags"
	"github.com/ethereum-optimism/infra/fix-acceptor/readiness"
	"github.com/ethereum-optimism/infra/fix-acceptor/reporting"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum-optimism/optimism/op-service/oppprof"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	FixturesDir       string        // Fixture discovery directory
	CatalogFile       string        // Suite catalog file
	FIXBinary         string        // Executable for discovered FIX suites
	FASTBinary        string        // Executable for discovered FAST suites
	Suites            []string      // Suite filter, empty runs everything
	Host              string        // Host the client connects to
	Port              int           // Port shared by every trial
	Readiness         readiness.Config
	TrialTimeout      time.Duration // Bound on a single client run, 0 waits forever
	TerminateAttempts int           // Server termination polls before SIGKILL
	TerminateInterval time.Duration // Delay between termination polls
	LogDir            string        // Directory to store trial logs, empty disables them
	Verbosity         int           // Report detail, 0 to 2
	NoColor           bool          // Disable ANSI colour
	RunInterval       time.Duration // Interval between test runs
	RunOnce           bool          // Indicates if the service should exit after one test run
	HealthzEnabled    bool
	HealthzAddr       string
	HealthzPort       int
	MetricsConfig     opmetrics.CLIConfig
	PprofConfig       oppprof.CLIConfig
	Out               io.Writer // Report destination, os.Stdout when nil
	Log               log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	mode, err := readiness.ParseMode(ctx.String(flags.Readiness.Name))
	if err != nil {
		return nil, err
	}
	readinessCfg := readiness.DefaultConfig()
	readinessCfg.Mode = mode
	readinessCfg.SettleDelay = ctx.Duration(flags.SettleDelay.Name)
	readinessCfg.Timeout = ctx.Duration(flags.ReadinessTimeout.Name)

	port := ctx.Int(flags.Port.Name)
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}
	if ctx.Duration(flags.TrialTimeout.Name) < 0 {
		return nil, fmt.Errorf("trial timeout must not be negative")
	}

	fixturesDir, err := absPath(ctx.String(flags.Fixtures.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for fixtures directory: %w", err)
	}
	catalogFile, err := absPath(ctx.String(flags.Catalog.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for catalog: %w", err)
	}
	logDir, err := absPath(ctx.String(flags.LogDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory: %w", err)
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}
	pprofCfg := oppprof.ReadCLIConfig(ctx)
	if err := pprofCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid pprof config: %w", err)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)

	return &Config{
		FixturesDir:       fixturesDir,
		CatalogFile:       catalogFile,
		FIXBinary:         ctx.String(flags.FIXBinary.Name),
		FASTBinary:        ctx.String(flags.FASTBinary.Name),
		Suites:            ctx.StringSlice(flags.Suites.Name),
		Host:              ctx.String(flags.Host.Name),
		Port:              port,
		Readiness:         readinessCfg,
		TrialTimeout:      ctx.Duration(flags.TrialTimeout.Name),
		TerminateAttempts: ctx.Int(flags.TerminateAttempts.Name),
		TerminateInterval: ctx.Duration(flags.TerminateInterval.Name),
		LogDir:            logDir,
		Verbosity:         reporting.ClampVerbosity(ctx.Count(flags.Verbose.Name)),
		NoColor:           ctx.Bool(flags.NoColor.Name),
		RunInterval:       runInterval,
		RunOnce:           runInterval == 0,
		HealthzEnabled:    ctx.Bool(flags.HealthzEnabled.Name),
		HealthzAddr:       ctx.String(flags.HealthzAddr.Name),
		HealthzPort:       ctx.Int(flags.HealthzPort.Name),
		MetricsConfig:     metricsCfg,
		PprofConfig:       pprofCfg,
		Log:               log,
	}, nil
}

// absPath resolves p against the working directory, keeping empty paths empty
func absPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	return filepath.Abs(p)
}
