package flags

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum-optimism/optimism/op-service/oppprof"

	"github.com/ethereum-optimism/infra/fix-acceptor/readiness"
	"github.com/ethereum-optimism/infra/fix-acceptor/runner"
)

const EnvVarPrefix = "FIX_ACCEPTOR"

var (
	Fixtures = &cli.StringFlag{
		Name:    "fixtures",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FIXTURES"),
		Usage:   "Directory to discover fixtures from (fix/*.fixt and fast/*.fast with a sibling .xml template)",
	}
	Catalog = &cli.StringFlag{
		Name:    "catalog",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CATALOG"),
		Usage:   "Path to a suite catalog file (eg. 'suites.yaml' or 'suites.toml')",
	}
	FIXBinary = &cli.StringFlag{
		Name:    "fix-bin",
		Value:   "./fix",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FIX_BIN"),
		Usage:   "Server and client executable for discovered FIX suites",
	}
	FASTBinary = &cli.StringFlag{
		Name:    "fast-bin",
		Value:   "./fast",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FAST_BIN"),
		Usage:   "Server and client executable for discovered FAST suites",
	}
	Suites = &cli.StringSliceFlag{
		Name:    "suite",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUITE"),
		Usage:   "Only run the given suite (repeatable, run in the order given)",
	}
	Host = &cli.StringFlag{
		Name:    "host",
		Value:   runner.DefaultHost,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HOST"),
		Usage:   "Host the client connects to",
	}
	Port = &cli.IntFlag{
		Name:    "port",
		Value:   runner.DefaultPort,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PORT"),
		Usage:   "Port the server listens on, shared by every trial",
		Action: func(_ *cli.Context, v int) error {
			if v <= 0 || v > 65535 {
				return fmt.Errorf("port must be between 1 and 65535, got %d", v)
			}
			return nil
		},
	}
	Readiness = &cli.StringFlag{
		Name:    "readiness",
		Value:   string(readiness.DefaultMode),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "READINESS"),
		Usage:   "How to decide the server is ready: 'delay' (fixed settle delay), 'log' (watch for the listening line) or 'tcp' (probe the port; only for servers that accept more than one connection)",
		Action: func(_ *cli.Context, v string) error {
			_, err := readiness.ParseMode(v)
			return err
		},
	}
	SettleDelay = &cli.DurationFlag{
		Name:    "settle-delay",
		Value:   readiness.DefaultSettleDelay,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SETTLE_DELAY"),
		Usage:   "Delay between starting the server and starting the client in 'delay' readiness mode",
	}
	ReadinessTimeout = &cli.DurationFlag{
		Name:    "readiness-timeout",
		Value:   readiness.DefaultTimeout,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "READINESS_TIMEOUT"),
		Usage:   "Maximum time to wait for the server to become ready in 'tcp' and 'log' modes",
	}
	TrialTimeout = &cli.DurationFlag{
		Name:    "trial-timeout",
		Value:   runner.DefaultTrialTimeout,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TRIAL_TIMEOUT"),
		Usage:   "Maximum time a client may run before the trial is aborted (0 waits forever)",
	}
	TerminateAttempts = &cli.IntFlag{
		Name:    "terminate-attempts",
		Value:   runner.DefaultTerminateAttempts,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TERMINATE_ATTEMPTS"),
		Usage:   "Number of polls after asking the server to stop before it is killed",
	}
	TerminateInterval = &cli.DurationFlag{
		Name:    "terminate-interval",
		Value:   runner.DefaultTerminateInterval,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TERMINATE_INTERVAL"),
		Usage:   "Interval between server termination polls",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory to store per-trial logs in. Empty disables log files.",
	}
	NoColor = &cli.BoolFlag{
		Name:    "no-color",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "NO_COLOR"),
		Usage:   "Disable ANSI colour in the report",
	}
	Verbose = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "VERBOSE"),
		Usage:   "Increase report detail: -v prints one line per test, -vv adds live output and details",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	HealthzEnabled = &cli.BoolFlag{
		Name:    "healthz.enabled",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ENABLED"),
		Usage:   "Serve /healthz while the acceptor runs",
	}
	HealthzAddr = &cli.StringFlag{
		Name:    "healthz.addr",
		Value:   "0.0.0.0",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ADDR"),
		Usage:   "Healthz listening address",
	}
	HealthzPort = &cli.IntFlag{
		Name:    "healthz.port",
		Value:   8080,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_PORT"),
		Usage:   "Healthz listening port",
	}
)

var optionalFlags = []cli.Flag{
	Fixtures,
	Catalog,
	FIXBinary,
	FASTBinary,
	Suites,
	Host,
	Port,
	Readiness,
	SettleDelay,
	ReadinessTimeout,
	TrialTimeout,
	TerminateAttempts,
	TerminateInterval,
	LogDir,
	NoColor,
	Verbose,
	RunInterval,
	HealthzEnabled,
	HealthzAddr,
	HealthzPort,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, oppprof.CLIFlags(EnvVarPrefix)...)

	Flags = optionalFlags
}

// CheckRequired returns an error unless tests can be located from the command line
func CheckRequired(ctx *cli.Context) error {
	if ctx.String(Fixtures.Name) == "" && ctx.String(Catalog.Name) == "" {
		return errors.New("one of --fixtures or --catalog is required")
	}
	return nil
}
