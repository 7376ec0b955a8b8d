package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	acceptor "github.com/ethereum-optimism/infra/fix-acceptor"
	"github.com/ethereum-optimism/infra/fix-acceptor/flags"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	// -v is the verbosity flag
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Usage: "print the version"}

	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "fix-acceptor"
	app.Usage = "FIX/FAST protocol engine integration test driver"
	app.Description = "fix-acceptor runs every fixture as a server/client trial and reports PASS/FAIL per test and per suite"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.UseShortOptionHandling = true
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = handleExit

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

// handleExit maps typed errors to exit codes: runtime errors exit 2, everything else 1
func handleExit(c *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		cli.HandleExitCoder(exitErr)
		return
	}
	cli.HandleExitCoder(cli.Exit(err.Error(), acceptor.ExitCode(err)))
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	// stdout carries the report
	log := oplog.NewLogger(ctx.App.ErrWriter, logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := acceptor.NewConfig(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}
	cfg.Out = ctx.App.Writer

	cfg.Log.Debug("Config", "config", cfg)

	app, err := acceptor.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		return nil, fmt.Errorf("failed to create acceptor: %w", err)
	}
	return app, nil
}
