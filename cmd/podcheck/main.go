package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/podcheck/internal/cli"
	"github.com/julianstephens/podcheck/internal/cli/goals"
	"github.com/julianstephens/podcheck/internal/cli/jobs"
	"github.com/julianstephens/podcheck/internal/cli/system"
	"github.com/julianstephens/podcheck/internal/config"
	"github.com/julianstephens/podcheck/internal/constants"
	"github.com/julianstephens/podcheck/internal/errors"
	"github.com/julianstephens/podcheck/internal/logger"
)

var CLI struct {
	Version  kong.VersionFlag
	Config   string `help:"Path to the YAML config file." type:"path" default:"${config}"`
	Database string `help:"SQLite path or PostgreSQL connection string. PostgreSQL credentials must NOT be embedded; use the OS keyring, PODCHECK_DB_CONNECTION or .pgpass."`
	Debug    bool   `help:"Enable debug logging to stderr."`

	Init    system.InitCmd    `cmd:"" help:"Initialize podcheck storage."`
	Migrate system.MigrateCmd `cmd:"" help:"Run database migrations."`
	Doctor  system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	Worker  system.WorkerCmd  `cmd:"" help:"Run the scheduling engine and resync sweeper."`
	Sweep   system.SweepCmd   `cmd:"" help:"Run one resync pass."`
	Secret  struct {
		Set    system.SecretSetCmd    `cmd:"" help:"Store a secret in the OS keyring."`
		Get    system.SecretGetCmd    `cmd:"" help:"Show a stored secret, masked."`
		Delete system.SecretDeleteCmd `cmd:"" help:"Remove a secret from the OS keyring."`
		Status system.SecretStatusCmd `cmd:"" help:"Check keyring availability and stored secrets." default:"1"`
	} `cmd:"" help:"Manage credentials in the OS keyring."`
	Goal struct {
		Add     goals.GoalAddCmd     `cmd:"" help:"Add a goal."`
		List    goals.GoalListCmd    `cmd:"" help:"List goals." default:"1"`
		Edit    goals.GoalEditCmd    `cmd:"" help:"Edit a goal."`
		Archive goals.GoalArchiveCmd `cmd:"" help:"Archive a goal."`
	} `cmd:"" help:"Manage goals."`
	Checkin  goals.CheckInCmd `cmd:"" help:"Submit a check-in for today (or an offline timestamp)."`
	Evaluate jobs.EvaluateCmd `cmd:"" help:"Run an evaluator for a goal and date."`
	Schedule jobs.ScheduleCmd `cmd:"" help:"Preview upcoming deadline and reminder instants."`
	Jobs     jobs.JobsCmd     `cmd:"" help:"Inspect the job queue."`
}

// noStoreCommands manage storage themselves or do not need it.
var noStoreCommands = []string{"init", "migrate", "doctor", "secret"}

func needsStore(command string) bool {
	for _, name := range noStoreCommands {
		if command == name || strings.HasPrefix(command, name+" ") {
			return false
		}
	}
	return true
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Deadline and reminder engine for habit accountability pods"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": constants.Version,
			"config":  constants.DefaultConfigPath,
		},
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		errors.Fatal(err)
	}
	if CLI.Database != "" {
		cfg.Database = CLI.Database
		cfg.DatabaseFromSecret = false
	}
	if CLI.Debug {
		cfg.Log.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		errors.Fatal(err)
	}

	runtimeDir, err := config.ExpandPath(filepath.Dir(constants.DefaultConfigPath))
	if err != nil {
		errors.Fatal(err)
	}
	logDir := cfg.Log.Dir
	if logDir == "" {
		logDir = filepath.Join(runtimeDir, "logs")
	}
	if logDir, err = config.ExpandPath(logDir); err != nil {
		errors.Fatal(err)
	}
	if err := logger.Init(logger.Config{
		Debug:  cfg.Log.Debug,
		Dir:    logDir,
		Stderr: ctx.Command() == "worker",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	store, err := cli.NewStore(cfg)
	if err != nil {
		errors.Fatal(err)
	}
	appCtx := cli.NewContext(cfg, store, runtimeDir)

	if needsStore(ctx.Command()) {
		if err := store.Load(context.Background()); err != nil {
			errors.Fatal(err)
		}
	}

	err = ctx.Run(appCtx)
	if closeErr := appCtx.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		errors.Fatal(err)
	}
}
