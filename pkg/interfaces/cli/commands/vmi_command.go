package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/vmi/pkg/application/dto"
	"github.com/vsinha/vmi/pkg/application/services/ingestion"
	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/infrastructure/config"
	"github.com/vsinha/vmi/pkg/infrastructure/feed"
	"github.com/vsinha/vmi/pkg/infrastructure/logging"
	"github.com/vsinha/vmi/pkg/infrastructure/scheduler"
	"github.com/vsinha/vmi/pkg/interfaces/cli/output"
)

// Commands
const (
	CommandRun     = "run"
	CommandServe   = "serve"
	CommandParse   = "parse"
	CommandSummary = "summary"
)

// Config holds configuration for the VMI command
type Config struct {
	Command    string
	ConfigFile string
	File       string
	Month      string
	Format     string
	OutputDir  string
	Verbose    bool
	Help       bool
}

// VMICommand handles the bridge's command line entry points
type VMICommand struct {
	config Config
}

// NewVMICommand creates a new VMI command with the given configuration
func NewVMICommand(config Config) *VMICommand {
	return &VMICommand{config: config}
}

// Execute runs the selected command
func (c *VMICommand) Execute(ctx context.Context) error {
	if c.config.Help || c.config.Command == "" {
		c.showHelp()
		return nil
	}

	if c.config.Command == CommandParse {
		return c.parse()
	}

	cfg, err := config.Load(c.config.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	level := cfg.Log.Level
	if c.config.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	app, err := Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer app.Close()

	switch c.config.Command {
	case CommandRun:
		return c.run(ctx, app)
	case CommandServe:
		return c.serve(ctx, app)
	case CommandSummary:
		return c.summary(ctx, app)
	default:
		return fmt.Errorf("unknown command %q", c.config.Command)
	}
}

func (c *VMICommand) outputConfig() output.Config {
	return output.Config{
		Format:    c.config.Format,
		OutputDir: c.config.OutputDir,
		Verbose:   c.config.Verbose,
	}
}

// run processes the hot folder once, as a manual trigger. An empty folder
// is reported; the one-hour retry only exists in serve mode.
func (c *VMICommand) run(ctx context.Context, app *App) error {
	result, err := app.Orchestrator.RunCycle(ctx, dto.TriggerManual, 0)
	app.WriteMetrics()
	if result != nil {
		if outErr := output.Generate(result, c.outputConfig()); outErr != nil {
			return fmt.Errorf("error generating output: %w", outErr)
		}
	}
	if err != nil {
		return fmt.Errorf("ingestion cycle failed: %w", err)
	}
	return nil
}

// serve runs the daily trigger until interrupted
func (c *VMICommand) serve(ctx context.Context, app *App) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := app.Config
	sched, err := scheduler.New(scheduler.Config{
		Hour:     cfg.Scheduler.Hour,
		Minute:   cfg.Scheduler.Minute,
		Location: cfg.Location(),
	}, func(ctx context.Context, trigger string, attempt int) {
		result, err := app.Orchestrator.RunCycle(ctx, trigger, attempt)
		app.WriteMetrics()
		switch {
		case errors.Is(err, ingestion.ErrCycleInProgress):
			app.Logger.Warn("cycle skipped, another is running", zap.String("trigger", trigger))
		case err != nil:
			app.Logger.Error("ingestion cycle failed", zap.Error(err))
		case result != nil:
			summary := app.Events.TodaySummary()
			app.Logger.Info("ingestion cycle complete",
				zap.String("status", result.Status()),
				zap.Int("stock_jobs", summary.StockJobs),
				zap.Int("rush_jobs", summary.RushJobs),
				zap.Int("movements", summary.Movements),
				zap.Int("alerts", summary.Alerts),
				zap.Int("errors", summary.Errors))
		}
	}, app.Logger.Named("scheduler"))
	if err != nil {
		return err
	}
	app.Orchestrator.SetRetryScheduler(sched)

	if err := sched.Start(ctx); err != nil {
		return err
	}
	app.Logger.Info("serving",
		zap.String("orders", cfg.Folders.Orders),
		zap.String("output", cfg.Folders.Output),
		zap.Time("next_run", sched.NextRun(time.Now())))

	<-ctx.Done()
	app.Logger.Info("shutting down")
	<-sched.Stop().Done()
	return nil
}

// summary prints cumulative ledger demand for a month, the current one by default
func (c *VMICommand) summary(ctx context.Context, app *App) error {
	p := entities.PartitionOf(time.Now())
	if c.config.Month != "" {
		t, err := time.Parse("2006-01", c.config.Month)
		if err != nil {
			return fmt.Errorf("invalid month %q, expected YYYY-MM: %w", c.config.Month, err)
		}
		p = entities.PartitionOf(t)
	}

	totals, err := app.Ledger.MonthSummary(ctx, p)
	if err != nil {
		return err
	}
	return output.GenerateMonthSummary(p, totals, c.outputConfig())
}

// parse dumps what the parser recovers from one feed file without touching the ledger
func (c *VMICommand) parse() error {
	if c.config.File == "" {
		return fmt.Errorf("validation error: parse requires -file")
	}
	result, err := feed.NewParser(time.Now).ParseFile(c.config.File)
	if err != nil {
		return err
	}
	return output.GenerateParse(result, c.outputConfig())
}

// showHelp displays the help message
func (c *VMICommand) showHelp() {
	fmt.Printf(`VMI Bridge - purchase-order feed to ERP order-entry documents

USAGE:
    vmi [options] <command>

COMMANDS:
    run        Process the hot folder once (manual trigger)
    serve      Process the hot folder daily at the configured time
    parse      Show the orders recovered from one feed file
    summary    Show cumulative demand recorded for a month

OPTIONS:
    -config <file>      Configuration file (default: configs/config.yaml or ./config.yaml)
    -file <path>        Feed file for parse
    -month <YYYY-MM>    Month for summary (default: current month)
    -format <fmt>       Output format: text, json, csv (default: text)
    -output <dir>       Save results to a directory instead of stdout
    -verbose            Enable verbose output and debug logging
    -help               Show this help message

ENVIRONMENT:
    Any setting can be overridden with VMI_<SECTION>_<KEY>, for example
    VMI_FOLDERS_ORDERS=/mnt/hot VMI_DATABASE_DSN=postgres://... vmi run
    A .env file in the working directory is loaded first.

EXAMPLES:
    vmi run -verbose
    vmi -format json run
    vmi -config /etc/vmi/config.yaml serve
    vmi -file inputs/qadp0961_7360_251030070105.txt parse
    vmi -month 2025-11 summary
`)
}
