package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/vmi/pkg/application/services/coverage"
	"github.com/vsinha/vmi/pkg/application/services/documents"
	"github.com/vsinha/vmi/pkg/application/services/ingestion"
	"github.com/vsinha/vmi/pkg/application/services/ledger"
	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
	"github.com/vsinha/vmi/pkg/infrastructure/config"
	"github.com/vsinha/vmi/pkg/infrastructure/events"
	"github.com/vsinha/vmi/pkg/infrastructure/feed"
	"github.com/vsinha/vmi/pkg/infrastructure/metrics"
	"github.com/vsinha/vmi/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/vmi/pkg/infrastructure/repositories/filesystem"
	"github.com/vsinha/vmi/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/vmi/pkg/infrastructure/repositories/mongodb"
	"github.com/vsinha/vmi/pkg/infrastructure/repositories/sql"
	"github.com/vsinha/vmi/pkg/infrastructure/repositories/xlsx"
	"github.com/vsinha/vmi/pkg/infrastructure/resilience"
)

// App is the bridge assembled from configuration
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Orchestrator *ingestion.Orchestrator
	Ledger       *ledger.Service
	Events       *events.InMemoryEventStore
	Metrics      *metrics.Metrics
	Parser       *feed.Parser

	closers []func() error
}

// Build wires every component described by cfg
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(metrics.Config{Namespace: cfg.Metrics.Namespace}),
		Parser:  feed.NewParser(time.Now),
	}

	ledgerRepo, err := app.ledgerRepository(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Ledger = ledger.NewService(ledgerRepo,
		ledger.WithPackSize(entities.Quantity(cfg.Ledger.PackSize)),
		ledger.WithLogger(logger.Named("ledger")))

	sources, err := app.coverageSources()
	if err != nil {
		app.Close()
		return nil, err
	}
	var engineOpts []coverage.Option
	engineOpts = append(engineOpts, coverage.WithLogger(logger.Named("coverage")))
	if cfg.Inventory.Concurrent {
		engineOpts = append(engineOpts, coverage.WithConcurrentFanOut())
	}

	sink, err := filesystem.NewDocumentSink(cfg.Folders.Output)
	if err != nil {
		app.Close()
		return nil, err
	}
	generator := documents.NewGenerator(sink,
		documents.WithPackSize(entities.Quantity(cfg.Ledger.PackSize)),
		documents.WithPrefixes(cfg.Documents.StockJobPrefix, cfg.Documents.MovementPrefix),
		documents.WithSequenceStart(cfg.Documents.SequenceStart),
		documents.WithLogger(logger.Named("documents")))

	activity, err := csv.NewActivityLog(cfg.Folders.Logs, logger.Named("activity"))
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Events = events.NewInMemoryEventStore(logger.Named("events"))
	app.Events.Subscribe(events.NewAuditLogHandler(activity))
	app.Events.Subscribe(events.NewLoggingHandler(logger.Named("activity")))

	app.Orchestrator = ingestion.NewOrchestrator(ingestion.Dependencies{
		Intake:         filesystem.NewIntake(cfg.Folders.Orders, cfg.Folders.Forecast),
		Parser:         app.Parser,
		Forecasts:      memory.NewForecastRepository(),
		ForecastLoader: xlsx.NewForecastLoader(),
		Ledger:         app.Ledger,
		Coverage:       coverage.NewEngine(sources, engineOpts...),
		Documents:      generator,
		Audit:          app.Events,
	},
		ingestion.WithRetryDelay(cfg.Scheduler.RetryDelay),
		ingestion.WithAddresses(cfg.Documents.StockJobAddress, cfg.Documents.MovementAddress),
		ingestion.WithMetrics(app.Metrics),
		ingestion.WithLogger(logger.Named("ingestion")))

	return app, nil
}

func (a *App) ledgerRepository(ctx context.Context) (repositories.LedgerRepository, error) {
	cfg := a.Config
	switch cfg.Ledger.Backend {
	case config.LedgerMemory:
		return memory.NewLedgerRepository(), nil
	case config.LedgerMongoDB:
		client, err := mongodb.Connect(ctx, mongodb.Config{
			URI:            cfg.MongoDB.URI,
			Database:       cfg.MongoDB.Database,
			Collection:     cfg.MongoDB.Collection,
			ConnectTimeout: cfg.MongoDB.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
		a.Logger.Info("ledger backend: MongoDB", zap.String("database", cfg.MongoDB.Database))
		return mongodb.NewLedgerStore(client.Database(cfg.MongoDB.Database), cfg.MongoDB.Collection, a.Logger.Named("ledger")), nil
	default:
		store, err := csv.NewLedgerStore(cfg.Folders.Ledger)
		if err != nil {
			return nil, err
		}
		a.Logger.Info("ledger backend: CSV", zap.String("dir", cfg.Folders.Ledger))
		return store, nil
	}
}

// coverageSources builds breaker-guarded ERP sources, or none when no
// database is configured. Item codes fall back to derivation from the part.
func (a *App) coverageSources() (coverage.Sources, error) {
	cfg := a.Config
	var derived repositories.ItemCatalog
	if cfg.Inventory.DeriveItemCodes {
		derived = memory.NewDerivedItemCatalog()
	}

	if cfg.Database.DSN == "" {
		a.Logger.Warn("no ERP database configured; every inventory source is unavailable")
		return coverage.Sources{Items: derived}, nil
	}

	runner, err := sql.Open(cfg.Database.DSN)
	if err != nil {
		return coverage.Sources{}, err
	}
	a.closers = append(a.closers, runner.Close)
	source := sql.NewSource(runner, cfg.Queries, a.Logger.Named("sql"))

	breaker := func(name string) *resilience.Breaker {
		return resilience.NewBreaker(resilience.BreakerConfig{
			Name:             name,
			FailureThreshold: cfg.Inventory.BreakerFailures,
			OpenTimeout:      cfg.Inventory.BreakerOpenTimeout,
			QueryTimeout:     cfg.Inventory.QueryTimeout,
		}, a.Logger.Named("breaker"), a.Metrics.ObserveBreaker)
	}

	erp := breaker("erp")
	items := repositories.ItemCatalog(resilience.GuardItems(source, breaker("item-mapping")))
	if derived != nil {
		items = fallbackCatalog{items, derived}
	}

	return coverage.Sources{
		FG:          resilience.GuardInventory(source.FG(), erp),
		WIP:         resilience.GuardInventory(source.WIP(), erp),
		SecondaryFG: resilience.GuardInventory(source.SecondaryFG(), erp),
		Jobs:        resilience.GuardJobs(source, erp),
		Items:       items,
	}, nil
}

// Close releases database connections
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// WriteMetrics exports metrics to the configured textfile, if any
func (a *App) WriteMetrics() {
	if a.Config.Metrics.Textfile == "" {
		return
	}
	if err := a.Metrics.WriteTextfile(a.Config.Metrics.Textfile); err != nil {
		a.Logger.Warn("failed to write metrics", zap.Error(err))
	}
}

// fallbackCatalog asks each catalog in turn and returns the first code found
type fallbackCatalog []repositories.ItemCatalog

func (c fallbackCatalog) ItemCode(ctx context.Context, part entities.PartNumber) (string, error) {
	var lastErr error
	for _, catalog := range c {
		code, err := catalog.ItemCode(ctx, part)
		if err == nil && code != "" {
			return code, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no item code for %s", part)
	}
	return "", lastErr
}
