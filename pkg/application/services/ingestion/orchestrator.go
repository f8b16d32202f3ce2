package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vsinha/vmi/pkg/application/dto"
	"github.com/vsinha/vmi/pkg/application/services/coverage"
	"github.com/vsinha/vmi/pkg/application/services/documents"
	"github.com/vsinha/vmi/pkg/application/services/ledger"
	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
	"github.com/vsinha/vmi/pkg/infrastructure/feed"
)

// DefaultRetryDelay is how long an empty intake waits before the one retry
const DefaultRetryDelay = time.Hour

// ErrCycleInProgress is returned when a cycle is requested while another runs
var ErrCycleInProgress = errors.New("ingestion cycle already in progress")

// ForecastStore holds the loaded forecast and accepts a replacement
type ForecastStore interface {
	repositories.ForecastProvider
	Replace(source string, records []*entities.ForecastRecord)
}

// Metrics receives ingestion counters
type Metrics interface {
	RecordCycle(trigger, status string, duration time.Duration)
	RecordFile(status string)
	RecordOrders(status string, n int)
	RecordDecision(action, source string)
	RecordDocument(kind string, success bool)
	RecordAlert(kind string)
}

type noopMetrics struct{}

func (noopMetrics) RecordCycle(string, string, time.Duration) {}
func (noopMetrics) RecordFile(string)                         {}
func (noopMetrics) RecordOrders(string, int)                  {}
func (noopMetrics) RecordDecision(string, string)             {}
func (noopMetrics) RecordDocument(string, bool)               {}
func (noopMetrics) RecordAlert(string)                        {}

// Dependencies are the collaborators a cycle runs against
type Dependencies struct {
	Intake         repositories.Intake
	Parser         *feed.Parser
	Forecasts      ForecastStore
	ForecastLoader repositories.ForecastLoader
	Ledger         *ledger.Service
	Coverage       *coverage.Engine
	Documents      *documents.Generator
	Audit          repositories.AuditLog
	Retry          repositories.RetryScheduler
}

// Orchestrator runs ingestion cycles: reload the forecast if it changed, then
// ledger, decide and render documents for every order file in the intake
type Orchestrator struct {
	deps            Dependencies
	now             func() time.Time
	retryDelay      time.Duration
	stockAddress    string
	movementAddress string
	metrics         Metrics
	logger          *zap.Logger
	printer         *message.Printer

	mu           sync.Mutex
	forecastFile repositories.FileInfo
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock sets the clock cycles are stamped with
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRetryDelay sets how long an empty intake waits before retrying
func WithRetryDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.retryDelay = d
		}
	}
}

// WithAddresses sets the delivery addresses for stock jobs and movements
func WithAddresses(stockJob, movement string) Option {
	return func(o *Orchestrator) {
		o.stockAddress = stockJob
		o.movementAddress = movement
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger sets the orchestrator logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator creates an orchestrator over deps
func NewOrchestrator(deps Dependencies, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:       deps,
		now:        time.Now,
		retryDelay: DefaultRetryDelay,
		metrics:    noopMetrics{},
		logger:     zap.NewNop(),
		printer:    message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetRetryScheduler sets the scheduler asked for a retry when the intake is empty
func (o *Orchestrator) SetRetryScheduler(r repositories.RetryScheduler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deps.Retry = r
}

// RunCycle processes every order file currently in the intake. attempt is 0
// for a first run; an empty intake on attempt 0 schedules a retry, and an
// empty intake on a retry raises an alert. Only one cycle runs at a time.
func (o *Orchestrator) RunCycle(ctx context.Context, trigger string, attempt int) (*dto.CycleResult, error) {
	if !o.mu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer o.mu.Unlock()

	now := o.now()
	result := &dto.CycleResult{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		Attempt:   attempt,
		StartedAt: now,
	}
	logger := o.logger.With(zap.String("cycle", result.ID), zap.String("trigger", trigger), zap.Int("attempt", attempt))
	logger.Info("ingestion cycle started")

	defer func() {
		result.Duration = o.now().Sub(now)
		o.metrics.RecordCycle(trigger, result.Status(), result.Duration)
		o.audit(ctx, entities.AuditEvent{
			Type:    entities.AuditSystem,
			Message: "Hot folder processing completed",
			Details: fmt.Sprintf("Processed %d files, %d errors",
				result.FilesWithStatus(dto.FileProcessed), result.FilesWithStatus(dto.FileFailed)+len(result.Errors)),
		})
		logger.Info("ingestion cycle finished",
			zap.String("status", result.Status()),
			zap.Int("files", len(result.Files)),
			zap.Duration("duration", result.Duration))
	}()

	// Step 1: Pick up a changed forecast before any demand is compared against it
	reloaded, err := o.checkForecastUpdate(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		logger.Warn("forecast reload failed", zap.Error(err))
	}
	result.ForecastLoaded = reloaded
	result.ForecastSource = o.forecastFile.Name

	// Step 2: Scan the intake
	files, err := o.deps.Intake.ListOrderFiles(ctx)
	if err != nil {
		err = fmt.Errorf("failed to scan order folder: %w", err)
		result.Errors = append(result.Errors, err.Error())
		o.audit(ctx, entities.AuditEvent{Type: entities.AuditError, Message: "Hot Folder: " + err.Error()})
		return result, err
	}
	o.audit(ctx, entities.AuditEvent{Type: entities.AuditSystem, Message: "Hot folder processing started", Details: intakeLocation(o.deps.Intake)})

	if len(files) == 0 {
		o.handleEmptyIntake(ctx, result, attempt)
		return result, nil
	}

	// Step 3: Process each file on its own; one failure does not stop the rest
	for _, file := range files {
		fr := o.processFile(ctx, file, now, result)
		o.metrics.RecordFile(fr.Status)
		result.Files = append(result.Files, fr)
	}
	return result, nil
}

func (o *Orchestrator) handleEmptyIntake(ctx context.Context, result *dto.CycleResult, attempt int) {
	if attempt > 0 {
		alert := dto.Alert{
			Title:   "Hot Folder Empty",
			Message: "No PO files found after retry",
			Details: "Folder: " + intakeLocation(o.deps.Intake),
		}
		o.raise(ctx, result, "hot_folder_empty", alert, "")
		o.audit(ctx, entities.AuditEvent{Type: entities.AuditError, Message: "Hot Folder: No files found after retry - alert issued"})
		return
	}

	if o.deps.Retry == nil {
		o.audit(ctx, entities.AuditEvent{Type: entities.AuditSystem, Message: "Hot folder empty", Details: "No retry scheduler configured"})
		return
	}
	o.deps.Retry.ScheduleRetry(o.retryDelay)
	result.RetryScheduled = true
	o.audit(ctx, entities.AuditEvent{
		Type:    entities.AuditSystem,
		Message: "Hot folder empty",
		Details: fmt.Sprintf("Retry scheduled for %s later", o.retryDelay),
	})
}

// CheckForecastUpdate reloads the forecast when the newest workbook differs
// by name or modification time from the one loaded last
func (o *Orchestrator) CheckForecastUpdate(ctx context.Context) (bool, error) {
	if !o.mu.TryLock() {
		return false, ErrCycleInProgress
	}
	defer o.mu.Unlock()
	return o.checkForecastUpdate(ctx)
}

func (o *Orchestrator) checkForecastUpdate(ctx context.Context) (bool, error) {
	if o.deps.ForecastLoader == nil || o.deps.Forecasts == nil {
		return false, nil
	}

	file, ok, err := o.deps.Intake.LatestForecastFile(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to find forecast: %w", err)
	}
	if !ok {
		return false, nil
	}
	if file.Name == o.forecastFile.Name && file.ModTime.Equal(o.forecastFile.ModTime) {
		return false, nil
	}

	reason := "New forecast file: " + file.Name
	if file.Name == o.forecastFile.Name {
		reason = "Forecast file modified: " + file.Name
	}
	o.audit(ctx, entities.AuditEvent{Type: entities.AuditSystem, Message: "Forecast change detected", Details: reason})

	records, err := o.deps.ForecastLoader.Load(ctx, file.Path)
	if err != nil {
		o.audit(ctx, entities.AuditEvent{
			Type:    entities.AuditError,
			Message: "Forecast Reload: Failed to parse " + file.Name,
			Details: err.Error(),
			File:    file.Name,
		})
		return false, fmt.Errorf("failed to load forecast %s: %w", file.Name, err)
	}

	o.deps.Forecasts.Replace(file.Name, records)
	o.forecastFile = file
	o.audit(ctx, entities.AuditEvent{
		Type:    entities.AuditFile,
		Message: "Processed file: " + file.Name,
		Details: fmt.Sprintf("%d records, success", len(records)),
		File:    file.Name,
	})
	o.logger.Info("forecast reloaded", zap.String("file", file.Name), zap.Int("records", len(records)))
	return true, nil
}

func (o *Orchestrator) processFile(ctx context.Context, file repositories.FileInfo, now time.Time, cycle *dto.CycleResult) dto.FileResult {
	fr := dto.FileResult{Name: file.Name}
	logger := o.logger.With(zap.String("file", file.Name))

	parsed, err := o.parse(ctx, file)
	if err != nil {
		if errors.Is(err, repositories.ErrFileNotFound) {
			fr.Status = dto.FileSkipped
			fr.Error = err.Error()
			logger.Info("order file vanished before parsing")
			return fr
		}
		return o.failFile(ctx, fr, "Error processing "+file.Name, err)
	}
	for _, d := range parsed.Diagnostics {
		fr.Diagnostics = append(fr.Diagnostics, d.Error())
	}
	if len(parsed.Orders) == 0 {
		return o.failFile(ctx, fr, "Failed to parse "+file.Name, fmt.Errorf("no orders recovered: %s", strings.Join(fr.Diagnostics, "; ")))
	}

	// Ledger first: nothing downstream runs for demand that is not persisted.
	// The whole file is one append, so a rerun after a failure sees none of it.
	partition := entities.PartitionOf(now)
	batch, err := o.deps.Ledger.RecordOrders(ctx, parsed.Orders, now)
	if err != nil {
		o.metrics.RecordOrders("failed", len(parsed.Orders))
		return o.failFile(ctx, fr, "Error processing "+file.Name, err)
	}
	recorded := batch.Recorded
	for _, po := range recorded {
		fr.OrdersRecorded = append(fr.OrdersRecorded, po.Header.OrderNumber)
	}
	fr.OrdersSkipped = append(fr.OrdersSkipped, batch.Skipped...)
	o.metrics.RecordOrders("recorded", len(fr.OrdersRecorded))
	o.metrics.RecordOrders("skipped", len(fr.OrdersSkipped))

	lines := parsed.Lines()
	status := "success"
	if len(parsed.Diagnostics) > 0 {
		status = fmt.Sprintf("%d errors", len(parsed.Diagnostics))
	}
	o.audit(ctx, entities.AuditEvent{
		Type:    entities.AuditFile,
		Message: "Processed file: " + file.Name,
		Details: fmt.Sprintf("%d records, %s", len(lines), status),
		File:    file.Name,
	})

	if len(recorded) == 0 {
		fr.Status = dto.FileSkipped
		o.audit(ctx, entities.AuditEvent{
			Type:    entities.AuditSystem,
			Message: "PO already processed",
			Details: fmt.Sprintf("Skipping duplicate: %s", strings.Join(fr.OrdersSkipped, ", ")),
			File:    file.Name,
		})
	} else {
		fr.Status = dto.FileProcessed
	}

	o.checkForecastOverage(ctx, lines, partition, now, cycle)

	if len(recorded) > 0 {
		o.decideAndGenerate(ctx, &fr, recorded, now, cycle)
	}

	// The demand is ledgered, so the file is acknowledged even if documents failed
	if err := o.deps.Intake.Remove(ctx, file); err != nil {
		fr.Error = err.Error()
		o.audit(ctx, entities.AuditEvent{Type: entities.AuditError, Message: "Delete: Failed to delete " + file.Name, Details: err.Error(), File: file.Name})
		logger.Error("failed to remove processed file", zap.Error(err))
		return fr
	}
	fr.Acknowledged = true
	o.audit(ctx, entities.AuditEvent{Type: entities.AuditSystem, Message: "File deleted after processing", Details: file.Name, File: file.Name})
	return fr
}

func (o *Orchestrator) parse(ctx context.Context, file repositories.FileInfo) (*feed.Result, error) {
	rc, err := o.deps.Intake.Open(ctx, file)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return o.deps.Parser.Parse(rc)
}

func (o *Orchestrator) failFile(ctx context.Context, fr dto.FileResult, message string, err error) dto.FileResult {
	fr.Status = dto.FileFailed
	fr.Error = err.Error()
	o.audit(ctx, entities.AuditEvent{Type: entities.AuditError, Message: "File Processing: " + message, Details: err.Error(), File: fr.Name})
	o.logger.Error("order file failed", zap.String("file", fr.Name), zap.Error(err))
	return fr
}

// checkForecastOverage alerts once per part and site when the month's
// cumulative rounded demand exceeds a positive forecast
func (o *Orchestrator) checkForecastOverage(ctx context.Context, lines []entities.OrderLine, p entities.Partition, now time.Time, cycle *dto.CycleResult) {
	checked := make(map[string]bool)
	for _, line := range lines {
		key := entities.SummaryKey(line.Part, line.Site)
		if checked[key] {
			continue
		}
		checked[key] = true

		forecast := o.forecastFor(line.Part, line.Site, now)
		if forecast <= 0 {
			continue
		}
		_, cumulative, err := o.deps.Ledger.CumulativeByPartSite(ctx, p, line.Part, line.Site)
		if err != nil {
			o.logger.Warn("cumulative demand unavailable", zap.String("part", string(line.Part)), zap.Error(err))
			continue
		}
		if cumulative <= forecast {
			continue
		}

		alert := dto.Alert{
			Title: "Exceeds Monthly Forecast",
			Message: o.printer.Sprintf("Cumulative (%d) > Forecast (%d) by %d",
				int64(cumulative), int64(forecast), int64(cumulative-forecast)),
			Details: fmt.Sprintf("Site: %s, Month: %s", line.NormalizedSite(), p.Key()),
		}
		o.raise(ctx, cycle, "exceeds_forecast", alert, line.Part)
	}
}

// forecastFor returns the month's forecast for part at site, falling back to
// the first record for part at any site
func (o *Orchestrator) forecastFor(part entities.PartNumber, site string, now time.Time) entities.Quantity {
	if o.deps.Forecasts == nil {
		return 0
	}
	rec, ok := o.deps.Forecasts.ForPartSite(part, site)
	if !ok {
		matches := o.deps.Forecasts.ForPart(part)
		if len(matches) == 0 {
			return 0
		}
		rec = matches[0]
	}
	return rec.MonthlyQuantity(now)
}

func (o *Orchestrator) decideAndGenerate(ctx context.Context, fr *dto.FileResult, orders []*entities.PurchaseOrder, now time.Time, cycle *dto.CycleResult) {
	var (
		stockLines    []entities.StockJobLine
		movementLines []entities.MovementLine
		stockParts    []entities.OrderLine
		movementParts []entities.OrderLine
	)

	for _, po := range orders {
		for _, line := range po.Lines {
			forecast := o.forecastFor(line.Part, line.Site, now)
			d := o.deps.Coverage.Decide(ctx, line.Part, line.NormalizedSite(), line.Quantity, forecast)
			fr.Decisions = append(fr.Decisions, d)
			o.metrics.RecordDecision(d.Action.String(), d.Source.String())

			if d.Action == entities.ActionMovement {
				movementLines = append(movementLines, entities.MovementLine{
					OrderNumber:     strings.TrimSpace(line.OrderNumber),
					ItemCode:        d.ItemCode,
					JobNumber:       d.JobNumber,
					Quantity:        line.Quantity,
					Price:           entities.DefaultMovementPrice,
					PriceQty:        entities.DefaultPriceQty,
					UseWIP:          d.UsesWIP(),
					DeliveryAddress: o.movementAddress,
				})
				movementParts = append(movementParts, line)
				continue
			}

			title := "Stock Job"
			if d.Action == entities.ActionRushJob {
				title = "Rush Job"
			}
			cycle.Alerts = append(cycle.Alerts, dto.Alert{
				Title:   title + " needed",
				Message: d.Rationale,
				Details: fmt.Sprintf("Part: %s, Site: %s, PO: %s", line.Part, line.NormalizedSite(), line.OrderNumber),
			})
			o.metrics.RecordAlert("needs_job")

			stockLines = append(stockLines, entities.StockJobLine{
				OrderNumber:     strings.TrimSpace(line.OrderNumber),
				Part:            line.Part,
				Quantity:        d.Quantity,
				Price:           stockJobPrice(line),
				PriceQty:        entities.DefaultPriceQty,
				DeliveryAddress: o.stockAddress,
				DeliveryDate:    line.DueDate,
				POReceived:      now,
				Rush:            d.Action == entities.ActionRushJob,
			})
			stockParts = append(stockParts, line)
		}
	}

	if doc, err := o.deps.Documents.GenerateStockJobs(ctx, stockLines); err != nil {
		o.documentFailed(ctx, fr, cycle, entities.StockJobDocument, stockParts, err)
	} else if doc != nil {
		o.metrics.RecordDocument(doc.Kind.String(), true)
		fr.Documents = append(fr.Documents, *doc)
		for _, line := range stockLines {
			kind := "Stock"
			if line.Rush {
				kind = "Rush"
			}
			o.audit(ctx, entities.AuditEvent{
				Type:        entities.AuditJob,
				Message:     fmt.Sprintf("%s job created: %s", kind, line.Part),
				Details:     fmt.Sprintf("Qty: %d", line.Quantity),
				Part:        line.Part,
				Quantity:    line.Quantity,
				OrderNumber: line.OrderNumber,
				Document:    doc.Name,
			})
		}
	}

	if doc, err := o.deps.Documents.GenerateMovements(ctx, movementLines); err != nil {
		o.documentFailed(ctx, fr, cycle, entities.MovementDocument, movementParts, err)
	} else if doc != nil {
		o.metrics.RecordDocument(doc.Kind.String(), true)
		fr.Documents = append(fr.Documents, *doc)
		for i, line := range movementLines {
			o.audit(ctx, entities.AuditEvent{
				Type:        entities.AuditMovement,
				Message:     fmt.Sprintf("Movement created: %s", movementParts[i].Part),
				Details:     fmt.Sprintf("Qty: %d", line.Quantity),
				Part:        movementParts[i].Part,
				Quantity:    line.Quantity,
				OrderNumber: line.OrderNumber,
				Document:    doc.Name,
			})
		}
	}
}

func (o *Orchestrator) documentFailed(ctx context.Context, fr *dto.FileResult, cycle *dto.CycleResult, kind entities.DocumentKind, lines []entities.OrderLine, err error) {
	o.metrics.RecordDocument(kind.String(), false)
	cycle.Errors = append(cycle.Errors, fmt.Sprintf("%s: %v", fr.Name, err))

	orders := make([]string, 0, len(lines))
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		orders = append(orders, strings.TrimSpace(l.OrderNumber))
		parts = append(parts, string(l.Part))
	}
	o.logger.Error("document generation failed",
		zap.String("file", fr.Name),
		zap.String("kind", kind.String()),
		zap.Strings("orders", orders),
		zap.Strings("parts", parts),
		zap.Error(err))
	o.audit(ctx, entities.AuditEvent{
		Type:    entities.AuditError,
		Message: fmt.Sprintf("XML Generation: %s generation failed", kind),
		Details: fmt.Sprintf("%v (orders: %s; parts: %s)", err, strings.Join(orders, ","), strings.Join(parts, ",")),
		File:    fr.Name,
	})
}

func (o *Orchestrator) raise(ctx context.Context, cycle *dto.CycleResult, kind string, alert dto.Alert, part entities.PartNumber) {
	cycle.Alerts = append(cycle.Alerts, alert)
	o.metrics.RecordAlert(kind)
	o.audit(ctx, entities.AuditEvent{
		Type:    entities.AuditAlert,
		Message: alert.Title + ": " + alert.Message,
		Details: alert.Details,
		Part:    part,
	})
}

func (o *Orchestrator) audit(ctx context.Context, e entities.AuditEvent) {
	if o.deps.Audit == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = o.now()
	}
	o.deps.Audit.Record(ctx, e)
}

// stockJobPrice books the line's unit price per thousand, or the default
func stockJobPrice(line entities.OrderLine) decimal.Decimal {
	if line.UnitPrice.IsPositive() {
		return line.UnitPrice.Mul(decimal.NewFromInt(entities.DefaultPriceQty))
	}
	return entities.DefaultStockJobPrice
}

func intakeLocation(in repositories.Intake) string {
	if l, ok := in.(interface{ OrderDir() string }); ok {
		return l.OrderDir()
	}
	return ""
}
