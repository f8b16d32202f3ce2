package coverage

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

// Sources are the collaborators consulted for one decision. A nil source is
// treated as not configured.
type Sources struct {
	FG          repositories.InventorySource
	WIP         repositories.InventorySource
	SecondaryFG repositories.InventorySource
	Jobs        repositories.JobSource
	Items       repositories.ItemCatalog
}

// Engine decides how each order line is covered: pull from finished goods,
// WIP, secondary finished goods or an open job, or start new production.
type Engine struct {
	sources    Sources
	concurrent bool
	logger     *zap.Logger
	printer    *message.Printer
}

// Option configures an Engine
type Option func(*Engine)

// WithConcurrentFanOut queries every tier at once before selecting.
// Selection still walks the tiers in priority order.
func WithConcurrentFanOut() Option {
	return func(e *Engine) { e.concurrent = true }
}

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a coverage engine over sources
func NewEngine(sources Sources, opts ...Option) *Engine {
	e := &Engine{
		sources: sources,
		logger:  zap.NewNop(),
		printer: message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type stockTier struct {
	source entities.Source
	label  string
	inv    repositories.InventorySource
}

type stockResult struct {
	records []entities.StockRecord
	err     error
}

type jobResult struct {
	jobs []entities.Job
	err  error
}

// lookups answers tier queries either live or from a prefetch
type lookups struct {
	stock map[entities.Source]stockResult
	jobs  *jobResult
}

func (e *Engine) tiers() []stockTier {
	return []stockTier{
		{entities.SourceFG, "FG inventory", e.sources.FG},
		{entities.SourceWIP, "WIP inventory", e.sources.WIP},
		{entities.SourceSecondaryFG, "Secondary FG inventory", e.sources.SecondaryFG},
	}
}

// Decide returns the coverage decision for orderQty of part at site.
// Collaborator failures count as zero availability and never fail the decision.
func (e *Engine) Decide(ctx context.Context, part entities.PartNumber, site string, orderQty, forecastQty entities.Quantity) entities.CoverageDecision {
	d := entities.CoverageDecision{
		Part:             part,
		Site:             site,
		OrderQuantity:    orderQty,
		ForecastQuantity: forecastQty,
	}

	var pre *lookups
	if e.concurrent {
		pre = e.prefetch(ctx, part, site)
		// Every tier was queried, so every tier's total is observed
		for _, tier := range e.tiers() {
			if res, ok := pre.stock[tier.source]; ok && res.err == nil {
				setAvailable(&d, tier.source, sumStock(res.records))
			}
		}
	}

	for _, tier := range e.tiers() {
		records, err := e.queryStock(ctx, pre, tier, part, site)
		if err != nil {
			e.markUnavailable(&d, tier.source, err)
			continue
		}

		total := sumStock(records)
		setAvailable(&d, tier.source, total)
		if total >= orderQty {
			d.Action = entities.ActionMovement
			d.Source = tier.source
			d.Quantity = orderQty
			d.JobNumber, d.ItemCode = firstReference(records)
			d.Rationale = e.printer.Sprintf("%s (%d) covers order (%d)", tier.label, int64(total), int64(orderQty))
			e.resolveItemCode(ctx, &d)
			return d
		}
	}

	if job, ok := e.firstFitJob(ctx, pre, &d, part, site, orderQty); ok {
		d.Action = entities.ActionMovement
		d.Source = entities.SourceJob
		d.Quantity = orderQty
		d.JobNumber = job.JobNumber
		d.ItemCode = job.ItemCode
		d.Rationale = e.printer.Sprintf("Job %s has capacity (%d) for order (%d)",
			job.JobNumber, int64(job.QuantityRemaining-d.ExistingMovements), int64(orderQty))
		e.resolveItemCode(ctx, &d)
		return d
	}

	e.newProduction(&d, orderQty, forecastQty)
	return d
}

func (e *Engine) newProduction(d *entities.CoverageDecision, orderQty, forecastQty entities.Quantity) {
	jobQty := orderQty
	if forecastQty > 0 {
		jobQty = entities.Max(orderQty, forecastQty)
	}

	d.Source = entities.SourceNew
	d.Quantity = jobQty
	d.JobNumber = ""
	d.ItemCode = ""

	if forecastQty > 0 && orderQty > forecastQty {
		d.Action = entities.ActionRushJob
		d.Rationale = e.printer.Sprintf("Order (%d) exceeds forecast (%d). Rush job recommended.", int64(orderQty), int64(forecastQty))
		return
	}
	d.Action = entities.ActionStockJob
	d.Rationale = e.printer.Sprintf("No coverage found. Recommend new job for %d (forecast: %d)", int64(jobQty), int64(forecastQty))
}

// firstFitJob walks open jobs in the order the source returned them and picks
// the first whose remaining quantity less active movements covers orderQty.
// d.ExistingMovements ends up holding the movements of the selected job.
func (e *Engine) firstFitJob(ctx context.Context, pre *lookups, d *entities.CoverageDecision, part entities.PartNumber, site string, orderQty entities.Quantity) (entities.Job, bool) {
	jobs, err := e.queryJobs(ctx, pre, part, site)
	if err != nil {
		e.markUnavailable(d, entities.SourceJob, err)
		return entities.Job{}, false
	}

	for _, job := range jobs {
		booked, err := e.activeMovements(ctx, job.JobNumber)
		if err != nil {
			e.markUnavailable(d, entities.SourceJob, err)
			continue
		}

		available := job.QuantityRemaining - booked
		d.ExistingMovements = booked
		if available > 0 {
			d.Available.Jobs += available
		}
		if available >= orderQty {
			return job, true
		}
	}
	return entities.Job{}, false
}

func (e *Engine) activeMovements(ctx context.Context, jobNumber string) (entities.Quantity, error) {
	movements, err := e.sources.Jobs.Movements(ctx, jobNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrNotConfigured) {
			return 0, nil
		}
		return 0, err
	}

	var total entities.Quantity
	for _, m := range movements {
		if m.IsActive() {
			total += m.Quantity
		}
	}
	return total, nil
}

func (e *Engine) queryStock(ctx context.Context, pre *lookups, tier stockTier, part entities.PartNumber, site string) ([]entities.StockRecord, error) {
	if pre != nil {
		r := pre.stock[tier.source]
		return r.records, r.err
	}
	if tier.inv == nil {
		return nil, repositories.ErrNotConfigured
	}
	return tier.inv.Query(ctx, part, site)
}

func (e *Engine) queryJobs(ctx context.Context, pre *lookups, part entities.PartNumber, site string) ([]entities.Job, error) {
	if pre != nil {
		return pre.jobs.jobs, pre.jobs.err
	}
	if e.sources.Jobs == nil {
		return nil, repositories.ErrNotConfigured
	}
	return e.sources.Jobs.OpenJobs(ctx, part, site)
}

// prefetch issues every tier query at once. Results are keyed by tier so
// selection order does not depend on completion order.
func (e *Engine) prefetch(ctx context.Context, part entities.PartNumber, site string) *lookups {
	tiers := e.tiers()
	results := make([]stockResult, len(tiers))
	jobs := &jobResult{}

	var g errgroup.Group
	for i, tier := range tiers {
		g.Go(func() error {
			if tier.inv == nil {
				results[i] = stockResult{err: repositories.ErrNotConfigured}
				return nil
			}
			records, err := tier.inv.Query(ctx, part, site)
			results[i] = stockResult{records: records, err: err}
			return nil
		})
	}
	g.Go(func() error {
		if e.sources.Jobs == nil {
			jobs.err = repositories.ErrNotConfigured
			return nil
		}
		jobs.jobs, jobs.err = e.sources.Jobs.OpenJobs(ctx, part, site)
		return nil
	})
	_ = g.Wait()

	pre := &lookups{stock: make(map[entities.Source]stockResult, len(tiers)), jobs: jobs}
	for i, tier := range tiers {
		pre.stock[tier.source] = results[i]
	}
	return pre
}

func (e *Engine) resolveItemCode(ctx context.Context, d *entities.CoverageDecision) {
	if d.ItemCode != "" || e.sources.Items == nil {
		return
	}
	code, err := e.sources.Items.ItemCode(ctx, d.Part)
	if err != nil {
		e.logger.Warn("no item code for part",
			zap.String("part", string(d.Part)),
			zap.Error(err))
		return
	}
	d.ItemCode = code
}

func (e *Engine) markUnavailable(d *entities.CoverageDecision, source entities.Source, err error) {
	for _, s := range d.Unavailable {
		if s == source {
			return
		}
	}
	d.Unavailable = append(d.Unavailable, source)

	level := e.logger.Warn
	if errors.Is(err, repositories.ErrNotConfigured) {
		level = e.logger.Debug
	}
	level("coverage source unavailable",
		zap.String("source", source.String()),
		zap.String("part", string(d.Part)),
		zap.String("site", d.Site),
		zap.Error(err))
}

func setAvailable(d *entities.CoverageDecision, source entities.Source, qty entities.Quantity) {
	switch source {
	case entities.SourceFG:
		d.Available.FG = qty
	case entities.SourceWIP:
		d.Available.WIP = qty
	case entities.SourceSecondaryFG:
		d.Available.SecondaryFG = qty
	}
}

func sumStock(records []entities.StockRecord) entities.Quantity {
	var total entities.Quantity
	for _, r := range records {
		total += r.Quantity
	}
	return total
}

func firstReference(records []entities.StockRecord) (jobNumber, itemCode string) {
	for _, r := range records {
		if jobNumber == "" {
			jobNumber = r.JobNumber
		}
		if itemCode == "" {
			itemCode = r.ItemCode
		}
	}
	return jobNumber, itemCode
}
