package coverage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
	"github.com/vsinha/vmi/pkg/infrastructure/repositories/memory"
)

const (
	part = entities.PartNumber("L-61370444-14")
	site = "45FL"
)

type fixture struct {
	fg, wip, secondary *memory.InventoryRepository
	jobs               *memory.JobRepository
	items              *memory.ItemCatalog
}

func newFixture() *fixture {
	return &fixture{
		fg:        memory.NewInventoryRepository(),
		wip:       memory.NewInventoryRepository(),
		secondary: memory.NewInventoryRepository(),
		jobs:      memory.NewJobRepository(),
		items:     memory.NewDerivedItemCatalog(),
	}
}

func (f *fixture) sources() Sources {
	return Sources{FG: f.fg, WIP: f.wip, SecondaryFG: f.secondary, Jobs: f.jobs, Items: f.items}
}

// engines returns a sequential and a fan-out engine over the same sources
func engines(sources Sources) map[string]*Engine {
	return map[string]*Engine{
		"sequential": NewEngine(sources),
		"fan-out":    NewEngine(sources, WithConcurrentFanOut()),
	}
}

func TestEngine_FGTakesPriority(t *testing.T) {
	f := newFixture()
	f.fg.AddStock(part, site, entities.StockRecord{ItemCode: "6137044", JobNumber: "FG-1", Quantity: 2000})
	f.fg.AddStock(part, site, entities.StockRecord{JobNumber: "FG-2", Quantity: 3000})
	f.wip.AddStock(part, site, entities.StockRecord{JobNumber: "W-1", Quantity: 99999})
	f.jobs.AddJob(site, entities.Job{JobNumber: "J1", Part: part, QuantityRemaining: 99999})

	for name, engine := range engines(f.sources()) {
		t.Run(name, func(t *testing.T) {
			d := engine.Decide(context.Background(), part, site, 3000, 1000)
			assert.Equal(t, entities.ActionMovement, d.Action)
			assert.Equal(t, entities.SourceFG, d.Source)
			assert.Equal(t, entities.Quantity(3000), d.Quantity)
			assert.Equal(t, "FG-1", d.JobNumber)
			assert.Equal(t, "6137044", d.ItemCode)
			assert.Equal(t, entities.Quantity(5000), d.Available.FG)
			if name == "sequential" {
				assert.Equal(t, entities.Quantity(0), d.Available.WIP, "later tiers are not evaluated")
			} else {
				assert.Equal(t, entities.Quantity(99999), d.Available.WIP, "every prefetched tier is recorded")
			}
			assert.Equal(t, "FG inventory (5,000) covers order (3,000)", d.Rationale)
			assert.Empty(t, d.Unavailable)
		})
	}
}

func TestEngine_TierOrder(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture)
		source    entities.Source
		job       string
		rationale string
		available entities.Availability
	}{
		{
			name: "WIP when FG is short",
			setup: func(f *fixture) {
				f.fg.AddStock(part, site, entities.StockRecord{Quantity: 500})
				f.wip.AddStock(part, site, entities.StockRecord{JobNumber: "W-1", Quantity: 1000})
			},
			source:    entities.SourceWIP,
			job:       "W-1",
			rationale: "WIP inventory (1,000) covers order (1,000)",
			available: entities.Availability{FG: 500, WIP: 1000},
		},
		{
			name: "secondary FG after WIP",
			setup: func(f *fixture) {
				f.fg.AddStock(part, site, entities.StockRecord{Quantity: 100})
				f.wip.AddStock(part, site, entities.StockRecord{Quantity: 200})
				f.secondary.AddStock(part, site, entities.StockRecord{JobNumber: "S-1", Quantity: 1500})
			},
			source:    entities.SourceSecondaryFG,
			job:       "S-1",
			rationale: "Secondary FG inventory (1,500) covers order (1,000)",
			available: entities.Availability{FG: 100, WIP: 200, SecondaryFG: 1500},
		},
		{
			name: "first open job that fits, not the best fit",
			setup: func(f *fixture) {
				f.jobs.AddJob(site, entities.Job{JobNumber: "J1", ItemCode: "I-1", Part: part, QuantityRemaining: 1200})
				f.jobs.AddJob(site, entities.Job{JobNumber: "J2", ItemCode: "I-2", Part: part, QuantityRemaining: 50000})
				f.jobs.AddJob(site, entities.Job{JobNumber: "J3", ItemCode: "I-3", Part: part, QuantityRemaining: 1000})
				f.jobs.AddMovement(entities.Movement{JobNumber: "J1", Quantity: 300, Status: "ACTIVE"})
				f.jobs.AddMovement(entities.Movement{JobNumber: "J1", Quantity: 700, Status: "CLOSED"})
			},
			source:    entities.SourceJob,
			job:       "J2",
			rationale: "Job J2 has capacity (50,000) for order (1,000)",
			available: entities.Availability{Jobs: 900 + 50000},
		},
	}

	for _, tt := range tests {
		f := newFixture()
		tt.setup(f)
		for name, engine := range engines(f.sources()) {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				d := engine.Decide(context.Background(), part, site, 1000, 0)
				assert.Equal(t, entities.ActionMovement, d.Action)
				assert.Equal(t, tt.source, d.Source)
				assert.Equal(t, tt.job, d.JobNumber)
				assert.Equal(t, entities.Quantity(1000), d.Quantity)
				assert.Equal(t, tt.rationale, d.Rationale)
				assert.Equal(t, tt.available, d.Available)
				assert.NotEmpty(t, d.ItemCode)
			})
		}
	}
}

func TestEngine_JobCapacityNetOfActiveMovements(t *testing.T) {
	f := newFixture()
	f.jobs.AddJob(site, entities.Job{JobNumber: "J1", Part: part, QuantityRemaining: 1000})
	f.jobs.AddMovement(entities.Movement{JobNumber: "J1", Quantity: 300, Status: "PENDING"})

	d := NewEngine(f.sources()).Decide(context.Background(), part, site, 800, 0)
	assert.Equal(t, entities.ActionStockJob, d.Action)
	assert.Equal(t, entities.Quantity(300), d.ExistingMovements)
	assert.Equal(t, entities.Quantity(700), d.Available.Jobs)

	d = NewEngine(f.sources()).Decide(context.Background(), part, site, 700, 0)
	assert.Equal(t, entities.SourceJob, d.Source)
	assert.Equal(t, "6137044", d.ItemCode, "falls back to the item catalog")
}

func TestEngine_NewProduction(t *testing.T) {
	tests := []struct {
		name      string
		orderQty  entities.Quantity
		forecast  entities.Quantity
		action    entities.Action
		quantity  entities.Quantity
		rationale string
	}{
		{"order exceeds forecast", 1200, 1000, entities.ActionRushJob, 1200, "Order (1,200) exceeds forecast (1,000). Rush job recommended."},
		{"forecast exceeds order", 800, 1000, entities.ActionStockJob, 1000, "No coverage found. Recommend new job for 1,000 (forecast: 1,000)"},
		{"order equals forecast", 1000, 1000, entities.ActionStockJob, 1000, "No coverage found. Recommend new job for 1,000 (forecast: 1,000)"},
		{"no forecast", 2500, 0, entities.ActionStockJob, 2500, "No coverage found. Recommend new job for 2,500 (forecast: 0)"},
	}

	for _, tt := range tests {
		for name, engine := range engines(newFixture().sources()) {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				d := engine.Decide(context.Background(), part, site, tt.orderQty, tt.forecast)
				assert.Equal(t, tt.action, d.Action)
				assert.Equal(t, entities.SourceNew, d.Source)
				assert.Equal(t, tt.quantity, d.Quantity)
				assert.Equal(t, tt.rationale, d.Rationale)
				assert.Empty(t, d.JobNumber)
				assert.Equal(t, entities.Availability{}, d.Available)
			})
		}
	}
}

func TestEngine_UnavailableSourcesCountAsZero(t *testing.T) {
	down := repositories.InventorySourceFunc(func(ctx context.Context, p entities.PartNumber, s string) ([]entities.StockRecord, error) {
		return nil, fmt.Errorf("fg: %w", repositories.ErrSourceUnavailable)
	})
	f := newFixture()
	f.secondary.AddStock(part, site, entities.StockRecord{JobNumber: "S-1", Quantity: 5000})

	sources := Sources{FG: down, SecondaryFG: f.secondary}
	for name, engine := range engines(sources) {
		t.Run(name, func(t *testing.T) {
			d := engine.Decide(context.Background(), part, site, 1000, 0)
			assert.Equal(t, entities.SourceSecondaryFG, d.Source)
			assert.Equal(t, []entities.Source{entities.SourceFG, entities.SourceWIP}, d.Unavailable)
			assert.Empty(t, d.ItemCode, "no catalog configured")
		})
	}

	t.Run("nothing configured", func(t *testing.T) {
		d := NewEngine(Sources{}).Decide(context.Background(), part, site, 1200, 1000)
		assert.Equal(t, entities.ActionRushJob, d.Action)
		assert.Equal(t, []entities.Source{
			entities.SourceFG, entities.SourceWIP, entities.SourceSecondaryFG, entities.SourceJob,
		}, d.Unavailable)
	})
}

type brokenMovements struct {
	*memory.JobRepository
	err error
}

func (b brokenMovements) Movements(ctx context.Context, jobNumber string) ([]entities.Movement, error) {
	if jobNumber == "J1" {
		return nil, b.err
	}
	return b.JobRepository.Movements(ctx, jobNumber)
}

func TestEngine_MovementLookupFailures(t *testing.T) {
	f := newFixture()
	f.jobs.AddJob(site, entities.Job{JobNumber: "J1", Part: part, QuantityRemaining: 5000})
	f.jobs.AddJob(site, entities.Job{JobNumber: "J2", Part: part, QuantityRemaining: 5000})

	t.Run("unavailable skips the job", func(t *testing.T) {
		jobs := brokenMovements{JobRepository: f.jobs, err: errors.New("connection reset")}
		d := NewEngine(Sources{Jobs: jobs}).Decide(context.Background(), part, site, 1000, 0)
		assert.Equal(t, entities.SourceJob, d.Source)
		assert.Equal(t, "J2", d.JobNumber)
		assert.Contains(t, d.Unavailable, entities.SourceJob)
	})

	t.Run("not configured counts as no movements", func(t *testing.T) {
		jobs := brokenMovements{JobRepository: f.jobs, err: repositories.ErrNotConfigured}
		d := NewEngine(Sources{Jobs: jobs}).Decide(context.Background(), part, site, 1000, 0)
		assert.Equal(t, "J1", d.JobNumber)
		assert.NotContains(t, d.Unavailable, entities.SourceJob)
	})
}

func TestEngine_FanOutQueriesEveryTierOnce(t *testing.T) {
	calls := make(chan string, 8)
	counting := func(name string, qty entities.Quantity) repositories.InventorySource {
		return repositories.InventorySourceFunc(func(ctx context.Context, p entities.PartNumber, s string) ([]entities.StockRecord, error) {
			calls <- name
			return []entities.StockRecord{{Quantity: qty}}, nil
		})
	}

	engine := NewEngine(Sources{
		FG:          counting("fg", 0),
		WIP:         counting("wip", 5000),
		SecondaryFG: counting("secondary", 9000),
	}, WithConcurrentFanOut())

	d := engine.Decide(context.Background(), part, site, 1000, 0)
	close(calls)
	require.Equal(t, entities.SourceWIP, d.Source)
	assert.Equal(t, entities.Availability{FG: 0, WIP: 5000, SecondaryFG: 9000}, d.Available, "every prefetched tier is recorded")

	f := newFixture()
	f.wip.AddStock(part, site, entities.StockRecord{Quantity: 5000})
	f.secondary.AddStock(part, site, entities.StockRecord{Quantity: 9000})
	sequential := NewEngine(Sources{FG: f.fg, WIP: f.wip, SecondaryFG: f.secondary}).
		Decide(context.Background(), part, site, 1000, 0)
	assert.Equal(t, entities.Availability{WIP: 5000}, sequential.Available, "sequential stops at the selected tier")

	var seen []string
	for c := range calls {
		seen = append(seen, c)
	}
	assert.ElementsMatch(t, []string{"fg", "wip", "secondary"}, seen)
}
