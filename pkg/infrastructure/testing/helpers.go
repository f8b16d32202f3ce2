package testing

import (
	"os"
	"path/filepath"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/infrastructure/repositories/memory"
)

// LabelFeed is a one-order feed for site 45FL with two label lines
const LabelFeed = "45FL907465H111925CLFDB\n" +
	"45FL907465D  1L-61370444-14        3000EA00000.0125011/30/2025  A\n" +
	"45FL907465D  2L-61370445-14        2500EA00000.0000011/30/2025  A\n"

// Scenario holds in-memory ERP sources for coverage tests
type Scenario struct {
	FG          *memory.InventoryRepository
	WIP         *memory.InventoryRepository
	SecondaryFG *memory.InventoryRepository
	Jobs        *memory.JobRepository
	Items       *memory.ItemCatalog
	Forecasts   *memory.ForecastRepository
}

// NewScenario creates empty sources with a derived item catalog
func NewScenario() *Scenario {
	return &Scenario{
		FG:          memory.NewInventoryRepository(),
		WIP:         memory.NewInventoryRepository(),
		SecondaryFG: memory.NewInventoryRepository(),
		Jobs:        memory.NewJobRepository(),
		Items:       memory.NewDerivedItemCatalog(),
		Forecasts:   memory.NewForecastRepository(),
	}
}

// BuildLabelScenario covers one part per tier at site 45FL:
//
//	L-61370444-14  FG 5,000 on FG-1
//	L-61370445-14  WIP 800 on W-7, too little for a 1,000 order
//	L-61370446-14  secondary FG 2,000 on S-3
//	L-61370447-14  job J-9 with 4,000 remaining, 1,500 already moving
//	L-61370448-14  nothing, forecast 1,000 for 2025-11 and 2025-12
func BuildLabelScenario() *Scenario {
	s := NewScenario()
	const site = "45FL"

	s.FG.AddStock("L-61370444-14", site, entities.StockRecord{ItemCode: "6137044", JobNumber: "FG-1", Quantity: 5000})
	s.WIP.AddStock("L-61370445-14", site, entities.StockRecord{JobNumber: "W-7", Quantity: 800})
	s.SecondaryFG.AddStock("L-61370446-14", site, entities.StockRecord{JobNumber: "S-3", Quantity: 2000})

	s.Jobs.AddJob(site, entities.Job{
		JobNumber:         "J-9",
		ItemCode:          "6137047",
		Part:              "L-61370447-14",
		QuantityOrdered:   6000,
		QuantityProduced:  2000,
		QuantityRemaining: 4000,
		Status:            "OPEN",
	})
	s.Jobs.AddMovement(entities.Movement{JobNumber: "J-9", Quantity: 1500, Status: "ACTIVE"})

	s.Forecasts.Replace("scenario", []*entities.ForecastRecord{{
		Part:        "L-61370448-14",
		Site:        site,
		YearlyTotal: 12000,
		Monthly:     map[string]entities.Quantity{"202511": 1000, "202512": 1000},
	}})
	return s
}

// WriteFeed drops content into dir as name and returns its path
func WriteFeed(dir, name, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, []byte(content), 0o644)
}
