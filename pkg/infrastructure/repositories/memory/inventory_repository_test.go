package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/vmi/pkg/domain/entities"
)

func TestInventoryRepository_Query(t *testing.T) {
	ctx := context.Background()
	repo := NewInventoryRepository()
	repo.AddStock("PART-A", "45FL", entities.StockRecord{ItemCode: "I1", JobNumber: "J1", Quantity: 100})
	repo.AddStock("PART-A", "45FL ", entities.StockRecord{ItemCode: "I1", JobNumber: "J2", Quantity: 50})
	repo.AddStock("PART-A", "46FL", entities.StockRecord{ItemCode: "I1", JobNumber: "J3", Quantity: 999})

	records, err := repo.Query(ctx, "PART-A", "45FL")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "J1", records[0].JobNumber)
	assert.Equal(t, "J2", records[1].JobNumber)

	records, err = repo.Query(ctx, "PART-B", "45FL")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestJobRepository_OpenJobsAndMovements(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository()
	repo.AddJob("45FL", entities.Job{JobNumber: "J1", Part: "PART-A", QuantityRemaining: 1000})
	repo.AddJob("45FL", entities.Job{JobNumber: "J2", Part: "PART-A", QuantityRemaining: 5000})
	repo.AddMovement(entities.Movement{JobNumber: "J1", Quantity: 300, Status: "ACTIVE"})

	jobs, err := repo.OpenJobs(ctx, "PART-A", "45FL")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "J1", jobs[0].JobNumber)

	movements, err := repo.Movements(ctx, "J1")
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, entities.Quantity(300), movements[0].Quantity)

	movements, err = repo.Movements(ctx, "J2")
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestLedgerRepository_AppendAndRead(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository()
	nov := entities.Partition{Year: 2025, Month: time.November}
	ts := time.Date(2025, 11, 19, 7, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, nov, []*entities.LedgerEntry{
		{OrderNumber: "907465", Part: "PART-A", Site: "45FL", Quantity: 100, QuantityRounded: 500, Timestamp: ts},
		{OrderNumber: "907465", Part: "PART-B", Site: "45FL", Quantity: 600, QuantityRounded: 1000, Timestamp: ts},
	}))

	entries, err := repo.Entries(ctx, nov)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entities.PartNumber("PART-A"), entries[0].Part)

	entries[0].Quantity = 1
	again, _ := repo.Entries(ctx, nov)
	assert.Equal(t, entities.Quantity(100), again[0].Quantity, "entries must be copies")

	ok, err := repo.HasOrder(ctx, nov, "907465")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.HasOrder(ctx, nov.Next(), "907465")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestForecastRepository_Lookup(t *testing.T) {
	repo := NewForecastRepository()
	repo.Replace("forecast.xlsx", []*entities.ForecastRecord{
		{Part: "PART-A", Site: "45FL", YearlyTotal: 12000},
		{Part: "PART-A", Site: "46FL", YearlyTotal: 2400},
	})

	rec, ok := repo.ForPartSite("PART-A", " 46FL")
	require.True(t, ok)
	assert.Equal(t, entities.Quantity(2400), rec.YearlyTotal)

	_, ok = repo.ForPartSite("PART-A", "47FL")
	assert.False(t, ok)

	assert.Len(t, repo.ForPart("PART-A"), 2)
	assert.Empty(t, repo.ForPart("PART-Z"))
	assert.Equal(t, "forecast.xlsx", repo.Source())
	assert.Equal(t, 2, repo.Len())
}
