package sql

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

type call struct {
	query string
	args  map[string]interface{}
}

// fakeRunner answers queries from canned rows keyed by query text
type fakeRunner struct {
	calls     []call
	stock     map[string][]stockRow
	jobs      []jobRow
	movements []movementRow
	items     []itemRow
	err       error
}

func (f *fakeRunner) Scan(ctx context.Context, query string, args map[string]interface{}, dest interface{}) error {
	f.calls = append(f.calls, call{query: query, args: args})
	if f.err != nil {
		return f.err
	}
	switch d := dest.(type) {
	case *[]stockRow:
		*d = f.stock[query]
	case *[]jobRow:
		*d = f.jobs
	case *[]movementRow:
		*d = f.movements
	case *[]itemRow:
		*d = f.items
	}
	return nil
}

var queries = Queries{
	FGInventory:  "SELECT fg",
	WIPInventory: "SELECT wip",
	OpenJobs:     "SELECT jobs",
	Movements:    "SELECT movements",
	ItemMapping:  "SELECT items",
}

func TestSource_StockQueries(t *testing.T) {
	runner := &fakeRunner{stock: map[string][]stockRow{
		"SELECT fg":  {{ItemCode: "6137044", JobNumber: "FG-1", Quantity: 2000, Location: "A1"}},
		"SELECT wip": {{JobNumber: "W-1", Quantity: 500}},
	}}
	src := NewSource(runner, queries, nil)
	ctx := context.Background()

	fg, err := src.FG().Query(ctx, "L-61370444-14", " 45FL ")
	require.NoError(t, err)
	require.Len(t, fg, 1)
	assert.Equal(t, entities.StockRecord{ItemCode: "6137044", JobNumber: "FG-1", Quantity: 2000, Location: "A1"}, fg[0])
	assert.Equal(t, map[string]interface{}{"part_number": "L-61370444-14", "site": "45FL"}, runner.calls[0].args)

	wip, err := src.WIP().Query(ctx, "L-61370444-14", "45FL")
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(500), wip[0].Quantity)

	_, err = src.SecondaryFG().Query(ctx, "L-61370444-14", "45FL")
	assert.True(t, errors.Is(err, repositories.ErrNotConfigured))
	assert.Len(t, runner.calls, 2, "unconfigured queries never reach the database")
}

func TestSource_JobsAndMovements(t *testing.T) {
	runner := &fakeRunner{
		jobs: []jobRow{{JobNumber: "J1", ItemCode: "I1", PartNumber: "P", QuantityOrdered: 5000, QuantityProduced: 1000, QuantityRemaining: 4000, Status: "OPEN"}},
		movements: []movementRow{
			{MovementID: "M1", Quantity: 300, Status: "active "},
			{MovementID: "M2", JobNumber: "J1", Quantity: 700, Status: "CLOSED"},
		},
	}
	src := NewSource(runner, queries, nil)
	ctx := context.Background()

	jobs, err := src.OpenJobs(ctx, "P", "45FL")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, entities.Quantity(4000), jobs[0].QuantityRemaining)

	movements, err := src.Movements(ctx, "J1")
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, "J1", movements[0].JobNumber, "job number defaults to the one asked for")
	assert.True(t, movements[0].IsActive())
	assert.False(t, movements[1].IsActive())
	assert.Equal(t, map[string]interface{}{"job_number": "J1"}, runner.calls[1].args)
}

func TestSource_ItemCode(t *testing.T) {
	src := NewSource(&fakeRunner{items: []itemRow{{PartNumber: "P", ItemCode: ""}, {PartNumber: "P", ItemCode: "6137044"}}}, queries, nil)
	code, err := src.ItemCode(context.Background(), "P")
	require.NoError(t, err)
	assert.Equal(t, "6137044", code)

	_, err = NewSource(&fakeRunner{}, queries, nil).ItemCode(context.Background(), "P")
	assert.Error(t, err)
}

func TestSource_Failures(t *testing.T) {
	src := NewSource(&fakeRunner{err: errors.New("connection refused")}, queries, nil)
	_, err := src.OpenJobs(context.Background(), "P", "45FL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, repositories.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "connection refused")

	_, err = NewSource(nil, queries, nil).Movements(context.Background(), "J1")
	assert.True(t, errors.Is(err, repositories.ErrNotConfigured))
}
