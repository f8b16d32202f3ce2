package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
	"github.com/vsinha/vmi/pkg/infrastructure/repositories/memory"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	failing := repositories.InventorySourceFunc(func(ctx context.Context, p entities.PartNumber, s string) ([]entities.StockRecord, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection refused")
	})

	var transitions []string
	b := NewBreaker(BreakerConfig{Name: "fg", FailureThreshold: 3, OpenTimeout: time.Hour}, nil,
		func(name string, from, to gobreaker.State) { transitions = append(transitions, to.String()) })
	src := GuardInventory(failing, b)

	for i := 0; i < 3; i++ {
		_, err := src.Query(context.Background(), "P", "S")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, []string{"open"}, transitions)

	_, err := src.Query(context.Background(), "P", "S")
	assert.True(t, errors.Is(err, repositories.ErrSourceUnavailable))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "open breaker short-circuits")
}

func TestBreaker_NotConfiguredDoesNotTrip(t *testing.T) {
	unconfigured := repositories.InventorySourceFunc(func(ctx context.Context, p entities.PartNumber, s string) ([]entities.StockRecord, error) {
		return nil, repositories.ErrNotConfigured
	})
	b := NewBreaker(BreakerConfig{Name: "wip", FailureThreshold: 1}, nil)
	src := GuardInventory(unconfigured, b)

	for i := 0; i < 5; i++ {
		_, err := src.Query(context.Background(), "P", "S")
		assert.True(t, errors.Is(err, repositories.ErrNotConfigured))
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_QueryTimeout(t *testing.T) {
	slow := repositories.InventorySourceFunc(func(ctx context.Context, p entities.PartNumber, s string) ([]entities.StockRecord, error) {
		time.Sleep(200 * time.Millisecond)
		return []entities.StockRecord{{Quantity: 1}}, nil
	})
	b := NewBreaker(BreakerConfig{Name: "secondary", QueryTimeout: 10 * time.Millisecond}, nil)

	_, err := GuardInventory(slow, b).Query(context.Background(), "P", "S")
	require.Error(t, err)
	assert.True(t, errors.Is(err, repositories.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "timed out")
}

func TestGuards_PassThrough(t *testing.T) {
	ctx := context.Background()
	b := NewBreaker(DefaultBreakerConfig("erp"), nil)

	inv := memory.NewInventoryRepository()
	inv.AddStock("P", "S", entities.StockRecord{JobNumber: "FG-1", Quantity: 10})
	records, err := GuardInventory(inv, b).Query(ctx, "P", "S")
	require.NoError(t, err)
	assert.Equal(t, entities.Quantity(10), records[0].Quantity)

	jobs := memory.NewJobRepository()
	jobs.AddJob("S", entities.Job{JobNumber: "J1", Part: "P", QuantityRemaining: 100})
	jobs.AddMovement(entities.Movement{JobNumber: "J1", Quantity: 5, Status: "OPEN"})
	guarded := GuardJobs(jobs, b)
	open, err := guarded.OpenJobs(ctx, "P", "S")
	require.NoError(t, err)
	assert.Len(t, open, 1)
	movements, err := guarded.Movements(ctx, "J1")
	require.NoError(t, err)
	assert.Len(t, movements, 1)

	items := memory.NewDerivedItemCatalog()
	code, err := GuardItems(items, b).ItemCode(ctx, "L-61370444-14")
	require.NoError(t, err)
	assert.Equal(t, "6137044", code)

	assert.Nil(t, GuardInventory(nil, b))
	assert.Nil(t, GuardJobs(nil, b))
	assert.Nil(t, GuardItems(nil, b))
}
