package repositories

import (
	"context"

	"github.com/vsinha/vmi/pkg/domain/entities"
)

// InventorySource reports on-hand stock for one coverage tier
type InventorySource interface {
	Query(ctx context.Context, part entities.PartNumber, site string) ([]entities.StockRecord, error)
}

// JobSource reports open production jobs and the movements booked against them
type JobSource interface {
	OpenJobs(ctx context.Context, part entities.PartNumber, site string) ([]entities.Job, error)
	Movements(ctx context.Context, jobNumber string) ([]entities.Movement, error)
}

// InventorySourceFunc adapts a function to InventorySource
type InventorySourceFunc func(ctx context.Context, part entities.PartNumber, site string) ([]entities.StockRecord, error)

// Query calls f
func (f InventorySourceFunc) Query(ctx context.Context, part entities.PartNumber, site string) ([]entities.StockRecord, error) {
	return f(ctx, part, site)
}
