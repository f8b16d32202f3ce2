package repositories

import (
	"context"

	"github.com/vsinha/vmi/pkg/domain/entities"
)

// LedgerRepository persists demand ledger entries partitioned by calendar month.
// Appends must be crash-safe and Entries must return entries in append order.
type LedgerRepository interface {
	Append(ctx context.Context, partition entities.Partition, entries []*entities.LedgerEntry) error
	Entries(ctx context.Context, partition entities.Partition) ([]*entities.LedgerEntry, error)
	HasOrder(ctx context.Context, partition entities.Partition, orderNumber string) (bool, error)
}

// ForecastProvider answers forecast lookups from the most recently loaded forecast
type ForecastProvider interface {
	ForPartSite(part entities.PartNumber, site string) (*entities.ForecastRecord, bool)
	ForPart(part entities.PartNumber) []*entities.ForecastRecord
}

// ForecastLoader reads forecast records from a tabular file
type ForecastLoader interface {
	Load(ctx context.Context, path string) ([]*entities.ForecastRecord, error)
}
