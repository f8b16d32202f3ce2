package memory

import (
	"context"
	"sync"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

// LedgerRepository provides in-memory ledger storage keyed by month partition
type LedgerRepository struct {
	mu         sync.RWMutex
	partitions map[entities.Partition][]entities.LedgerEntry
}

// NewLedgerRepository creates a new in-memory ledger repository
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{
		partitions: make(map[entities.Partition][]entities.LedgerEntry),
	}
}

// Verify interface compliance
var _ repositories.LedgerRepository = (*LedgerRepository)(nil)

// Append adds entries to the end of a partition
func (r *LedgerRepository) Append(ctx context.Context, partition entities.Partition, entries []*entities.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range entries {
		r.partitions[partition] = append(r.partitions[partition], *entry)
	}
	return nil
}

// Entries returns copies of a partition's entries in append order
func (r *LedgerRepository) Entries(ctx context.Context, partition entities.Partition) ([]*entities.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.partitions[partition]
	entries := make([]*entities.LedgerEntry, 0, len(stored))
	for i := range stored {
		entry := stored[i]
		entries = append(entries, &entry)
	}
	return entries, nil
}

// HasOrder reports whether any entry in the partition carries orderNumber
func (r *LedgerRepository) HasOrder(ctx context.Context, partition entities.Partition, orderNumber string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.partitions[partition] {
		if entry.OrderNumber == orderNumber {
			return true, nil
		}
	}
	return false, nil
}
