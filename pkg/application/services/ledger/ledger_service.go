package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

// WriteError reports demand that could not be persisted. The caller must not
// acknowledge the input the demand came from.
type WriteError struct {
	Partition   entities.Partition
	OrderNumber string
	Err         error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to record order %s in %s: %v", e.OrderNumber, e.Partition.Key(), e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Service is the append-only demand ledger. Appends to one partition are
// serialized; the duplicate-order guard is scoped to a single partition.
type Service struct {
	repo     repositories.LedgerRepository
	packSize entities.Quantity
	now      func() time.Time
	newID    func() string
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Service
type Option func(*Service)

// WithClock sets the clock used for "this month" lookups
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPackSize sets the pack size used to round recorded quantities
func WithPackSize(pack entities.Quantity) Option {
	return func(s *Service) {
		if pack > 0 {
			s.packSize = pack
		}
	}
}

// WithLogger sets the service logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a ledger over repo
func NewService(repo repositories.LedgerRepository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		packSize: entities.DefaultPackSize,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		logger:   zap.NewNop(),
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PackSize returns the pack size recorded quantities are rounded to
func (s *Service) PackSize() entities.Quantity {
	return s.packSize
}

func (s *Service) partitionLock(p entities.Partition) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[p.Key()]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[p.Key()] = lock
	}
	return lock
}

// Record appends one entry to the partition of ts. It does not consult the
// duplicate guard; use RecordOrder for idempotent ingestion.
func (s *Service) Record(ctx context.Context, orderNumber string, part entities.PartNumber, site string, qty, rounded entities.Quantity, ts time.Time) (*entities.LedgerEntry, error) {
	entry, err := entities.NewLedgerEntry(s.newID(), ts, orderNumber, part, site, qty, rounded)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger entry: %w", err)
	}

	p := entry.Partition()
	lock := s.partitionLock(p)
	lock.Lock()
	defer lock.Unlock()

	if err := s.repo.Append(ctx, p, []*entities.LedgerEntry{entry}); err != nil {
		return nil, &WriteError{Partition: p, OrderNumber: entry.OrderNumber, Err: err}
	}
	return entry, nil
}

// RecordOrder appends every line of po to the partition of ts, unless the
// order number is already in that partition. Either all lines are recorded or
// none are. It reports whether the order was recorded.
func (s *Service) RecordOrder(ctx context.Context, po *entities.PurchaseOrder, ts time.Time) (bool, error) {
	batch, err := s.RecordOrders(ctx, []*entities.PurchaseOrder{po}, ts)
	if err != nil {
		return false, err
	}
	return len(batch.Recorded) == 1, nil
}

// BatchResult lists what RecordOrders did with each order number
type BatchResult struct {
	// Recorded holds the new orders, blocks sharing a number merged into one
	Recorded []*entities.PurchaseOrder
	Skipped  []string
}

// RecordOrders records the orders read from one input as a single append to
// the partition of ts. Orders sharing a number are merged, and numbers already
// in the partition are skipped, all checked before anything is written. Either
// every new order is recorded or none is.
func (s *Service) RecordOrders(ctx context.Context, orders []*entities.PurchaseOrder, ts time.Time) (*BatchResult, error) {
	p := entities.PartitionOf(ts)
	merged := MergeOrders(orders)

	lock := s.partitionLock(p)
	lock.Lock()
	defer lock.Unlock()

	batch := &BatchResult{}
	var entries []*entities.LedgerEntry
	var numbers []string
	for _, po := range merged {
		orderNumber := po.Header.OrderNumber
		recorded, err := s.repo.HasOrder(ctx, p, orderNumber)
		if err != nil {
			return nil, &WriteError{Partition: p, OrderNumber: orderNumber, Err: err}
		}
		if recorded {
			s.logger.Debug("order already recorded",
				zap.String("order", orderNumber),
				zap.String("partition", p.Key()))
			batch.Skipped = append(batch.Skipped, orderNumber)
			continue
		}

		for _, line := range po.Lines {
			entry, err := entities.NewLedgerEntry(s.newID(), ts, orderNumber, line.Part, line.Site, line.Quantity, line.RoundedTo(s.packSize))
			if err != nil {
				return nil, fmt.Errorf("invalid ledger entry for order %s line %d: %w", orderNumber, line.LineNumber, err)
			}
			entries = append(entries, entry)
		}
		numbers = append(numbers, orderNumber)
		batch.Recorded = append(batch.Recorded, po)
	}

	if len(entries) == 0 {
		return batch, nil
	}
	if err := s.repo.Append(ctx, p, entries); err != nil {
		return nil, &WriteError{Partition: p, OrderNumber: strings.Join(numbers, ","), Err: err}
	}

	s.logger.Info("orders recorded",
		zap.Strings("orders", numbers),
		zap.String("partition", p.Key()),
		zap.Int("lines", len(entries)))
	return batch, nil
}

// MergeOrders folds orders that share a trimmed order number into the first
// one seen, keeping line order. The header of the first block wins.
func MergeOrders(orders []*entities.PurchaseOrder) []*entities.PurchaseOrder {
	index := make(map[string]int, len(orders))
	var merged []*entities.PurchaseOrder
	for _, po := range orders {
		if po == nil || po.Header == nil {
			continue
		}
		number := strings.TrimSpace(po.Header.OrderNumber)
		if i, ok := index[number]; ok {
			target := merged[i]
			target.Lines = append(target.Lines, po.Lines...)
			continue
		}

		header := *po.Header
		header.OrderNumber = number
		index[number] = len(merged)
		merged = append(merged, &entities.PurchaseOrder{
			Header: &header,
			Lines:  append([]entities.OrderLine(nil), po.Lines...),
		})
	}
	return merged
}

// CumulativeByPartSite sums quantity and rounded quantity for part at site in p
func (s *Service) CumulativeByPartSite(ctx context.Context, p entities.Partition, part entities.PartNumber, site string) (entities.Quantity, entities.Quantity, error) {
	entries, err := s.repo.Entries(ctx, p)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read ledger %s: %w", p.Key(), err)
	}

	site = strings.TrimSpace(site)
	var qty, rounded entities.Quantity
	for _, e := range entries {
		if e.Part == part && strings.TrimSpace(e.Site) == site {
			qty += e.Quantity
			rounded += e.QuantityRounded
		}
	}
	return qty, rounded, nil
}

// CumulativeByPart sums demand for part across all sites in p
func (s *Service) CumulativeByPart(ctx context.Context, p entities.Partition, part entities.PartNumber) (entities.DemandTotals, error) {
	entries, err := s.repo.Entries(ctx, p)
	if err != nil {
		return entities.DemandTotals{}, fmt.Errorf("failed to read ledger %s: %w", p.Key(), err)
	}

	var totals entities.DemandTotals
	for _, e := range entries {
		if e.Part == part {
			totals.Quantity += e.Quantity
			totals.QuantityRounded += e.QuantityRounded
			totals.Count++
		}
	}
	return totals, nil
}

// MonthSummary totals demand per part|site in p
func (s *Service) MonthSummary(ctx context.Context, p entities.Partition) (map[string]entities.DemandTotals, error) {
	entries, err := s.repo.Entries(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", p.Key(), err)
	}

	summary := make(map[string]entities.DemandTotals)
	for _, e := range entries {
		key := entities.SummaryKey(e.Part, e.Site)
		totals := summary[key]
		totals.Quantity += e.Quantity
		totals.QuantityRounded += e.QuantityRounded
		totals.Count++
		summary[key] = totals
	}
	return summary, nil
}

// IsOrderRecorded reports whether orderNumber appears in p
func (s *Service) IsOrderRecorded(ctx context.Context, orderNumber string, p entities.Partition) (bool, error) {
	ok, err := s.repo.HasOrder(ctx, p, strings.TrimSpace(orderNumber))
	if err != nil {
		return false, fmt.Errorf("failed to check order %s in %s: %w", orderNumber, p.Key(), err)
	}
	return ok, nil
}

// IsOrderRecordedThisMonth checks the partition of the current clock time
func (s *Service) IsOrderRecordedThisMonth(ctx context.Context, orderNumber string) (bool, error) {
	return s.IsOrderRecorded(ctx, orderNumber, entities.PartitionOf(s.now()))
}

// RecordedOrders lists the distinct order numbers in p in first-seen order
func (s *Service) RecordedOrders(ctx context.Context, p entities.Partition) ([]string, error) {
	entries, err := s.repo.Entries(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", p.Key(), err)
	}

	seen := make(map[string]bool)
	var orders []string
	for _, e := range entries {
		if !seen[e.OrderNumber] {
			seen[e.OrderNumber] = true
			orders = append(orders, e.OrderNumber)
		}
	}
	return orders, nil
}

// Entries returns the raw entries of p in append order
func (s *Service) Entries(ctx context.Context, p entities.Partition) ([]*entities.LedgerEntry, error) {
	entries, err := s.repo.Entries(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", p.Key(), err)
	}
	return entries, nil
}
