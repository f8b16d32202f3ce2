package sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

// Queries holds the configured query templates. Templates take named
// parameters: @part_number and @site for stock, job and item queries,
// @job_number for movements. An empty template is not configured.
type Queries struct {
	FGInventory  string `mapstructure:"fg_inventory"`
	WIPInventory string `mapstructure:"wip_inventory"`
	SecondaryFG  string `mapstructure:"secondary_fg"`
	OpenJobs     string `mapstructure:"open_jobs"`
	Movements    string `mapstructure:"movements"`
	ItemMapping  string `mapstructure:"item_mapping"`
}

// QueryRunner executes a raw query and scans the rows into dest
type QueryRunner interface {
	Scan(ctx context.Context, query string, args map[string]interface{}, dest interface{}) error
}

// GormRunner runs queries through a gorm connection
type GormRunner struct {
	db *gorm.DB
}

// Open connects to Postgres using dsn
func Open(dsn string) (*GormRunner, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &GormRunner{db: db}, nil
}

// NewGormRunner wraps an existing gorm connection
func NewGormRunner(db *gorm.DB) *GormRunner {
	return &GormRunner{db: db}
}

// Scan runs query with named args and scans every row into dest
func (r *GormRunner) Scan(ctx context.Context, query string, args map[string]interface{}, dest interface{}) error {
	return r.db.WithContext(ctx).Raw(query, args).Scan(dest).Error
}

// Close releases the underlying connection pool
func (r *GormRunner) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type stockRow struct {
	ItemCode  string `gorm:"column:item_code"`
	JobNumber string `gorm:"column:job_number"`
	Quantity  int64  `gorm:"column:quantity"`
	Location  string `gorm:"column:location"`
}

type jobRow struct {
	JobNumber         string `gorm:"column:job_number"`
	ItemCode          string `gorm:"column:item_code"`
	PartNumber        string `gorm:"column:part_number"`
	QuantityOrdered   int64  `gorm:"column:quantity_ordered"`
	QuantityProduced  int64  `gorm:"column:quantity_produced"`
	QuantityRemaining int64  `gorm:"column:quantity_remaining"`
	Status            string `gorm:"column:status"`
}

type movementRow struct {
	MovementID string `gorm:"column:movement_id"`
	JobNumber  string `gorm:"column:job_number"`
	Quantity   int64  `gorm:"column:quantity"`
	Status     string `gorm:"column:status"`
}

type itemRow struct {
	PartNumber string `gorm:"column:part_number"`
	ItemCode   string `gorm:"column:item_code"`
}

// Source answers inventory, job and item lookups from configured queries
type Source struct {
	runner  QueryRunner
	queries Queries
	logger  *zap.Logger
}

// NewSource creates a query-backed source. A nil runner makes every query
// report not configured.
func NewSource(runner QueryRunner, queries Queries, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{runner: runner, queries: queries, logger: logger}
}

// Verify interface compliance
var (
	_ repositories.JobSource   = (*Source)(nil)
	_ repositories.ItemCatalog = (*Source)(nil)
)

// FG returns the primary finished-goods inventory source
func (s *Source) FG() repositories.InventorySource {
	return s.stock("fg_inventory", s.queries.FGInventory)
}

// WIP returns the work-in-progress inventory source
func (s *Source) WIP() repositories.InventorySource {
	return s.stock("wip_inventory", s.queries.WIPInventory)
}

// SecondaryFG returns the secondary finished-goods inventory source
func (s *Source) SecondaryFG() repositories.InventorySource {
	return s.stock("secondary_fg", s.queries.SecondaryFG)
}

func (s *Source) stock(name, query string) repositories.InventorySource {
	return repositories.InventorySourceFunc(func(ctx context.Context, part entities.PartNumber, site string) ([]entities.StockRecord, error) {
		var rows []stockRow
		if err := s.run(ctx, name, query, partArgs(part, site), &rows); err != nil {
			return nil, err
		}
		records := make([]entities.StockRecord, 0, len(rows))
		for _, r := range rows {
			records = append(records, entities.StockRecord{
				ItemCode:  r.ItemCode,
				JobNumber: r.JobNumber,
				Quantity:  entities.Quantity(r.Quantity),
				Location:  r.Location,
			})
		}
		return records, nil
	})
}

// OpenJobs returns the open production jobs for part at site
func (s *Source) OpenJobs(ctx context.Context, part entities.PartNumber, site string) ([]entities.Job, error) {
	var rows []jobRow
	if err := s.run(ctx, "open_jobs", s.queries.OpenJobs, partArgs(part, site), &rows); err != nil {
		return nil, err
	}
	jobs := make([]entities.Job, 0, len(rows))
	for _, r := range rows {
		jobs = append(jobs, entities.Job{
			JobNumber:         r.JobNumber,
			ItemCode:          r.ItemCode,
			Part:              entities.PartNumber(r.PartNumber),
			QuantityOrdered:   entities.Quantity(r.QuantityOrdered),
			QuantityProduced:  entities.Quantity(r.QuantityProduced),
			QuantityRemaining: entities.Quantity(r.QuantityRemaining),
			Status:            r.Status,
		})
	}
	return jobs, nil
}

// Movements returns the movements booked against jobNumber
func (s *Source) Movements(ctx context.Context, jobNumber string) ([]entities.Movement, error) {
	var rows []movementRow
	args := map[string]interface{}{"job_number": jobNumber}
	if err := s.run(ctx, "movements", s.queries.Movements, args, &rows); err != nil {
		return nil, err
	}
	movements := make([]entities.Movement, 0, len(rows))
	for _, r := range rows {
		jn := r.JobNumber
		if jn == "" {
			jn = jobNumber
		}
		movements = append(movements, entities.Movement{
			MovementID: r.MovementID,
			JobNumber:  jn,
			Quantity:   entities.Quantity(r.Quantity),
			Status:     strings.ToUpper(strings.TrimSpace(r.Status)),
		})
	}
	return movements, nil
}

// ItemCode returns the ERP item code mapped to part
func (s *Source) ItemCode(ctx context.Context, part entities.PartNumber) (string, error) {
	var rows []itemRow
	args := map[string]interface{}{"part_number": string(part)}
	if err := s.run(ctx, "item_mapping", s.queries.ItemMapping, args, &rows); err != nil {
		return "", err
	}
	for _, r := range rows {
		if r.ItemCode != "" {
			return r.ItemCode, nil
		}
	}
	return "", fmt.Errorf("item code not found: %s", part)
}

func (s *Source) run(ctx context.Context, name, query string, args map[string]interface{}, dest interface{}) error {
	if s.runner == nil || strings.TrimSpace(query) == "" {
		return fmt.Errorf("query %s: %w", name, repositories.ErrNotConfigured)
	}

	start := time.Now()
	err := s.runner.Scan(ctx, query, args, dest)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Warn("query failed",
			zap.String("query", name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return fmt.Errorf("query %s: %w: %v", name, repositories.ErrSourceUnavailable, err)
	}

	s.logger.Debug("query executed",
		zap.String("query", name),
		zap.Duration("elapsed", elapsed))
	return nil
}

func partArgs(part entities.PartNumber, site string) map[string]interface{} {
	return map[string]interface{}{
		"part_number": string(part),
		"site":        strings.TrimSpace(site),
	}
}
