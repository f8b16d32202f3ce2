package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

type stockKey struct {
	part entities.PartNumber
	site string
}

func keyOf(part entities.PartNumber, site string) stockKey {
	return stockKey{part: part, site: strings.TrimSpace(site)}
}

// InventoryRepository provides in-memory stock for one coverage tier
type InventoryRepository struct {
	mu    sync.RWMutex
	stock map[stockKey][]entities.StockRecord
}

// NewInventoryRepository creates a new in-memory inventory repository
func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		stock: make(map[stockKey][]entities.StockRecord),
	}
}

// Verify interface compliance
var _ repositories.InventorySource = (*InventoryRepository)(nil)

// AddStock adds a stock record for a part at a site
func (r *InventoryRepository) AddStock(part entities.PartNumber, site string, record entities.StockRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := keyOf(part, site)
	r.stock[k] = append(r.stock[k], record)
}

// Query returns stock records for a part at a site in insertion order
func (r *InventoryRepository) Query(ctx context.Context, part entities.PartNumber, site string) ([]entities.StockRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.stock[keyOf(part, site)]
	out := make([]entities.StockRecord, len(records))
	copy(out, records)
	return out, nil
}

// JobRepository provides in-memory open jobs and their movements
type JobRepository struct {
	mu        sync.RWMutex
	jobs      map[stockKey][]entities.Job
	movements map[string][]entities.Movement
}

// NewJobRepository creates a new in-memory job repository
func NewJobRepository() *JobRepository {
	return &JobRepository{
		jobs:      make(map[stockKey][]entities.Job),
		movements: make(map[string][]entities.Movement),
	}
}

// Verify interface compliance
var _ repositories.JobSource = (*JobRepository)(nil)

// AddJob adds an open job for a part at a site
func (r *JobRepository) AddJob(site string, job entities.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := keyOf(job.Part, site)
	r.jobs[k] = append(r.jobs[k], job)
}

// AddMovement books a movement against a job
func (r *JobRepository) AddMovement(movement entities.Movement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements[movement.JobNumber] = append(r.movements[movement.JobNumber], movement)
}

// OpenJobs returns jobs for a part at a site in insertion order
func (r *JobRepository) OpenJobs(ctx context.Context, part entities.PartNumber, site string) ([]entities.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := r.jobs[keyOf(part, site)]
	out := make([]entities.Job, len(jobs))
	copy(out, jobs)
	return out, nil
}

// Movements returns every movement booked against a job
func (r *JobRepository) Movements(ctx context.Context, jobNumber string) ([]entities.Movement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	movements := r.movements[jobNumber]
	out := make([]entities.Movement, len(movements))
	copy(out, movements)
	return out, nil
}
