package memory

import (
	"strings"
	"sync"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

// ForecastRepository holds the currently loaded forecast in memory
type ForecastRepository struct {
	mu      sync.RWMutex
	records []*entities.ForecastRecord
	byPart  map[entities.PartNumber][]int
	source  string
}

// NewForecastRepository creates an empty forecast repository
func NewForecastRepository() *ForecastRepository {
	return &ForecastRepository{
		byPart: make(map[entities.PartNumber][]int),
	}
}

// Verify interface compliance
var _ repositories.ForecastProvider = (*ForecastRepository)(nil)

// Replace swaps the loaded forecast for records read from source
func (r *ForecastRepository) Replace(source string, records []*entities.ForecastRecord) {
	byPart := make(map[entities.PartNumber][]int, len(records))
	for i, rec := range records {
		byPart[rec.Part] = append(byPart[rec.Part], i)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = records
	r.byPart = byPart
	r.source = source
}

// Source returns where the loaded forecast came from
func (r *ForecastRepository) Source() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.source
}

// Len returns the number of loaded records
func (r *ForecastRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// ForPartSite returns the forecast for part at site
func (r *ForecastRepository) ForPartSite(part entities.PartNumber, site string) (*entities.ForecastRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	site = strings.TrimSpace(site)
	for _, i := range r.byPart[part] {
		if strings.TrimSpace(r.records[i].Site) == site {
			return r.records[i], true
		}
	}
	return nil, false
}

// ForPart returns forecasts for part at every site
func (r *ForecastRepository) ForPart(part entities.PartNumber) []*entities.ForecastRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.ForecastRecord
	for _, i := range r.byPart[part] {
		out = append(out, r.records[i])
	}
	return out
}
