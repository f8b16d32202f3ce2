package resilience

import (
	"context"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

// GuardInventory wraps src with b. A nil source stays nil so it still reads as not configured.
func GuardInventory(src repositories.InventorySource, b *Breaker) repositories.InventorySource {
	if src == nil {
		return nil
	}
	return repositories.InventorySourceFunc(func(ctx context.Context, part entities.PartNumber, site string) ([]entities.StockRecord, error) {
		r, err := b.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return src.Query(ctx, part, site)
		})
		if err != nil {
			return nil, err
		}
		return r.([]entities.StockRecord), nil
	})
}

type guardedJobs struct {
	src repositories.JobSource
	b   *Breaker
}

// GuardJobs wraps src with b
func GuardJobs(src repositories.JobSource, b *Breaker) repositories.JobSource {
	if src == nil {
		return nil
	}
	return &guardedJobs{src: src, b: b}
}

func (g *guardedJobs) OpenJobs(ctx context.Context, part entities.PartNumber, site string) ([]entities.Job, error) {
	r, err := g.b.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return g.src.OpenJobs(ctx, part, site)
	})
	if err != nil {
		return nil, err
	}
	return r.([]entities.Job), nil
}

func (g *guardedJobs) Movements(ctx context.Context, jobNumber string) ([]entities.Movement, error) {
	r, err := g.b.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return g.src.Movements(ctx, jobNumber)
	})
	if err != nil {
		return nil, err
	}
	return r.([]entities.Movement), nil
}

type guardedItems struct {
	src repositories.ItemCatalog
	b   *Breaker
}

// GuardItems wraps src with b
func GuardItems(src repositories.ItemCatalog, b *Breaker) repositories.ItemCatalog {
	if src == nil {
		return nil
	}
	return &guardedItems{src: src, b: b}
}

func (g *guardedItems) ItemCode(ctx context.Context, part entities.PartNumber) (string, error) {
	r, err := g.b.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return g.src.ItemCode(ctx, part)
	})
	if err != nil {
		return "", err
	}
	return r.(string), nil
}
