package repositories

import (
	"context"

	"github.com/vsinha/vmi/pkg/domain/entities"
)

// ItemCatalog maps customer part numbers to internal ERP item codes
type ItemCatalog interface {
	ItemCode(ctx context.Context, part entities.PartNumber) (string, error)
}
