package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

const derivedItemCodeLength = 7

// ItemCatalog provides in-memory part to item code mappings
type ItemCatalog struct {
	mu      sync.RWMutex
	codes   map[entities.PartNumber]string
	derived bool
}

// NewItemCatalog creates a new in-memory item catalog
func NewItemCatalog() *ItemCatalog {
	return &ItemCatalog{
		codes: make(map[entities.PartNumber]string),
	}
}

// NewDerivedItemCatalog creates a catalog that falls back to DeriveItemCode
// for parts with no explicit mapping
func NewDerivedItemCatalog() *ItemCatalog {
	c := NewItemCatalog()
	c.derived = true
	return c
}

// Verify interface compliance
var _ repositories.ItemCatalog = (*ItemCatalog)(nil)

// AddMapping registers the item code for a part
func (c *ItemCatalog) AddMapping(part entities.PartNumber, itemCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[part] = itemCode
}

// ItemCode returns the item code for a part
func (c *ItemCatalog) ItemCode(ctx context.Context, part entities.PartNumber) (string, error) {
	c.mu.RLock()
	code, ok := c.codes[part]
	c.mu.RUnlock()
	if ok {
		return code, nil
	}
	if c.derived {
		if code := DeriveItemCode(part); code != "" {
			return code, nil
		}
	}
	return "", fmt.Errorf("item code not found: %s", part)
}

// DeriveItemCode builds an item code from the first seven digits of a label
// part number ("L-61370444-14" -> "6137044"). Other parts yield "".
func DeriveItemCode(part entities.PartNumber) string {
	if !strings.HasPrefix(string(part), "L-") {
		return ""
	}
	var digits strings.Builder
	for _, r := range string(part) {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
			if digits.Len() == derivedItemCodeLength {
				break
			}
		}
	}
	return digits.String()
}
