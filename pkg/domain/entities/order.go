package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderHeader identifies one purchase order on the feed
type OrderHeader struct {
	Site        string
	OrderNumber string
	OrderDate   time.Time
}

// NewOrderHeader creates a validated OrderHeader
func NewOrderHeader(site, orderNumber string, orderDate time.Time) (*OrderHeader, error) {
	if strings.TrimSpace(site) == "" {
		return nil, fmt.Errorf("site cannot be empty")
	}
	if strings.TrimSpace(orderNumber) == "" {
		return nil, fmt.Errorf("order number cannot be empty")
	}
	if orderDate.IsZero() {
		return nil, fmt.Errorf("order date cannot be zero")
	}

	return &OrderHeader{
		Site:        site,
		OrderNumber: orderNumber,
		OrderDate:   orderDate,
	}, nil
}

func (h OrderHeader) String() string {
	return fmt.Sprintf("PO %s @ %s (%s)", h.OrderNumber, h.Site, h.OrderDate.Format("01/02/2006"))
}

// OrderLine represents one detail record of a purchase order.
// Header is a non-owning reference to the order the line belongs to.
type OrderLine struct {
	Site        string
	OrderNumber string
	LineNumber  int
	Part        PartNumber
	Quantity    Quantity
	UnitPrice   decimal.Decimal
	DueDate     time.Time
	Header      *OrderHeader
}

// QuantityRounded returns the quantity rounded up to the default pack size
func (l OrderLine) QuantityRounded() Quantity {
	return RoundUpToPack(l.Quantity, DefaultPackSize)
}

// RoundedTo returns the quantity rounded up to the given pack size
func (l OrderLine) RoundedTo(pack Quantity) Quantity {
	return RoundUpToPack(l.Quantity, pack)
}

// NormalizedSite returns the site code with surrounding whitespace removed
func (l OrderLine) NormalizedSite() string {
	return strings.TrimSpace(l.Site)
}

func (l OrderLine) String() string {
	return fmt.Sprintf("Line %d: %s x %d (due %s)", l.LineNumber, l.Part, l.Quantity, l.DueDate.Format("01/02/2006"))
}

// PurchaseOrder is one header owning its lines in feed order
type PurchaseOrder struct {
	Header *OrderHeader
	Lines  []OrderLine
}

// NewPurchaseOrder creates a PurchaseOrder, checking every line belongs to the header
func NewPurchaseOrder(header *OrderHeader, lines []OrderLine) (*PurchaseOrder, error) {
	if header == nil {
		return nil, fmt.Errorf("header cannot be nil")
	}
	po := &PurchaseOrder{Header: header, Lines: make([]OrderLine, 0, len(lines))}
	for _, line := range lines {
		next, err := po.WithLine(line)
		if err != nil {
			return nil, err
		}
		po = next
	}
	return po, nil
}

// WithLine returns a copy of the order with line appended.
// The line must carry the header's site and order number.
func (po *PurchaseOrder) WithLine(line OrderLine) (*PurchaseOrder, error) {
	if line.Site != po.Header.Site || line.OrderNumber != po.Header.OrderNumber {
		return nil, fmt.Errorf("line %d belongs to %s/%s, not %s/%s",
			line.LineNumber, line.Site, line.OrderNumber, po.Header.Site, po.Header.OrderNumber)
	}
	line.Header = po.Header

	lines := make([]OrderLine, len(po.Lines), len(po.Lines)+1)
	copy(lines, po.Lines)
	return &PurchaseOrder{Header: po.Header, Lines: append(lines, line)}, nil
}

// TotalQuantity sums the requested quantity over all lines
func (po *PurchaseOrder) TotalQuantity() Quantity {
	var total Quantity
	for _, line := range po.Lines {
		total += line.Quantity
	}
	return total
}

func (po *PurchaseOrder) String() string {
	return fmt.Sprintf("%s - %d line(s)", po.Header, len(po.Lines))
}
