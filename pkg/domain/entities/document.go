package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fixed identifiers shared by every order-entry document
const (
	OrderEntryDTD  = "http://www.fortdearborn.com/dtd/order-entry_1_1.dtd"
	Plant          = "14"
	CustomerCode   = "SHER003"
	BaseAddress    = "12977"
	DeliveryMethod = "TRK"

	DefaultStockJobAddress = "13316"
	DefaultMovementAddress = "16291"
	DefaultPriceQty        = 1000
)

var (
	// DefaultStockJobPrice applies when the order line carries no unit price
	DefaultStockJobPrice = decimal.NewFromInt(100)
	// DefaultMovementPrice is the per-thousand price booked on movements
	DefaultMovementPrice = decimal.NewFromInt(50)
)

// DocumentKind distinguishes the two document families
type DocumentKind int

const (
	StockJobDocument DocumentKind = iota
	MovementDocument
)

// String method for DocumentKind enum
func (k DocumentKind) String() string {
	switch k {
	case StockJobDocument:
		return "stock_job"
	case MovementDocument:
		return "movement"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name
func (k DocumentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// StockJobLine is one new-production line. Quantity is rendered rounded up to the pack size.
type StockJobLine struct {
	OrderNumber     string
	Part            PartNumber
	Quantity        Quantity
	Price           decimal.Decimal
	PriceQty        int
	DeliveryAddress string
	DeliveryDate    time.Time
	POReceived      time.Time
	Rush            bool
}

// StockJob groups new-production lines sharing a delivery address and date
type StockJob struct {
	DeliveryAddress string
	DeliveryDate    time.Time
	POReceived      time.Time
	Lines           []StockJobLine
}

// MovementLine is one pull from existing stock or job capacity. Quantity is exact.
type MovementLine struct {
	OrderNumber     string
	ItemCode        string
	JobNumber       string
	Quantity        Quantity
	Price           decimal.Decimal
	PriceQty        int
	UseWIP          bool
	DeliveryAddress string
	DeliveryDate    time.Time
	POReceived      time.Time
}

// MovementOrder groups movement lines originating from one purchase order
type MovementOrder struct {
	OrderNumber     string
	DeliveryAddress string
	DeliveryDate    time.Time
	POReceived      time.Time
	Lines           []MovementLine
}

// Document describes a rendered file handed to the output sink
type Document struct {
	Kind   DocumentKind `json:"kind"`
	Name   string       `json:"name"`
	Path   string       `json:"path"`
	Orders int          `json:"orders"`
}
