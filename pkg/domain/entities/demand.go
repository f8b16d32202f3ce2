package entities

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// LedgerTimestampLayout is how ledger timestamps are rendered in stores
const LedgerTimestampLayout = "2006-01-02 15:04:05"

// Partition identifies one calendar month of the demand ledger
type Partition struct {
	Year  int
	Month time.Month
}

// PartitionOf returns the partition a timestamp falls into
func PartitionOf(t time.Time) Partition {
	return Partition{Year: t.Year(), Month: t.Month()}
}

// Key renders the partition as YYYY-MM
func (p Partition) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Next returns the following calendar month
func (p Partition) Next() Partition {
	if p.Month == time.December {
		return Partition{Year: p.Year + 1, Month: time.January}
	}
	return Partition{Year: p.Year, Month: p.Month + 1}
}

// LedgerEntry is one recorded order line. Entries are never updated or removed.
type LedgerEntry struct {
	ID              string
	Timestamp       time.Time
	OrderNumber     string
	Part            PartNumber
	Site            string
	Quantity        Quantity
	QuantityRounded Quantity
}

// NewLedgerEntry creates a validated LedgerEntry
func NewLedgerEntry(id string, ts time.Time, orderNumber string, part PartNumber, site string, qty, rounded Quantity) (*LedgerEntry, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return nil, fmt.Errorf("order number cannot be empty")
	}
	if string(part) == "" {
		return nil, fmt.Errorf("part number cannot be empty")
	}
	if qty < 0 {
		return nil, fmt.Errorf("quantity cannot be negative, got %d", qty)
	}
	if rounded < qty {
		return nil, fmt.Errorf("rounded quantity %d cannot be less than quantity %d", rounded, qty)
	}
	if ts.IsZero() {
		return nil, fmt.Errorf("timestamp cannot be zero")
	}

	return &LedgerEntry{
		ID:              id,
		Timestamp:       ts,
		OrderNumber:     strings.TrimSpace(orderNumber),
		Part:            part,
		Site:            strings.TrimSpace(site),
		Quantity:        qty,
		QuantityRounded: rounded,
	}, nil
}

// Partition returns the month partition the entry belongs to
func (e LedgerEntry) Partition() Partition {
	return PartitionOf(e.Timestamp)
}

// DemandTotals holds cumulative quantities for one part/site in a partition
type DemandTotals struct {
	Quantity        Quantity `json:"quantity"`
	QuantityRounded Quantity `json:"quantity_rounded"`
	Count           int      `json:"count"`
}

// SummaryKey renders the part|site key used by month summaries
func SummaryKey(part PartNumber, site string) string {
	return string(part) + "|" + strings.TrimSpace(site)
}

// ForecastRecord is the forecast for one part at one site
type ForecastRecord struct {
	Part        PartNumber
	Description string
	Site        string
	YearlyTotal Quantity
	// Monthly is keyed by YYYYMM
	Monthly map[string]Quantity
}

// MonthKey renders a time as the YYYYMM forecast key
func MonthKey(t time.Time) string {
	return t.Format("200601")
}

// MonthlyQuantity returns the forecast for the month containing t.
// A missing or zero month falls back to the yearly total divided by 12.
func (f ForecastRecord) MonthlyQuantity(t time.Time) Quantity {
	if qty, ok := f.Monthly[MonthKey(t)]; ok && qty > 0 {
		return qty
	}
	if f.YearlyTotal <= 0 {
		return 0
	}
	return Quantity(math.Round(float64(f.YearlyTotal) / 12))
}
