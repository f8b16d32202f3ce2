package entities

// PartNumber represents a customer part identifier as it appears on the order feed
type PartNumber string

// Quantity represents an integer quantity value in units (EA)
type Quantity int64

// DefaultPackSize is the production pack size new-production quantities round up to
const DefaultPackSize Quantity = 500

// RoundUpToPack rounds qty up to the nearest multiple of pack.
// Non-positive quantities and pack sizes leave qty unchanged.
func RoundUpToPack(qty, pack Quantity) Quantity {
	if qty <= 0 || pack <= 0 {
		return qty
	}
	packs := (qty + pack - 1) / pack
	return packs * pack
}

// Max returns the larger of two quantities
func Max(a, b Quantity) Quantity {
	if a > b {
		return a
	}
	return b
}
