package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderHeader_Validation(t *testing.T) {
	orderDate := time.Date(2025, 11, 19, 0, 0, 0, 0, time.UTC)

	header, err := NewOrderHeader("45FL", "907465", orderDate)
	require.NoError(t, err)
	assert.Equal(t, "PO 907465 @ 45FL (11/19/2025)", header.String())

	testCases := []struct {
		name        string
		site        string
		orderNumber string
		orderDate   time.Time
		expectError string
	}{
		{"empty site", "    ", "907465", orderDate, "site cannot be empty"},
		{"empty order number", "45FL", "", orderDate, "order number cannot be empty"},
		{"zero date", "45FL", "907465", time.Time{}, "order date cannot be zero"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOrderHeader(tc.site, tc.orderNumber, tc.orderDate)
			require.Error(t, err)
			assert.Equal(t, tc.expectError, err.Error())
		})
	}
}

func TestOrderLine_QuantityRounded(t *testing.T) {
	tests := []struct {
		qty      Quantity
		expected Quantity
	}{
		{0, 0},
		{1, 500},
		{500, 500},
		{1500, 1500},
		{5500, 5500},
		{5501, 6000},
	}

	for _, tt := range tests {
		line := OrderLine{Quantity: tt.qty}
		assert.Equal(t, tt.expected, line.QuantityRounded(), "qty %d", tt.qty)
	}

	assert.Equal(t, Quantity(1000), OrderLine{Quantity: 501}.RoundedTo(250*2))
	assert.Equal(t, Quantity(300), OrderLine{Quantity: 201}.RoundedTo(100))
}

func TestPurchaseOrder_WithLine(t *testing.T) {
	header := &OrderHeader{Site: "45FL", OrderNumber: "907465", OrderDate: time.Date(2025, 11, 19, 0, 0, 0, 0, time.UTC)}

	po, err := NewPurchaseOrder(header, nil)
	require.NoError(t, err)

	line := OrderLine{
		Site:        "45FL",
		OrderNumber: "907465",
		LineNumber:  1,
		Part:        "L-61370444-14",
		Quantity:    5500,
		UnitPrice:   decimal.RequireFromString("0.1269"),
	}

	next, err := po.WithLine(line)
	require.NoError(t, err)
	assert.Empty(t, po.Lines, "original order must be unchanged")
	require.Len(t, next.Lines, 1)
	assert.Same(t, header, next.Lines[0].Header)
	assert.Equal(t, Quantity(5500), next.TotalQuantity())

	t.Run("mismatched order number", func(t *testing.T) {
		bad := line
		bad.OrderNumber = "907466"
		_, err := next.WithLine(bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "belongs to 45FL/907466")
	})

	t.Run("mismatched site", func(t *testing.T) {
		bad := line
		bad.Site = "46FL"
		_, err := NewPurchaseOrder(header, []OrderLine{line, bad})
		require.Error(t, err)
	})

	t.Run("nil header", func(t *testing.T) {
		_, err := NewPurchaseOrder(nil, nil)
		require.EqualError(t, err, "header cannot be nil")
	})
}
