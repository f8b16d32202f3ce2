package documents

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
	"github.com/vsinha/vmi/pkg/infrastructure/repositories/memory"
)

var fixedNow = time.Date(2025, 11, 19, 7, 5, 9, 0, time.UTC)

func newTestGenerator(sink repositories.DocumentSink) *Generator {
	return NewGenerator(sink, WithClock(func() time.Time { return fixedNow }))
}

func decode(t *testing.T, data []byte) xmlOrders {
	t.Helper()
	var doc xmlOrders
	require.NoError(t, xml.Unmarshal(data, &doc))
	return doc
}

func TestLetterSuffix(t *testing.T) {
	tests := map[int]string{0: "a", 1: "b", 25: "z", 26: "aa", 27: "ab", 51: "az", 52: "ba", 701: "zz", 702: "aaa"}
	for n, want := range tests {
		assert.Equal(t, want, letterSuffix(n), "n=%d", n)
	}
}

func TestGenerator_GroupStockJobs(t *testing.T) {
	g := newTestGenerator(memory.NewDocumentSink())
	due := time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC)

	jobs := g.GroupStockJobs([]entities.StockJobLine{
		{OrderNumber: "907465", Part: "P1", Quantity: 1200, DeliveryDate: due},
		{OrderNumber: "907465", Part: "P2", Quantity: 300, DeliveryDate: due.Add(5 * time.Hour)},
		{OrderNumber: "907466", Part: "P3", Quantity: 300, DeliveryDate: due, DeliveryAddress: "20001"},
	})

	require.Len(t, jobs, 2)
	assert.Equal(t, entities.DefaultStockJobAddress, jobs[0].DeliveryAddress)
	assert.Len(t, jobs[0].Lines, 2, "same address and day share a job")
	assert.Equal(t, "20001", jobs[1].DeliveryAddress)
	assert.True(t, entities.DefaultStockJobPrice.Equal(jobs[0].Lines[0].Price))
	assert.Equal(t, entities.DefaultPriceQty, jobs[0].Lines[0].PriceQty)
}

func TestGenerator_StockJobDocument(t *testing.T) {
	ctx := context.Background()
	sink := memory.NewDocumentSink()
	g := newTestGenerator(sink)

	doc, err := g.GenerateStockJobs(ctx, []entities.StockJobLine{
		{OrderNumber: "907465", Part: "L-61370444-14", Quantity: 1200, Price: decimal.RequireFromString("12.5")},
		{OrderNumber: "907465", Part: "L-61370445-14", Quantity: 2500, Rush: true},
	})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "sw-stock-111925a.xml", doc.Name)
	assert.Equal(t, entities.StockJobDocument, doc.Kind)
	assert.Equal(t, 2, doc.Orders)

	data, ok := sink.Get(doc.Name)
	require.True(t, ok)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, text, `<!DOCTYPE orders SYSTEM "http://www.fortdearborn.com/dtd/order-entry_1_1.dtd">`)
	assert.Contains(t, text, "<!--Generated from customer order entry -->")

	parsed := decode(t, data)
	require.Len(t, parsed.Orders, 2)

	first := parsed.Orders[0]
	assert.Equal(t, "submit", first.Signal)
	assert.Equal(t, "14", first.Plant)
	assert.Equal(t, "VMI 11.19.25 101", first.Header.OrderCustomer.PO)
	assert.Equal(t, "SHER003", first.Header.OrderCustomer.Code)
	assert.Equal(t, "12977", first.Header.InvoiceCustomer.Address)
	assert.Equal(t, "13316", first.Header.DeliveryCustomer.Address)
	assert.Equal(t, "12/10/2025", first.Header.DeliveryCustomer.Date, "defaults to 21 days out")
	assert.Equal(t, "TRK", first.Header.DeliveryCustomer.Method.Code)
	assert.NotNil(t, first.Header.DeliveryCustomer.Method.Freight.Prepaid)
	assert.Nil(t, first.Header.DeliveryCustomer.Method.Freight.Collect)
	assert.Equal(t, "11/19/2025", first.Header.RequestOptions.POReceived)
	assert.Equal(t, "12/10/2025", first.Header.RequestOptions.CRIFShip)

	line := first.Lines.Lines[0]
	assert.Equal(t, int64(1500), line.Quantity, "rounded up to the pack size")
	require.NotNil(t, line.Option.BookStockJob)
	assert.Equal(t, "12.50", line.Option.BookStockJob.Price)
	assert.Equal(t, 1000, line.Option.BookStockJob.PriceQty)
	assert.Equal(t, "L-61370444-14", line.Item.CustomerReferenceNumber)

	second := parsed.Orders[1]
	assert.Equal(t, "VMI 11.19.25 102", second.Header.OrderCustomer.PO)
	assert.Equal(t, int64(2500), second.Lines.Lines[0].Quantity)
	assert.Equal(t, "100.00", second.Lines.Lines[0].Option.BookStockJob.Price)

	assert.Equal(t, 103, g.NextSequence())
}

func TestGenerator_StockJobSuffixAdvances(t *testing.T) {
	ctx := context.Background()
	sink := memory.NewDocumentSink()
	g := newTestGenerator(sink)
	line := []entities.StockJobLine{{OrderNumber: "907465", Part: "P1", Quantity: 500}}

	first, err := g.GenerateStockJobs(ctx, line)
	require.NoError(t, err)
	second, err := g.GenerateStockJobs(ctx, line)
	require.NoError(t, err)

	assert.Equal(t, "sw-stock-111925a.xml", first.Name)
	assert.Equal(t, "sw-stock-111925b.xml", second.Name)

	data, _ := sink.Get(second.Name)
	assert.Equal(t, "VMI 11.19.25 102", decode(t, data).Orders[0].Header.OrderCustomer.PO,
		"sequence continues across documents")
}

// racingSink reports names as free but refuses the first n writes
type racingSink struct {
	*memory.DocumentSink
	refuse int
}

func (s *racingSink) Exists(ctx context.Context, name string) (bool, error) {
	return false, nil
}

func (s *racingSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	if s.refuse > 0 {
		s.refuse--
		return "", fmt.Errorf("%s: %w", name, repositories.ErrDocumentExists)
	}
	return s.DocumentSink.Write(ctx, name, data)
}

func TestGenerator_LostCreationRaceAdvancesName(t *testing.T) {
	sink := &racingSink{DocumentSink: memory.NewDocumentSink(), refuse: 2}
	g := newTestGenerator(sink)

	doc, err := g.GenerateStockJobs(context.Background(), []entities.StockJobLine{{OrderNumber: "1", Part: "P", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, "sw-stock-111925c.xml", doc.Name)
}

type failingSink struct{ *memory.DocumentSink }

func (s *failingSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	return "", errors.New("disk full")
}

func TestGenerator_WriteFailure(t *testing.T) {
	sink := &failingSink{DocumentSink: memory.NewDocumentSink()}
	g := newTestGenerator(sink)

	_, err := g.GenerateStockJobs(context.Background(), []entities.StockJobLine{{OrderNumber: "1", Part: "P", Quantity: 1}})
	require.Error(t, err)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, entities.StockJobDocument, genErr.Kind)
	assert.Equal(t, "sw-stock-111925a.xml", genErr.Name)
	assert.Equal(t, FirstSequence, g.NextSequence(), "failed documents do not consume sequence numbers")
}

func TestGenerator_MovementDocument(t *testing.T) {
	ctx := context.Background()
	sink := memory.NewDocumentSink()
	g := newTestGenerator(sink)

	doc, err := g.GenerateMovements(ctx, []entities.MovementLine{
		{OrderNumber: "907465", ItemCode: "6137044", JobNumber: "FG-1", Quantity: 3000},
		{OrderNumber: "907468", ItemCode: "6137045", JobNumber: "W-7", Quantity: 1234, UseWIP: true},
		{OrderNumber: "907465", ItemCode: "6137046", JobNumber: "J-2", Quantity: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, "GT-Movement-111925-070509-001.xml", doc.Name)
	assert.Equal(t, entities.MovementDocument, doc.Kind)

	data, _ := sink.Get(doc.Name)
	assert.Contains(t, string(data), "<!--Generated from S-W Order Entry Interface -->")

	parsed := decode(t, data)
	require.Len(t, parsed.Orders, 3)

	var pos, ros []string
	for _, o := range parsed.Orders {
		pos = append(pos, o.Header.OrderCustomer.PO)
		ros = append(ros, o.Header.OrderCustomer.RO)
	}
	assert.Equal(t, []string{"907465", "907465", "907468"}, pos, "lines grouped by order")
	assert.Equal(t, []string{"001", "002", "001"}, ros, "release numbers restart per order")

	first := parsed.Orders[0]
	assert.Equal(t, "16291", first.Header.DeliveryCustomer.Address)
	assert.Equal(t, "SHER003", first.Header.DeliveryCustomer.Code)
	assert.Equal(t, "11/19/2025", first.Header.DeliveryCustomer.Date)
	assert.NotNil(t, first.Header.DeliveryCustomer.Method.Freight.Collect)
	assert.Nil(t, first.Header.DeliveryCustomer.Method.Freight.Prepaid)

	line := first.Lines.Lines[0]
	assert.Equal(t, int64(3000), line.Quantity, "movement quantities are exact")
	require.NotNil(t, line.Option.FailIfInsufficientStock)
	assert.Nil(t, line.Option.FailIfInsufficientWIP)
	assert.Equal(t, "FG-1", line.Option.FailIfInsufficientStock.JobNumber)
	assert.Equal(t, "50", line.Option.FailIfInsufficientStock.Price)
	assert.Equal(t, "6137044", line.Item.ItemCode)

	wip := parsed.Orders[2].Lines.Lines[0]
	require.NotNil(t, wip.Option.FailIfInsufficientWIP)
	assert.Equal(t, "W-7", wip.Option.FailIfInsufficientWIP.JobNumber)
	assert.Equal(t, int64(1234), wip.Quantity)

	again, err := g.GenerateMovements(ctx, []entities.MovementLine{{OrderNumber: "1", ItemCode: "X", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, "GT-Movement-111925-070509-002.xml", again.Name)
}

func TestGenerator_NoLines(t *testing.T) {
	g := newTestGenerator(memory.NewDocumentSink())

	doc, err := g.GenerateStockJobs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, doc)

	doc, err = g.GenerateMovements(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, doc)
}
