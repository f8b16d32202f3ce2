package documents

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

const (
	// FirstSequence is the first VMI PO sequence handed out in a process
	FirstSequence = 101

	// DefaultDeliveryLead applies to stock-job lines without a due date
	DefaultDeliveryLead = 21 * 24 * time.Hour

	// maxNameAttempts bounds the search for a free document name
	maxNameAttempts = 1000

	stockJobComment = "Generated from customer order entry"
	movementComment = "Generated from S-W Order Entry Interface"

	shortDateLayout = "1/2/2006"
	longDateLayout  = "01/02/2006"
)

// GenerationError reports a document that could not be rendered or written
type GenerationError struct {
	Kind  entities.DocumentKind
	Name  string
	Lines int
	Err   error
}

func (e *GenerationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("failed to generate %s document (%d lines): %v", e.Kind, e.Lines, e.Err)
	}
	return fmt.Sprintf("failed to generate %s document %s (%d lines): %v", e.Kind, e.Name, e.Lines, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Generator renders stock-job and movement documents and hands them to a sink.
// The VMI PO sequence lives as long as the generator and is advanced only by
// documents that were written.
type Generator struct {
	sink           repositories.DocumentSink
	now            func() time.Time
	packSize       entities.Quantity
	stockPrefix    string
	movementPrefix string
	logger         *zap.Logger

	mu       sync.Mutex
	sequence int
}

// Option configures a Generator
type Option func(*Generator)

// WithClock sets the time source used for names, PO references and defaults
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithPackSize sets the pack size stock-job quantities are rounded up to
func WithPackSize(pack entities.Quantity) Option {
	return func(g *Generator) { g.packSize = pack }
}

// WithPrefixes sets the file name prefixes for the two document families
func WithPrefixes(stockJob, movement string) Option {
	return func(g *Generator) {
		if stockJob != "" {
			g.stockPrefix = stockJob
		}
		if movement != "" {
			g.movementPrefix = movement
		}
	}
}

// WithSequenceStart sets the first VMI PO sequence number
func WithSequenceStart(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.sequence = n
		}
	}
}

// WithLogger sets the generator logger
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// NewGenerator creates a document generator writing to sink
func NewGenerator(sink repositories.DocumentSink, opts ...Option) *Generator {
	g := &Generator{
		sink:           sink,
		now:            time.Now,
		packSize:       entities.DefaultPackSize,
		stockPrefix:    "sw-stock",
		movementPrefix: "GT-Movement",
		logger:         zap.NewNop(),
		sequence:       FirstSequence,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NextSequence returns the sequence the next stock-job line will receive
func (g *Generator) NextSequence() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sequence
}

// GroupStockJobs groups lines by delivery address and delivery date, in order
// of first appearance. Missing addresses and dates are filled with defaults.
func (g *Generator) GroupStockJobs(lines []entities.StockJobLine) []entities.StockJob {
	now := g.now()
	var jobs []entities.StockJob
	index := make(map[string]int)

	for _, line := range lines {
		line = g.withStockDefaults(line, now)
		key := line.DeliveryAddress + "|" + line.DeliveryDate.Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			i = len(jobs)
			index[key] = i
			jobs = append(jobs, entities.StockJob{
				DeliveryAddress: line.DeliveryAddress,
				DeliveryDate:    line.DeliveryDate,
				POReceived:      line.POReceived,
			})
		}
		jobs[i].Lines = append(jobs[i].Lines, line)
	}
	return jobs
}

// GroupMovements groups lines by originating order number, in order of first appearance
func (g *Generator) GroupMovements(lines []entities.MovementLine) []entities.MovementOrder {
	now := g.now()
	var orders []entities.MovementOrder
	index := make(map[string]int)

	for _, line := range lines {
		line = withMovementDefaults(line, now)
		i, ok := index[line.OrderNumber]
		if !ok {
			i = len(orders)
			index[line.OrderNumber] = i
			orders = append(orders, entities.MovementOrder{
				OrderNumber:     line.OrderNumber,
				DeliveryAddress: line.DeliveryAddress,
				DeliveryDate:    line.DeliveryDate,
				POReceived:      line.POReceived,
			})
		}
		orders[i].Lines = append(orders[i].Lines, line)
	}
	return orders
}

// GenerateStockJobs writes one stock-job document holding every line.
// It returns nil when there are no lines.
func (g *Generator) GenerateStockJobs(ctx context.Context, lines []entities.StockJobLine) (*entities.Document, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	jobs := g.GroupStockJobs(lines)
	doc, next := g.renderStockJobs(jobs, g.sequence, now)
	data, err := encode(doc, entities.OrderEntryDTD, stockJobComment)
	if err != nil {
		return nil, &GenerationError{Kind: entities.StockJobDocument, Lines: len(lines), Err: err}
	}

	date := now.Format("010206")
	name, path, err := g.write(ctx, data, func(attempt int) string {
		return fmt.Sprintf("%s-%s%s.xml", g.stockPrefix, date, letterSuffix(attempt))
	})
	if err != nil {
		return nil, &GenerationError{Kind: entities.StockJobDocument, Name: name, Lines: len(lines), Err: err}
	}
	g.sequence = next

	g.logger.Info("stock job document written",
		zap.String("name", name),
		zap.Int("jobs", len(jobs)),
		zap.Int("lines", len(lines)))
	return &entities.Document{Kind: entities.StockJobDocument, Name: name, Path: path, Orders: len(doc.Orders)}, nil
}

// GenerateMovements writes one movement document holding every line.
// It returns nil when there are no lines.
func (g *Generator) GenerateMovements(ctx context.Context, lines []entities.MovementLine) (*entities.Document, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	now := g.now()
	orders := g.GroupMovements(lines)
	doc := renderMovements(orders)
	data, err := encode(doc, entities.OrderEntryDTD, movementComment)
	if err != nil {
		return nil, &GenerationError{Kind: entities.MovementDocument, Lines: len(lines), Err: err}
	}

	stamp := now.Format("010206-150405")
	name, path, err := g.write(ctx, data, func(attempt int) string {
		return fmt.Sprintf("%s-%s-%03d.xml", g.movementPrefix, stamp, attempt+1)
	})
	if err != nil {
		return nil, &GenerationError{Kind: entities.MovementDocument, Name: name, Lines: len(lines), Err: err}
	}

	g.logger.Info("movement document written",
		zap.String("name", name),
		zap.Int("orders", len(orders)),
		zap.Int("lines", len(lines)))
	return &entities.Document{Kind: entities.MovementDocument, Name: name, Path: path, Orders: len(doc.Orders)}, nil
}

// write tries successive names until the sink accepts one
func (g *Generator) write(ctx context.Context, data []byte, nameFor func(attempt int) string) (string, string, error) {
	var name string
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name = nameFor(attempt)

		exists, err := g.sink.Exists(ctx, name)
		if err != nil {
			return name, "", fmt.Errorf("failed to check %s: %w", name, err)
		}
		if exists {
			continue
		}

		path, err := g.sink.Write(ctx, name, data)
		if errors.Is(err, repositories.ErrDocumentExists) {
			g.logger.Debug("document name taken, advancing", zap.String("name", name))
			continue
		}
		if err != nil {
			return name, "", fmt.Errorf("failed to write %s: %w", name, err)
		}
		return name, path, nil
	}
	return name, "", fmt.Errorf("no free document name after %d attempts", maxNameAttempts)
}

func (g *Generator) renderStockJobs(jobs []entities.StockJob, seq int, now time.Time) (xmlOrders, int) {
	var doc xmlOrders
	po := now.Format("01.02.06")

	for _, job := range jobs {
		for _, line := range job.Lines {
			delivery := line.DeliveryDate.Format(shortDateLayout)
			doc.Orders = append(doc.Orders, xmlOrder{
				Signal: "submit",
				Plant:  entities.Plant,
				Header: xmlHeader{
					OrderCustomer: xmlOrderCustomer{
						Code:    entities.CustomerCode,
						Address: entities.BaseAddress,
						PO:      fmt.Sprintf("VMI %s %d", po, seq),
					},
					InvoiceCustomer: xmlCustomer{Address: entities.BaseAddress},
					DeliveryCustomer: xmlDeliveryCustomer{
						Address: line.DeliveryAddress,
						Date:    delivery,
						Method: xmlDeliveryMethod{
							Code:    entities.DeliveryMethod,
							Freight: xmlFreight{Prepaid: &struct{}{}},
						},
					},
					RequestOptions: xmlRequestOptions{
						POReceived: line.POReceived.Format(longDateLayout),
						CRIF:       delivery,
						CRIFShip:   delivery,
					},
				},
				Lines: xmlLines{Lines: []xmlLine{{
					Quantity: int64(entities.RoundUpToPack(line.Quantity, g.packSize)),
					RunType:  "normal",
					Option: xmlOption{BookStockJob: &xmlPricedOption{
						Price:    line.Price.StringFixed(2),
						PriceQty: line.PriceQty,
					}},
					Item: xmlItem{CustomerReferenceNumber: string(line.Part)},
				}}},
			})
			seq++
		}
	}
	return doc, seq
}

func renderMovements(orders []entities.MovementOrder) xmlOrders {
	var doc xmlOrders
	for _, order := range orders {
		for i, line := range order.Lines {
			option := &xmlPricedOption{
				JobNumber: line.JobNumber,
				Price:     line.Price.Truncate(0).String(),
				PriceQty:  line.PriceQty,
			}
			var opts xmlOption
			if line.UseWIP {
				opts.FailIfInsufficientWIP = option
			} else {
				opts.FailIfInsufficientStock = option
			}

			doc.Orders = append(doc.Orders, xmlOrder{
				Signal: "submit",
				Plant:  entities.Plant,
				Header: xmlHeader{
					OrderCustomer: xmlOrderCustomer{
						Code:    entities.CustomerCode,
						Address: entities.BaseAddress,
						PO:      order.OrderNumber,
						RO:      fmt.Sprintf("%03d", i+1),
					},
					InvoiceCustomer: xmlCustomer{Code: entities.CustomerCode, Address: entities.BaseAddress},
					DeliveryCustomer: xmlDeliveryCustomer{
						Code:    entities.CustomerCode,
						Address: line.DeliveryAddress,
						Date:    line.DeliveryDate.Format(longDateLayout),
						Method: xmlDeliveryMethod{
							Code:    entities.DeliveryMethod,
							Freight: xmlFreight{Collect: &struct{}{}},
						},
					},
					RequestOptions: xmlRequestOptions{
						POReceived: line.POReceived.Format(longDateLayout),
						CRIF:       line.POReceived.Format(longDateLayout),
					},
				},
				Lines: xmlLines{Lines: []xmlLine{{
					Quantity: int64(line.Quantity),
					RunType:  "normal",
					Option:   opts,
					Item:     xmlItem{ItemCode: line.ItemCode},
				}}},
			})
		}
	}
	return doc
}

func (g *Generator) withStockDefaults(line entities.StockJobLine, now time.Time) entities.StockJobLine {
	if line.DeliveryAddress == "" {
		line.DeliveryAddress = entities.DefaultStockJobAddress
	}
	if line.DeliveryDate.IsZero() {
		line.DeliveryDate = now.Add(DefaultDeliveryLead)
	}
	if line.POReceived.IsZero() {
		line.POReceived = now
	}
	if line.Price.IsZero() {
		line.Price = entities.DefaultStockJobPrice
	}
	if line.PriceQty <= 0 {
		line.PriceQty = entities.DefaultPriceQty
	}
	return line
}

func withMovementDefaults(line entities.MovementLine, now time.Time) entities.MovementLine {
	if line.DeliveryAddress == "" {
		line.DeliveryAddress = entities.DefaultMovementAddress
	}
	if line.DeliveryDate.IsZero() {
		line.DeliveryDate = now
	}
	if line.POReceived.IsZero() {
		line.POReceived = now
	}
	if line.Price.IsZero() {
		line.Price = entities.DefaultMovementPrice
	}
	if line.PriceQty <= 0 {
		line.PriceQty = entities.DefaultPriceQty
	}
	return line
}

// letterSuffix maps 0, 1, ... 25, 26, 27 to a, b, ... z, aa, ab
func letterSuffix(n int) string {
	var b []byte
	for n++; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('a' + (n-1)%26)}, b...)
	}
	return string(b)
}
