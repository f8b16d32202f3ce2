package feed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

const maxLineLength = 1024 * 1024

// ParseError describes one feed line that was skipped
type ParseError struct {
	Line   int
	Reason string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("Line %d: %s", e.Line, e.Reason)
}

// Result holds the orders recovered from a feed and the lines that were skipped
type Result struct {
	Orders      []*entities.PurchaseOrder
	Diagnostics []ParseError
}

// Lines returns every order line across all orders in feed order
func (r *Result) Lines() []entities.OrderLine {
	var lines []entities.OrderLine
	for _, po := range r.Orders {
		lines = append(lines, po.Lines...)
	}
	return lines
}

// OrderNumbers returns the distinct order numbers in feed order
func (r *Result) OrderNumbers() []string {
	seen := make(map[string]bool)
	var numbers []string
	for _, po := range r.Orders {
		n := strings.TrimSpace(po.Header.OrderNumber)
		if !seen[n] {
			seen[n] = true
			numbers = append(numbers, n)
		}
	}
	return numbers
}

// Parser turns order feeds into purchase orders
type Parser struct {
	now func() time.Time
}

// NewParser creates a parser. now supplies the due date for lines without one.
func NewParser(now func() time.Time) *Parser {
	if now == nil {
		now = time.Now
	}
	return &Parser{now: now}
}

// ParseFile parses the feed at path. A missing file is reported as
// repositories.ErrFileNotFound before any parsing starts.
func (p *Parser) ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", repositories.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to open feed %s: %w", path, err)
	}
	defer f.Close()

	return p.Parse(f)
}

// Parse reads a feed line by line. Only read failures are returned as errors;
// malformed lines become diagnostics.
func (p *Parser) Parse(r io.Reader) (*Result, error) {
	now := p.now()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	acc := accumulator{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		acc = acc.step(lineNo, scanner.Text(), now)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feed at line %d: %w", lineNo+1, err)
	}
	acc = acc.flush()

	return &Result{Orders: acc.orders, Diagnostics: acc.diagnostics}, nil
}

// accumulator is the scan state carried from line to line. Each step returns
// a new value; current is the order being built, nil outside any header.
type accumulator struct {
	current     *entities.PurchaseOrder
	orders      []*entities.PurchaseOrder
	diagnostics []ParseError
}

func (a accumulator) step(lineNo int, raw string, now time.Time) accumulator {
	line := strings.TrimRight(strings.ToValidUTF8(raw, ""), " \t\r\n")
	if line == "" {
		return a
	}

	kind, disc, ok := Classify(line)
	if !ok {
		return a.report(lineNo, "Too short to parse")
	}

	switch kind {
	case RecordHeader:
		a = a.flush()
		header, err := ParseHeader(line)
		if err != nil {
			return a.report(lineNo, "Failed to parse header: "+err.Error())
		}
		po, _ := entities.NewPurchaseOrder(header, nil)
		a.current = po
		return a

	case RecordDetail:
		detail, err := ParseDetail(line, now)
		if err != nil {
			return a.report(lineNo, "Failed to parse detail: "+err.Error())
		}
		if a.current == nil {
			return a.report(lineNo, "Detail without a preceding header")
		}
		next, err := a.current.WithLine(detail)
		if err != nil {
			return a.report(lineNo, "Detail does not match header: "+err.Error())
		}
		a.current = next
		return a

	default:
		return a.report(lineNo, fmt.Sprintf("Unknown record type '%c'", disc))
	}
}

// flush emits the current order if it has at least one line
func (a accumulator) flush() accumulator {
	if a.current != nil && len(a.current.Lines) > 0 {
		a.orders = append(a.orders, a.current)
	}
	a.current = nil
	return a
}

func (a accumulator) report(lineNo int, reason string) accumulator {
	a.diagnostics = append(a.diagnostics, ParseError{Line: lineNo, Reason: reason})
	return a
}
