package feed

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/vmi/pkg/domain/entities"
)

const (
	discriminatorOffset = 10
	headerMinLength     = 17
	detailMinLength     = 50
	detailBodyOffset    = 14
	centuryPivot        = 50
)

// RecordType is the kind of a feed line, read from the discriminator column
type RecordType int

const (
	RecordUnknown RecordType = iota
	RecordHeader
	RecordDetail
)

// String method for RecordType enum
func (r RecordType) String() string {
	switch r {
	case RecordHeader:
		return "Header"
	case RecordDetail:
		return "Detail"
	default:
		return "Unknown"
	}
}

var (
	quantityPattern = regexp.MustCompile(`(\d+)EA`)
	pricePattern    = regexp.MustCompile(`^\d{5}\.\d{4,5}`)
	dueDatePattern  = regexp.MustCompile(`0?(\d{1,2})/(\d{1,2})/(\d{4})`)
)

// Classify returns the record type of a right-trimmed line and the raw discriminator.
// ok is false when the line is too short to carry a discriminator.
func Classify(line string) (RecordType, byte, bool) {
	if len(line) <= discriminatorOffset {
		return RecordUnknown, 0, false
	}
	switch c := line[discriminatorOffset]; c {
	case 'H':
		return RecordHeader, c, true
	case 'D':
		return RecordDetail, c, true
	default:
		return RecordUnknown, c, true
	}
}

// ParseHeader parses a header record: site(4) order(6) 'H' date(6, MMDDYY)
func ParseHeader(line string) (*entities.OrderHeader, error) {
	line = strings.TrimRight(line, " \t\r\n")
	if len(line) < headerMinLength {
		return nil, fmt.Errorf("header shorter than %d characters", headerMinLength)
	}
	if line[discriminatorOffset] != 'H' {
		return nil, fmt.Errorf("not a header record")
	}

	date, err := parseHeaderDate(line[11:17])
	if err != nil {
		return nil, err
	}

	return entities.NewOrderHeader(line[0:4], line[4:10], date)
}

func parseHeaderDate(field string) (time.Time, error) {
	for _, r := range field {
		if r < '0' || r > '9' {
			return time.Time{}, fmt.Errorf("date %q is not numeric", field)
		}
	}
	month, _ := strconv.Atoi(field[0:2])
	day, _ := strconv.Atoi(field[2:4])
	year, _ := strconv.Atoi(field[4:6])
	if year < centuryPivot {
		year += 2000
	} else {
		year += 1900
	}
	return calendarDate(year, month, day)
}

// calendarDate builds a date, rejecting values time.Date would normalize
func calendarDate(year, month, day int) (time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month %d out of range", month)
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if day < 1 || d.Day() != day {
		return time.Time{}, fmt.Errorf("day %d out of range for %04d-%02d", day, year, month)
	}
	return d, nil
}

// FormatHeader renders the fixed-width prefix of a header record
func FormatHeader(h entities.OrderHeader) string {
	return fmt.Sprintf("%-4.4s%-6.6sH%02d%02d%02d",
		h.Site, h.OrderNumber, int(h.OrderDate.Month()), h.OrderDate.Day(), h.OrderDate.Year()%100)
}

// ParseDetail parses a detail record. The body after the line number has no
// fixed columns; see detailScanner for how it is split.
func ParseDetail(line string, now time.Time) (entities.OrderLine, error) {
	line = strings.TrimRight(line, " \t\r\n")
	if len(line) < detailMinLength {
		return entities.OrderLine{}, fmt.Errorf("detail shorter than %d characters", detailMinLength)
	}
	if line[discriminatorOffset] != 'D' {
		return entities.OrderLine{}, fmt.Errorf("not a detail record")
	}

	lineNumber := 0
	if field := strings.TrimSpace(line[11:14]); field != "" {
		n, err := strconv.Atoi(field)
		if err != nil {
			return entities.OrderLine{}, fmt.Errorf("line number %q is not numeric", field)
		}
		lineNumber = n
	}

	s := &detailScanner{body: line[detailBodyOffset:], now: now}
	if err := s.run(); err != nil {
		return entities.OrderLine{}, err
	}

	return entities.OrderLine{
		Site:        line[0:4],
		OrderNumber: line[4:10],
		LineNumber:  lineNumber,
		Part:        entities.PartNumber(s.part),
		Quantity:    s.quantity,
		UnitPrice:   s.price,
		DueDate:     s.dueDate,
	}, nil
}

type scanState int

const (
	stateAnchor scanState = iota
	statePart
	statePrice
	stateDueDate
	stateDone
)

// detailScanner walks a detail body in four steps. The quantity anchor is the
// last run of digits followed by "EA"; the part id is whatever precedes it.
// Price and due date are optional and fall back to zero and the processing date.
type detailScanner struct {
	body string
	now  time.Time

	state     scanState
	anchor    []int
	remainder string

	part     string
	quantity entities.Quantity
	price    decimal.Decimal
	dueDate  time.Time
}

func (s *detailScanner) run() error {
	for s.state != stateDone {
		var err error
		switch s.state {
		case stateAnchor:
			err = s.readQuantity()
		case statePart:
			s.readPart()
		case statePrice:
			err = s.readPrice()
		case stateDueDate:
			err = s.readDueDate()
		}
		if err != nil {
			return err
		}
		s.state++
	}
	return nil
}

func (s *detailScanner) readQuantity() error {
	matches := quantityPattern.FindAllStringSubmatchIndex(s.body, -1)
	if len(matches) == 0 {
		return fmt.Errorf("no quantity followed by EA")
	}
	s.anchor = matches[len(matches)-1]

	qty, err := strconv.ParseInt(s.body[s.anchor[2]:s.anchor[3]], 10, 64)
	if err != nil {
		return fmt.Errorf("quantity %q out of range", s.body[s.anchor[2]:s.anchor[3]])
	}
	s.quantity = entities.Quantity(qty)
	s.remainder = s.body[s.anchor[1]:]
	return nil
}

func (s *detailScanner) readPart() {
	s.part = strings.TrimSpace(s.body[:s.anchor[2]])
}

func (s *detailScanner) readPrice() error {
	s.price = decimal.Zero
	match := pricePattern.FindString(s.remainder)
	if match == "" {
		return nil
	}
	price, err := decimal.NewFromString(match)
	if err != nil {
		return fmt.Errorf("price %q: %w", match, err)
	}
	s.price = price
	s.remainder = s.remainder[len(match):]
	return nil
}

func (s *detailScanner) readDueDate() error {
	m := dueDatePattern.FindStringSubmatch(s.remainder)
	if m == nil {
		y, mo, d := s.now.Date()
		s.dueDate = time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
		return nil
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	due, err := calendarDate(year, month, day)
	if err != nil {
		return fmt.Errorf("due date: %w", err)
	}
	s.dueDate = due
	return nil
}
