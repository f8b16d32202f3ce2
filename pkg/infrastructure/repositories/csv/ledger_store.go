package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

var ledgerHeader = []string{"timestamp", "po number", "part number", "site", "quantity", "quantity rounded", "entry id"}

var ledgerHeaderRow = []string{"Timestamp", "PO Number", "Part Number", "Site", "Quantity", "Quantity Rounded", "Entry ID"}

// minLedgerColumns is the column count of files written before entry ids were stored
const minLedgerColumns = 6

// LedgerStore keeps one CSV file per month partition: <dir>/YYYY-MM_orders.csv.
// Rows are written and synced to disk before Append returns.
type LedgerStore struct {
	dir string
	loc *time.Location
	mu  sync.Mutex
}

// NewLedgerStore creates a ledger store rooted at dir, creating it if needed
func NewLedgerStore(dir string) (*LedgerStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory %s: %w", dir, err)
	}
	return &LedgerStore{dir: dir, loc: time.Local}, nil
}

// Verify interface compliance
var _ repositories.LedgerRepository = (*LedgerStore)(nil)

// PartitionPath returns the file backing a partition
func (s *LedgerStore) PartitionPath(p entities.Partition) string {
	return filepath.Join(s.dir, p.Key()+"_orders.csv")
}

// Append writes entries to the end of the partition file in a single write.
// A failed write is truncated away so the batch is all-or-nothing. A torn
// final row left by an interrupted earlier append is dropped first.
func (s *LedgerStore) Append(ctx context.Context, p entities.Partition, entries []*entities.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.PartitionPath(p)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger file %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat ledger file %s: %w", path, err)
	}
	size, err := trimTornRow(file, info.Size())
	if err != nil {
		return fmt.Errorf("failed to repair ledger file %s: %w", path, err)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if size == 0 {
		if err := writer.Write(ledgerHeaderRow); err != nil {
			return fmt.Errorf("failed to write ledger header: %w", err)
		}
	}
	for _, e := range entries {
		if err := writer.Write(formatLedgerEntry(e)); err != nil {
			return fmt.Errorf("failed to write ledger row for order %s: %w", e.OrderNumber, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to encode ledger rows: %w", err)
	}

	if _, err := file.WriteAt(buf.Bytes(), size); err != nil {
		_ = file.Truncate(size)
		return fmt.Errorf("failed to write ledger file %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Truncate(size)
		return fmt.Errorf("failed to sync ledger file %s: %w", path, err)
	}
	return nil
}

// trimTornRow truncates file after its last newline when it does not end in
// one, and returns the resulting size
func trimTornRow(file *os.File, size int64) (int64, error) {
	if size == 0 {
		return 0, nil
	}

	const chunk = 4096
	buf := make([]byte, chunk)
	end := size
	for end > 0 {
		start := end - chunk
		if start < 0 {
			start = 0
		}
		n, err := file.ReadAt(buf[:end-start], start)
		if err != nil && err != io.EOF {
			return 0, err
		}
		if end == size && n > 0 && buf[n-1] == '\n' {
			return size, nil
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			keep := start + int64(i) + 1
			return keep, file.Truncate(keep)
		}
		end = start
	}
	return 0, file.Truncate(0)
}

// Entries reads a partition file in row order. A missing file is an empty partition.
func (s *LedgerStore) Entries(ctx context.Context, p entities.Partition) ([]*entities.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.PartitionPath(p)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*entities.LedgerEntry{}, nil
		}
		return nil, fmt.Errorf("failed to open ledger file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []*entities.LedgerEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger header %s: %w", path, err)
	}
	if !validateHeader(header, ledgerHeader) {
		return nil, fmt.Errorf("ledger CSV header mismatch in %s. Expected: %v, Got: %v", path, ledgerHeaderRow, header)
	}

	var entries []*entities.LedgerEntry
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ledger CSV %s row %d: %w", path, row, err)
		}
		// a torn final row from an interrupted append is ignored
		if len(record) < minLedgerColumns {
			continue
		}
		entry, err := s.parseLedgerEntry(record)
		if err != nil {
			return nil, fmt.Errorf("ledger CSV %s row %d: %w", path, row, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// HasOrder reports whether any row of the partition carries orderNumber
func (s *LedgerStore) HasOrder(ctx context.Context, p entities.Partition, orderNumber string) (bool, error) {
	entries, err := s.Entries(ctx, p)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.OrderNumber == orderNumber {
			return true, nil
		}
	}
	return false, nil
}

func formatLedgerEntry(e *entities.LedgerEntry) []string {
	return []string{
		e.Timestamp.Format(entities.LedgerTimestampLayout),
		e.OrderNumber,
		string(e.Part),
		e.Site,
		strconv.FormatInt(int64(e.Quantity), 10),
		strconv.FormatInt(int64(e.QuantityRounded), 10),
		e.ID,
	}
}

func (s *LedgerStore) parseLedgerEntry(record []string) (*entities.LedgerEntry, error) {
	ts, err := time.ParseInLocation(entities.LedgerTimestampLayout, record[0], s.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %s", record[0])
	}
	qty, err := strconv.ParseInt(strings.TrimSpace(record[4]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity: %s", record[4])
	}
	rounded, err := strconv.ParseInt(strings.TrimSpace(record[5]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity rounded: %s", record[5])
	}

	entry := &entities.LedgerEntry{
		Timestamp:       ts,
		OrderNumber:     strings.TrimSpace(record[1]),
		Part:            entities.PartNumber(record[2]),
		Site:            strings.TrimSpace(record[3]),
		Quantity:        entities.Quantity(qty),
		QuantityRounded: entities.Quantity(rounded),
	}
	if len(record) > minLedgerColumns {
		entry.ID = record[6]
	}
	return entry, nil
}

// validateHeader accepts the current header or the header without the entry id column
func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) && len(actual) != minLedgerColumns {
		return false
	}

	for i, col := range actual {
		if strings.ToLower(strings.TrimSpace(col)) != expected[i] {
			return false
		}
	}

	return true
}
