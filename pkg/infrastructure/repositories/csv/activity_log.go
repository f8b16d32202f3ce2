package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

var activityHeaderRow = []string{"Timestamp", "Type", "Message", "Details", "Part Number", "Quantity", "PO Number", "XML File"}

// ActivityLog appends audit events to a daily CSV file: <dir>/YYYY-MM-DD_activity.csv
type ActivityLog struct {
	dir    string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewActivityLog creates an activity log rooted at dir, creating it if needed
func NewActivityLog(dir string, logger *zap.Logger) (*ActivityLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityLog{dir: dir, logger: logger}, nil
}

// Verify interface compliance
var _ repositories.AuditLog = (*ActivityLog)(nil)

// PathFor returns the file holding events for the day of t
func (l *ActivityLog) PathFor(t time.Time) string {
	return filepath.Join(l.dir, t.Format("2006-01-02")+"_activity.csv")
}

// Record appends event to the file for its day. Write failures are logged, not returned.
func (l *ActivityLog) Record(ctx context.Context, event entities.AuditEvent) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	if err := l.append(event); err != nil {
		l.logger.Error("failed to write activity log",
			zap.String("type", string(event.Type)),
			zap.String("message", event.Message),
			zap.Error(err))
	}
}

func (l *ActivityLog) append(event entities.AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.PathFor(event.Time)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open activity log %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat activity log %s: %w", path, err)
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(activityHeaderRow); err != nil {
			return err
		}
	}
	if err := writer.Write(formatActivity(event)); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// EntriesFor reads back the events recorded on the day of t
func (l *ActivityLog) EntriesFor(t time.Time) ([]entities.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.PathFor(t)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open activity log %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read activity log header: %w", err)
	}

	var events []entities.AuditEvent
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read activity log %s: %w", path, err)
		}
		if len(record) < len(activityHeaderRow) {
			continue
		}
		ts, err := time.ParseInLocation(entities.LedgerTimestampLayout, record[0], time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid activity timestamp: %s", record[0])
		}
		qty, _ := strconv.ParseInt(record[5], 10, 64)
		events = append(events, entities.AuditEvent{
			Type:        entities.AuditEventType(record[1]),
			Time:        ts,
			Message:     record[2],
			Details:     record[3],
			Part:        entities.PartNumber(record[4]),
			Quantity:    entities.Quantity(qty),
			OrderNumber: record[6],
			Document:    record[7],
		})
	}
	return events, nil
}

func formatActivity(e entities.AuditEvent) []string {
	qty := ""
	if e.Quantity != 0 {
		qty = strconv.FormatInt(int64(e.Quantity), 10)
	}
	details := e.Details
	if e.File != "" {
		if details != "" {
			details += "; "
		}
		details += "file " + e.File
	}
	return []string{
		e.Time.Format(entities.LedgerTimestampLayout),
		string(e.Type),
		e.Message,
		details,
		string(e.Part),
		qty,
		e.OrderNumber,
		e.Document,
	}
}
