package repositories

import (
	"context"
	"io"
	"time"

	"github.com/vsinha/vmi/pkg/domain/entities"
)

// FileInfo identifies an intake file and the modification time it was seen with
type FileInfo struct {
	Name    string
	Path    string
	ModTime time.Time
}

// Intake is the location order feeds and forecast workbooks arrive in
type Intake interface {
	ListOrderFiles(ctx context.Context) ([]FileInfo, error)
	Open(ctx context.Context, file FileInfo) (io.ReadCloser, error)
	Remove(ctx context.Context, file FileInfo) error
	LatestForecastFile(ctx context.Context) (FileInfo, bool, error)
}

// DocumentSink persists rendered documents. Write fails with ErrDocumentExists
// when name is already taken so the caller can advance to the next name.
type DocumentSink interface {
	Exists(ctx context.Context, name string) (bool, error)
	Write(ctx context.Context, name string, data []byte) (string, error)
}

// AuditLog accepts structured activity events. Recording never fails the caller.
type AuditLog interface {
	Record(ctx context.Context, event entities.AuditEvent)
}

// RetryScheduler arranges a later retry of an ingestion cycle
type RetryScheduler interface {
	ScheduleRetry(after time.Duration)
}
