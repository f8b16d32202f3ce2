package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vsinha/vmi/pkg/domain/repositories"
)

// DocumentSink writes documents into an output directory. Files are created
// exclusively so two writers can never share a name.
type DocumentSink struct {
	dir string
}

// Verify interface compliance
var _ repositories.DocumentSink = (*DocumentSink)(nil)

// NewDocumentSink creates a sink writing into dir, creating it if needed
func NewDocumentSink(dir string) (*DocumentSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return &DocumentSink{dir: dir}, nil
}

// Exists reports whether a document named name is already present
func (s *DocumentSink) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", name, err)
}

// Write creates name and writes data to it
func (s *DocumentSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%s: %w", name, repositories.ErrDocumentExists)
		}
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}
