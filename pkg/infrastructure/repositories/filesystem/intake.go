package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/vsinha/vmi/pkg/domain/repositories"
)

const (
	// DefaultOrderPattern matches order feed files in the hot folder
	DefaultOrderPattern = "*.txt"
	// DefaultForecastPattern matches forecast workbooks
	DefaultForecastPattern = "*.xlsx"
)

// Intake reads order feeds from a hot folder and forecast workbooks from a
// separate folder. An empty forecast folder disables forecast tracking.
type Intake struct {
	orderDir        string
	forecastDir     string
	orderPattern    string
	forecastPattern string
}

// Verify interface compliance
var _ repositories.Intake = (*Intake)(nil)

// NewIntake creates a directory intake
func NewIntake(orderDir, forecastDir string) *Intake {
	return &Intake{
		orderDir:        orderDir,
		forecastDir:     forecastDir,
		orderPattern:    DefaultOrderPattern,
		forecastPattern: DefaultForecastPattern,
	}
}

// OrderDir returns the hot folder path
func (in *Intake) OrderDir() string {
	return in.orderDir
}

// ListOrderFiles returns the order feeds in the hot folder sorted by name
func (in *Intake) ListOrderFiles(ctx context.Context) ([]repositories.FileInfo, error) {
	if in.orderDir == "" {
		return nil, fmt.Errorf("order folder: %w", repositories.ErrNotConfigured)
	}
	if _, err := os.Stat(in.orderDir); err != nil {
		return nil, fmt.Errorf("failed to read order folder %s: %w", in.orderDir, err)
	}
	return glob(in.orderDir, in.orderPattern)
}

// Open opens an order feed for reading
func (in *Intake) Open(ctx context.Context, file repositories.FileInfo) (io.ReadCloser, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", file.Path, repositories.ErrFileNotFound)
		}
		return nil, fmt.Errorf("failed to open %s: %w", file.Path, err)
	}
	return f, nil
}

// Remove deletes a processed order feed. A file that is already gone is not an error.
func (in *Intake) Remove(ctx context.Context, file repositories.FileInfo) error {
	if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", file.Path, err)
	}
	return nil
}

// LatestForecastFile returns the most recently modified forecast workbook
func (in *Intake) LatestForecastFile(ctx context.Context) (repositories.FileInfo, bool, error) {
	if in.forecastDir == "" {
		return repositories.FileInfo{}, false, nil
	}
	if _, err := os.Stat(in.forecastDir); os.IsNotExist(err) {
		return repositories.FileInfo{}, false, nil
	}

	files, err := glob(in.forecastDir, in.forecastPattern)
	if err != nil {
		return repositories.FileInfo{}, false, err
	}
	if len(files) == 0 {
		return repositories.FileInfo{}, false, nil
	}

	latest := files[0]
	for _, f := range files[1:] {
		if f.ModTime.After(latest.ModTime) {
			latest = f
		}
	}
	return latest, true, nil
}

func glob(dir, pattern string) ([]repositories.FileInfo, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(matches)

	files := make([]repositories.FileInfo, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, repositories.FileInfo{
			Name:    info.Name(),
			Path:    path,
			ModTime: info.ModTime(),
		})
	}
	return files, nil
}
