package xlsx

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/domain/repositories"
)

const (
	// headerSearchRows is how many leading rows are searched for the header
	headerSearchRows = 5
	// minForecastValue drops placeholder values some workbooks carry
	minForecastValue = 0.01
)

// ForecastLoader reads 52-week forecast workbooks. The header row is located
// by its part column; month columns are headed YYYYMM.
type ForecastLoader struct{}

// Verify interface compliance
var _ repositories.ForecastLoader = (*ForecastLoader)(nil)

// NewForecastLoader creates a forecast workbook loader
func NewForecastLoader() *ForecastLoader {
	return &ForecastLoader{}
}

type columns struct {
	part, description, site, total int
	months                         map[int]string
}

// Load reads every forecast record from the first sheet of the workbook at path
func (l *ForecastLoader) Load(ctx context.Context, path string) ([]*entities.ForecastRecord, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", path, repositories.ErrFileNotFound)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open forecast %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read forecast %s: %w", path, err)
	}
	return parseRows(rows)
}

func parseRows(rows [][]string) ([]*entities.ForecastRecord, error) {
	headerIdx := findHeader(rows)
	if headerIdx < 0 {
		return nil, fmt.Errorf("could not find 'Part #' column in the first %d rows", headerSearchRows)
	}

	cols := mapColumns(rows[headerIdx])
	if cols.part < 0 {
		return nil, fmt.Errorf("could not find 'Part #' column")
	}
	if cols.site < 0 {
		return nil, fmt.Errorf("could not find 'Site #' column")
	}

	var records []*entities.ForecastRecord
	for _, row := range rows[headerIdx+1:] {
		part := strings.TrimSpace(cell(row, cols.part))
		if part == "" {
			continue
		}

		record := &entities.ForecastRecord{
			Part:        entities.PartNumber(part),
			Description: strings.TrimSpace(cell(row, cols.description)),
			Site:        normalizeSite(cell(row, cols.site)),
			Monthly:     make(map[string]entities.Quantity),
		}
		if v, ok := number(cell(row, cols.total)); ok {
			record.YearlyTotal = entities.Quantity(math.Round(v))
		}
		for idx, key := range cols.months {
			v, ok := number(cell(row, idx))
			if !ok || v <= minForecastValue {
				continue
			}
			if qty := entities.Quantity(math.Round(v)); qty > 0 {
				record.Monthly[key] = qty
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func findHeader(rows [][]string) int {
	for i := 0; i < len(rows) && i < headerSearchRows; i++ {
		for _, v := range rows[i] {
			if strings.Contains(v, "Part #") || strings.Contains(v, "Label Part") {
				return i
			}
		}
	}
	return -1
}

func mapColumns(header []string) columns {
	cols := columns{part: -1, description: -1, site: -1, total: -1, months: make(map[int]string)}
	for idx, raw := range header {
		v := strings.TrimSpace(raw)
		switch {
		case v == "":
		case strings.Contains(v, "Part #"):
			cols.part = idx
		case strings.Contains(v, "Description"):
			cols.description = idx
		case strings.Contains(v, "Site"):
			cols.site = idx
		case strings.Contains(v, "52wk") || strings.Contains(v, "Sum"):
			cols.total = idx
		default:
			if key, ok := monthKey(v); ok {
				cols.months[idx] = key
			}
		}
	}
	return cols
}

// monthKey accepts YYYYMM, optionally followed by a decimal part
func monthKey(v string) (string, bool) {
	key, _, _ := strings.Cut(v, ".")
	if len(key) != 6 {
		return "", false
	}
	if _, err := strconv.Atoi(key); err != nil {
		return "", false
	}
	return key, true
}

// normalizeSite renders numeric sites without a fractional part
func normalizeSite(v string) string {
	v = strings.TrimSpace(v)
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return v
}

func number(v string) (float64, bool) {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
