package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/vsinha/vmi/pkg/application/dto"
	"github.com/vsinha/vmi/pkg/domain/entities"
	"github.com/vsinha/vmi/pkg/infrastructure/feed"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
	Writer    io.Writer
}

func (c Config) writer() io.Writer {
	if c.Writer == nil {
		return os.Stdout
	}
	return c.Writer
}

// Generate writes a cycle result in the configured format
func Generate(result *dto.CycleResult, config Config) error {
	switch config.Format {
	case "", "text":
		return generateTextOutput(result, config)
	case "json":
		return writeJSON(result, config, "cycle_result.json")
	case "csv":
		return generateCSVOutput(result, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// generateTextOutput creates human-readable text output
func generateTextOutput(result *dto.CycleResult, config Config) error {
	w := config.writer()

	fmt.Fprintf(w, "📊 Ingestion Cycle %s\n", result.ID)
	fmt.Fprintf(w, "======================\n\n")
	fmt.Fprintf(w, "Trigger: %s (attempt %d)\n", result.Trigger, result.Attempt)
	fmt.Fprintf(w, "Status: %s\n", result.Status())
	fmt.Fprintf(w, "Files: %d processed, %d skipped, %d failed\n",
		result.FilesWithStatus(dto.FileProcessed),
		result.FilesWithStatus(dto.FileSkipped),
		result.FilesWithStatus(dto.FileFailed))
	if result.ForecastSource != "" {
		reloaded := ""
		if result.ForecastLoaded {
			reloaded = " (reloaded)"
		}
		fmt.Fprintf(w, "Forecast: %s%s\n", result.ForecastSource, reloaded)
	}
	if result.RetryScheduled {
		fmt.Fprintf(w, "Hot folder empty, retry scheduled\n")
	}
	fmt.Fprintf(w, "Duration: %v\n\n", result.Duration)

	for _, f := range result.Files {
		fmt.Fprintf(w, "📄 %s [%s]\n", f.Name, f.Status)
		if len(f.OrdersRecorded) > 0 {
			fmt.Fprintf(w, "  Recorded: %v\n", f.OrdersRecorded)
		}
		if len(f.OrdersSkipped) > 0 {
			fmt.Fprintf(w, "  Already recorded: %v\n", f.OrdersSkipped)
		}
		if f.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", f.Error)
		}
		if config.Verbose {
			for _, d := range f.Diagnostics {
				fmt.Fprintf(w, "  ! %s\n", d)
			}
		}

		if len(f.Decisions) > 0 {
			fmt.Fprintf(w, "  %-20s %-6s %-10s %-13s %-10s %s\n",
				"Part Number", "Site", "Qty", "Action", "Source", "Job")
			fmt.Fprintf(w, "  %-20s %-6s %-10s %-13s %-10s %s\n",
				"--------------------", "------", "----------", "-------------", "----------", "----------")
			for _, d := range f.Decisions {
				fmt.Fprintf(w, "  %-20s %-6s %-10d %-13s %-10s %s\n",
					d.Part, d.Site, d.Quantity, d.Action, d.Source, d.JobNumber)
				if config.Verbose {
					fmt.Fprintf(w, "    %s\n", d.Rationale)
				}
			}
		}
		for _, doc := range f.Documents {
			fmt.Fprintf(w, "  💾 %s (%d orders)\n", doc.Path, doc.Orders)
		}
		fmt.Fprintln(w)
	}

	if len(result.Alerts) > 0 {
		fmt.Fprintf(w, "⚠️  Alerts:\n")
		for _, a := range result.Alerts {
			fmt.Fprintf(w, "  %s: %s", a.Title, a.Message)
			if a.Details != "" {
				fmt.Fprintf(w, " (%s)", a.Details)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "❌ Errors:\n")
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	return nil
}

// writeJSON prints v as JSON, or saves it under name in the output directory
func writeJSON(v interface{}, config Config, name string) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if config.OutputDir == "" {
		fmt.Fprintln(config.writer(), string(jsonData))
		return nil
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	filename := filepath.Join(config.OutputDir, name)
	if err := os.WriteFile(filename, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	if config.Verbose {
		fmt.Fprintf(config.writer(), "💾 JSON results saved to: %s\n", filename)
	}
	return nil
}

// generateCSVOutput writes one row per coverage decision
func generateCSVOutput(result *dto.CycleResult, config Config) error {
	if config.OutputDir == "" {
		return fmt.Errorf("output directory required for CSV format")
	}
	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := filepath.Join(config.OutputDir, "decisions.csv")
	if err := writeDecisionsCSV(result, filename); err != nil {
		return fmt.Errorf("failed to write decisions CSV: %w", err)
	}
	if config.Verbose {
		fmt.Fprintf(config.writer(), "💾 CSV results saved to: %s\n", filename)
	}
	return nil
}

func writeDecisionsCSV(result *dto.CycleResult, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"file", "part_number", "site", "order_qty", "forecast_qty", "action", "source",
		"job_number", "item_code", "quantity", "fg", "wip", "secondary_fg", "jobs", "rationale"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, file := range result.Files {
		for _, d := range file.Decisions {
			row := []string{
				file.Name, string(d.Part), d.Site,
				qty(d.OrderQuantity), qty(d.ForecastQuantity),
				d.Action.String(), d.Source.String(), d.JobNumber, d.ItemCode, qty(d.Quantity),
				qty(d.Available.FG), qty(d.Available.WIP), qty(d.Available.SecondaryFG), qty(d.Available.Jobs),
				d.Rationale,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func qty(q entities.Quantity) string {
	return strconv.FormatInt(int64(q), 10)
}

// GenerateParse writes the orders and diagnostics recovered from one feed
func GenerateParse(result *feed.Result, config Config) error {
	if config.Format == "json" {
		return writeJSON(parseView(result), config, "parse_result.json")
	}

	w := config.writer()
	fmt.Fprintf(w, "📋 Orders: %d, Lines: %d, Diagnostics: %d\n\n", len(result.Orders), len(result.Lines()), len(result.Diagnostics))
	for _, po := range result.Orders {
		fmt.Fprintf(w, "%s\n", po)
		for _, line := range po.Lines {
			fmt.Fprintf(w, "  %s  price %s\n", line, line.UnitPrice.String())
		}
	}
	if len(result.Diagnostics) > 0 {
		fmt.Fprintf(w, "\n⚠️  Skipped lines:\n")
		for _, d := range result.Diagnostics {
			fmt.Fprintf(w, "  %s\n", d.Error())
		}
	}
	return nil
}

type parsedLine struct {
	Line      int    `json:"line"`
	Part      string `json:"part"`
	Quantity  int64  `json:"quantity"`
	Rounded   int64  `json:"quantity_rounded"`
	UnitPrice string `json:"unit_price"`
	DueDate   string `json:"due_date"`
}

type parsedOrder struct {
	Site        string       `json:"site"`
	OrderNumber string       `json:"order_number"`
	OrderDate   string       `json:"order_date"`
	Lines       []parsedLine `json:"lines"`
}

type parsedFeed struct {
	Orders      []parsedOrder `json:"orders"`
	Diagnostics []string      `json:"diagnostics"`
}

func parseView(result *feed.Result) parsedFeed {
	view := parsedFeed{Orders: []parsedOrder{}, Diagnostics: []string{}}
	for _, po := range result.Orders {
		order := parsedOrder{
			Site:        po.Header.Site,
			OrderNumber: po.Header.OrderNumber,
			OrderDate:   po.Header.OrderDate.Format("2006-01-02"),
		}
		for _, l := range po.Lines {
			order.Lines = append(order.Lines, parsedLine{
				Line:      l.LineNumber,
				Part:      string(l.Part),
				Quantity:  int64(l.Quantity),
				Rounded:   int64(l.QuantityRounded()),
				UnitPrice: l.UnitPrice.String(),
				DueDate:   l.DueDate.Format("2006-01-02"),
			})
		}
		view.Orders = append(view.Orders, order)
	}
	for _, d := range result.Diagnostics {
		view.Diagnostics = append(view.Diagnostics, d.Error())
	}
	return view
}

// GenerateMonthSummary writes cumulative ledger demand per part and site
func GenerateMonthSummary(partition entities.Partition, summary map[string]entities.DemandTotals, config Config) error {
	if config.Format == "json" {
		return writeJSON(summary, config, "summary_"+partition.Key()+".json")
	}

	w := config.writer()
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "📊 Demand for %s\n", partition.Key())
	fmt.Fprintf(w, "%-30s %-10s %-10s %-6s\n", "Part|Site", "Qty", "Rounded", "Lines")
	fmt.Fprintf(w, "%-30s %-10s %-10s %-6s\n", "------------------------------", "----------", "----------", "------")
	for _, k := range keys {
		t := summary[k]
		fmt.Fprintf(w, "%-30s %-10d %-10d %-6d\n", k, t.Quantity, t.QuantityRounded, t.Count)
	}
	return nil
}
