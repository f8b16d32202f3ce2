package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/vsinha/vmi/pkg/interfaces/cli/commands"
)

func main() {
	// Command line flags
	var (
		configFile = flag.String("config", "", "Path to configuration file")
		file       = flag.String("file", "", "Feed file to parse")
		month      = flag.String("month", "", "Month for summary (YYYY-MM)")
		outputDir  = flag.String("output", "", "Output directory for results (optional)")
		format     = flag.String("format", "text", "Output format: text, json, csv")
		verbose    = flag.Bool("verbose", false, "Enable verbose output")
		help       = flag.Bool("help", false, "Show help message")
	)

	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	config := commands.Config{
		Command:    flag.Arg(0),
		ConfigFile: *configFile,
		File:       *file,
		Month:      *month,
		OutputDir:  *outputDir,
		Format:     *format,
		Verbose:    *verbose,
		Help:       *help,
	}

	cmd := commands.NewVMICommand(config)
	ctx := context.Background()

	if err := cmd.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
