package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"goattrib/adapters/excel"
	"goattrib/domain/dataset"
	"goattrib/internal/testkit"
)

func main() {
	out := flag.String("out", "example_data.csv", "output file path (.csv or .xlsx)")
	months := flag.Int("months", 12, "number of monthly rows")
	seed := flag.Int64("seed", 42, "RNG seed (deterministic)")
	start := flag.String("start", "2024-01-01", "first month (YYYY-MM-DD)")
	preset := flag.String("preset", "three-channel", "dataset shape: three-channel or two-channel")
	flag.Parse()

	cfg, err := buildConfig(*preset, *months, *seed, *start)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	table := generate(cfg)
	if err := writeTable(*out, table); err != nil {
		fmt.Fprintln(os.Stderr, "error writing dataset:", err)
		os.Exit(1)
	}

	fmt.Printf("Synthetic dataset written: %s\n", *out)
	fmt.Printf("Columns: %s | Rows: %d\n", strings.Join(table.Columns, ", "), len(table.Rows))
}

func buildConfig(preset string, months int, seed int64, start string) (testkit.MarketingGeneratorConfig, error) {
	var cfg testkit.MarketingGeneratorConfig
	switch strings.ToLower(strings.TrimSpace(preset)) {
	case "three-channel", "":
		cfg = testkit.DefaultMarketingConfig()
	case "two-channel":
		cfg = testkit.TwoChannelConfig()
	default:
		return cfg, fmt.Errorf("unknown preset %q", preset)
	}

	if months <= 0 {
		return cfg, fmt.Errorf("months must be > 0")
	}
	startDate, err := time.ParseInLocation("2006-01-02", start, time.UTC)
	if err != nil {
		return cfg, fmt.Errorf("invalid -start (expected YYYY-MM-DD): %w", err)
	}

	cfg.Periods = months
	cfg.Seed = seed
	cfg.StartDate = startDate
	return cfg, nil
}

// generate renders one synthetic dataset as a raw table
func generate(cfg testkit.MarketingGeneratorConfig) *dataset.Table {
	return testkit.NewMarketingDataGenerator(cfg).Generate().Table()
}

func writeTable(path string, table *dataset.Table) error {
	format, err := excel.DetectFormat(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var write func(io.Writer, *dataset.Table) error = excel.WriteCSV
	if format == excel.FormatXLSX {
		write = excel.WriteXLSX
	}
	if err := write(f, table); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
