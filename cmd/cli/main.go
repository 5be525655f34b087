package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"goattrib/adapters/excel"
	"goattrib/adapters/report"
	"goattrib/app"
	"goattrib/domain/core"
	"goattrib/domain/dataset"
	"goattrib/domain/model"
	"goattrib/internal"
	"goattrib/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "goattrib-cli",
		Short: "Fit marketing attribution models from CSV or Excel files",
	}

	rootCmd.AddCommand(
		newFitCmd(os.Stdout),
		newInspectCmd(os.Stdout),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type fitOptions struct {
	file      string
	date      string
	target    string
	features  []string
	controls  []string
	ridge     bool
	alpha     float64
	bootstrap int
	seed      int64
	simulate  string
	format    string
	verbose   bool
}

func newFitCmd(out io.Writer) *cobra.Command {
	opts := fitOptions{}

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit an OLS or ridge attribution model and print a summary",
		Long: `Load a CSV or XLSX file, fit the attribution model and print the summary.

Example: goattrib-cli fit --file data.csv --date Date --target Sales --features Channel_A,Channel_B --controls Control --simulate Channel_A=10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd.Context(), out, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "CSV or XLSX input file")
	cmd.Flags().StringVar(&opts.date, "date", "Date", "Date column")
	cmd.Flags().StringVar(&opts.target, "target", "", "Target column")
	cmd.Flags().StringSliceVar(&opts.features, "features", nil, "Feature (channel) columns")
	cmd.Flags().StringSliceVar(&opts.controls, "controls", nil, "Control columns")
	cmd.Flags().BoolVar(&opts.ridge, "ridge", false, "Use ridge regression")
	cmd.Flags().Float64Var(&opts.alpha, "alpha", app.DefaultRidgeAlpha, "Ridge penalty")
	cmd.Flags().IntVar(&opts.bootstrap, "bootstrap", app.DefaultBootstrapSamples, "Bootstrap resamples (0 disables)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 42, "Random seed for the bootstrap")
	cmd.Flags().StringVar(&opts.simulate, "simulate", "", "Scenario as name=pct pairs, e.g. Channel_A=10,Channel_B=-5")
	cmd.Flags().StringVar(&opts.format, "report", "md", "Output format: md|html|json")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Log progress to stderr")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("features")

	return cmd
}

func newInspectCmd(out io.Writer) *cobra.Command {
	var file, date, target string
	var features, controls []string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Validate a file and print the cleaned dataset summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, id, warnings, err := load(cmd.Context(), fitOptions{
				file: file, date: date, target: target, features: features, controls: controls,
			})
			if err != nil {
				return err
			}
			status, err := svc.Status(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(out, map[string]interface{}{"dataset": status, "warnings": warnings})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "CSV or XLSX input file")
	cmd.Flags().StringVar(&date, "date", "Date", "Date column")
	cmd.Flags().StringVar(&target, "target", "", "Target column")
	cmd.Flags().StringSliceVar(&features, "features", nil, "Feature (channel) columns")
	cmd.Flags().StringSliceVar(&controls, "controls", nil, "Control columns")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func load(ctx context.Context, opts fitOptions) (*app.AttributionService, core.SessionID, []model.Warning, error) {
	logger := internal.NewNopLogger()
	if opts.verbose {
		logger = internal.NewLogger(internal.LogLevelDebug)
	}

	table, err := excel.NewDataReader(logger).ReadFile(opts.file)
	if err != nil {
		return nil, "", nil, err
	}

	cfg := config.Default()
	cfg.Model.BootstrapSeed = opts.seed
	svc := app.NewAttributionService(cfg, nil, nil, logger)
	id := svc.CreateSession()

	_, warnings, err := svc.LoadDataset(ctx, id, table, dataset.ColumnMapping{
		DateColumn:     opts.date,
		TargetColumn:   opts.target,
		FeatureColumns: opts.features,
		ControlColumns: opts.controls,
	})
	if err != nil {
		return nil, "", nil, err
	}
	return svc, id, warnings, nil
}

func runFit(ctx context.Context, out io.Writer, opts fitOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	changes, err := parseChanges(opts.simulate)
	if err != nil {
		return err
	}

	svc, id, _, err := load(ctx, opts)
	if err != nil {
		return err
	}

	req := model.FitRequest{Method: model.MethodOLS, BootstrapSamples: &opts.bootstrap, Seed: &opts.seed}
	if opts.ridge {
		req.Method = model.MethodRidge
		req.Alpha = &opts.alpha
	}
	result, err := svc.Fit(ctx, id, req)
	if err != nil {
		return err
	}

	var scenario *model.ScenarioResult
	if changes != nil {
		if scenario, err = svc.Simulate(ctx, id, changes); err != nil {
			return err
		}
	}

	if strings.EqualFold(opts.format, "json") {
		return writeJSON(out, map[string]interface{}{"fit": result, "scenario": scenario})
	}

	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	md := report.Markdown(result)
	if scenario != nil {
		md += scenarioMarkdown(scenario)
	}
	if format == report.FormatHTML {
		_, err = out.Write(report.ToHTML(md))
		return err
	}
	_, err = io.WriteString(out, md)
	return err
}

// parseChanges reads "A=10,B=-5" into percentage changes; empty means none
func parseChanges(raw string) (map[string]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	changes := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, core.NewInvalidParameterError("simulate", fmt.Sprintf("expected name=pct, got %q", pair))
		}
		pct, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, core.NewInvalidParameterError("simulate", fmt.Sprintf("invalid percentage for %s: %q", name, value))
		}
		changes[name] = pct
	}
	return changes, nil
}

func scenarioMarkdown(s *model.ScenarioResult) string {
	var b strings.Builder
	b.WriteString("\n## Scenario\n\n")
	names := make([]string, 0, len(s.ChangesApplied))
	for name := range s.ChangesApplied {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %+.1f%%\n", name, s.ChangesApplied[name])
	}
	fmt.Fprintf(&b, "\nBaseline %.2f → scenario %.2f (Δ %.2f, %+.2f%%)\n",
		s.BaselinePrediction, s.ScenarioPrediction, s.Delta, s.DeltaPercentage)
	return b.String()
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
