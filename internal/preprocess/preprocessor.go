// Package preprocess turns a raw string table into a clean numeric dataset:
// it validates the column mapping, orders rows by date, coerces numeric
// columns and fills missing values.
package preprocess

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"goattrib/domain/core"
	"goattrib/domain/dataset"
	"goattrib/domain/model"
	"goattrib/internal"
)

const (
	// MinObservations is the smallest dataset accepted
	MinObservations = 10
	// ObservationsPerPredictor is the required rows per feature/control column
	ObservationsPerPredictor = 10
)

// Preprocessor validates and cleans raw tables
type Preprocessor struct {
	maxRows int
	logger  *internal.Logger
	now     func() time.Time
}

// NewPreprocessor creates a preprocessor rejecting tables above maxRows
// (0 disables the limit)
func NewPreprocessor(maxRows int, logger *internal.Logger) *Preprocessor {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Preprocessor{maxRows: maxRows, logger: logger.With("preprocess"), now: time.Now}
}

// RequiredObservations returns the minimum rows for a predictor count
func RequiredObservations(predictors int) int {
	required := ObservationsPerPredictor * predictors
	if required < MinObservations {
		return MinObservations
	}
	return required
}

// Load validates table against mapping and returns the cleaned dataset.
// Validation failures wrap core.ErrValidation and nothing is returned.
// Warnings report columns that had no numeric value at all.
func (p *Preprocessor) Load(table *dataset.Table, mapping dataset.ColumnMapping) (*dataset.Dataset, []model.Warning, error) {
	mapping = normalizeMapping(mapping)

	rows := table.NumRows()
	if rows < MinObservations {
		return nil, nil, core.NewInsufficientObservationsError(rows, MinObservations)
	}
	if p.maxRows > 0 && rows > p.maxRows {
		return nil, nil, fmt.Errorf("%w: %d rows, maximum %d", core.ErrTableTooLarge, rows, p.maxRows)
	}
	if mapping.DateColumn == "" || mapping.TargetColumn == "" || len(mapping.FeatureColumns) == 0 {
		return nil, nil, fmt.Errorf("%w: date, target and at least one feature column are required", core.ErrValidation)
	}

	selected := selectedColumns(mapping)
	if err := checkPresent(table, selected); err != nil {
		return nil, nil, err
	}
	if err := checkDuplicates(selected); err != nil {
		return nil, nil, err
	}
	predictors := len(mapping.FeatureColumns) + len(mapping.ControlColumns)
	if required := RequiredObservations(predictors); rows < required {
		return nil, nil, core.NewInsufficientObservationsError(rows, required)
	}

	dateIdx := table.ColumnIndex(mapping.DateColumn)
	dates := make([]time.Time, rows)
	for i := 0; i < rows; i++ {
		raw := table.Cell(i, dateIdx)
		t, ok := ParseDate(raw)
		if !ok {
			return nil, nil, core.NewDateParseError(mapping.DateColumn, i+1, raw)
		}
		dates[i] = t
	}

	order := make([]int, rows)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dates[order[a]].Before(dates[order[b]])
	})

	ds := &dataset.Dataset{
		DateColumn:     mapping.DateColumn,
		TargetColumn:   mapping.TargetColumn,
		FeatureColumns: mapping.FeatureColumns,
		ControlColumns: mapping.ControlColumns,
		Dates:          make([]time.Time, rows),
		FilledCells:    make(map[string]int),
		LoadedAt:       p.now(),
	}
	for i, src := range order {
		ds.Dates[i] = dates[src]
	}

	var warnings []model.Warning
	column := func(name string) []float64 {
		values := p.numericColumn(table, table.ColumnIndex(name), order)
		filled := Interpolate(values)
		extra, anyValid := FillMean(values)
		if !anyValid {
			warnings = append(warnings, model.NewWarning(model.WarningColumnAllMissing, name,
				"column %q has no numeric values; filled with 0", name))
			p.logger.Warn("[Preprocess] column %q has no numeric values, filled with 0", name)
		}
		if total := filled + extra; total > 0 {
			ds.FilledCells[name] = total
			p.logger.Debug("[Preprocess] filled %d missing cells in %q", total, name)
		}
		return values
	}

	ds.Target = column(mapping.TargetColumn)
	ds.Features = make([][]float64, len(mapping.FeatureColumns))
	for i, name := range mapping.FeatureColumns {
		ds.Features[i] = column(name)
	}
	ds.Controls = make([][]float64, len(mapping.ControlColumns))
	for i, name := range mapping.ControlColumns {
		ds.Controls[i] = column(name)
	}
	ds.Fingerprint = fingerprint(ds)

	p.logger.Info("[Preprocess] loaded %d observations (%d features, %d controls) fingerprint=%s",
		rows, len(ds.FeatureColumns), len(ds.ControlColumns), ds.Fingerprint)

	return ds, warnings, nil
}

func (p *Preprocessor) numericColumn(table *dataset.Table, col int, order []int) []float64 {
	values := make([]float64, len(order))
	for i, src := range order {
		if v, ok := ParseNumeric(table.Cell(src, col)); ok {
			values[i] = v
		} else {
			values[i] = math.NaN()
		}
	}
	return values
}

func normalizeMapping(m dataset.ColumnMapping) dataset.ColumnMapping {
	trimAll := func(names []string) []string {
		out := make([]string, 0, len(names))
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				out = append(out, n)
			}
		}
		return out
	}
	return dataset.ColumnMapping{
		DateColumn:     strings.TrimSpace(m.DateColumn),
		TargetColumn:   strings.TrimSpace(m.TargetColumn),
		FeatureColumns: trimAll(m.FeatureColumns),
		ControlColumns: trimAll(m.ControlColumns),
	}
}

func selectedColumns(m dataset.ColumnMapping) []string {
	cols := make([]string, 0, 2+len(m.FeatureColumns)+len(m.ControlColumns))
	cols = append(cols, m.DateColumn, m.TargetColumn)
	cols = append(cols, m.FeatureColumns...)
	return append(cols, m.ControlColumns...)
}

func checkPresent(table *dataset.Table, cols []string) error {
	var missing []string
	seen := make(map[string]bool)
	for _, c := range cols {
		if table.ColumnIndex(c) < 0 && !seen[c] {
			missing = append(missing, c)
			seen[c] = true
		}
	}
	if len(missing) > 0 {
		return core.NewMissingColumnsError(missing)
	}
	return nil
}

func checkDuplicates(cols []string) error {
	counts := make(map[string]int)
	var dups []string
	for _, c := range cols {
		counts[c]++
		if counts[c] == 2 {
			dups = append(dups, c)
		}
	}
	if len(dups) > 0 {
		return core.NewDuplicateColumnsError(dups)
	}
	return nil
}

func fingerprint(ds *dataset.Dataset) core.Fingerprint {
	b := core.NewFingerprintBuilder()
	b.WriteString(ds.DateColumn)
	b.WriteString(ds.TargetColumn)
	for _, name := range ds.PredictorNames() {
		b.WriteString(name)
	}
	for _, d := range ds.Dates {
		b.WriteInt64(d.UnixNano())
	}
	for _, v := range ds.Target {
		b.WriteFloat(v)
	}
	for _, col := range ds.Predictors() {
		for _, v := range col {
			b.WriteFloat(v)
		}
	}
	return b.Sum()
}
