package dataset

import (
	"time"

	"goattrib/domain/core"
)

// DatasetStatus represents whether a session holds data
type DatasetStatus string

const (
	StatusNoData DatasetStatus = "no_data"
	StatusReady  DatasetStatus = "ready"
)

// Table is the rectangular raw input handed over by a reader: one header
// row and string cells. Rows shorter than Columns are padded with empty cells.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NumRows returns the number of data rows
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of name, or -1
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the cell at row/col, empty when the row is short
func (t *Table) Cell(row, col int) string {
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// ColumnMapping selects the roles of table columns
type ColumnMapping struct {
	DateColumn     string   `json:"date_column"`
	TargetColumn   string   `json:"target_column"`
	FeatureColumns []string `json:"feature_columns"`
	ControlColumns []string `json:"control_columns,omitempty"`
}

// Dataset is the clean numeric snapshot produced by preprocessing.
// INVARIANTS:
// - rows sorted ascending by date
// - no NaN in Target, Features or Controls
// - Features[i] and Controls[j] have len(Dates) entries
// Immutable after construction; a new load supersedes it.
type Dataset struct {
	DateColumn     string   `json:"date_column"`
	TargetColumn   string   `json:"target_column"`
	FeatureColumns []string `json:"feature_columns"`
	ControlColumns []string `json:"control_columns"`

	Dates    []time.Time `json:"dates"`
	Target   []float64   `json:"target"`
	Features [][]float64 `json:"features"` // one slice per feature column
	Controls [][]float64 `json:"controls"` // one slice per control column

	// FilledCells counts interpolated or mean-filled cells per column
	FilledCells map[string]int   `json:"filled_cells"`
	Fingerprint core.Fingerprint `json:"fingerprint"`
	LoadedAt    time.Time        `json:"loaded_at"`
}

// Len returns the number of observations
func (d *Dataset) Len() int {
	return len(d.Target)
}

// PredictorNames returns feature names followed by control names
func (d *Dataset) PredictorNames() []string {
	names := make([]string, 0, len(d.FeatureColumns)+len(d.ControlColumns))
	names = append(names, d.FeatureColumns...)
	return append(names, d.ControlColumns...)
}

// Predictors returns feature columns followed by control columns
func (d *Dataset) Predictors() [][]float64 {
	cols := make([][]float64, 0, len(d.Features)+len(d.Controls))
	cols = append(cols, d.Features...)
	return append(cols, d.Controls...)
}

// DateRange returns the first and last date
func (d *Dataset) DateRange() (time.Time, time.Time) {
	if len(d.Dates) == 0 {
		return time.Time{}, time.Time{}
	}
	return d.Dates[0], d.Dates[len(d.Dates)-1]
}

// Status is the caller-facing summary of a loaded dataset
type Status struct {
	Status           DatasetStatus    `json:"status"`
	ObservationCount int              `json:"observations"`
	DateColumn       string           `json:"date_column"`
	TargetColumn     string           `json:"target_column"`
	FeatureColumns   []string         `json:"feature_columns"`
	ControlColumns   []string         `json:"control_columns"`
	DateStart        time.Time        `json:"date_start"`
	DateEnd          time.Time        `json:"date_end"`
	FilledCells      map[string]int   `json:"filled_cells,omitempty"`
	Fingerprint      core.Fingerprint `json:"fingerprint"`
	Fitted           bool             `json:"fitted"`
}

// NewStatus summarises d
func NewStatus(d *Dataset, fitted bool) *Status {
	start, end := d.DateRange()
	return &Status{
		Status:           StatusReady,
		ObservationCount: d.Len(),
		DateColumn:       d.DateColumn,
		TargetColumn:     d.TargetColumn,
		FeatureColumns:   append([]string(nil), d.FeatureColumns...),
		ControlColumns:   append([]string(nil), d.ControlColumns...),
		DateStart:        start,
		DateEnd:          end,
		FilledCells:      d.FilledCells,
		Fingerprint:      d.Fingerprint,
		Fitted:           fitted,
	}
}
