package preprocess

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"goattrib/domain/core"
	"goattrib/domain/dataset"
	"goattrib/domain/model"
	"goattrib/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(rows int) *dataset.Table {
	t := &dataset.Table{Columns: []string{"Date", "Sales", "Channel_A", "Channel_B", "Control_1"}}
	for i := 0; i < rows; i++ {
		t.Rows = append(t.Rows, []string{
			fmt.Sprintf("2024-%02d-01", 12-i%12),
			fmt.Sprintf("%d", 1000+i*10),
			fmt.Sprintf("%d", 100+i),
			fmt.Sprintf("%d", 200+2*i),
			fmt.Sprintf("%.1f", float64(i%3)),
		})
	}
	return t
}

func sampleMapping() dataset.ColumnMapping {
	return dataset.ColumnMapping{
		DateColumn:     "Date",
		TargetColumn:   "Sales",
		FeatureColumns: []string{"Channel_A"},
		ControlColumns: []string{},
	}
}

func TestLoad_Success(t *testing.T) {
	p := NewPreprocessor(0, nil)
	data := testkit.NewMarketingDataGenerator(testkit.TwoChannelConfig()).Generate()

	ds, warnings, err := p.Load(data.Table(), data.Mapping())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, 24, ds.Len())
	assert.Equal(t, "Date", ds.DateColumn)
	assert.Equal(t, "Sales", ds.TargetColumn)
	assert.Equal(t, []string{"Channel_A", "Channel_B"}, ds.FeatureColumns)
	assert.Equal(t, []string{"Control"}, ds.ControlColumns)
	assert.Equal(t, []string{"Channel_A", "Channel_B", "Control"}, ds.PredictorNames())
	assert.False(t, ds.Fingerprint.IsEmpty())
	assert.InDelta(t, data.Channels[0][0], ds.Features[0][0], 0.01)
}

func TestLoad_SortsByDate(t *testing.T) {
	p := NewPreprocessor(0, nil)
	mapping := sampleMapping()

	ds, _, err := p.Load(sampleTable(12), mapping)
	require.NoError(t, err)

	for i := 1; i < ds.Len(); i++ {
		assert.True(t, !ds.Dates[i].Before(ds.Dates[i-1]), "dates not ascending at %d", i)
	}
	// row 11 holds 2024-01-01 and sales 1110
	assert.Equal(t, 1110.0, ds.Target[0])
	assert.Equal(t, 1000.0, ds.Target[11])
}

func TestLoad_InsufficientObservations(t *testing.T) {
	p := NewPreprocessor(0, nil)

	_, _, err := p.Load(sampleTable(5), sampleMapping())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInsufficientObservations))
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestLoad_RowsPerPredictor(t *testing.T) {
	p := NewPreprocessor(0, nil)
	mapping := sampleMapping()
	mapping.FeatureColumns = []string{"Channel_A", "Channel_B"}

	_, _, err := p.Load(sampleTable(12), mapping)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInsufficientObservations))
	assert.Contains(t, err.Error(), "at least 20 required")
}

func TestLoad_TableTooLarge(t *testing.T) {
	p := NewPreprocessor(11, nil)

	_, _, err := p.Load(sampleTable(12), sampleMapping())
	assert.True(t, errors.Is(err, core.ErrTableTooLarge))
}

func TestLoad_MissingColumns(t *testing.T) {
	p := NewPreprocessor(0, nil)
	mapping := sampleMapping()
	mapping.FeatureColumns = []string{"NonExistentColumn", "AlsoMissing"}

	_, _, err := p.Load(sampleTable(24), mapping)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMissingColumns))
	assert.Contains(t, err.Error(), "AlsoMissing, NonExistentColumn")
}

func TestLoad_DuplicateColumns(t *testing.T) {
	p := NewPreprocessor(0, nil)
	mapping := sampleMapping()
	mapping.ControlColumns = []string{"Channel_A"}

	_, _, err := p.Load(sampleTable(24), mapping)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDuplicateColumnNames))
}

func TestLoad_DateParseError(t *testing.T) {
	p := NewPreprocessor(0, nil)
	table := sampleTable(12)
	table.Rows[4][0] = "sometime in spring"

	_, _, err := p.Load(table, sampleMapping())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDateParse))
	assert.Contains(t, err.Error(), "row 5")
}

func TestLoad_EmptyMapping(t *testing.T) {
	p := NewPreprocessor(0, nil)

	_, _, err := p.Load(sampleTable(12), dataset.ColumnMapping{DateColumn: "Date", TargetColumn: "Sales"})
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestLoad_TrimsColumnNames(t *testing.T) {
	p := NewPreprocessor(0, nil)
	mapping := dataset.ColumnMapping{
		DateColumn:     " Date",
		TargetColumn:   "Sales ",
		FeatureColumns: []string{" Channel_A ", ""},
	}

	ds, _, err := p.Load(sampleTable(12), mapping)
	require.NoError(t, err)
	assert.Equal(t, []string{"Channel_A"}, ds.FeatureColumns)
}

func TestLoad_NaNHandling(t *testing.T) {
	p := NewPreprocessor(0, nil)
	table := &dataset.Table{Columns: []string{"Date", "Sales", "Channel_A"}}
	sales := []string{"100", "", "150", "180", "n/a", "200", "220", "250", "230", "210", "190", "180"}
	for i, s := range sales {
		table.Rows = append(table.Rows, []string{fmt.Sprintf("2024-%02d-01", i+1), s, fmt.Sprintf("%d", 50+i)})
	}

	ds, _, err := p.Load(table, sampleMapping())
	require.NoError(t, err)

	for _, v := range ds.Target {
		assert.False(t, math.IsNaN(v))
	}
	assert.Equal(t, 125.0, ds.Target[1])
	assert.Equal(t, 190.0, ds.Target[4])
	assert.Equal(t, 2, ds.FilledCells["Sales"])
}

func TestLoad_AllMissingColumn(t *testing.T) {
	p := NewPreprocessor(0, nil)
	table := sampleTable(12)
	for _, row := range table.Rows {
		row[2] = "unknown"
	}

	ds, warnings, err := p.Load(table, sampleMapping())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, model.WarningColumnAllMissing, warnings[0].Kind)
	assert.Equal(t, "Channel_A", warnings[0].Subject)
	for _, v := range ds.Features[0] {
		assert.Equal(t, 0.0, v)
	}
}

func TestInterpolate(t *testing.T) {
	nan := math.NaN()

	values := []float64{1, nan, 3, nan, nan}
	filled := Interpolate(values)
	assert.Equal(t, []float64{1, 2, 3, 3, 3}, values)
	assert.Equal(t, 3, filled)

	leading := []float64{nan, nan, 4, 6}
	Interpolate(leading)
	assert.Equal(t, []float64{4, 4, 4, 6}, leading)

	gap := []float64{0, nan, nan, 3}
	Interpolate(gap)
	assert.InDeltaSlice(t, []float64{0, 1, 2, 3}, gap, 1e-12)

	empty := []float64{nan, nan}
	assert.Equal(t, 0, Interpolate(empty))
	n, ok := FillMean(empty)
	assert.Equal(t, 2, n)
	assert.False(t, ok)
	assert.Equal(t, []float64{0, 0}, empty)
}

func TestFillMean(t *testing.T) {
	values := []float64{2, math.NaN(), 4}
	n, ok := FillMean(values)
	assert.True(t, ok)
	assert.Equal(t, 1, n)
	assert.Equal(t, []float64{2, 3, 4}, values)
}

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		ok       bool
	}{
		{"42", 42, true},
		{" 3.5 ", 3.5, true},
		{"$1,234.50", 1234.5, true},
		{"12,345,678", 12345678, true},
		{"(250)", -250, true},
		{"1.234,56", 1234.56, true},
		{"1 234,56", 1234.56, true},
		{"2,5", 2.5, true},
		{"15%", 15, true},
		{"-7", -7, true},
		{"1e3", 1000, true},
		{"", 0, false},
		{"NA", 0, false},
		{"-", 0, false},
		{"abc", 0, false},
		{"Inf", 0, false},
	}

	for _, tt := range tests {
		v, ok := ParseNumeric(tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
		if tt.ok {
			assert.InDelta(t, tt.expected, v, 1e-9, "input %q", tt.input)
		}
	}
}

func TestParseDate(t *testing.T) {
	for _, input := range []string{
		"2024-03-01", "2024-03-01T10:00:00Z", "2024-03-01 10:00:00",
		"03/01/2024", "2024/03/01", "01-Mar-2024", "2024-03", "03-01-24", "45352",
	} {
		d, ok := ParseDate(input)
		require.True(t, ok, "input %q", input)
		assert.Equal(t, 2024, d.Year())
		assert.Equal(t, 3, int(d.Month()))
	}

	_, ok := ParseDate("yesterday")
	assert.False(t, ok)
	_, ok = ParseDate("0")
	assert.False(t, ok)
	_, ok = ParseDate("20240301")
	assert.False(t, ok)
}
