package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"goattrib/domain/core"
	"goattrib/domain/dataset"
	"goattrib/internal"

	"github.com/xuri/excelize/v2"
)

// Format is a supported upload format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var (
	// ErrUnsupportedFormat is returned for file extensions other than csv/xlsx
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported file format", core.ErrValidation)
	// ErrEmptyTable is returned when a file has no header or no data rows
	ErrEmptyTable = fmt.Errorf("%w: file must have a header row and at least one data row", core.ErrValidation)
)

// DetectFormat picks the format from a file name
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q (expected .csv or .xlsx)", ErrUnsupportedFormat, filepath.Base(filename))
}

// DataReader reads CSV and Excel uploads into raw tables
type DataReader struct {
	logger *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(logger *internal.Logger) *DataReader {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &DataReader{logger: logger.With("reader")}
}

// ReadFile reads a table from disk, choosing the format by extension
func (r *DataReader) ReadFile(path string) (*dataset.Table, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return r.Read(f, format)
}

// Read parses src in the given format
func (r *DataReader) Read(src io.Reader, format Format) (*dataset.Table, error) {
	start := time.Now()
	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatCSV:
		rows, err = r.readCSV(src)
	case FormatXLSX:
		rows, err = r.readExcel(src)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	table, err := processRows(rows)
	if err != nil {
		return nil, err
	}
	r.logger.Info("[DataReader] %s parsed in %.2fms (%d columns, %d rows)",
		strings.ToUpper(string(format)), float64(time.Since(start).Microseconds())/1e3,
		len(table.Columns), len(table.Rows))
	return table, nil
}

// readExcel reads the first worksheet. Cells come back unformatted so
// numbers keep full precision; date-styled serials are rendered as ISO dates.
func (r *DataReader) readExcel(src io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Excel file: %v", core.ErrValidation, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %q: %v", core.ErrValidation, sheet, err)
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	dateStyles := make(map[int]bool)
	converted := 0
	for i, row := range rows {
		for j, cell := range row {
			serial, err := strconv.ParseFloat(cell, 64)
			if err != nil || !isDateCell(f, sheet, j+1, i+1, dateStyles) {
				continue
			}
			t, err := excelize.ExcelDateToTime(serial, date1904)
			if err != nil {
				continue
			}
			if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
				row[j] = t.Format("2006-01-02")
			} else {
				row[j] = t.Format("2006-01-02 15:04:05")
			}
			converted++
		}
	}
	r.logger.Debug("[DataReader] sheet %q read (%d rows, %d date cells)", sheet, len(rows), converted)
	return rows, nil
}

// isDateCell reports whether the cell at (col, row) carries a date or time
// number format. Results are cached per style ID.
func isDateCell(f *excelize.File, sheet string, col, row int, cache map[int]bool) bool {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	styleID, err := f.GetCellStyle(sheet, axis)
	if err != nil {
		return false
	}
	if isDate, ok := cache[styleID]; ok {
		return isDate
	}
	isDate := false
	if style, err := f.GetStyle(styleID); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			isDate = isDateFormatCode(*style.CustomNumFmt)
		} else {
			isDate = isBuiltInDateFormat(style.NumFmt)
		}
	}
	cache[styleID] = isDate
	return isDate
}

// isBuiltInDateFormat covers the built-in date and time number formats
func isBuiltInDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode looks for day, month or year tokens outside quoted
// literals and bracketed sections
func isDateFormatCode(code string) bool {
	inQuote, inBracket := false, false
	for _, ch := range strings.ToLower(code) {
		switch {
		case ch == '"':
			inQuote = !inQuote
		case inQuote:
		case ch == '[':
			inBracket = true
		case ch == ']':
			inBracket = false
		case inBracket:
		case ch == 'd', ch == 'm', ch == 'y':
			return true
		}
	}
	return false
}

func (r *DataReader) readCSV(src io.Reader) ([][]string, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV file: %v", core.ErrValidation, err)
	}
	return rows, nil
}

// processRows splits the header from the data, trimming cells and
// dropping blank lines. Unnamed headers become column_<n>.
func processRows(rows [][]string) (*dataset.Table, error) {
	for len(rows) > 0 && isBlank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) < 2 {
		return nil, ErrEmptyTable
	}

	headerRow := rows[0]
	if len(headerRow) > 0 {
		headerRow[0] = strings.TrimPrefix(headerRow[0], "\ufeff")
	}
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
		if headers[i] == "" {
			headers[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	table := &dataset.Table{Columns: headers}
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		cells := make([]string, len(headers))
		for j := 0; j < len(headers) && j < len(row); j++ {
			cells[j] = strings.TrimSpace(row[j])
		}
		table.Rows = append(table.Rows, cells)
	}
	if len(table.Rows) == 0 {
		return nil, ErrEmptyTable
	}
	return table, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// WriteCSV writes table as CSV
func WriteCSV(w io.Writer, table *dataset.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(table.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteXLSX writes table to the first sheet of a new workbook
func WriteXLSX(w io.Writer, table *dataset.Table) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	write := func(rowIdx int, values []string) error {
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &cells)
	}

	if err := write(1, table.Columns); err != nil {
		return err
	}
	for i, row := range table.Rows {
		if err := write(i+2, row); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}
