package preprocess

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	currencySymbols = []string{"$", "€", "£", "¥", "USD", "EUR", "GBP", "JPY"}
	// 1,234 or 12,345,678 with optional .decimals
	thousandsComma = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)
	missingMarkers = map[string]bool{
		"": true, "na": true, "n/a": true, "nan": true, "null": true, "none": true, "-": true,
	}
)

// ParseNumeric converts a raw cell into a float. Empty, NA-like and
// non-numeric cells report ok=false and are treated as missing.
// Handles parentheses for negatives, currency symbols, percent signs,
// thousands separators and European decimal commas.
func ParseNumeric(raw string) (float64, bool) {
	clean := strings.TrimSpace(raw)
	if missingMarkers[strings.ToLower(clean)] {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		clean = strings.TrimSuffix(strings.TrimPrefix(clean, "("), ")")
		negative = true
	}

	for _, symbol := range currencySymbols {
		clean = strings.ReplaceAll(clean, symbol, "")
	}
	clean = strings.TrimSpace(strings.ReplaceAll(clean, "%", ""))

	hasComma := strings.Contains(clean, ",")
	hasPeriod := strings.Contains(clean, ".")
	hasSpace := strings.Contains(clean, " ")

	switch {
	case hasComma && thousandsComma.MatchString(clean):
		clean = strings.ReplaceAll(clean, ",", "")
	case hasComma && (hasPeriod || hasSpace):
		// 1.234,56 or 1 234,56
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, " ", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	case hasComma:
		clean = strings.ReplaceAll(clean, ",", ".")
	default:
		clean = strings.ReplaceAll(clean, " ", "")
	}

	if negative {
		clean = "-" + clean
	}

	val, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, false
	}
	return val, true
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"01-02-06",
	"2006/01/02",
	"02-Jan-2006",
	"Jan 2006",
	"2006-01",
}

// maxExcelSerial is 9999-12-31 in the 1900 date system
const maxExcelSerial = 2958465

// ParseDate parses a date cell using the supported layouts, falling back to
// an Excel serial day number for bare numeric cells
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial < 1 || serial > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
