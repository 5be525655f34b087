package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors - centralized error definitions
var (
	// Validation errors fail a whole ingestion and are never partially applied
	ErrValidation               = errors.New("dataset validation failed")
	ErrInsufficientObservations = fmt.Errorf("%w: insufficient observations", ErrValidation)
	ErrMissingColumns           = fmt.Errorf("%w: columns not found", ErrValidation)
	ErrDuplicateColumnNames     = fmt.Errorf("%w: duplicate column names", ErrValidation)
	ErrDateParse                = fmt.Errorf("%w: date column could not be parsed", ErrValidation)
	ErrTableTooLarge            = fmt.Errorf("%w: table exceeds row limit", ErrValidation)

	// Fit errors
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrSingularDesign   = errors.New("design matrix is singular")

	// Session errors
	ErrNoData          = errors.New("no dataset loaded")
	ErrModelNotFitted  = errors.New("model not fitted")
	ErrUnknownFeature  = errors.New("unknown feature")
	ErrSessionNotFound = errors.New("session not found")
)

// Error constructors with context
func NewInsufficientObservationsError(rows, required int) error {
	return fmt.Errorf("%w: %d rows, at least %d required", ErrInsufficientObservations, rows, required)
}

func NewMissingColumnsError(missing []string) error {
	sorted := append([]string(nil), missing...)
	sort.Strings(sorted)
	return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(sorted, ", "))
}

func NewDuplicateColumnsError(duplicates []string) error {
	return fmt.Errorf("%w: %s", ErrDuplicateColumnNames, strings.Join(duplicates, ", "))
}

func NewDateParseError(column string, row int, raw string) error {
	return fmt.Errorf("%w: column %q row %d value %q", ErrDateParse, column, row, raw)
}

func NewInvalidParameterError(name string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidParameter, name, reason)
}

func NewUnknownFeatureError(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownFeature, name)
}

// Error checking helpers
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsCallerError reports whether err is caused by the request itself rather
// than by numerical trouble or infrastructure.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidParameter) ||
		errors.Is(err, ErrUnknownFeature) ||
		errors.Is(err, ErrModelNotFitted) ||
		errors.Is(err, ErrNoData)
}
