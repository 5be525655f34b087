package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"goattrib/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the code of a wrapped AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the error code if err carries an AppError, otherwise "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeDatabaseError    = "DATABASE_ERROR"
	CodeValidationError  = "VALIDATION_ERROR"
	CodeInvalidParameter = "INVALID_PARAMETER"
	CodeSingularDesign   = "SINGULAR_DESIGN"
	CodeNoData           = "NO_DATA"
	CodeModelNotFitted   = "MODEL_NOT_FITTED"
	CodeUnknownFeature   = "UNKNOWN_FEATURE"
	CodeNotFound         = "NOT_FOUND"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeInvalidInput     = "INVALID_INPUT"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

// DatabaseError tags a storage failure; cause may be nil
func DatabaseError(cause error, message string) *AppError {
	return &AppError{
		Code:    CodeDatabaseError,
		Message: message,
		Cause:   cause,
	}
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// FromDomain classifies a domain error into an AppError. The original error
// stays reachable through Unwrap.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	code := CodeInternalError
	switch {
	case stderrors.Is(err, core.ErrValidation):
		code = CodeValidationError
	case stderrors.Is(err, core.ErrInvalidParameter):
		code = CodeInvalidParameter
	case stderrors.Is(err, core.ErrSingularDesign):
		code = CodeSingularDesign
	case stderrors.Is(err, core.ErrNoData):
		code = CodeNoData
	case stderrors.Is(err, core.ErrModelNotFitted):
		code = CodeModelNotFitted
	case stderrors.Is(err, core.ErrUnknownFeature):
		code = CodeUnknownFeature
	case stderrors.Is(err, core.ErrSessionNotFound):
		code = CodeNotFound
	}
	return &AppError{Code: code, Message: err.Error(), Cause: err}
}

// HTTPStatus maps an error code onto a response status
func HTTPStatus(code string) int {
	switch code {
	case CodeValidationError, CodeInvalidParameter, CodeNoData,
		CodeModelNotFitted, CodeUnknownFeature, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeSingularDesign:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
