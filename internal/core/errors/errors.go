package errors

import (
	"errors"
	"fmt"

	"github.com/lorrc/workload-insights/internal/core/domain"
)

// Domain errors - these represent lookups and rule violations
var (
	// Authentication & Authorization
	ErrForbidden    = errors.New("action forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	// Workload
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrProjectNotFound  = errors.New("project not found")
	ErrInvalidPeriod    = domain.ErrInvalidPeriod
	ErrInvalidWeeks     = errors.New("weeks must be between 1 and 52")

	// Risk alerts
	ErrAlertNotFound        = errors.New("risk alert not found")
	ErrAlertAlreadyResolved = errors.New("risk alert already resolved")
	ErrInvalidRiskType      = errors.New("invalid risk type")
	ErrInvalidSeverity      = errors.New("invalid severity")

	// Data access
	ErrDataAccess          = errors.New("data source unavailable")
	ErrStrategyUnavailable = errors.New("data retrieval strategy unavailable")

	// Generic
	ErrNotFound    = errors.New("resource not found")
	ErrBadRequest  = errors.New("bad request")
	ErrConflict    = errors.New("resource conflict")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// DataAccessError reports a failed read or write against a backing store.
// It matches ErrDataAccess with errors.Is so callers can tell "could not read"
// apart from "nothing found".
type DataAccessError struct {
	Op  string
	Err error
}

// NewDataAccessError wraps err as a data access failure of op. A nil err
// stays nil, and errors that already are data access failures pass through.
func NewDataAccessError(op string, err error) error {
	if err == nil {
		return nil
	}
	var dae *DataAccessError
	if errors.As(err, &dae) {
		return err
	}
	return &DataAccessError{Op: op, Err: err}
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error {
	return e.Err
}

func (e *DataAccessError) Is(target error) bool {
	return target == ErrDataAccess
}

// DetectorError is a failure isolated to one risk detector.
type DetectorError struct {
	Detector domain.RiskType
	Err      error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector %s failed: %v", e.Detector, e.Err)
}

func (e *DetectorError) Unwrap() error {
	return e.Err
}

// AppError wraps errors with additional context for HTTP responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewUnauthorizedError reports a request without valid credentials.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		StatusCode: 401,
	}
}

// ValidationErrors holds multiple field validation errors
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}
