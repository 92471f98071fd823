package http

import (
	"errors"
	"log/slog"
	"net/http"

	mw "github.com/lorrc/workload-insights/internal/adapters/primary/http/middleware"
	apperrors "github.com/lorrc/workload-insights/internal/core/errors"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
}

// ValidationErrorResponse carries field-level validation errors.
type ValidationErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// errorMapping translates a sentinel to a response. An empty message echoes
// the error text, which is how parameter problems reach the caller.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorMappings is matched in order, so specific sentinels come before the
// generic ones they wrap.
var errorMappings = []errorMapping{
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"},
	{apperrors.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action"},

	{apperrors.ErrEmployeeNotFound, http.StatusNotFound, "EMPLOYEE_NOT_FOUND", "Employee not found"},
	{apperrors.ErrProjectNotFound, http.StatusNotFound, "PROJECT_NOT_FOUND", "Project not found"},
	{apperrors.ErrAlertNotFound, http.StatusNotFound, "ALERT_NOT_FOUND", "Risk alert not found"},
	{apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "Resource not found"},

	{apperrors.ErrAlertAlreadyResolved, http.StatusConflict, "ALERT_ALREADY_RESOLVED", "Risk alert is already resolved"},
	{apperrors.ErrConflict, http.StatusConflict, "CONFLICT", "Resource conflict"},

	{apperrors.ErrInvalidPeriod, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrInvalidWeeks, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrInvalidRiskType, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrInvalidSeverity, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{apperrors.ErrBadRequest, http.StatusBadRequest, "VALIDATION_ERROR", ""},

	{apperrors.ErrDataAccess, http.StatusServiceUnavailable, "DATA_UNAVAILABLE", "Workload data could not be read. Please try again later."},
	{apperrors.ErrStrategyUnavailable, http.StatusServiceUnavailable, "DATA_UNAVAILABLE", "Workload data could not be read. Please try again later."},

	{apperrors.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later."},
}

// ErrorHandler writes service errors as JSON and logs them.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates an error handler.
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle writes the response for err.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.log(r, appErr.StatusCode, appErr.Err)
		WriteJSON(w, appErr.StatusCode, ErrorResponse{
			Error:     appErr.Message,
			Code:      appErr.Code,
			Details:   appErr.Details,
			RequestID: mw.GetRequestID(r.Context()),
		})
		return
	}

	var validationErrs *apperrors.ValidationErrors
	if errors.As(err, &validationErrs) {
		h.log(r, http.StatusUnprocessableEntity, err)
		WriteJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:  "Validation failed",
			Code:   "VALIDATION_ERROR",
			Fields: validationErrs.Errors,
		})
		return
	}

	status, response := mapError(err)
	response.RequestID = mw.GetRequestID(r.Context())
	h.log(r, status, err)
	WriteJSON(w, status, response)
}

func mapError(err error) (int, ErrorResponse) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.message
		if msg == "" {
			msg = err.Error()
		}
		return m.status, ErrorResponse{Error: msg, Code: m.code}
	}
	return http.StatusInternalServerError, ErrorResponse{
		Error: "An unexpected error occurred",
		Code:  "INTERNAL_ERROR",
	}
}

// log reports server faults at error and caller mistakes at warn. The
// request id and caller come from the context handler.
func (h *ErrorHandler) log(r *http.Request, status int, err error) {
	level := slog.LevelWarn
	msg := "client error"
	if status >= http.StatusInternalServerError {
		level, msg = slog.LevelError, "server error"
	}
	h.logger.Log(r.Context(), level, msg,
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", status,
		"error", err,
	)
}

// HandleError writes err when it is non-nil and reports whether it did.
//
//	if HandleError(w, r, err, h.errorHandler) { return }
func HandleError(w http.ResponseWriter, r *http.Request, err error, handler *ErrorHandler) bool {
	if err == nil {
		return false
	}
	handler.Handle(w, r, err)
	return true
}
