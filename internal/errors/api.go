package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
)

// APIError represents a structured error response of the status server
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// NewAPIError creates a new APIError with the given parameters
func NewAPIError(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

var (
	ErrNotFound         = NewAPIError(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrRunNotStarted    = NewAPIError(http.StatusServiceUnavailable, "RUN_NOT_STARTED", "No pipeline run has started yet")
	ErrMethodNotAllowed = NewAPIError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
)

// FromPipelineError maps a run failure onto an API error. Pipeline
// errors carry their stage and context as details.
func FromPipelineError(err error) *APIError {
	var pe *PipelineError
	if !stderrors.As(err, &pe) {
		return &APIError{
			StatusCode: http.StatusInternalServerError,
			ErrorCode:  "INTERNAL_ERROR",
			Message:    err.Error(),
		}
	}
	status := http.StatusUnprocessableEntity
	if pe.Kind == KindInvalidConfig {
		status = http.StatusInternalServerError
	}
	details := map[string]interface{}{"stage": pe.Stage}
	for k, v := range pe.Context {
		details[k] = v
	}
	return &APIError{
		StatusCode: status,
		ErrorCode:  fmt.Sprintf("PIPELINE_%s", strings.ToUpper(string(pe.Kind))),
		Message:    err.Error(),
		Details:    details,
	}
}
