package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a pipeline failure
type Kind string

const (
	// KindStructuralMismatch marks a table or tensor whose shape breaks the
	// 14-rows-per-group contract
	KindStructuralMismatch Kind = "structural_mismatch"
	// KindBoundaryAmbiguity marks a row that falls on a partition boundary
	KindBoundaryAmbiguity Kind = "boundary_ambiguity"
	// KindOutOfRange marks a day-to-departure below the first period start
	KindOutOfRange Kind = "out_of_range"
	// KindInsufficientFutureData marks a future partition too small to pad
	// on its own
	KindInsufficientFutureData Kind = "insufficient_future_data"
	KindInvalidInput           Kind = "invalid_input"
	KindInvalidConfig          Kind = "invalid_config"
)

// PipelineError is the typed error returned by pipeline stages
type PipelineError struct {
	Kind    Kind
	Stage   string
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	prefix := string(e.Kind)
	if e.Stage != "" {
		prefix = e.Stage + "/" + prefix
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", prefix, e.Message)
}

// Unwrap allows errors.Is and errors.As to see the cause
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// WithContext adds a key/value pair to the error context
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// LogAttrs flattens the error into slog key/value pairs
func (e *PipelineError) LogAttrs() []any {
	attrs := []any{"error_kind", string(e.Kind), "stage", e.Stage}
	for k, v := range e.Context {
		attrs = append(attrs, k, v)
	}
	return attrs
}

// New creates a pipeline error
func New(kind Kind, stage, message string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Stage:   stage,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewStructuralMismatch creates a structural mismatch error
func NewStructuralMismatch(stage, message string) *PipelineError {
	return New(KindStructuralMismatch, stage, message, nil)
}

// NewOutOfRange creates an out of range error
func NewOutOfRange(stage, message string) *PipelineError {
	return New(KindOutOfRange, stage, message, nil)
}

// NewBoundaryAmbiguity creates a boundary ambiguity error
func NewBoundaryAmbiguity(stage, message string) *PipelineError {
	return New(KindBoundaryAmbiguity, stage, message, nil)
}

// NewInsufficientFutureData creates an insufficient future data error
func NewInsufficientFutureData(stage, message string) *PipelineError {
	return New(KindInsufficientFutureData, stage, message, nil)
}

// NewInvalidInput creates an invalid input error
func NewInvalidInput(stage, message string, cause error) *PipelineError {
	return New(KindInvalidInput, stage, message, cause)
}

// NewInvalidConfig creates an invalid configuration error
func NewInvalidConfig(message string, cause error) *PipelineError {
	return New(KindInvalidConfig, "config", message, cause)
}

// IsKind reports whether any error in err's chain is a PipelineError of kind
func IsKind(err error, kind Kind) bool {
	var pe *PipelineError
	if !stderrors.As(err, &pe) {
		return false
	}
	return pe.Kind == kind
}

// KindOf returns the kind of the first PipelineError in err's chain
func KindOf(err error) (Kind, bool) {
	var pe *PipelineError
	if !stderrors.As(err, &pe) {
		return "", false
	}
	return pe.Kind, true
}
