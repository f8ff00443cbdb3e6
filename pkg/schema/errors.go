package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeExecution         = "EXECUTION_ERROR"
	ErrCodeStationNotFound   = "STATION_NOT_FOUND"
	ErrCodeCannotResume      = "CANNOT_RESUME"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeSerialization     = "SERIALIZATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeStore             = "STORE_ERROR"
	ErrCodeTimeout           = "TIMEOUT_ERROR"
)

// ConveyorError is the structured error type for all engine faults.
// Station outcomes are never ConveyorErrors — they travel as StationResult data.
type ConveyorError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Station string         `json:"station,omitempty"`
	Cause   error          `json:"-"`
}

func (e *ConveyorError) Error() string {
	if e.Station != "" {
		return fmt.Sprintf("[%s] station %s: %s", e.Code, e.Station, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ConveyorError) Unwrap() error {
	return e.Cause
}

// NewError creates a new ConveyorError.
func NewError(code, message string) *ConveyorError {
	return &ConveyorError{Code: code, Message: message}
}

// NewErrorf creates a new ConveyorError with a formatted message.
func NewErrorf(code, format string, args ...any) *ConveyorError {
	return &ConveyorError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStation attaches a station name to the error.
func (e *ConveyorError) WithStation(name string) *ConveyorError {
	e.Station = name
	return e
}

// WithCause attaches an underlying cause.
func (e *ConveyorError) WithCause(err error) *ConveyorError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *ConveyorError) WithDetails(details map[string]any) *ConveyorError {
	e.Details = details
	return e
}
