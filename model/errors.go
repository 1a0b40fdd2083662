package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest      = "BAD_REQUEST"
	ErrNotFound        = "NOT_FOUND"
	ErrConflict        = "CONFLICT"
	ErrValidationError = "VALIDATION_ERROR"
	ErrInternalError   = "INTERNAL_ERROR"
)

// Wizard and pricing error codes.
const (
	ErrTransitionRejected = "TRANSITION_REJECTED"
	ErrSessionNotFound    = "SESSION_NOT_FOUND"
	ErrSessionExpired     = "SESSION_EXPIRED"
	ErrSessionTerminated  = "SESSION_TERMINATED"
	ErrCalculationError   = "CALCULATION_ERROR"
	ErrConfigurationError = "CONFIGURATION_ERROR"
)

// ErrorEnvelope is the standard error response envelope returned by the
// service. It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewTransitionRejectedError returns a TRANSITION_REJECTED error.
func NewTransitionRejectedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrTransitionRejected, Message: msg}
}

// NewSessionNotFoundError returns a SESSION_NOT_FOUND error.
func NewSessionNotFoundError(sessionID string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrSessionNotFound,
		Message: fmt.Sprintf("wizard session %q not found", sessionID),
	}
}

// NewSessionExpiredError returns a SESSION_EXPIRED error.
func NewSessionExpiredError(sessionID string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrSessionExpired,
		Message: fmt.Sprintf("wizard session %q has expired", sessionID),
	}
}

// NewSessionTerminatedError returns a SESSION_TERMINATED error.
func NewSessionTerminatedError(sessionID, status string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrSessionTerminated,
		Message: fmt.Sprintf("wizard session %q is %s", sessionID, status),
	}
}

// NewCalculationError returns a CALCULATION_ERROR scoped to a single
// calculation call.
func NewCalculationError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrCalculationError, Message: msg}
}

// NewConfigurationError returns a CONFIGURATION_ERROR. Configuration errors
// are fatal at startup and reload time; they never surface mid-calculation.
func NewConfigurationError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConfigurationError, Message: msg}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}
