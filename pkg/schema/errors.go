package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeSelfLoop          = "SELF_LOOP"
	ErrCodeDuplicateEdge     = "DUPLICATE_EDGE"
	ErrCodeUnknownEndpoint   = "UNKNOWN_ENDPOINT"
	ErrCodeCycleDetected     = "CYCLE_DETECTED"
	ErrCodeStore             = "STORE_ERROR"
	ErrCodeExpression        = "EXPRESSION_ERROR"
)

// ChainError is the structured error type for attack-chain operations.
type ChainError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *ChainError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ChainError) Unwrap() error {
	return e.Cause
}

// NewError creates a new ChainError.
func NewError(code, message string) *ChainError {
	return &ChainError{Code: code, Message: message}
}

// NewErrorf creates a new ChainError with a formatted message.
func NewErrorf(code, format string, args ...any) *ChainError {
	return &ChainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches a node ID to the error.
func (e *ChainError) WithNode(nodeID string) *ChainError {
	e.NodeID = nodeID
	return e
}

// WithCause attaches an underlying cause.
func (e *ChainError) WithCause(err error) *ChainError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *ChainError) WithDetails(details map[string]any) *ChainError {
	e.Details = details
	return e
}

// IsCode reports whether err is a *ChainError carrying the given code.
func IsCode(err error, code string) bool {
	ce, ok := err.(*ChainError)
	return ok && ce.Code == code
}
