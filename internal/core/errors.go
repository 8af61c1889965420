package core

import "fmt"

// Error codes used in HTTP error responses.
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeValidationError = "validation_error"
	ErrCodeNotFound        = "not_found"
	ErrCodeConflict        = "conflict"
	ErrCodeInternalError   = "internal_error"
	ErrCodeUnsupported     = "unsupported"
)

// OJSError is a structured error returned by the admin and decision API.
type OJSError struct {
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

func (e *OJSError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func NewInvalidRequestError(message string, details map[string]any) *OJSError {
	return &OJSError{
		Code:    ErrCodeInvalidRequest,
		Message: message,
		Details: details,
	}
}

func NewNotFoundError(resourceType, resourceID string) *OJSError {
	return &OJSError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s '%s' not found.", resourceType, resourceID),
		Details: map[string]any{
			"resource_type": resourceType,
			"resource_id":   resourceID,
		},
	}
}

func NewConflictError(message string, details map[string]any) *OJSError {
	return &OJSError{
		Code:    ErrCodeConflict,
		Message: message,
		Details: details,
	}
}

func NewValidationError(message string, details map[string]any) *OJSError {
	return &OJSError{
		Code:    ErrCodeValidationError,
		Message: message,
		Details: details,
	}
}

func NewUnsupportedError(message string) *OJSError {
	return &OJSError{
		Code:    ErrCodeUnsupported,
		Message: message,
	}
}

func NewInternalError(message string) *OJSError {
	return &OJSError{
		Code:      ErrCodeInternalError,
		Message:   message,
		Retryable: true,
	}
}
