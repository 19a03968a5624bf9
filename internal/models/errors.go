package models

import "errors"

// Database registry errors.
var (
	ErrDatabaseNameRequired = errors.New("database name is required")
	ErrDatabaseHostRequired = errors.New("database host is required")
	ErrDatabaseUserRequired = errors.New("database user is required")
	ErrDatabaseNameInvalid  = errors.New("database name must be between 3 and 63 characters")
	ErrDatabaseNotFound     = errors.New("database not found")
	ErrDatabaseExists       = errors.New("database with this name is already registered")
	ErrDatabaseUnreachable  = errors.New("database is unreachable")
)

// Signal and proposal errors.
var (
	ErrSignalNotFound         = errors.New("signal not found")
	ErrSignalAlreadyProcessed = errors.New("signal has already been processed")
	ErrProposalNotFound       = errors.New("proposal not found")
	ErrProposalNotPending     = errors.New("proposal is not pending")
	ErrProposalNotApproved    = errors.New("proposal is not approved")
	ErrProposalTerminal       = errors.New("proposal is in a terminal state")
	ErrCommandRejected        = errors.New("command rejected by risk classifier")
)

// Autonomy errors.
var (
	ErrInvalidAutonomyLevel = errors.New("autonomy level must be one of: observation, assisted, trust, autonomous")
)

// Job errors.
var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobNotCancellable = errors.New("job is not cancellable")
	ErrJobInvalidState   = errors.New("invalid job state transition")
)

// Authentication errors.
var (
	ErrTokenInvalid      = errors.New("invalid or expired token")
	ErrTokenMissing      = errors.New("authorization token is required")
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrJWTSecretTooShort = errors.New("JWT secret must be at least 32 bytes")
	ErrUnauthorized      = errors.New("unauthorized access")
)

// APIError represents a structured API error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new API error.
func NewAPIError(code, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

// WithDetails adds details to the API error.
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

// Common API error codes.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)
