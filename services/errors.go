package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeMissingCredential ErrorType = "missing_credential"
	ErrorTypeInvalidCredential ErrorType = "invalid_credential"
	ErrorTypeReplayedToken     ErrorType = "replayed_token"
	ErrorTypeOriginRejected    ErrorType = "origin_rejected"
	ErrorTypeRateLimited       ErrorType = "rate_limited"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeInternal          ErrorType = "internal"
)

// DomainError represents a structured error with additional context.
// Every rejection in the authentication pipeline maps to exactly one of
// these; internal invariant violations stay ErrorTypeInternal so bugs are
// never surfaced as a generic "unauthorized".
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Terminal request classifications. None of these are retried internally.
var (
	ErrMissingCredential = NewDomainError(ErrorTypeMissingCredential, "missing client token", nil)
	ErrInvalidCredential = NewDomainError(ErrorTypeInvalidCredential, "invalid or expired credential", nil)
	// ErrReplayedToken signals a possible credential theft: the same one-time
	// token was presented after consumption. The offending record is purged.
	ErrReplayedToken  = NewDomainError(ErrorTypeReplayedToken, "one-time token already used", nil)
	ErrOriginRejected = NewDomainError(ErrorTypeOriginRejected, "request origin not allowed", nil)
	ErrRateLimited    = NewDomainError(ErrorTypeRateLimited, "rate limit exceeded", nil)
	ErrTenantNotFound = NewDomainError(ErrorTypeNotFound, "tenant not found", nil)
	ErrInvalidInput   = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInternal       = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
