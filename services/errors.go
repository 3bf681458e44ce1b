package services

import (
	"errors"
	"fmt"

	"github.com/amoreldmija/hospital/repositories"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeAuthentication     ErrorType = "authentication"
	ErrorTypeUnauthorized       ErrorType = "unauthorized"
	ErrorTypeForbidden          ErrorType = "forbidden"
	ErrorTypeConflict           ErrorType = "conflict"
	ErrorTypeConfiguration      ErrorType = "configuration"
	ErrorTypeBackendUnavailable ErrorType = "backend_unavailable"
	ErrorTypeInternal           ErrorType = "internal"
)

// DomainError represents a structured error with additional context
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

// WithDetail returns a copy of the error carrying an extra detail.
// The package-level sentinels are shared, so they are never mutated.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Type: e.Type, Message: e.Message, Err: e.Err, Details: details}
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

// Domain error variables

var (
	// Not Found Errors
	ErrNotFound             = NewDomainError(ErrorTypeNotFound, "not found", nil)
	ErrPatientNotFound      = NewDomainError(ErrorTypeNotFound, "patient not found", nil)
	ErrDoctorNotFound       = NewDomainError(ErrorTypeNotFound, "doctor not found", nil)
	ErrAppointmentNotFound  = NewDomainError(ErrorTypeNotFound, "appointment not found", nil)
	ErrPrescriptionNotFound = NewDomainError(ErrorTypeNotFound, "prescription not found", nil)
	ErrBillNotFound         = NewDomainError(ErrorTypeNotFound, "bill not found", nil)
	ErrUserNotFound         = NewDomainError(ErrorTypeNotFound, "user not found", nil)

	// Validation Errors
	ErrInvalidInput = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidRole  = NewDomainError(ErrorTypeValidation, "invalid role", nil)
	ErrInvalidEmail = NewDomainError(ErrorTypeValidation, "invalid email format", nil)
	ErrWeakPassword = NewDomainError(ErrorTypeValidation, "password too short", nil)

	// Authentication Errors
	ErrInvalidCredentials = NewDomainError(ErrorTypeAuthentication, "invalid email or password", nil)
	ErrInvalidToken       = NewDomainError(ErrorTypeAuthentication, "invalid session token", nil)
	ErrTokenExpired       = NewDomainError(ErrorTypeAuthentication, "session expired", nil)
	ErrUnsupported        = NewDomainError(ErrorTypeAuthentication, "operation not supported by the authentication provider", nil)

	// Authorization Errors
	ErrUnauthenticated = NewDomainError(ErrorTypeUnauthorized, "sign in required", nil)
	ErrForbidden       = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)

	// Conflict Errors
	ErrDuplicateEmail      = NewDomainError(ErrorTypeConflict, "email already registered", nil)
	ErrAppointmentConflict = NewDomainError(ErrorTypeConflict, "there is already an appointment at the selected time", nil)

	// Configuration Errors
	ErrPolicyConfiguration = NewDomainError(ErrorTypeConfiguration, "invalid policy configuration", nil)

	// Backend Errors
	ErrBackendUnavailable = NewDomainError(ErrorTypeBackendUnavailable, "backend unavailable", nil)

	// Internal Errors
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsAuthenticationError checks if an error is a bad-credentials error
func IsAuthenticationError(err error) bool {
	return GetErrorType(err) == ErrorTypeAuthentication
}

// IsUnauthorizedError checks if an error is a missing-session error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsForbiddenError checks if an error is an authorization denial
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return GetErrorType(err) == ErrorTypeConflict
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	return GetErrorType(err) == ErrorTypeConfiguration
}

// IsBackendUnavailableError checks if an error is a store or auth provider failure
func IsBackendUnavailableError(err error) bool {
	return GetErrorType(err) == ErrorTypeBackendUnavailable
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

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

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapBackend wraps a collaborator I/O failure
func WrapBackend(message string, err error) error {
	return NewDomainError(ErrorTypeBackendUnavailable, message, err)
}

// Forbidden builds an authorization denial carrying the policy reason.
func Forbidden(reason string) error {
	if reason == "" {
		return ErrForbidden
	}
	return NewDomainError(ErrorTypeForbidden, reason, nil)
}

// FromStoreError classifies an error returned by a repository. Domain errors
// pass through unchanged.
func FromStoreError(err error, what string) error {
	if err == nil {
		return nil
	}
	if GetErrorType(err) != "" {
		return err
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return NewDomainError(ErrorTypeNotFound, what+" not found", err)
	}
	return WrapBackend("failed to access "+what, err)
}
