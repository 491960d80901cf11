package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeValidation represents missing or blank arguments, detected before any I/O
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeAuth represents an OAuth error returned by the token endpoint
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeTransport represents network failures and malformed endpoint responses
	ErrTypeTransport ErrorType = "transport"
	// ErrTypeConnection represents failures reaching backing services such as Redis
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
)

// DescriptionKey is the context key holding the endpoint's error_description.
const DescriptionKey = "error_description"

// StatusCodeKey is the context key holding a non-success HTTP status.
const StatusCodeKey = "status_code"

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// BlankArgument reports a required argument that was empty or whitespace.
func BlankArgument(name string) *AppError {
	return ValidationError("null or blank argument").WithContext("argument", name)
}

// AuthError creates a new authentication error
func AuthError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
	}
}

// OAuthError builds the authentication error for an OAuth error body. The
// code and description are kept verbatim.
func OAuthError(code, description string) *AppError {
	return AuthError(fmt.Sprintf("Error: %s. Error description: %s", code, description)).
		WithCode(code).
		WithContext(DescriptionKey, description)
}

// TransportError creates a new transport error
func TransportError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTransport,
		Message: msg,
		Cause:   cause,
	}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks if an error (or anything it wraps) is an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}

	return appErr.Type
}

// Code returns the OAuth error code carried by err, if any.
func Code(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Description returns the endpoint's error_description carried by err, if any.
func Description(err error) string {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ""
	}
	desc, _ := appErr.Context[DescriptionKey].(string)
	return desc
}
