// Package errors provides standardized error types for uscert-manager.
//
// CertError is the primary error type, containing:
//   - Code: categorizes the error (CONFIG, PROVIDER, STORE, ...)
//   - Message: human-readable error description
//   - Name: the certificate name involved (if applicable)
//   - Err: the underlying wrapped error (if any)
//
// Config errors are special: the CLI exits with code 2 when the error
// chain contains a CONFIG error, so that deployment tooling can tell
// a broken config apart from an operational failure.
//
// Use errors.Is for sentinel comparison:
//
//	if errors.Is(err, errors.ErrCertNotFound) {
//	    // handle the unknown certificate
//	}
//
// Use errors.As to get at the structured fields:
//
//	var certErr *errors.CertError
//	if errors.As(err, &certErr) {
//	    fmt.Printf("code: %s, cert: %s\n", certErr.Code, certErr.Name)
//	}
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors for programmatic handling.
type ErrorCode string

// Error codes for different error categories.
const (
	ErrCodeConfig     ErrorCode = "CONFIG"     // Configuration error
	ErrCodeValidation ErrorCode = "VALIDATION" // Input validation failed
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"  // Certificate record not found
	ErrCodeProvider   ErrorCode = "PROVIDER"   // Certificate provider error
	ErrCodeStore      ErrorCode = "STORE"      // Certs database error
	ErrCodeHook       ErrorCode = "HOOK"       // Hook script error
	ErrCodePackage    ErrorCode = "PACKAGE"    // Package installation error
	ErrCodeInternal   ErrorCode = "INTERNAL"   // Internal/unexpected error
)

// CertError represents a structured error with context about the operation.
type CertError struct {
	Code    ErrorCode // Error category
	Message string    // Human-readable message
	Name    string    // Certificate name (if applicable)
	Err     error     // Underlying error (if any)
}

// Error implements the error interface.
func (e *CertError) Error() string {
	if e.Name != "" && e.Err != nil {
		return fmt.Sprintf("cert %s: %s: %v", e.Name, e.Message, e.Err)
	}
	if e.Name != "" {
		return fmt.Sprintf("cert %s: %s", e.Name, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain traversal.
func (e *CertError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error.
// Comparison is based on error code.
func (e *CertError) Is(target error) bool {
	t, ok := target.(*CertError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors for common error scenarios.
// Use these with errors.Is() for error checking.
var (
	// ErrCertNotFound indicates the requested certificate is not in the store.
	ErrCertNotFound = &CertError{Code: ErrCodeNotFound, Message: "certificate not found"}

	// ErrConfigInvalid indicates the configuration is invalid or missing.
	ErrConfigInvalid = &CertError{Code: ErrCodeConfig, Message: "invalid configuration"}

	// ErrProviderNotFound indicates the configured provider is not registered.
	ErrProviderNotFound = &CertError{Code: ErrCodeConfig, Message: "provider not found"}
)

// Config creates a configuration error with a custom message.
func Config(format string, args ...interface{}) error {
	return &CertError{
		Code:    ErrCodeConfig,
		Message: fmt.Sprintf(format, args...),
	}
}

// Validation creates a validation error with a custom message.
func Validation(msg string) error {
	return &CertError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// NotFound creates an error for a certificate that is not in the store.
func NotFound(name string) error {
	return &CertError{
		Code:    ErrCodeNotFound,
		Message: "certificate not found",
		Name:    name,
	}
}

// Wrap creates an error with the specified code, message, and underlying error.
func Wrap(code ErrorCode, msg string, err error) error {
	return &CertError{
		Code:    code,
		Message: msg,
		Err:     err,
	}
}

// WrapName creates an error with certificate name context and underlying error.
func WrapName(code ErrorCode, name, msg string, err error) error {
	return &CertError{
		Code:    code,
		Message: msg,
		Name:    name,
		Err:     err,
	}
}

// IsConfig reports whether any error in err's chain is a configuration error.
func IsConfig(err error) bool {
	var certErr *CertError
	if errors.As(err, &certErr) {
		return certErr.Code == ErrCodeConfig
	}
	return false
}

// Is reports whether any error in err's chain matches target.
// This is a re-export of errors.Is for convenience.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
// This is a re-export of errors.As for convenience.
var As = errors.As
