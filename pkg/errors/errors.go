// Package errors provides structured error types for pyvalidate.
//
// Every failure the validation pipeline can produce carries a machine-readable
// [Code]. The orchestrator wraps step failures with the code of the step that
// failed, so callers (the CLI summary, the run history, the report server)
// can classify a run without parsing messages.
//
// # Error Codes
//
// Codes are grouped by the pipeline stage that emits them:
//   - configuration: UNKNOWN_PACKAGE, INVALID_CONFIG, INVALID_PACKAGE
//   - resolution: VERSION_NOT_FOUND, ARTIFACT_NOT_FOUND
//   - transport and unpacking: DOWNLOAD_ERROR, UNSUPPORTED_FORMAT, EXTRACTION_ERROR
//   - environment: ENVIRONMENT_CREATION_ERROR, INSTALL_ERROR, BUILD_TOOL_MISSING
//   - package layout: NO_EXTRACTED_DIRECTORY, AMBIGUOUS_EXTRACTED_DIRECTORY
//   - results: VERIFICATION_ERROR, TEST_FAILURE, COVERAGE_ARTIFACT_MISSING
//   - control: TIMEOUT, CANCELED, INTERNAL_ERROR
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnknownPackage, "no configuration for %s", name)
//	if errors.Is(err, errors.ErrCodeUnknownPackage) {
//	    // Handle missing configuration
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeDownload, origErr, "fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the validation pipeline.
const (
	// Configuration errors
	ErrCodeUnknownPackage Code = "UNKNOWN_PACKAGE"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"
	ErrCodeInvalidPackage Code = "INVALID_PACKAGE"
	ErrCodeInvalidInput   Code = "INVALID_INPUT"

	// Resolution errors
	ErrCodeVersionNotFound  Code = "VERSION_NOT_FOUND"
	ErrCodeArtifactNotFound Code = "ARTIFACT_NOT_FOUND"

	// Transport and unpacking errors
	ErrCodeDownload          Code = "DOWNLOAD_ERROR"
	ErrCodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	ErrCodeExtraction        Code = "EXTRACTION_ERROR"

	// Environment errors
	ErrCodeEnvironmentCreation Code = "ENVIRONMENT_CREATION_ERROR"
	ErrCodeInstall             Code = "INSTALL_ERROR"
	ErrCodeBuildToolMissing    Code = "BUILD_TOOL_MISSING"

	// Package layout errors
	ErrCodeNoExtractedDirectory        Code = "NO_EXTRACTED_DIRECTORY"
	ErrCodeAmbiguousExtractedDirectory Code = "AMBIGUOUS_EXTRACTED_DIRECTORY"

	// Result errors
	ErrCodeVerification            Code = "VERIFICATION_ERROR"
	ErrCodeTestFailure             Code = "TEST_FAILURE"
	ErrCodeCoverageArtifactMissing Code = "COVERAGE_ARTIFACT_MISSING"

	// Control errors
	ErrCodeTimeout  Code = "TIMEOUT"
	ErrCodeCanceled Code = "CANCELED"
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code,
// so a TIMEOUT wrapping an INSTALL_ERROR matches both codes.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
