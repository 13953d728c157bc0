// Package errors provides structured error handling for depositor.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess  = 0 // Successful execution
	ExitGeneral  = 1 // General/unknown error
	ExitInput    = 2 // Invalid input
	ExitNotFound = 4 // Resource not found
)

// DepositError is the structured error type for depositor.
type DepositError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *DepositError) Error() string {
	msg := e.Message

	// Details are sorted for deterministic output
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *DepositError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for DepositError.
func (e *DepositError) Is(target error) bool {
	var t *DepositError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &DepositError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &DepositError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrNotFound = &DepositError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	ErrInvalidAccount = &DepositError{
		Code:     "INVALID_ACCOUNT",
		Message:  "invalid account name",
		ExitCode: ExitInput,
	}

	ErrAssetNotFound = &DepositError{
		Code:     "ASSET_NOT_FOUND",
		Message:  "asset not found",
		ExitCode: ExitNotFound,
	}

	// Resolution errors. These are carried in resolver state rather than returned.
	ErrUnsupportedAssetForGateway = &DepositError{
		Code:     "UNSUPPORTED_ASSET_FOR_GATEWAY",
		Message:  "gateway does not support asset",
		ExitCode: ExitInput,
	}

	ErrAddressGenerationFailure = &DepositError{
		Code:     "ADDRESS_GENERATION_FAILURE",
		Message:  "could not generate deposit address",
		ExitCode: ExitGeneral,
	}

	ErrUnknownGateway = &DepositError{
		Code:     "UNKNOWN_GATEWAY",
		Message:  "unknown gateway",
		ExitCode: ExitInput,
	}

	// Transport errors.
	ErrNetworkError = &DepositError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitGeneral,
	}

	ErrInvalidResponse = &DepositError{
		Code:     "INVALID_RESPONSE",
		Message:  "gateway returned an invalid response",
		ExitCode: ExitGeneral,
	}

	// Config errors.
	ErrConfigNotFound = &DepositError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &DepositError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}

	ErrUnknownConfigKey = &DepositError{
		Code:     "UNKNOWN_CONFIG_KEY",
		Message:  "unknown config key",
		ExitCode: ExitInput,
	}

	ErrInvalidValue = &DepositError{
		Code:     "INVALID_VALUE",
		Message:  "invalid value",
		ExitCode: ExitInput,
	}

	// Cache errors.
	ErrCacheNotFound = &DepositError{
		Code:     "CACHE_NOT_FOUND",
		Message:  "no cached data available",
		ExitCode: ExitNotFound,
	}

	ErrCacheBackend = &DepositError{
		Code:     "CACHE_BACKEND",
		Message:  "cache backend unavailable",
		ExitCode: ExitGeneral,
	}
)

// New creates a new DepositError with the given code and message.
func New(code, message string) *DepositError {
	return &DepositError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var de *DepositError
	if errors.As(err, &de) {
		return &DepositError{
			Code:       de.Code,
			Message:    fmt.Sprintf("%s: %s", msg, de.Message),
			Details:    de.Details,
			Suggestion: de.Suggestion,
			Cause:      err,
			ExitCode:   de.ExitCode,
		}
	}

	return &DepositError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var de *DepositError
	if errors.As(err, &de) {
		return &DepositError{
			Code:       de.Code,
			Message:    de.Message,
			Details:    details,
			Suggestion: de.Suggestion,
			Cause:      de.Cause,
			ExitCode:   de.ExitCode,
		}
	}

	return &DepositError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var de *DepositError
	if errors.As(err, &de) {
		return &DepositError{
			Code:       de.Code,
			Message:    de.Message,
			Details:    de.Details,
			Suggestion: suggestion,
			Cause:      de.Cause,
			ExitCode:   de.ExitCode,
		}
	}

	return &DepositError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var de *DepositError
	if errors.As(err, &de) {
		return de.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var de *DepositError
	if errors.As(err, &de) {
		return de.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
