// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Errorf wraps base with a formatted cause.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// Predefined errors
var (
	// Simulation input errors, rejected before any data is fetched
	ErrInvalidParameters = &Error{Code: "INVALID_PARAMETERS", Message: "invalid backtest parameters"}
	ErrInvalidDateRange  = &Error{Code: "INVALID_DATE_RANGE", Message: "end date precedes start date"}
	ErrInvalidStrategy   = &Error{Code: "INVALID_STRATEGY", Message: "unknown strategy"}

	// Data errors
	ErrNoMarketData      = &Error{Code: "NO_MARKET_DATA", Message: "no market data available"}
	ErrSymbolNotFound    = &Error{Code: "SYMBOL_NOT_FOUND", Message: "symbol not found"}
	ErrMisalignedHorizon = &Error{Code: "MISALIGNED_HORIZON", Message: "benchmark horizon does not match"}

	// Collector errors
	ErrCollectorFailed = &Error{Code: "COLLECTOR_FAILED", Message: "collector failed"}

	// Artifact errors
	ErrArtifactFailed   = &Error{Code: "ARTIFACT_FAILED", Message: "artifact persistence failed"}
	ErrArtifactNotFound = &Error{Code: "ARTIFACT_NOT_FOUND", Message: "artifact not found"}

	// Notifier errors
	ErrUpstreamDelivery = &Error{Code: "UPSTREAM_DELIVERY_FAILURE", Message: "notification sink rejected the message"}

	// Job errors
	ErrJobNotFound    = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}
	ErrBacktestFailed = &Error{Code: "BACKTEST_FAILED", Message: "backtest failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
