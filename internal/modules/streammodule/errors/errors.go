// Package errors provides structured error handling for the stream module.
// It defines the error taxonomy of a live session (validation, process,
// readiness, storage), sentinel errors for errors.Is checks, and helpers
// used by the API layer to classify failures.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies a StreamError
type ErrorType string

const (
	// ErrorTypeValidation indicates a malformed request, such as a bad source address
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeProcess indicates the encoder could not be launched or died
	ErrorTypeProcess ErrorType = "process"
	// ErrorTypeReadiness indicates the output never became ready in time
	ErrorTypeReadiness ErrorType = "readiness"
	// ErrorTypeStorage indicates output directory problems
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeInternal indicates anything else
	ErrorTypeInternal ErrorType = "internal"
)

// Sentinel errors
var (
	// ErrInvalidSource indicates the source address is not an RTSP URL
	ErrInvalidSource = errors.New("invalid RTSP URL, must start with 'rtsp://' or 'rtsps://'")

	// ErrSpawnFailed indicates the encoder binary is missing or could not be launched
	ErrSpawnFailed = errors.New("encoder could not be launched")

	// ErrProcessActive indicates a spawn was attempted while an encoder is still alive
	ErrProcessActive = errors.New("encoder process already running")

	// ErrReadinessTimeout indicates the manifest did not appear within the readiness bound
	ErrReadinessTimeout = errors.New("readiness timeout")

	// ErrUnexpectedTermination indicates the encoder exited on its own
	ErrUnexpectedTermination = errors.New("process terminated unexpectedly")

	// ErrOutputUnavailable indicates the output directory could not be prepared
	ErrOutputUnavailable = errors.New("output directory unavailable")

	// ErrCancelled indicates the caller abandoned a start
	ErrCancelled = errors.New("start cancelled")
)

// StreamError provides structured error information with context
type StreamError struct {
	Type      ErrorType // Error classification
	Op        string    // Operation that failed (e.g. "start_session", "spawn")
	SessionID string    // Related session ID if applicable
	Err       error     // Underlying error
}

// Error implements the error interface
func (e *StreamError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s error in %s for session %s: %v", e.Type, e.Op, e.SessionID, e.Err)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Type, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *StreamError) Unwrap() error {
	return e.Err
}

// New creates a new StreamError
func New(errType ErrorType, op string, err error) *StreamError {
	return &StreamError{
		Type: errType,
		Op:   op,
		Err:  err,
	}
}

// WithSession adds session context to the error
func (e *StreamError) WithSession(sessionID string) *StreamError {
	e.SessionID = sessionID
	return e
}

// ValidationError creates a validation error
func ValidationError(op string, err error) *StreamError {
	return New(ErrorTypeValidation, op, err)
}

// ProcessError creates a process-related error
func ProcessError(op string, err error) *StreamError {
	return New(ErrorTypeProcess, op, err)
}

// ReadinessError creates a readiness error
func ReadinessError(op string, err error) *StreamError {
	return New(ErrorTypeReadiness, op, err)
}

// StorageError creates a storage-related error
func StorageError(op string, err error) *StreamError {
	return New(ErrorTypeStorage, op, err)
}

// Wrap wraps an error with operation context if it's not already a StreamError
func Wrap(err error, errType ErrorType, op string) error {
	if err == nil {
		return nil
	}

	var sErr *StreamError
	if errors.As(err, &sErr) {
		return err
	}

	return New(errType, op, err)
}

// GetType extracts the error type from an error
func GetType(err error) ErrorType {
	var sErr *StreamError
	if errors.As(err, &sErr) {
		return sErr.Type
	}
	return ErrorTypeInternal
}

// GetOperation extracts the operation from an error
func GetOperation(err error) string {
	var sErr *StreamError
	if errors.As(err, &sErr) {
		return sErr.Op
	}
	return "unknown"
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool {
	return err != nil && (GetType(err) == ErrorTypeValidation || errors.Is(err, ErrInvalidSource))
}

// HTTPStatus maps an error to the status code the control surface returns.
// Validation failures are the caller's fault, everything else is a 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing message for err: the innermost sentinel
// when one is known, otherwise the full error text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, sentinel := range []error{
		ErrInvalidSource,
		ErrUnexpectedTermination,
		ErrReadinessTimeout,
		ErrProcessActive,
		ErrCancelled,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	var sErr *StreamError
	if errors.As(err, &sErr) && sErr.Err != nil {
		return sErr.Err.Error()
	}
	return err.Error()
}
