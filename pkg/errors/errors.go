package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for the admission and ledger workflows.
var (
	ErrNotFound   = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict   = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal   = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss  = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrIncompleteRequirements = New("INCOMPLETE_REQUIREMENTS", http.StatusPreconditionFailed, "not all admission requirements are submitted")
	ErrMissingSection         = New("MISSING_SECTION", http.StatusBadRequest, "target section is required before approval")
	ErrCapacityExhausted      = New("CAPACITY_EXHAUSTED", http.StatusConflict, "no remaining slots for the target section")
	ErrOverRelease            = New("OVER_RELEASE", http.StatusConflict, "slot release would exceed configured capacity")
	ErrNegativeAmount         = New("NEGATIVE_AMOUNT", http.StatusBadRequest, "payment amount must be greater than zero")
	ErrExceedsBalance         = New("EXCEEDS_BALANCE", http.StatusUnprocessableEntity, "payment amount exceeds the starting balance")
	ErrBusy                   = New("BUSY", http.StatusServiceUnavailable, "resource is busy, retry the request")
	ErrInvalidTransition      = New("INVALID_TRANSITION", http.StatusConflict, "status transition is not allowed")

	// Corruption halts. Writes to the affected entity stay rejected until
	// an operator reconciles the stored state.
	ErrLedgerFrozen   = New("LEDGER_FROZEN", http.StatusInternalServerError, "ledger account is frozen pending reconciliation")
	ErrCapacityFrozen = New("CAPACITY_FROZEN", http.StatusInternalServerError, "section capacity is frozen pending reconciliation")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// IsRetryable reports whether the caller may retry the request after backoff.
func IsRetryable(err error) bool {
	e := FromError(err)
	return e != nil && e.Code == ErrBusy.Code
}

// HasCode reports whether err carries the same code as target.
func HasCode(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code == target.Code
	}
	return false
}
