// Package apperrors defines the error taxonomy shared by the lifecycle,
// booking and HTTP layers. Each error carries a Kind used to pick the HTTP
// status and a machine-readable Code returned to clients.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindInvalidState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	default:
		return "internal"
	}
}

// Machine-readable codes.
const (
	CodeValidationFailed        = "VALIDATION_FAILED"
	CodeRejectionReasonRequired = "REJECTION_REASON_REQUIRED"
	CodePropertyNotFound        = "PROPERTY_NOT_FOUND"
	CodeAppointmentNotFound     = "APPOINTMENT_NOT_FOUND"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeSelfBooking             = "SELF_BOOKING_NOT_ALLOWED"
	CodeSlotUnavailable         = "TIME_SLOT_UNAVAILABLE"
	CodeOwnerMissing            = "PROPERTY_OWNER_MISSING"
	CodeAlreadyApproved         = "PROPERTY_ALREADY_APPROVED"
	CodeInvalidTransition       = "INVALID_STATUS_TRANSITION"
	CodeForbidden               = "FORBIDDEN"
	CodeStaleWrite              = "STALE_WRITE"
	CodeDuplicateUser           = "USER_ALREADY_EXISTS"
	CodeInternal                = "INTERNAL_ERROR"
)

// Error is the concrete error type produced by the service layer.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Validation(code, msg string) *Error {
	if code == "" {
		code = CodeValidationFailed
	}
	return newError(KindValidation, code, msg)
}

func NotFound(code, msg string) *Error { return newError(KindNotFound, code, msg) }

func Forbidden(code, msg string) *Error {
	if code == "" {
		code = CodeForbidden
	}
	return newError(KindForbidden, code, msg)
}

func Conflict(code, msg string) *Error { return newError(KindConflict, code, msg) }

func InvalidState(code, msg string) *Error {
	if code == "" {
		code = CodeInvalidTransition
	}
	return newError(KindInvalidState, code, msg)
}

// Internal wraps a failure that is not attributable to the caller.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: msg, Err: err}
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// CodeOf returns the machine-readable code of err, or CodeInternal.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
