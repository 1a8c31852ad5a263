package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors shared by the client and the screens.
var (
	// ErrAuthRequired means there is no usable session. Callers redirect to
	// login instead of displaying it.
	ErrAuthRequired = errors.New("AUTH_REQUIRED")

	// ErrUpgradeRequired matches API errors that signal a plan-tier restriction.
	ErrUpgradeRequired = errors.New("upgrade required")

	ErrValidation = errors.New("validation error")
)

// APIError is a non-success HTTP response from the WatchPoint API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrUpgradeRequired) match plan restrictions.
func (e *APIError) Is(target error) bool {
	return target == ErrUpgradeRequired && e.IsUpgradeRequired()
}

// IsUpgradeRequired reports whether the server rejected the call because the
// user's plan does not allow it.
func (e *APIError) IsUpgradeRequired() bool {
	if e.Status == 403 {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "upgrade") || strings.Contains(msg, "403")
}

// NewAPIError builds an APIError, synthesizing a message from the status when
// the server did not provide one.
func NewAPIError(status int, message string) *APIError {
	if message == "" {
		message = "HTTP " + strconv.Itoa(status)
	}
	return &APIError{Status: status, Message: message}
}

// ValidationError is a client-side rejection raised before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// TransportError wraps failures that happened before an HTTP status was
// available, or while decoding a success body.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrorKind is the discriminant screens dispatch on.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindAuthRequired
	KindValidation
	KindUpgradeRequired
	KindAPI
	KindTransport
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAuthRequired:
		return "auth_required"
	case KindValidation:
		return "validation"
	case KindUpgradeRequired:
		return "upgrade_required"
	case KindAPI:
		return "api"
	case KindTransport:
		return "transport"
	}
	return "unknown"
}

// KindOf classifies err. Auth wins over everything else.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrAuthRequired) {
		return KindAuthRequired
	}
	if errors.Is(err, ErrValidation) {
		return KindValidation
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsUpgradeRequired() {
			return KindUpgradeRequired
		}
		return KindAPI
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return KindTransport
	}
	return KindUnknown
}
