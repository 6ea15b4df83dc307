package provider

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Kind classifies a provider failure so callers can decide whether a retry
// can help.
type Kind int

const (
	// KindInvalidInput means the provider rejected the request payload.
	// Retrying cannot fix malformed input.
	KindInvalidInput Kind = iota
	// KindOverloaded means a quota or rate-limit signal. Retryable with
	// backoff.
	KindOverloaded
	// KindUnavailable means the provider was temporarily unreachable or
	// errored internally. Retryable with backoff.
	KindUnavailable
	// KindContract means the provider responded with an unexpected shape
	// (wrong count, wrong dimensionality). Fatal; indicates an upstream
	// change, not a transient condition.
	KindContract
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindOverloaded:
		return "overloaded"
	case KindUnavailable:
		return "unavailable"
	case KindContract:
		return "contract"
	}
	return "unknown"
}

// Error is a typed provider failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// IsRetryable reports whether err is a provider failure that backoff can
// recover from.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == KindOverloaded || pe.Kind == KindUnavailable
	}
	return false
}

// IsInvalidInput reports whether err is a provider rejection of the request
// payload.
func IsInvalidInput(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == KindInvalidInput
	}
	return false
}

// IsContract reports whether err is a provider shape mismatch.
func IsContract(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == KindContract
	}
	return false
}

// Classify wraps a raw provider error into a typed one, mapping Google API
// status codes onto the taxonomy. Unknown errors are treated as unavailable
// so that transient network failures stay retryable.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusBadRequest:
			return NewError(KindInvalidInput, op, err)
		case http.StatusTooManyRequests:
			return NewError(KindOverloaded, op, err)
		case http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return NewError(KindUnavailable, op, err)
		}
	}

	return NewError(KindUnavailable, op, err)
}
