package state

import (
	"context"
	"errors"
)

// ErrorKind indicates which class of failure produced a store error.
// The set is closed; callers switch on it for presentation, not for
// retry decisions (the retry executor treats every kind except
// KindCancelled uniformly).
type ErrorKind int

const (
	// KindUnknown is the fallback for errors that fit no other kind.
	KindUnknown ErrorKind = iota

	// KindNetwork indicates a transport-level failure: connection refused,
	// reset, timeout, or a non-2xx response that is not covered by a more
	// specific kind.
	KindNetwork

	// KindDecode indicates a payload that arrived but could not be decoded
	// into the expected model.
	KindDecode

	// KindNotFound indicates the requested resource does not exist.
	KindNotFound

	// KindUnauthorized indicates the caller lacks permission.
	KindUnauthorized

	// KindCancelled indicates the operation was cancelled, either through
	// its context or by a newer operation superseding it. Cancellation is
	// terminal: it is never retried and its result is never applied.
	KindCancelled
)

// String returns the kind as a stable lowercase label, usable in logs and
// metric label values.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a wrapper that includes the underlying error plus a Kind.
type Error struct {
	Err  error
	Kind ErrorKind
}

// Error returns the original error message, or the kind label when there is
// no underlying error (KindNotFound and KindUnauthorized carry none).
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return e.Kind.String()
}

// Unwrap returns the underlying wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind checks if the Error has the specified kind.
func (e *Error) IsKind(kind ErrorKind) bool {
	return e.Kind == kind
}

// Sentinel errors for the kinds that carry no message.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
)

// NewNetworkError wraps err as KindNetwork.
func NewNetworkError(err error) error {
	return &Error{Err: err, Kind: KindNetwork}
}

// NewDecodeError wraps err as KindDecode.
func NewDecodeError(err error) error {
	return &Error{Err: err, Kind: KindDecode}
}

// NewCancelledError wraps err as KindCancelled.
func NewCancelledError(err error) error {
	return &Error{Err: err, Kind: KindCancelled}
}

// NewUnknownError wraps err as KindUnknown.
func NewUnknownError(err error) error {
	return &Error{Err: err, Kind: KindUnknown}
}

// Classify ensures every error carries a kind. Already-classified errors
// pass through unchanged, context cancellation maps to KindCancelled,
// context deadline expiry maps to KindNetwork, and everything else becomes
// KindUnknown.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		// Already classified, so keep it as is.
		return err
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewNetworkError(err)
	}

	return NewUnknownError(err)
}

// KindOf returns the kind of err, or KindUnknown if err carries none.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}

	return KindUnknown
}

// IsCancelledError is a convenience checker for KindCancelled. It also
// recognizes raw context.Canceled so callers can test errors that never
// passed through Classify.
func IsCancelledError(err error) bool {
	var se *Error
	if errors.As(err, &se) && se.IsKind(KindCancelled) {
		return true
	}

	return errors.Is(err, context.Canceled)
}

// IsNetworkError is a convenience checker for KindNetwork.
func IsNetworkError(err error) bool {
	var se *Error

	return errors.As(err, &se) && se.IsKind(KindNetwork)
}

// IsDecodeError is a convenience checker for KindDecode.
func IsDecodeError(err error) bool {
	var se *Error

	return errors.As(err, &se) && se.IsKind(KindDecode)
}

// IsNotFoundError is a convenience checker for KindNotFound.
func IsNotFoundError(err error) bool {
	var se *Error

	return errors.As(err, &se) && se.IsKind(KindNotFound)
}

// IsUnauthorizedError is a convenience checker for KindUnauthorized.
func IsUnauthorizedError(err error) bool {
	var se *Error

	return errors.As(err, &se) && se.IsKind(KindUnauthorized)
}
