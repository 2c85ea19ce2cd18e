package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the orchestration core. Transport-level failures abort
// the turn; input/execution failures stay localized to their tool call.
var (
	// ErrUpstreamUnavailable - the model endpoint could not be reached; terminal for the turn
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamProtocol - the model endpoint returned a payload we could not interpret; terminal for the turn
	ErrUpstreamProtocol = errors.New("upstream protocol error")

	// ErrInvalidInput - tool-call arguments failed schema validation; localized to that call
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - a named resource (tool, session) does not exist
	ErrNotFound = errors.New("not found")

	// ErrAborted - the client cancelled the in-flight turn
	ErrAborted = errors.New("turn aborted")

	// ErrConflict - concurrent access to an exclusively held resource
	ErrConflict = errors.New("conflict")

	// ErrInternal - invariant violation inside the core
	ErrInternal = errors.New("internal error")
)

func UpstreamUnavailable(msg string) error {
	return wrap(ErrUpstreamUnavailable, msg)
}

func UpstreamProtocol(msg string) error {
	return wrap(ErrUpstreamProtocol, msg)
}

func InvalidInput(msg string) error {
	return wrap(ErrInvalidInput, msg)
}

func NotFound(msg string) error {
	return wrap(ErrNotFound, msg)
}

func Internal(msg string) error {
	return wrap(ErrInternal, msg)
}

// Is reports whether err matches target, unwrapping as needed.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func wrap(sentinel error, msg string) error {
	if msg == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
