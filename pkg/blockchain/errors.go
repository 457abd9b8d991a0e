package blockchain

import "github.com/go-faster/errors"

var (
	// ErrRuntimeUnavailable is returned when a request is submitted to a
	// runtime that has stopped or crashed.
	ErrRuntimeUnavailable = errors.New("client runtime unavailable")
	// ErrRuntimeDisconnected is returned when the runtime went away without
	// answering an accepted request.
	ErrRuntimeDisconnected = errors.New("client runtime dropped the request")
	// ErrRuntimeTimeout is returned when waiting for an answer took longer
	// than the configured timeout. The request itself keeps running.
	ErrRuntimeTimeout = errors.New("client runtime call timed out")
	ErrStartup        = errors.New("client runtime failed to start")
	// ErrInvalidRequest is returned by clients for input they refuse to
	// process.
	ErrInvalidRequest = errors.New("invalid client request")
)

type StartupError struct {
	Err error
}

func (e *StartupError) Error() string {
	return ErrStartup.Error() + ": " + e.Err.Error()
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

func (e *StartupError) Is(target error) bool {
	return target == ErrStartup
}
