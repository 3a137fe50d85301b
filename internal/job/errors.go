package job

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when a run of the same kind is
	// still active. Retry after Stop or Wait.
	ErrAlreadyRunning = errors.New("job already running")
	// ErrCancelled is the stop signal a Worker returns after ShouldContinue
	// reported false. Jobs absorb it.
	ErrCancelled = errors.New("job cancelled")
	// ErrUnknownKind is returned by the Registry for a kind it does not own.
	ErrUnknownKind = errors.New("unknown job kind")
	// ErrBadRequest is returned by a Worker given a request of a wrong type.
	ErrBadRequest = errors.New("bad job request")
	// ErrPanic wraps a recovered Worker panic in the terminal event.
	ErrPanic = errors.New("job panicked")
)
