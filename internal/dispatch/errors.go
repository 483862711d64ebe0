package dispatch

import "errors"

// Sentinel errors, checked with errors.Is — same convention the rest of
// this repository uses for domain errors.
var (
	// ErrBadCapacity is returned by New when MaxQueueCapacity is not positive.
	ErrBadCapacity = errors.New("dispatch: maxQueueCapacity must be positive")

	// ErrMissingExecutor is returned by New when no Executor is configured.
	ErrMissingExecutor = errors.New("dispatch: executor is required")

	// ErrMissingInvoker is returned by New when no Invoker is configured.
	ErrMissingInvoker = errors.New("dispatch: invoker is required")

	// ErrRejected is returned by Submit/SubmitAll when a fresh task had to
	// be created for a listener and the worker pool refused it. All other
	// failure modes are contained inside the dispatcher; this is the only
	// one that reaches the caller.
	ErrRejected = errors.New("dispatch: worker pool rejected a new listener task")
)

// FatalInvokerError wraps an Invoker error to force the owning task to
// retire instead of continuing to the next queued notification. Without
// this wrapper (or a Temporary() bool method returning false), an Invoker
// error is treated as recoverable: logged, and draining continues.
type FatalInvokerError struct {
	Err error
}

func (e *FatalInvokerError) Error() string { return e.Err.Error() }
func (e *FatalInvokerError) Unwrap() error { return e.Err }

// isFatal classifies an Invoker error: it is fatal if it is (or wraps) a
// *FatalInvokerError, or if it implements `Temporary() bool` and that
// method reports false.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	var fatal *FatalInvokerError
	if errors.As(err, &fatal) {
		return true
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) {
		return !temp.Temporary()
	}
	return false
}
