package executor

// Typed errors for the submission path. Kinds are the stable names callers
// key retry decisions on.

type overloadedError struct{}

func (overloadedError) Error() string { return "overloaded: backlog at capacity" }

type deadlineError struct{}

func (deadlineError) Error() string { return "deadline exceeded" }

type unavailableError struct{}

func (unavailableError) Error() string { return "unavailable: shutting down" }

type backendUnavailableError struct{}

func (backendUnavailableError) Error() string { return "backend unavailable" }

// ErrShuttingDown constructs the rejection used once shutdown has begun.
func ErrShuttingDown() error { return unavailableError{} }

// ErrOverloaded constructs the backpressure rejection.
func ErrOverloaded() error { return overloadedError{} }

// ErrDeadlineExceeded constructs the per-job deadline error.
func ErrDeadlineExceeded() error { return deadlineError{} }

// ErrBackendUnavailable constructs the fail-fast error used after a
// backend-fatal fault.
func ErrBackendUnavailable() error { return backendUnavailableError{} }

// IsOverloaded reports whether err is an immediate backpressure rejection.
func IsOverloaded(err error) bool { _, ok := err.(overloadedError); return ok }

// IsDeadlineExceeded reports whether err is a per-job deadline expiry.
func IsDeadlineExceeded(err error) bool { _, ok := err.(deadlineError); return ok }

// IsUnavailable reports whether err is a shutdown-time rejection.
func IsUnavailable(err error) bool { _, ok := err.(unavailableError); return ok }

// IsBackendUnavailable reports whether err is the fail-fast response after a
// backend-fatal fault.
func IsBackendUnavailable(err error) bool { _, ok := err.(backendUnavailableError); return ok }

// ErrorKind returns the stable kind string, or "" for foreign errors.
func ErrorKind(err error) string {
	switch err.(type) {
	case overloadedError:
		return "overloaded"
	case deadlineError:
		return "deadline_exceeded"
	case unavailableError:
		return "unavailable"
	case backendUnavailableError:
		return "backend_unavailable"
	}
	return ""
}

// Retryable reports whether a caller may expect the same request to succeed
// later. Backend-unavailable counts as retryable because a supervisor
// restart restores service.
func Retryable(err error) bool {
	switch err.(type) {
	case overloadedError, deadlineError, unavailableError, backendUnavailableError:
		return true
	}
	return false
}
