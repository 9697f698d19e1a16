package model

// loadError signals a failed artifact load. Any load failure is fatal to the
// process; the kind only drives the startup log line and the exit path.
type loadError struct {
	kind string
	msg  string
	err  error
}

func (e loadError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e loadError) Unwrap() error { return e.err }

const (
	loadCorrupt         = "corrupt"
	loadVersionMismatch = "version_mismatch"
	loadIOFailure       = "io_failure"
)

func errCorrupt(msg string) error { return loadError{kind: loadCorrupt, msg: msg} }

func errVersionMismatch(msg string) error { return loadError{kind: loadVersionMismatch, msg: msg} }

func errIOFailure(msg string, err error) error {
	return loadError{kind: loadIOFailure, msg: msg, err: err}
}

// IsCorrupt reports whether err indicates a malformed model artifact.
func IsCorrupt(err error) bool { return loadKind(err) == loadCorrupt }

// IsVersionMismatch reports whether err indicates an unsupported artifact
// format version.
func IsVersionMismatch(err error) bool { return loadKind(err) == loadVersionMismatch }

// IsIOFailure reports whether err indicates the artifact could not be read.
func IsIOFailure(err error) bool { return loadKind(err) == loadIOFailure }

func loadKind(err error) string {
	le, ok := err.(loadError)
	if !ok {
		return ""
	}
	return le.kind
}

// inferError signals a per-call inference failure. It never invalidates the
// handle unless fatal is set.
type inferError struct {
	kind  string
	msg   string
	fatal bool
}

func (e inferError) Error() string { return e.msg }

const (
	inferShapeMismatch   = "shape_mismatch"
	inferNumericOverflow = "numeric_overflow"
	inferBackendFailure  = "backend_failure"
)

func errShapeMismatch(msg string) error { return inferError{kind: inferShapeMismatch, msg: msg} }

func errNumericOverflow(msg string) error { return inferError{kind: inferNumericOverflow, msg: msg} }

// ErrBackendFailure constructs a recoverable backend error.
func ErrBackendFailure(msg string) error { return inferError{kind: inferBackendFailure, msg: msg} }

// ErrBackendFault constructs a backend-fatal error: the compute engine is no
// longer usable and the process should stop taking work.
func ErrBackendFault(msg string) error {
	return inferError{kind: inferBackendFailure, msg: msg, fatal: true}
}

// IsShapeMismatch reports whether err indicates an input that does not match
// the model's input signature.
func IsShapeMismatch(err error) bool { return inferKindIs(err, inferShapeMismatch) }

// IsNumericOverflow reports whether err indicates NaN/Inf detected in the
// model output.
func IsNumericOverflow(err error) bool { return inferKindIs(err, inferNumericOverflow) }

// IsBackendFailure reports whether err originated in the compute backend,
// fatal or not.
func IsBackendFailure(err error) bool { return inferKindIs(err, inferBackendFailure) }

// IsBackendFatal reports whether err invalidates further use of the handle.
func IsBackendFatal(err error) bool {
	ie, ok := err.(inferError)
	return ok && ie.fatal
}

func inferKindIs(err error, kind string) bool {
	ie, ok := err.(inferError)
	return ok && ie.kind == kind
}

// ErrorKind returns the stable kind string for load and infer errors, or ""
// for foreign errors. The HTTP layer puts it in error payloads.
func ErrorKind(err error) string {
	switch e := err.(type) {
	case loadError:
		return e.kind
	case inferError:
		return e.kind
	}
	return ""
}
