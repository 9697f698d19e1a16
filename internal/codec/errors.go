package codec

// decodeError signals an invalid wire payload. The kind is the stable name
// the HTTP layer puts in the error body.
type decodeError struct {
	kind string
	msg  string
}

func (e decodeError) Error() string { return e.msg }

const (
	kindMalformed      = "malformed"
	kindSchemaMismatch = "schema_mismatch"
	kindOutOfRange     = "out_of_range"
)

func errMalformed(msg string) error { return decodeError{kind: kindMalformed, msg: msg} }

func errSchemaMismatch(msg string) error { return decodeError{kind: kindSchemaMismatch, msg: msg} }

func errOutOfRange(msg string) error { return decodeError{kind: kindOutOfRange, msg: msg} }

// IsMalformed reports whether err indicates a structurally invalid payload.
func IsMalformed(err error) bool { return kind(err) == kindMalformed }

// IsSchemaMismatch reports whether err indicates a payload that does not
// match the model's input signature.
func IsSchemaMismatch(err error) bool { return kind(err) == kindSchemaMismatch }

// IsOutOfRange reports whether err indicates non-finite input values.
func IsOutOfRange(err error) bool { return kind(err) == kindOutOfRange }

// IsDecodeError reports whether err came from Decode at all.
func IsDecodeError(err error) bool { return kind(err) != "" }

// ErrorKind returns the stable kind string, or "" for foreign errors.
func ErrorKind(err error) string { return kind(err) }

func kind(err error) string {
	de, ok := err.(decodeError)
	if !ok {
		return ""
	}
	return de.kind
}
