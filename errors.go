package revcheck

import "errors"

var (
	// ErrNotSequence is the cause attached to a MalformedInputError when the
	// decoded top-level object is not an ASN.1 SEQUENCE.
	ErrNotSequence = errors.New("top-level object is not a SEQUENCE")

	// ErrTrailingData is returned by DecodeDER when bytes remain after the
	// first top-level element.
	ErrTrailingData = errors.New("trailing data after top-level object")
)

// MalformedInputError reports a PEM envelope whose payload could not be turned
// into a SEQUENCE: invalid base64, undecodable DER, or the wrong top-level
// shape. Err holds the underlying failure.
type MalformedInputError struct {
	Err error
}

func (e *MalformedInputError) Error() string {
	if e.Err == nil {
		return "malformed pem data encountered"
	}
	return "malformed pem data encountered: " + e.Err.Error()
}

// Unwrap returns the underlying decode failure.
func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// IsMalformedInput reports whether err is, or wraps, a MalformedInputError.
func IsMalformedInput(err error) bool {
	var mie *MalformedInputError
	return errors.As(err, &mie)
}
