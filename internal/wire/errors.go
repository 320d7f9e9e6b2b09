package wire

import "errors"

var (
	// ErrMalformedEnvelope covers any structural problem with a request
	// envelope: bad syntax, a missing required field, a non-array cmd, or
	// an empty command.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrMalformedEncoding covers a request whose opaque-bytes field is not
	// valid canonical base64.
	ErrMalformedEncoding = errors.New("malformed encoding")
)
