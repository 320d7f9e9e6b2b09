package server

import "errors"

// ErrRequestTooLarge reports a request that filled the 128 MiB bounded
// buffer without ever producing a terminating newline.
var ErrRequestTooLarge = errors.New("request too large")
