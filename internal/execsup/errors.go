package execsup

import "errors"

// ErrStart reports a failure to launch the child at all (the Go analogue of
// the original's pipe()/fork() failing before exec is ever attempted). It is
// the only execsup error that should reach the wire as a failure response —
// once a child is running, exec results are always reported as success.
var ErrStart = errors.New("exec start failed")
