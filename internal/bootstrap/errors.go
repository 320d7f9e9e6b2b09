package bootstrap

import "errors"

// ErrBringUpLoopback reports that the loopback interface could not be
// brought up. Bootstrap logs this and continues; it is never fatal.
var ErrBringUpLoopback = errors.New("bring up loopback interface")
