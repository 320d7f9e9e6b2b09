package lifecycle

import "errors"

// ErrInvalidTransition reports an attempt to move the state machine between
// two phases that are not adjacent in the orchestration sequence.
var ErrInvalidTransition = errors.New("lifecycle: invalid phase transition")
