package lifecycle

import "fmt"

// Phase is one state of the PID-1 supervisor's orchestration sequence.
type Phase int32

const (
	Running Phase = iota
	Quiescing
	Terminating
	Final
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "Running"
	case Quiescing:
		return "Quiescing"
	case Terminating:
		return "Terminating"
	case Final:
		return "Final"
	default:
		return fmt.Sprintf("Phase(%d)", int32(p))
	}
}

// allowedTransitions mirrors the state-machine shape used for VM lifecycle
// elsewhere in this codebase's lineage, re-purposed from container phases to
// the linear PID-1 sequence: Running -> Quiescing -> Terminating -> Final,
// with no phase reachable twice and no phase skippable.
var allowedTransitions = map[Phase][]Phase{
	Running:     {Quiescing},
	Quiescing:   {Terminating},
	Terminating: {Final},
	Final:       {},
}

func validateTransition(from, to Phase) error {
	for _, p := range allowedTransitions[from] {
		if p == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
