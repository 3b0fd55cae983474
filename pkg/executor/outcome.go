package executor

import "github.com/agentforge/fixloop/pkg/state"

// StepOutcome is the return value of one Step call: whether the Fix
// Workflow should call Step again, why not if it shouldn't, and the
// terminal phase reached if any.
type StepOutcome struct {
	Continue      bool
	Reason        string
	TerminalPhase state.Phase
}
