package tool

import "github.com/agentforge/fixloop/pkg/state"

// Per-phase legal-action sets. Every non-terminal phase carries
// escalate/cannot_fix (the phase machine's universal "any
// non-terminal → escalated" guard, spec.md §4.3); mutating file edits
// are legal only in implement; verification commands are legal in
// analyze (to observe the starting violation), implement, and verify; complete is
// legal only in verify, where the Context Builder additionally blocks
// it until verification.ready_for_completion (pkg/agentctx).
var (
	nonMutating = []state.Phase{state.PhaseInit, state.PhaseAnalyze, state.PhasePlan, state.PhaseImplement, state.PhaseVerify}

	PhasesRead       = nonMutating
	PhasesEdit       = []state.Phase{state.PhaseImplement}
	PhasesCheck      = []state.Phase{state.PhaseAnalyze, state.PhaseImplement, state.PhaseVerify}
	PhasesComplete   = []state.Phase{state.PhaseVerify}
	PhasesTerminal   = nonMutating
)
