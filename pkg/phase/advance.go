package phase

import "github.com/agentforge/fixloop/pkg/state"

// Apply applies a Decision to a PhaseState, recording a bounded history
// entry and resetting the per-phase step counter.
func Apply(ps state.PhaseState, step int, d Decision) state.PhaseState {
	if !d.Transition {
		return ps
	}
	ps.PhaseHistory = append(ps.PhaseHistory, state.PhaseTransition{
		From: ps.CurrentPhase,
		To:   d.To,
		Step: step,
		Why:  d.Why,
	})
	if len(ps.PhaseHistory) > state.MaxPhaseHistory {
		ps.PhaseHistory = ps.PhaseHistory[len(ps.PhaseHistory)-state.MaxPhaseHistory:]
	}
	ps.CurrentPhase = d.To
	ps.StepsInPhase = 0
	return ps
}

// AdvanceStep increments the in-phase step counter; called once per
// executed step regardless of whether a transition also fires this step.
func AdvanceStep(ps state.PhaseState) state.PhaseState {
	ps.StepsInPhase++
	return ps
}
