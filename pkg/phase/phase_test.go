package phase

import (
	"testing"

	"github.com/agentforge/fixloop/pkg/state"
	"github.com/stretchr/testify/assert"
)

func TestCanTransitionRequiresSatisfiedGuard(t *testing.T) {
	ctx := Context{CodeStructureFacts: false}
	assert.False(t, CanTransition(state.PhaseInit, state.PhaseImplement, ctx))
	ctx.CodeStructureFacts = true
	assert.True(t, CanTransition(state.PhaseInit, state.PhaseImplement, ctx))
}

func TestAutoTransitionPrefersFurthestForward(t *testing.T) {
	ctx := Context{Phase: state.PhaseAnalyze, StepsInPhase: 1, CodeStructureFacts: true}
	d := AutoTransition(ctx)
	assert.True(t, d.Transition)
	assert.Equal(t, state.PhaseImplement, d.To)
}

func TestAutoTransitionEscalateAction(t *testing.T) {
	ctx := Context{Phase: state.PhaseImplement, LastAction: "escalate"}
	d := AutoTransition(ctx)
	assert.Equal(t, state.PhaseEscalated, d.To)
}

func TestAutoTransitionFatalForcesFailed(t *testing.T) {
	ctx := Context{Phase: state.PhaseVerify, LastActionResult: "fatal"}
	d := AutoTransition(ctx)
	assert.Equal(t, state.PhaseFailed, d.To)
}

func TestPhaseCapForcesForwardOrEscalate(t *testing.T) {
	// implement at 16 steps (cap 15), verification not yet passing -> verify.
	ctx := Context{Phase: state.PhaseImplement, StepsInPhase: 16, FilesModified: true, VerificationFailing: false, VerificationPassing: false, TestsPassing: false}
	d := AutoTransition(ctx)
	assert.True(t, d.Transition)
	assert.Equal(t, state.PhaseVerify, d.To)
}

func TestImplementFailureCondition(t *testing.T) {
	ctx := Context{Phase: state.PhaseImplement, StepsInPhase: 12, FilesModified: false}
	d := AutoTransition(ctx)
	assert.Equal(t, state.PhaseFailed, d.To)
}

func TestTerminalPhaseNeverTransitions(t *testing.T) {
	ctx := Context{Phase: state.PhaseComplete}
	d := AutoTransition(ctx)
	assert.False(t, d.Transition)
}
