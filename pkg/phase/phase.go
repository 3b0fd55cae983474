// Package phase implements the Phase Machine (C3): a small guarded
// transition table, per-phase step caps, and auto-transition/
// failure-condition logic, encoded as a literal Go slice rather than a
// callback-driven state machine, per spec.md §9's "small state table"
// guidance.
package phase

import "github.com/agentforge/fixloop/pkg/state"

// Context is the read-only snapshot transitions' guards evaluate against.
// Guards are pure predicates: no side effects, no mutation.
type Context struct {
	Phase              state.Phase
	StepsInPhase       int
	CodeStructureFacts bool
	FilesModified      bool
	VerificationPassing bool
	VerificationFailing bool
	TestsPassing       bool
	LastActionResult   string // "success" | "failure" | "partial" | "skipped" | "fatal"
	LastAction         string // action name, to detect escalate/cannot_fix
}

// Guard is a pure predicate over a Context.
type Guard func(Context) bool

// Transition is one row of the guarded transition table.
type Transition struct {
	From        state.Phase
	To          state.Phase
	Guard       Guard
	Description string
}

func none(Context) bool { return true }

// Order is the canonical forward ordering used by should_auto_transition
// to prefer strictly-forward transitions and prevent oscillation.
var Order = []state.Phase{
	state.PhaseInit,
	state.PhaseAnalyze,
	state.PhasePlan,
	state.PhaseImplement,
	state.PhaseVerify,
	state.PhaseComplete,
}

func orderIndex(p state.Phase) int {
	for i, o := range Order {
		if o == p {
			return i
		}
	}
	return -1
}

// Table is the transition table from spec.md §4.3.
var Table = []Transition{
	{state.PhaseInit, state.PhaseAnalyze, none, "default forward move"},
	{state.PhaseInit, state.PhaseImplement, func(c Context) bool { return c.CodeStructureFacts }, "precomputed has code-structure facts"},
	{state.PhaseAnalyze, state.PhasePlan, func(c Context) bool { return c.StepsInPhase >= 1 && c.CodeStructureFacts }, "≥1 step in phase AND code-structure facts present"},
	{state.PhaseAnalyze, state.PhaseImplement, func(c Context) bool { return c.CodeStructureFacts }, "code-structure facts present"},
	{state.PhasePlan, state.PhaseImplement, none, "plan always advances"},
	{state.PhaseImplement, state.PhaseVerify, func(c Context) bool { return c.FilesModified }, "files_modified ≠ ∅"},
	{state.PhaseVerify, state.PhaseImplement, func(c Context) bool { return c.VerificationFailing }, "verification failing"},
	{state.PhaseVerify, state.PhaseComplete, func(c Context) bool { return c.VerificationPassing && c.TestsPassing && c.LastAction == "complete" }, "verification passing AND tests passing AND model called complete"},
}

// isEscalateAction reports whether the last action is one of the two
// terminal-escalation actions.
func isEscalateAction(action string) bool {
	return action == "escalate" || action == "cannot_fix"
}

// MaxSteps are the per-phase caps from spec.md §4.3.
var MaxSteps = map[state.Phase]int{
	state.PhaseInit:      2,
	state.PhaseAnalyze:   5,
	state.PhasePlan:      2,
	state.PhaseImplement: 15,
	state.PhaseVerify:    5,
}

// CanTransition reports whether any registered from→to transition's guard
// is satisfied by ctx.
func CanTransition(from, to state.Phase, ctx Context) bool {
	for _, t := range Table {
		if t.From == from && t.To == to && t.Guard(ctx) {
			return true
		}
	}
	return false
}

// Decision is the result of asking the machine whether to move.
type Decision struct {
	Transition bool
	To         state.Phase
	Why        string
}

// AutoTransition implements should_auto_transition: from any non-terminal
// phase, if the last action result was fatal, force `failed`; if the last
// action was escalate/cannot_fix, force `escalated`; otherwise try the
// phase's registered transitions in forward-order preference, and if the
// phase's step cap is exceeded with no legal forward transition, force
// `escalated`.
func AutoTransition(ctx Context) Decision {
	if ctx.Phase.Terminal() {
		return Decision{}
	}

	if ctx.LastActionResult == "fatal" {
		return Decision{Transition: true, To: state.PhaseFailed, Why: "last action result = fatal"}
	}
	if isEscalateAction(ctx.LastAction) {
		return Decision{Transition: true, To: state.PhaseEscalated, Why: "last action = " + ctx.LastAction}
	}

	// Phase-specific failure_condition: implement stuck with no
	// modifications for too long forces failed, per spec.md §4.3.
	if ctx.Phase == state.PhaseImplement && ctx.StepsInPhase >= 12 && !ctx.FilesModified {
		return Decision{Transition: true, To: state.PhaseFailed, Why: "implement ≥ 12 steps with no modifications"}
	}

	candidates := candidateTransitions(ctx.Phase, ctx)
	if len(candidates) > 0 {
		best := candidates[0]
		for _, c := range candidates[1:] {
			if orderIndex(c.To) > orderIndex(best.To) {
				best = c
			}
		}
		return Decision{Transition: true, To: best.To, Why: best.Description}
	}

	cap, hasCap := MaxSteps[ctx.Phase]
	if hasCap && ctx.StepsInPhase > cap {
		if fwd := firstLegalForward(ctx.Phase, ctx); fwd != "" {
			return Decision{Transition: true, To: fwd, Why: "phase step cap exceeded; forced forward transition"}
		}
		return Decision{Transition: true, To: state.PhaseEscalated, Why: "phase step cap exceeded; no legal forward transition"}
	}

	return Decision{}
}

func candidateTransitions(from state.Phase, ctx Context) []Transition {
	var out []Transition
	for _, t := range Table {
		if t.From == from && t.Guard(ctx) && orderIndex(t.To) > orderIndex(from) {
			out = append(out, t)
		}
	}
	return out
}

func firstLegalForward(from state.Phase, ctx Context) state.Phase {
	for _, t := range Table {
		if t.From == from && t.Guard(ctx) {
			return t.To
		}
	}
	return ""
}
