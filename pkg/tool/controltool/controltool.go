// Package controltool implements the three terminal-transition
// handlers from spec.md §4.6: complete, escalate, cannot_fix. Unlike
// filetool/checktool/searchtool these never touch the filesystem —
// they only report the phase transition the Executor should apply,
// following the same flat SUCCESS:/ERROR: string contract so the
// Phase Machine's guard table (pkg/phase) can key off the action name
// alone (spec.md §4.3's "last action ∈ {escalate, cannot_fix}" guard).
package controltool

import (
	"context"
	"fmt"

	"github.com/agentforge/fixloop/pkg/state"
	"github.com/agentforge/fixloop/pkg/tool"
)

// Register adds complete, escalate, and cannot_fix to reg. The Context
// Builder's blocked-actions list (pkg/agentctx) marks complete as blocked
// until verification is ready; the handler itself re-checks
// readyForCompletion so a model that calls it anyway cannot force
// completion.
func Register(reg *tool.Registry, readyForCompletion func() bool, phases []state.Phase) {
	reg.Register(tool.Registration{Name: "complete", Handler: Complete(readyForCompletion), Phases: phases, Mutates: tool.ReadOnly, Priority: 20})
	reg.Register(tool.Registration{Name: "escalate", Handler: Escalate(), Phases: phases, Mutates: tool.ReadOnly, Priority: 1})
	reg.Register(tool.Registration{Name: "cannot_fix", Handler: CannotFix(), Phases: phases, Mutates: tool.ReadOnly, Priority: 1})
}

// Complete requires verification.ready_for_completion, per spec.md
// §4.6: "complete: Requires verification.ready_for_completion."
func Complete(readyForCompletion func() bool) tool.Handler {
	return func(_ context.Context, _ tool.StepContext, _ map[string]string) string {
		if readyForCompletion == nil || !readyForCompletion() {
			return "ERROR: verification.ready_for_completion is false"
		}
		return "SUCCESS: task complete"
	}
}

// Escalate is the human-handoff action; the Phase Machine transitions
// to escalated whenever the last action is escalate or cannot_fix.
func Escalate() tool.Handler {
	return func(_ context.Context, _ tool.StepContext, params map[string]string) string {
		reason := params["reason"]
		if reason == "" {
			return "ERROR: reason is required"
		}
		return fmt.Sprintf("SUCCESS: escalated: %s", reason)
	}
}

// CannotFix is the structured-escalation variant of Escalate.
func CannotFix() tool.Handler {
	return func(_ context.Context, _ tool.StepContext, params map[string]string) string {
		reason := params["reason"]
		if reason == "" {
			return "ERROR: reason is required"
		}
		return fmt.Sprintf("SUCCESS: cannot_fix: %s", reason)
	}
}
