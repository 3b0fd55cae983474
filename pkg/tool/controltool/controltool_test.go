package controltool

import (
	"context"
	"testing"

	"github.com/agentforge/fixloop/pkg/tool"
	"github.com/stretchr/testify/assert"
)

func TestCompleteBlockedUntilReady(t *testing.T) {
	ready := false
	h := Complete(func() bool { return ready })
	out := h(context.Background(), tool.StepContext{}, nil)
	assert.Contains(t, out, "ERROR:")

	ready = true
	out = h(context.Background(), tool.StepContext{}, nil)
	assert.Equal(t, "SUCCESS: task complete", out)
}

func TestEscalateRequiresReason(t *testing.T) {
	out := Escalate()(context.Background(), tool.StepContext{}, map[string]string{})
	assert.Contains(t, out, "ERROR:")

	out = Escalate()(context.Background(), tool.StepContext{}, map[string]string{"reason": "stuck"})
	assert.Equal(t, "SUCCESS: escalated: stuck", out)
}

func TestCannotFix(t *testing.T) {
	out := CannotFix()(context.Background(), tool.StepContext{}, map[string]string{"reason": "infeasible"})
	assert.Equal(t, "SUCCESS: cannot_fix: infeasible", out)
}
