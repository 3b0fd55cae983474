package fixworkflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentforge/fixloop/pkg/agentctx"
	"github.com/agentforge/fixloop/pkg/llm"
	"github.com/agentforge/fixloop/pkg/state"
	"github.com/agentforge/fixloop/pkg/violation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const source = `def big_func():
    a = 1
    if a > 0:
        a = a + 1
        a = a + 1
        a = a + 1
        a = a + 1
    return a
`

type scriptedDriver struct {
	responses []llm.AgentResponse
	i         int
}

func (d *scriptedDriver) Invoke(_ context.Context, _ string, _ agentctx.StepContext) (llm.AgentResponse, error) {
	r := d.responses[d.i]
	d.i++
	return r, nil
}

func resp(action string, params map[string]string) llm.AgentResponse {
	return llm.AgentResponse{Action: action, Parameters: params}
}

func writeSource(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte(source), 0644))
}

func TestPrecomputeFindsEnclosingFunction(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root)
	pre, err := Precompute(root, state.Violation{FilePath: "a.py", LineNumber: 4})
	require.NoError(t, err)
	assert.Equal(t, "big_func", pre.ViolatingFunction.Name)
	assert.Equal(t, 1, pre.ViolatingFunction.StartLine)
	assert.Greater(t, pre.ComplexityMetrics["branch_count"], 0.0)
}

func TestRunToCompletionHappyPath(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root)

	driver := &scriptedDriver{responses: []llm.AgentResponse{
		resp("edit_file", map[string]string{"path": "a.py", "old_text": "return a", "new_text": "return a  # noop"}),
		resp("run_check", nil),
		resp("run_tests", nil),
		resp("complete", nil),
	}}
	wf := New(Config{
		ProjectRoot: root,
		CheckCmd:    []string{"sh", "-c", "echo 'Check PASSED'"},
		TestCmd:     []string{"sh", "-c", "echo '10 passed'"},
		Driver:      driver,
		StepCap:     10,
		LockTimeout: time.Second,
	})

	out, err := wf.RunToCompletion(context.Background(), "t1", violation.Violation{
		ID: "v1", CheckID: "complexity", FilePath: "a.py", LineNumber: 3, Message: "too complex",
	})
	require.NoError(t, err)
	assert.Equal(t, state.PhaseComplete, out.TerminalPhase)
	require.NotNil(t, out.Resolution)
	assert.True(t, out.Resolution.TestsPassing)
	assert.True(t, out.Resolution.ChecksPassing)
	assert.Equal(t, "v1", out.Resolution.ViolationID)
}

// TestResumeAfterCrash drives a task halfway through with one Workflow,
// simulates a crash by discarding that Workflow, then resumes with a
// second Workflow instance pointed at the same on-disk task directory —
// spec.md §8 scenario 6: resume picks back up from the last committed
// step with no special-cased recovery path.
func TestResumeAfterCrash(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root)

	firstDriver := &scriptedDriver{responses: []llm.AgentResponse{
		resp("edit_file", map[string]string{"path": "a.py", "old_text": "return a", "new_text": "return a  # noop"}),
		resp("run_check", nil),
	}}
	wf1 := New(Config{
		ProjectRoot: root,
		CheckCmd:    []string{"sh", "-c", "echo 'Check PASSED'"},
		TestCmd:     []string{"sh", "-c", "echo '10 passed'"},
		Driver:      firstDriver,
		StepCap:     2,
		LockTimeout: time.Second,
	})
	require.NoError(t, wf1.StartTask("t1", violation.Violation{
		ID: "v1", CheckID: "complexity", FilePath: "a.py", LineNumber: 3, Message: "too complex",
	}))
	_, err := wf1.Resume(context.Background(), "t1")
	require.NoError(t, err)

	secondDriver := &scriptedDriver{responses: []llm.AgentResponse{
		resp("run_tests", nil),
		resp("complete", nil),
	}}
	wf2 := New(Config{
		ProjectRoot: root,
		CheckCmd:    []string{"sh", "-c", "echo 'Check PASSED'"},
		TestCmd:     []string{"sh", "-c", "echo '10 passed'"},
		Driver:      secondDriver,
		StepCap:     10,
		LockTimeout: time.Second,
	})
	out, err := wf2.Resume(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, state.PhaseComplete, out.TerminalPhase)
	require.NotNil(t, out.Resolution)
	assert.Equal(t, 4, out.Resolution.Steps)
}

func TestEscalationBundleWritten(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root)

	// Always the same unknown action: fails closed every step, and the
	// loop detector's identical-action check escalates the task once the
	// repeat threshold is reached.
	responses := make([]llm.AgentResponse, 0, 40)
	for i := 0; i < 40; i++ {
		responses = append(responses, resp("teleport_to_mars", nil))
	}
	driver := &scriptedDriver{responses: responses}
	wf := New(Config{
		ProjectRoot: root,
		CheckCmd:    []string{"sh", "-c", "echo 'Check PASSED'"},
		TestCmd:     []string{"sh", "-c", "echo '10 passed'"},
		Driver:      driver,
		StepCap:     40,
		LockTimeout: time.Second,
	})
	out, err := wf.RunToCompletion(context.Background(), "t2", violation.Violation{
		ID: "v2", CheckID: "complexity", FilePath: "a.py", LineNumber: 3, Message: "too complex",
	})
	require.NoError(t, err)
	assert.Equal(t, state.PhaseEscalated, out.TerminalPhase)
	require.NotNil(t, out.Escalation)
	assert.FileExists(t, out.Escalation.DiagnosticBundlePath)
}
