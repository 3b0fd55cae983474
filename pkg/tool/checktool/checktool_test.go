package checktool

import (
	"context"
	"testing"

	"github.com/agentforge/fixloop/pkg/tool"
	"github.com/stretchr/testify/assert"
)

func TestRunCheckSuccess(t *testing.T) {
	cfg := Config{CheckCmd: []string{"echo", "Check PASSED"}}
	out := RunCheck(cfg)(context.Background(), tool.StepContext{}, map[string]string{})
	assert.Equal(t, "Check PASSED", out)
}

func TestRunTestsAppendsPath(t *testing.T) {
	cfg := Config{TestCmd: []string{"echo", "25 passed"}}
	out := RunTests(cfg)(context.Background(), tool.StepContext{}, map[string]string{"path": "test_foo.py"})
	assert.Contains(t, out, "25 passed")
}

func TestRunCommandReportsExecError(t *testing.T) {
	cfg := Config{CheckCmd: []string{"definitely-not-a-real-binary-xyz"}}
	out := RunCheck(cfg)(context.Background(), tool.StepContext{}, map[string]string{})
	assert.Contains(t, out, "ERROR:")
}

func TestRunCommandRejectsDeniedPattern(t *testing.T) {
	cfg := Config{CheckCmd: []string{"rm", "-rf", "/"}}
	out := RunCheck(cfg)(context.Background(), tool.StepContext{}, map[string]string{})
	assert.Contains(t, out, "ERROR: command rejected by security policy")
}
