package pyedit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentforge/fixloop/pkg/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, root, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
}

func TestExtractFunctionHappyPath(t *testing.T) {
	root := t.TempDir()
	src := "def process(items):\n" +
		"    total = 0\n" +
		"    for item in items:\n" +
		"        total += item.value\n" +
		"        total *= item.weight\n" +
		"    return total\n"
	writeTemp(t, root, "a.py", src)

	out := ExtractFunction(root)(context.Background(), tool.StepContext{}, map[string]string{
		"path": "a.py", "source_function": "process",
		"start_line": "3", "end_line": "5", "new_function_name": "accumulate",
	})
	assert.Contains(t, out, "SUCCESS:")

	content, _ := os.ReadFile(filepath.Join(root, "a.py"))
	assert.Contains(t, string(content), "def accumulate():")
	assert.Contains(t, string(content), "accumulate()")
}

func TestExtractFunctionRejectsControlFlowCrossing(t *testing.T) {
	root := t.TempDir()
	src := "def f(x):\n" +
		"    if x > 0:\n" +
		"        return x\n" +
		"    return 0\n"
	writeTemp(t, root, "a.py", src)

	out := ExtractFunction(root)(context.Background(), tool.StepContext{}, map[string]string{
		"path": "a.py", "source_function": "f",
		"start_line": "2", "end_line": "3", "new_function_name": "helper",
	})
	assert.Contains(t, out, "ERROR: selection crosses control flow")
}

func TestExtractFunctionInvalidRange(t *testing.T) {
	root := t.TempDir()
	writeTemp(t, root, "a.py", "def f():\n    pass\n")
	out := ExtractFunction(root)(context.Background(), tool.StepContext{}, map[string]string{
		"path": "a.py", "source_function": "f",
		"start_line": "10", "end_line": "20", "new_function_name": "h",
	})
	assert.Contains(t, out, "ERROR: invalid range")
}

func TestSimplifyConditionalGuardClause(t *testing.T) {
	root := t.TempDir()
	src := "def f(x):\n" +
		"    if x > 0:\n" +
		"        do_a()\n" +
		"        do_b()\n"
	writeTemp(t, root, "a.py", src)

	out := SimplifyConditional(root)(context.Background(), tool.StepContext{}, map[string]string{
		"path": "a.py", "function": "f", "if_line": "2",
	})
	assert.Contains(t, out, "SUCCESS:")

	content, _ := os.ReadFile(filepath.Join(root, "a.py"))
	assert.Contains(t, string(content), "    if not (x > 0):")
	assert.Contains(t, string(content), "        return\n    do_a()\n    do_b()")
}

func TestSimplifyConditionalRejectsElse(t *testing.T) {
	root := t.TempDir()
	src := "def f(x):\n" +
		"    if x > 0:\n" +
		"        do_a()\n" +
		"    else:\n" +
		"        do_b()\n"
	writeTemp(t, root, "a.py", src)

	out := SimplifyConditional(root)(context.Background(), tool.StepContext{}, map[string]string{
		"path": "a.py", "function": "f", "if_line": "2",
	})
	assert.Contains(t, out, "ERROR: cannot simplify if/elif/else")
}
