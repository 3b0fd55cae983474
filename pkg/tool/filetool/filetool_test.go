package filetool

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

func TestReadFileSuccessAndNotFound(t *testing.T) {
	root := t.TempDir()
	writeTemp(t, root, "a.py", "def f():\n    pass\n")

	out := ReadFile(root)(context.Background(), tool.StepContext{}, map[string]string{"path": "a.py"})
	assert.Contains(t, out, "SUCCESS:")
	assert.Contains(t, out, "def f():")

	out = ReadFile(root)(context.Background(), tool.StepContext{}, map[string]string{"path": "missing.py"})
	assert.Equal(t, "ERROR: not found", out)
}

func TestReadFileRejectsPathEscape(t *testing.T) {
	root := t.TempDir()
	out := ReadFile(root)(context.Background(), tool.StepContext{}, map[string]string{"path": "../outside.py"})
	assert.Contains(t, out, "ERROR: Path escapes project directory")
}

func TestEditFileUniqueMatch(t *testing.T) {
	root := t.TempDir()
	writeTemp(t, root, "a.py", "x = 1\ny = 2\n")

	out := EditFile(root)(context.Background(), tool.StepContext{}, map[string]string{
		"path": "a.py", "old_text": "x = 1", "new_text": "x = 100",
	})
	assert.Equal(t, "SUCCESS: Edited a.py", out)

	content, _ := os.ReadFile(filepath.Join(root, "a.py"))
	assert.Contains(t, string(content), "x = 100")
}

func TestEditFileAmbiguousWithoutReplaceAll(t *testing.T) {
	root := t.TempDir()
	writeTemp(t, root, "a.py", "x = 1\nx = 1\n")

	out := EditFile(root)(context.Background(), tool.StepContext{}, map[string]string{
		"path": "a.py", "old_text": "x = 1", "new_text": "x = 2",
	})
	assert.Equal(t, "ERROR: old_text ambiguous", out)
}

func TestEditFileReplaceAll(t *testing.T) {
	root := t.TempDir()
	writeTemp(t, root, "a.py", "x = 1\nx = 1\n")

	out := EditFile(root)(context.Background(), tool.StepContext{}, map[string]string{
		"path": "a.py", "old_text": "x = 1", "new_text": "x = 2", "replace_all": "true",
	})
	assert.Equal(t, "SUCCESS: Edited a.py", out)
	content, _ := os.ReadFile(filepath.Join(root, "a.py"))
	assert.Equal(t, "x = 2\nx = 2\n", string(content))
}

func TestEditFileNotFound(t *testing.T) {
	root := t.TempDir()
	writeTemp(t, root, "a.py", "x = 1\n")
	out := EditFile(root)(context.Background(), tool.StepContext{}, map[string]string{
		"path": "a.py", "old_text": "nope", "new_text": "x",
	})
	assert.Equal(t, "ERROR: old_text not found", out)
}

func TestReplaceLinesValidatesRange(t *testing.T) {
	root := t.TempDir()
	writeTemp(t, root, "a.py", "1\n2\n3\n")
	out := ReplaceLines(root)(context.Background(), tool.StepContext{}, map[string]string{
		"path": "a.py", "start": "5", "end": "6", "new_content": "x",
	})
	assert.Contains(t, out, "ERROR: invalid range")
}

func TestInsertLines(t *testing.T) {
	root := t.TempDir()
	writeTemp(t, root, "a.py", "1\n2\n3\n")
	out := InsertLines(root)(context.Background(), tool.StepContext{}, map[string]string{
		"path": "a.py", "line": "1", "content": "1.5",
	})
	assert.Equal(t, "SUCCESS: Inserted at line 1 in a.py", out)
	content, _ := os.ReadFile(filepath.Join(root, "a.py"))
	assert.Equal(t, "1\n1.5\n2\n3\n", string(content))
}

func TestWriteFileRejectsIgnoredDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	out := WriteFile(root)(context.Background(), tool.StepContext{}, map[string]string{
		"path": ".git/hooks/pre-commit", "content": "x",
	})
	assert.Contains(t, out, "ERROR:")
}
