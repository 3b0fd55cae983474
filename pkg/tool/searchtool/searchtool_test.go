package searchtool

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentforge/fixloop/pkg/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCodeFindsMatches(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("def complex_fn():\n    pass\n"), 0o644))

	out := SearchCode(root, nil)(context.Background(), tool.StepContext{}, map[string]string{"query": "complex_fn"})
	assert.Contains(t, out, "SUCCESS:")
	assert.Contains(t, out, "a.py:1:")
}

func TestSearchCodeNoMatches(t *testing.T) {
	root := t.TempDir()
	out := SearchCode(root, nil)(context.Background(), tool.StepContext{}, map[string]string{"query": "nope_xyz"})
	assert.Contains(t, out, "no matches")
}

func TestLoadContextSuccess(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("x=1"), 0o644))
	out := LoadContext(root)(context.Background(), tool.StepContext{}, map[string]string{"path": "a.py"})
	assert.Contains(t, out, "SUCCESS: loaded a.py")
}
