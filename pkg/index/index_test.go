package index

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/agentforge/fixloop/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertAndList(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Upsert(Row{TaskID: "t1", ViolationID: "v1", Phase: "implement", CreatedAt: time.Now().UTC()}))
	require.NoError(t, idx.Upsert(Row{TaskID: "t1", ViolationID: "v1", Phase: "complete", CreatedAt: time.Now().UTC(), TerminalPhase: "complete", DurationMs: 1200}))

	row, ok, err := idx.Get("t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "complete", row.Phase)
	assert.Equal(t, "complete", row.TerminalPhase)
	assert.Equal(t, int64(1200), row.DurationMs)

	rows, err := idx.List()
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestRebuildFromTaskDirectories(t *testing.T) {
	root := t.TempDir()
	store := state.NewStore(root, time.Second)
	task := state.Task{
		TaskID: "t1", TaskType: "fix_violation", Goal: "g",
		SuccessCriteria: []string{"checks_passing"}, CreatedAt: time.Now().UTC(),
		Violation: state.Violation{ID: "v1", CheckID: "complexity", FilePath: "a.py"},
	}
	require.NoError(t, store.CreateTask(task, state.PrecomputedContext{}))

	idx, err := Open(filepath.Join(root, "index.db"))
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Rebuild(store, root))
	row, ok, err := idx.Get("t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "init", row.Phase)
	assert.Equal(t, "v1", row.ViolationID)
}
