package state

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTask(id string) Task {
	return Task{
		TaskID:          id,
		TaskType:        "fix_violation",
		Goal:            "eliminate complexity violation",
		SuccessCriteria: []string{"checks_passing", "tests_passing"},
		CreatedAt:       time.Now(),
		Violation: Violation{
			ID:       "v1",
			CheckID:  "complexity",
			Severity: "warning",
			FilePath: "a.py",
			Message:  "function too complex",
		},
	}
}

func TestCreateTaskAndBeginCommit(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, time.Second)

	task := newTestTask("task-1")
	require.NoError(t, store.CreateTask(task, PrecomputedContext{}))
	assert.True(t, store.Exists("task-1"))

	txn, err := store.Begin("task-1")
	require.NoError(t, err)

	ts, facts, actions, _ := txn.Load()
	assert.Equal(t, PhaseInit, ts.Phase.CurrentPhase)
	assert.Empty(t, facts)
	assert.Empty(t, actions)

	ts.Step = 1
	ts.Phase.CurrentPhase = PhaseAnalyze
	txn.Save(ts)
	txn.AppendFacts([]Fact{{ID: "f1", Category: CategoryVerification, Statement: "ran check", Confidence: 1.0, Source: "run_check:rule", Step: 1}})
	txn.AppendAction(ActionRecord{Step: 1, Action: "run_check", Result: ResultSuccess, Summary: "ok"})
	require.NoError(t, txn.Commit())

	txn2, err := store.Begin("task-1")
	require.NoError(t, err)
	ts2, facts2, actions2, _ := txn2.Load()
	assert.Equal(t, PhaseAnalyze, ts2.Phase.CurrentPhase)
	assert.Len(t, facts2, 1)
	assert.Len(t, actions2, 1)
	require.NoError(t, txn2.Rollback())
}

func TestBeginLocksOutConcurrentTxn(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, 100*time.Millisecond)
	require.NoError(t, store.CreateTask(newTestTask("task-2"), PrecomputedContext{}))

	txn, err := store.Begin("task-2")
	require.NoError(t, err)

	_, err = store.Begin("task-2")
	require.Error(t, err)

	require.NoError(t, txn.Rollback())

	txn2, err := store.Begin("task-2")
	require.NoError(t, err)
	require.NoError(t, txn2.Rollback())
}

func TestLoadFailsClosedOnSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, time.Second)
	require.NoError(t, store.CreateTask(newTestTask("task-3"), PrecomputedContext{}))

	txn, err := store.Begin("task-3")
	require.NoError(t, err)
	require.NoError(t, txn.Rollback())

	// Corrupt the schema version directly on disk.
	p := store.TaskDir("task-3")
	data := []byte("schema_version: 999\ntask:\n  task_id: task-3\nphase:\n  current_phase: init\n")
	require.NoError(t, os.WriteFile(p+"/state.yaml", data, 0644))

	_, err = store.Begin("task-3")
	require.Error(t, err)
}
