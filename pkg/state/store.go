package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentforge/fixloop/pkg/fixerr"
)

// DefaultLockTimeout is how long Begin blocks waiting for a busy task lock
// before failing with fixerr.KindLockBusy.
const DefaultLockTimeout = 30 * time.Second

// Store is the durable, crash-safe per-task state store (C1). All writes
// go through a Txn and are published via temp-file + atomic rename under
// an exclusive file lock on the task directory.
type Store struct {
	repoRoot    string
	lockTimeout time.Duration
}

// NewStore returns a Store rooted at repoRoot, whose tasks live under
// <repoRoot>/.agentforge/tasks/<task_id>/.
func NewStore(repoRoot string, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{repoRoot: repoRoot, lockTimeout: lockTimeout}
}

// TaskDir returns the on-disk directory for a task.
func (s *Store) TaskDir(taskID string) string {
	return filepath.Join(s.repoRoot, ".agentforge", "tasks", taskID)
}

// CreateTask materializes a brand-new task directory: state.yaml,
// understanding.yaml, actions.yaml, and precomputed.yaml, all at step 0.
// It is the only entry point that may create a task; owned by the Fix
// Workflow per spec.md §3 Ownership.
func (s *Store) CreateTask(task Task, precomputed PrecomputedContext) error {
	dir := s.TaskDir(task.TaskID)
	if _, err := os.Stat(dir); err == nil {
		return fixerr.New(fixerr.KindUserInput, "state.CreateTask",
			fmt.Errorf("task %s already exists", task.TaskID))
	}
	if err := os.MkdirAll(filepath.Join(dir, "outputs"), 0755); err != nil {
		return fixerr.New(fixerr.KindFatal, "state.CreateTask", err)
	}

	ts := TaskState{
		SchemaVersion: SchemaVersion,
		Task:          task,
		Phase:         PhaseState{CurrentPhase: PhaseInit},
		Verification:  VerificationState{},
		Step:          0,
	}
	if err := atomicWriteYAML(filepath.Join(dir, "state.yaml"), ts); err != nil {
		return fixerr.New(fixerr.KindFatal, "state.CreateTask", err)
	}
	facts := FactStoreFile{SchemaVersion: SchemaVersion, Superseded: map[string]bool{}}
	if err := atomicWriteYAML(filepath.Join(dir, "understanding.yaml"), facts); err != nil {
		return fixerr.New(fixerr.KindFatal, "state.CreateTask", err)
	}
	actions := ActionsFile{SchemaVersion: SchemaVersion}
	if err := atomicWriteYAML(filepath.Join(dir, "actions.yaml"), actions); err != nil {
		return fixerr.New(fixerr.KindFatal, "state.CreateTask", err)
	}
	pre := PrecomputedFile{SchemaVersion: SchemaVersion, Precomputed: precomputed}
	if err := atomicWriteYAML(filepath.Join(dir, "precomputed.yaml"), pre); err != nil {
		return fixerr.New(fixerr.KindFatal, "state.CreateTask", err)
	}
	return nil
}

// Exists reports whether a task directory has already been created.
func (s *Store) Exists(taskID string) bool {
	_, err := os.Stat(s.TaskDir(taskID))
	return err == nil
}

// Begin acquires the exclusive task lock and loads the committed state
// into a fresh transaction. Callers must Commit or Rollback.
func (s *Store) Begin(taskID string) (*Txn, error) {
	dir := s.TaskDir(taskID)
	if _, err := os.Stat(dir); err != nil {
		return nil, fixerr.New(fixerr.KindUserInput, "state.Begin",
			fmt.Errorf("task %s not found", taskID))
	}

	lock, err := acquireLock(dir, s.lockTimeout)
	if err != nil {
		return nil, err
	}

	txn := &Txn{dir: dir, lock: lock}
	if err := txn.loadCommitted(); err != nil {
		_ = lock.release()
		return nil, err
	}
	return txn, nil
}
