package state

import (
	"os"
	"path/filepath"

	"github.com/agentforge/fixloop/pkg/fixerr"
)

// Snapshot is a read-only view of a task's committed state, used by
// pkg/fixworkflow (resolve, escalate, the completion-readiness check) and
// by index.Rebuild. It never acquires
// the lock — it is advisory only and may race a concurrently-running step.
type Snapshot struct {
	State       TaskState
	Facts       []Fact
	Superseded  map[string]bool
	Actions     []ActionRecord
	Precomputed PrecomputedContext
	LockHeld    bool
	LockStale   bool
}

// ReadSnapshot loads a task's committed files without acquiring the lock.
func (s *Store) ReadSnapshot(taskID string) (Snapshot, error) {
	dir := s.TaskDir(taskID)
	var snap Snapshot

	if ok, err := readYAML(filepath.Join(dir, "state.yaml"), &snap.State); err != nil || !ok {
		if err == nil {
			err = fixerr.New(fixerr.KindUserInput, "state.ReadSnapshot", errNoSuchTask)
		}
		return snap, err
	}
	var facts FactStoreFile
	_, _ = readYAML(filepath.Join(dir, "understanding.yaml"), &facts)
	snap.Facts = facts.Facts
	snap.Superseded = facts.Superseded

	var actions ActionsFile
	_, _ = readYAML(filepath.Join(dir, "actions.yaml"), &actions)
	snap.Actions = actions.Actions

	var pre PrecomputedFile
	_, _ = readYAML(filepath.Join(dir, "precomputed.yaml"), &pre)
	snap.Precomputed = pre.Precomputed

	snap.LockHeld = lockExists(dir)
	snap.LockStale = lockIsStale(dir)
	return snap, nil
}

var errNoSuchTask = &noSuchTaskError{}

type noSuchTaskError struct{}

func (*noSuchTaskError) Error() string { return "no such task" }

func lockExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "state.lock"))
	return err == nil
}
