package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentforge/fixloop/pkg/fixerr"
)

// fileLock is an exclusive advisory lock on a task directory's state.lock
// file, acquired via O_CREATE|O_EXCL and released by removing the file.
// No pack dependency offers flock semantics (see DESIGN.md), so this is
// built directly on stdlib file-creation atomicity.
type fileLock struct {
	path string
}

const lockPollInterval = 50 * time.Millisecond

// acquireLock blocks until the lock file can be created exclusively, or
// returns a LockBusy error once timeout elapses.
func acquireLock(dir string, timeout time.Duration) (*fileLock, error) {
	path := filepath.Join(dir, "state.lock")
	deadline := time.Now().Add(timeout)
	payload := []byte(fmt.Sprintf("pid=%d acquired=%s", os.Getpid(), time.Now().UTC().Format(time.RFC3339Nano)))

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, _ = f.Write(payload)
			_ = f.Close()
			return &fileLock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fixerr.New(fixerr.KindFatal, "state.acquireLock", err)
		}
		if time.Now().After(deadline) {
			return nil, fixerr.New(fixerr.KindLockBusy, "state.acquireLock",
				fmt.Errorf("lock held at %s after %s", path, timeout))
		}
		time.Sleep(lockPollInterval)
	}
}

func (l *fileLock) release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fixerr.New(fixerr.KindFatal, "state.release", err)
	}
	return nil
}

// staleLockAge is the age beyond which a lock file is reported as stale
// (Snapshot.LockStale); nothing in the module clears a lock on that basis.
const staleLockAge = 30 * time.Minute

func lockIsStale(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "state.lock"))
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) > staleLockAge
}
