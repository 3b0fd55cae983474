package executor

import (
	"os"
	"path/filepath"
)

// snapshot captures a file's content (or its absence) before a mutating
// handler runs, so a post-mutation test regression can be reverted
// without re-deriving what the handler changed.
type snapshot struct {
	path    string
	existed bool
	content []byte
}

// snapshotFile records path's current state. path is relative to root,
// matching the "path" parameter convention every file-mutating handler
// shares (pkg/tool/filetool, pkg/tool/pyedit).
func snapshotFile(root, path string) snapshot {
	abs := filepath.Join(root, path)
	data, err := os.ReadFile(abs)
	if err != nil {
		return snapshot{path: path, existed: false}
	}
	return snapshot{path: path, existed: true, content: data}
}

// revert restores the snapshotted content, or removes the file if it did
// not exist before the handler ran.
func (s snapshot) revert(root string) error {
	abs := filepath.Join(root, s.path)
	if !s.existed {
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return os.WriteFile(abs, s.content, 0644)
}
