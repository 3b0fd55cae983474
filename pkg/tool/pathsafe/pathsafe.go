// Package pathsafe centralizes the path-containment check every
// filetool/pyedit/searchtool handler needs, generalizing the teacher's
// per-handler validatePath/validateWritePath/validateSearchPath
// (pkg/tool/filetool/read_file.go, write_file.go, grep_search.go) into
// one helper so the containment policy is defined exactly once.
package pathsafe

import (
	"fmt"
	"path/filepath"
	"strings"
)

// IgnoredPrefixes are directories spec.md §4.6 names as rejected for
// writes: version control, virtualenvs, and build artifacts.
var IgnoredPrefixes = []string{".git", "venv", ".venv", "__pycache__", "node_modules", "dist", "build", ".tox"}

// Resolve checks path is relative, does not escape root via "..", and
// resolves to a location under root. It returns the absolute path.
// Any violation is reported the way spec.md §4.6 requires verbatim:
// "Path escapes project directory".
func Resolve(root, path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("Path escapes project directory")
	}
	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("Path escapes project directory")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("Path escapes project directory")
	}
	absPath, err := filepath.Abs(filepath.Join(absRoot, cleaned))
	if err != nil {
		return "", fmt.Errorf("Path escapes project directory")
	}
	if absPath != absRoot && !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("Path escapes project directory")
	}
	return absPath, nil
}

// ResolveWritable is Resolve plus rejection of writes under an
// IgnoredPrefixes directory component.
func ResolveWritable(root, path string) (string, error) {
	abs, err := Resolve(root, path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("Path escapes project directory")
	}
	parts := strings.Split(rel, string(filepath.Separator))
	for _, part := range parts {
		for _, ignored := range IgnoredPrefixes {
			if part == ignored {
				return "", fmt.Errorf("writes to %s are not allowed", part)
			}
		}
	}
	return abs, nil
}
