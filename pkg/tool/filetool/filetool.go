// Package filetool implements the file-oriented P0 handlers from
// spec.md §4.6: read_file, write_file, edit_file, replace_lines,
// insert_lines. Grounded on the teacher's pkg/tool/filetool
// (read_file.go, write_file.go, search_replace.go), adapted from the
// teacher's map[string]any CallableTool contract to this module's
// flat SUCCESS:/ERROR:-string handler contract and atomic-rename
// writes (pkg/state/atomic.go's pattern, reused here for plain files).
package filetool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agentforge/fixloop/pkg/state"
	"github.com/agentforge/fixloop/pkg/tool"
	"github.com/agentforge/fixloop/pkg/tool/pathsafe"
)

const maxFileSize = 10 * 1024 * 1024

// Register adds read_file, write_file, edit_file, replace_lines, and
// insert_lines to reg, each legal in the given phases, rooted at
// projectRoot.
func Register(reg *tool.Registry, projectRoot string, phases []state.Phase) {
	reg.Register(tool.Registration{Name: "read_file", Handler: ReadFile(projectRoot), Phases: phases, Mutates: tool.ReadOnly, Priority: 5})
	reg.Register(tool.Registration{Name: "write_file", Handler: WriteFile(projectRoot), Phases: phases, Mutates: tool.Mutates, Priority: 3})
	reg.Register(tool.Registration{Name: "edit_file", Handler: EditFile(projectRoot), Phases: phases, Mutates: tool.Mutates, Priority: 8})
	reg.Register(tool.Registration{Name: "replace_lines", Handler: ReplaceLines(projectRoot), Phases: phases, Mutates: tool.Mutates, Priority: 6})
	reg.Register(tool.Registration{Name: "insert_lines", Handler: InsertLines(projectRoot), Phases: phases, Mutates: tool.Mutates, Priority: 4})
}

// ReadFile returns "SUCCESS: read <path>" followed by the numbered lines
// (limited by start_line/end_line when given), or "ERROR: not found".
func ReadFile(root string) tool.Handler {
	return func(_ context.Context, _ tool.StepContext, params map[string]string) string {
		path := params["path"]
		abs, err := pathsafe.Resolve(root, path)
		if err != nil {
			return "ERROR: " + err.Error()
		}
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			return "ERROR: not found"
		}
		if info.Size() > maxFileSize {
			return fmt.Sprintf("ERROR: file too large: %d bytes", info.Size())
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			return "ERROR: not found"
		}
		lines := strings.Split(string(content), "\n")
		start, end := lineRange(params, len(lines))
		if start > end {
			return fmt.Sprintf("ERROR: invalid range: start_line (%d) > end_line (%d)", start, end)
		}
		var b strings.Builder
		b.WriteString(fmt.Sprintf("SUCCESS: read %s\n", path))
		for i := start - 1; i < end && i < len(lines); i++ {
			b.WriteString(fmt.Sprintf("%6d| %s\n", i+1, lines[i]))
		}
		return b.String()
	}
}

func lineRange(params map[string]string, total int) (int, int) {
	start, end := 1, total
	if v, ok := params["start_line"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			start = n
		}
	}
	if v, ok := params["end_line"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			end = n
		}
	}
	if end > total {
		end = total
	}
	return start, end
}

// WriteFile atomically creates/overwrites a file (spec.md §4.6
// write_file), rejecting writes under ignored directories.
func WriteFile(root string) tool.Handler {
	return func(_ context.Context, _ tool.StepContext, params map[string]string) string {
		path := params["path"]
		abs, err := pathsafe.ResolveWritable(root, path)
		if err != nil {
			return "ERROR: " + err.Error()
		}
		content := params["content"]
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fmt.Sprintf("ERROR: %v", err)
		}
		if err := atomicWrite(abs, []byte(content)); err != nil {
			return fmt.Sprintf("ERROR: %v", err)
		}
		return fmt.Sprintf("SUCCESS: wrote %s (%d bytes)", path, len(content))
	}
}

// EditFile performs the exact-match replace spec.md §4.6 and §9's
// Open Question resolve: replace exactly once when old_text is
// unique, or when replace_all=true replace every occurrence; an
// ambiguous (non-unique, non-replace_all) match is rejected rather
// than guessing the "first" occurrence, matching the teacher's
// search_replace.go ReplaceAll-gated ambiguity check.
func EditFile(root string) tool.Handler {
	return func(_ context.Context, _ tool.StepContext, params map[string]string) string {
		path := params["path"]
		abs, err := pathsafe.ResolveWritable(root, path)
		if err != nil {
			return "ERROR: " + err.Error()
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			return "ERROR: not found"
		}
		original := string(content)
		oldText := params["old_text"]
		newText := params["new_text"]

		count := strings.Count(original, oldText)
		if count == 0 {
			return "ERROR: old_text not found"
		}
		replaceAll := params["replace_all"] == "true"
		if count > 1 && !replaceAll {
			return "ERROR: old_text ambiguous"
		}

		var updated string
		if replaceAll {
			updated = strings.ReplaceAll(original, oldText, newText)
		} else {
			updated = strings.Replace(original, oldText, newText, 1)
		}
		if err := atomicWrite(abs, []byte(updated)); err != nil {
			return fmt.Sprintf("ERROR: %v", err)
		}
		return fmt.Sprintf("SUCCESS: Edited %s", path)
	}
}

// ReplaceLines replaces lines [start,end] (1-indexed, inclusive) with
// new_content, per spec.md §4.6's "validates 1 ≤ start ≤ end ≤ EOF".
func ReplaceLines(root string) tool.Handler {
	return func(_ context.Context, _ tool.StepContext, params map[string]string) string {
		path := params["path"]
		abs, err := pathsafe.ResolveWritable(root, path)
		if err != nil {
			return "ERROR: " + err.Error()
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			return "ERROR: not found"
		}
		lines := strings.Split(string(content), "\n")
		start, err1 := strconv.Atoi(params["start"])
		end, err2 := strconv.Atoi(params["end"])
		if err1 != nil || err2 != nil || start < 1 || end < start || end > len(lines) {
			return fmt.Sprintf("ERROR: invalid range: 1 <= start <= end <= %d required", len(lines))
		}
		newLines := strings.Split(params["new_content"], "\n")
		out := append([]string{}, lines[:start-1]...)
		out = append(out, newLines...)
		out = append(out, lines[end:]...)
		if err := atomicWrite(abs, []byte(strings.Join(out, "\n"))); err != nil {
			return fmt.Sprintf("ERROR: %v", err)
		}
		return fmt.Sprintf("SUCCESS: Replaced lines %d-%d in %s", start, end, path)
	}
}

// InsertLines inserts content immediately after the given 1-indexed
// line (0 means prepend), per spec.md §4.6 insert_lines.
func InsertLines(root string) tool.Handler {
	return func(_ context.Context, _ tool.StepContext, params map[string]string) string {
		path := params["path"]
		abs, err := pathsafe.ResolveWritable(root, path)
		if err != nil {
			return "ERROR: " + err.Error()
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			return "ERROR: not found"
		}
		lines := strings.Split(string(content), "\n")
		line, err := strconv.Atoi(params["line"])
		if err != nil || line < 0 || line > len(lines) {
			return fmt.Sprintf("ERROR: invalid line: 0 <= line <= %d required", len(lines))
		}
		newLines := strings.Split(params["content"], "\n")
		out := append([]string{}, lines[:line]...)
		out = append(out, newLines...)
		out = append(out, lines[line:]...)
		if err := atomicWrite(abs, []byte(strings.Join(out, "\n"))); err != nil {
			return fmt.Sprintf("ERROR: %v", err)
		}
		return fmt.Sprintf("SUCCESS: Inserted at line %d in %s", line, path)
	}
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
