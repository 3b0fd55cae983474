// Package pyedit implements the structural Python-editing P0 handlers
// from spec.md §4.6: extract_function and simplify_conditional. The
// fix loop's target source is Python (spec.md §9's "the current core
// assumes a single language per task (Python)"), so these handlers
// cannot use Go's go/ast (which only parses Go); instead they use
// hand-written indentation-aware text analysis, the same text-line
// approach the teacher's pkg/tool/filetool handlers use for read/edit
// operations, generalized here to recognize Python block structure by
// leading-whitespace depth rather than by parsing an AST.
package pyedit

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentforge/fixloop/pkg/state"
	"github.com/agentforge/fixloop/pkg/tool"
	"github.com/agentforge/fixloop/pkg/tool/pathsafe"
)

// Register adds extract_function and simplify_conditional to reg.
func Register(reg *tool.Registry, projectRoot string, phases []state.Phase) {
	reg.Register(tool.Registration{Name: "extract_function", Handler: ExtractFunction(projectRoot), Phases: phases, Mutates: tool.Mutates, Priority: 10})
	reg.Register(tool.Registration{Name: "simplify_conditional", Handler: SimplifyConditional(projectRoot), Phases: phases, Mutates: tool.Mutates, Priority: 9})
}

var controlFlowStmt = regexp.MustCompile(`^\s*(return\b|break\b|continue\b)`)

// indentOf returns the leading-whitespace width, counting a space as one
// column and a tab as eight (Python disallows mixing them; this module
// only needs relative comparison).
func indentOf(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 8
		} else {
			break
		}
	}
	return n
}

func isBlank(line string) bool { return strings.TrimSpace(line) == "" }

// ExtractFunction moves lines [start_line,end_line] of source_function
// into a new function named new_function_name, inserted just above the
// enclosing def at that def's indentation, replacing the original range
// with a call. Per spec.md §4.6, it errors if the
// selection crosses control flow (a return/break/continue inside the
// range would change meaning once moved into a helper) or the range
// is invalid.
func ExtractFunction(root string) tool.Handler {
	return func(_ context.Context, _ tool.StepContext, params map[string]string) string {
		path := params["path"]
		abs, err := pathsafe.ResolveWritable(root, path)
		if err != nil {
			return "ERROR: " + err.Error()
		}
		src, lines, err := readLines(abs)
		if err != nil {
			return "ERROR: not found"
		}
		_ = src

		start, err1 := strconv.Atoi(params["start_line"])
		end, err2 := strconv.Atoi(params["end_line"])
		if err1 != nil || err2 != nil || start < 1 || end < start || end > len(lines) {
			return fmt.Sprintf("ERROR: invalid range: 1 <= start_line <= end_line <= %d required", len(lines))
		}

		fnLine, fnIndent, ok := findEnclosingDef(lines, start, params["source_function"])
		if !ok {
			return fmt.Sprintf("ERROR: function %q not found enclosing the given range", params["source_function"])
		}

		body := lines[start-1 : end]
		for _, l := range body {
			if controlFlowStmt.MatchString(l) {
				return "ERROR: selection crosses control flow (return/break/continue)"
			}
		}

		newName := params["new_function_name"]
		if newName == "" {
			return "ERROR: new_function_name is required"
		}

		bodyIndent := indentOf(body[0])
		for _, l := range body {
			if !isBlank(l) && indentOf(l) < bodyIndent {
				bodyIndent = indentOf(l)
			}
		}

		helperIndent := strings.Repeat(" ", fnIndent)
		var helper []string
		helper = append(helper, fmt.Sprintf("%sdef %s():", helperIndent, newName))
		for _, l := range body {
			if isBlank(l) {
				helper = append(helper, l)
				continue
			}
			rewritten := strings.Repeat(" ", fnIndent+4) + strings.TrimPrefix(l, strings.Repeat(" ", bodyIndent))
			helper = append(helper, rewritten)
		}
		helper = append(helper, "")

		call := strings.Repeat(" ", bodyIndent) + newName + "()"

		out := append([]string{}, lines[:fnLine-1]...)
		out = append(out, helper...)
		out = append(out, lines[fnLine-1:start-1]...)
		out = append(out, call)
		out = append(out, lines[end:]...)

		if err := writeLines(abs, out); err != nil {
			return fmt.Sprintf("ERROR: %v", err)
		}
		return fmt.Sprintf("SUCCESS: Extracted %s from lines %d-%d in %s", newName, start, end, path)
	}
}

var defRe = regexp.MustCompile(`^(\s*)def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// findEnclosingDef scans backward from atLine for a "def name(" whose
// name matches wantName (or the nearest def above atLine if wantName is
// empty), returning its 1-indexed line number and indentation. It does
// not check that the def's block contains atLine.
func findEnclosingDef(lines []string, atLine int, wantName string) (int, int, bool) {
	for i := atLine - 1; i >= 0; i-- {
		m := defRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		if wantName != "" && m[2] != wantName {
			continue
		}
		return i + 1, len(m[1]), true
	}
	return 0, 0, false
}

// SimplifyConditional converts a trailing nested "if" into a guard
// clause when it is safe to do so: the if has no elif/else, and its
// body is the final statement block of the enclosing function (so
// inverting the condition and returning early is behavior-preserving).
// Anything else is rejected rather than guessed at.
func SimplifyConditional(root string) tool.Handler {
	return func(_ context.Context, _ tool.StepContext, params map[string]string) string {
		path := params["path"]
		abs, err := pathsafe.ResolveWritable(root, path)
		if err != nil {
			return "ERROR: " + err.Error()
		}
		_, lines, err := readLines(abs)
		if err != nil {
			return "ERROR: not found"
		}

		ifLineNo, err := strconv.Atoi(params["if_line"])
		if err != nil || ifLineNo < 1 || ifLineNo > len(lines) {
			return "ERROR: invalid if_line"
		}
		ifIdx := ifLineNo - 1
		ifText := lines[ifIdx]
		ifIndent := indentOf(ifText)
		trimmed := strings.TrimSpace(ifText)
		if !strings.HasPrefix(trimmed, "if ") || !strings.HasSuffix(trimmed, ":") {
			return "ERROR: if_line does not start an if block"
		}
		condition := strings.TrimSuffix(strings.TrimPrefix(trimmed, "if "), ":")

		bodyStart := ifIdx + 1
		bodyEnd := bodyStart
		for bodyEnd < len(lines) {
			l := lines[bodyEnd]
			if isBlank(l) {
				bodyEnd++
				continue
			}
			if indentOf(l) <= ifIndent {
				break
			}
			bodyEnd++
		}
		if bodyEnd == bodyStart {
			return "ERROR: empty if block"
		}

		// Reject elif/else: next non-blank line at ifIndent starting
		// with elif/else means this if is not safely invertible here.
		if bodyEnd < len(lines) {
			next := strings.TrimSpace(lines[bodyEnd])
			if strings.HasPrefix(next, "elif") || strings.HasPrefix(next, "else") {
				return "ERROR: cannot simplify if/elif/else chain"
			}
		}
		// Require the if-block to be the last statement in its
		// enclosing scope (tail position), so a guard clause is
		// behavior-preserving: nothing meaningful follows at ifIndent
		// other than blank lines or a lower-indented (dedented) line.
		for i := bodyEnd; i < len(lines); i++ {
			if isBlank(lines[i]) {
				continue
			}
			if indentOf(lines[i]) >= ifIndent {
				return "ERROR: if block is not in tail position"
			}
			break
		}

		body := lines[bodyStart:bodyEnd]
		guardAction := "return"
		if v, ok := params["guard_value"]; ok && v != "" {
			guardAction = "return " + v
		}

		out := append([]string{}, lines[:ifIdx]...)
		out = append(out, fmt.Sprintf("%sif not (%s):", strings.Repeat(" ", ifIndent), condition))
		out = append(out, strings.Repeat(" ", ifIndent+4)+guardAction)
		for _, l := range body {
			if isBlank(l) {
				out = append(out, l)
				continue
			}
			out = append(out, strings.Repeat(" ", ifIndent)+strings.TrimPrefix(l, strings.Repeat(" ", ifIndent+4)))
		}
		out = append(out, lines[bodyEnd:]...)

		if err := writeLines(abs, out); err != nil {
			return fmt.Sprintf("ERROR: %v", err)
		}
		return fmt.Sprintf("SUCCESS: Simplified conditional at line %d in %s", ifLineNo, path)
	}
}

func readLines(path string) (string, []string, error) {
	data, err := readFile(path)
	if err != nil {
		return "", nil, err
	}
	return data, strings.Split(data, "\n"), nil
}

func writeLines(path string, lines []string) error {
	return writeFileAtomic(path, strings.Join(lines, "\n"))
}
