// Package fixworkflow implements the Fix Workflow (C9): the driver
// that turns one inbound violation.Violation into a running fix task
// and pumps the Executor to a terminal phase, emitting a
// state.ResolutionRecord or state.EscalationRecord at the end.
package fixworkflow

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/agentforge/fixloop/pkg/state"
	"github.com/agentforge/fixloop/pkg/tool/pathsafe"
)

// branchKeyword matches a Python statement that adds one unit of
// cyclomatic-style branching, mirroring the conformance checker's own
// "complexity" notion closely enough to point the model at the same
// lines the checker flagged.
var branchKeyword = regexp.MustCompile(`^\s*(if|elif|else|for|while|except|with|and\b|or\b)\b`)

var defRe = regexp.MustCompile(`^(\s*)def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

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

// Precompute reads the Python source file the violation points at and
// derives the ViolatingFunction/ComplexityMetrics/ExtractionSuggestions
// the Executor's Context Builder needs from step one, per spec.md §4.9:
// "the precomputation pass ... uses the same indentation-based text
// analysis as pyedit, never a Go-only AST parser." It is the only place
// in the module that performs this analysis; pyedit.ExtractFunction
// mutates based on the model's own choice of range, not this one.
func Precompute(projectRoot string, v state.Violation) (state.PrecomputedContext, error) {
	abs, err := pathsafe.Resolve(projectRoot, v.FilePath)
	if err != nil {
		return state.PrecomputedContext{}, fmt.Errorf("fixworkflow: precompute: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return state.PrecomputedContext{}, fmt.Errorf("fixworkflow: read %s: %w", v.FilePath, err)
	}
	lines := strings.Split(string(data), "\n")

	atLine := v.LineNumber
	if atLine < 1 || atLine > len(lines) {
		atLine = 1
	}

	defLine, defIndent, name, ok := enclosingDef(lines, atLine)
	if !ok {
		// No enclosing def (e.g. the violation targets module-level
		// code): fall back to a context window around the flagged
		// line rather than failing the whole task closed.
		return fallback(v, lines, atLine), nil
	}

	endLine := functionEnd(lines, defLine, defIndent)

	vf := state.ViolatingFunction{
		Name:      name,
		Source:    v.FilePath,
		StartLine: defLine,
		EndLine:   endLine,
	}

	metrics := complexityMetrics(lines, defLine, endLine)
	suggestions := extractionSuggestions(lines, defLine, endLine, defIndent)

	return state.PrecomputedContext{
		ViolatingFunction:     vf,
		Neighborhood:          neighborhood(lines, defLine, endLine),
		Imports:               imports(lines),
		ComplexityMetrics:     metrics,
		ExtractionSuggestions: suggestions,
	}, nil
}

// enclosingDef scans backward from atLine for the nearest "def" whose
// block contains it: a backward scan like pyedit.findEnclosingDef's, which
// here also skips any def whose block ends before atLine.
func enclosingDef(lines []string, atLine int) (line, indent int, name string, ok bool) {
	for i := atLine - 1; i >= 0; i-- {
		m := defRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		if functionEnd(lines, i+1, len(m[1])) < atLine {
			continue
		}
		return i + 1, len(m[1]), m[2], true
	}
	return 0, 0, "", false
}

// functionEnd walks forward from a def line until it hits a
// non-blank line indented at or below the def's own indent, the
// lexical end of that function's block.
func functionEnd(lines []string, defLine, defIndent int) int {
	i := defLine // lines is 0-indexed; defLine is 1-indexed body start
	last := defLine
	for i < len(lines) {
		if isBlank(lines[i]) {
			i++
			continue
		}
		if indentOf(lines[i]) <= defIndent {
			break
		}
		last = i + 1
		i++
	}
	return last
}

// complexityMetrics counts branch-adding keywords per nesting depth,
// the same signal spec.md §4.9 says should "look like" the cyclomatic
// complexity the conformance checker itself already reported, computed
// independently here since precomputation has no access to the
// checker's internals.
func complexityMetrics(lines []string, startLine, endLine int) map[string]float64 {
	branches := 0.0
	maxDepth := 0.0
	baseIndent := indentOf(lines[startLine-1])
	for i := startLine; i < endLine && i < len(lines); i++ {
		l := lines[i]
		if isBlank(l) {
			continue
		}
		if branchKeyword.MatchString(l) {
			branches++
		}
		depth := float64(indentOf(l)-baseIndent) / 4.0
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return map[string]float64{
		"branch_count": branches,
		"max_depth":    maxDepth,
		"line_count":   float64(endLine - startLine + 1),
	}
}

// extractionSuggestions flags contiguous over-indented blocks inside
// the function as candidate extract_function ranges: runs of lines at
// strictly greater indentation than the function body's baseline,
// bounded below minExtractionLines to skip trivial one-liners, and
// never crossing a return/break/continue (the same constraint
// pyedit.ExtractFunction itself enforces, checked here so the
// suggestion the model sees is always one it can act on immediately).
const minExtractionLines = 4

var controlFlowStmt = regexp.MustCompile(`^\s*(return\b|break\b|continue\b)`)

func extractionSuggestions(lines []string, startLine, endLine, defIndent int) []state.ExtractionSuggestion {
	bodyIndent := -1
	for i := startLine; i < endLine && i < len(lines); i++ {
		if isBlank(lines[i]) {
			continue
		}
		bodyIndent = indentOf(lines[i])
		break
	}
	if bodyIndent < 0 {
		return nil
	}

	var out []state.ExtractionSuggestion
	blockStart := -1
	// i runs one past endLine so a block reaching the function's last
	// line is flushed like any other.
	for i := startLine; i <= endLine+1; i++ {
		over := i <= endLine && i <= len(lines) && !isBlank(lines[i-1]) && indentOf(lines[i-1]) > bodyIndent
		crosses := i <= len(lines) && controlFlowStmt.MatchString(lines[i-1])
		if over && !crosses {
			if blockStart == -1 {
				blockStart = i
			}
			continue
		}
		if blockStart != -1 {
			blockEnd := i - 1
			if blockEnd-blockStart+1 >= minExtractionLines {
				out = append(out, state.ExtractionSuggestion{StartLine: blockStart, EndLine: blockEnd, Tag: "nested_block"})
			}
			blockStart = -1
		}
	}
	return out
}

// neighborhood renders the violating function's full source, the
// excerpt the Context Builder truncates further under its own budget.
func neighborhood(lines []string, startLine, endLine int) string {
	if startLine < 1 || endLine > len(lines) || startLine > endLine {
		return ""
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}

// importRe recognizes Python's two import forms; imports() applies it to
// the trimmed line and separately requires zero indentation, which skips
// anything indented inside a function (a local import), keeping this to
// the module-level surface the model actually needs.
var importRe = regexp.MustCompile(`^(import\s+\S+|from\s+\S+\s+import\s+.+)$`)

func imports(lines []string) []string {
	var out []string
	for _, l := range lines {
		if importRe.MatchString(strings.TrimSpace(l)) && indentOf(l) == 0 {
			out = append(out, strings.TrimSpace(l))
		}
	}
	return out
}

// fallback builds a PrecomputedContext for a violation whose line
// doesn't fall inside a function body (module-level code, a class
// declaration), so the Context Builder still gets a usable
// neighborhood instead of an empty one.
func fallback(v state.Violation, lines []string, atLine int) state.PrecomputedContext {
	lo := atLine - 5
	if lo < 1 {
		lo = 1
	}
	hi := atLine + 5
	if hi > len(lines) {
		hi = len(lines)
	}
	return state.PrecomputedContext{
		Neighborhood: strings.Join(lines[lo-1:hi], "\n"),
		Imports:      imports(lines),
	}
}
