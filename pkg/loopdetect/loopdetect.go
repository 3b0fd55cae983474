// Package loopdetect implements the Loop Detector / Adaptive Budget (C4):
// identical-action, error-cycle, semantic-loop, and no-progress detection
// over recent action history and active facts, plus a hard absolute step
// cap and progress-extension reset.
package loopdetect

import (
	"fmt"

	"github.com/agentforge/fixloop/pkg/state"
)

// Thresholds parameterizes detection; defaults match spec.md §4.4.
type Thresholds struct {
	Identical  int
	Cycle      int
	Semantic   int
	NoProgress int
	HardCap    int
}

// DefaultThresholds is the spec.md §4.4 default policy.
var DefaultThresholds = Thresholds{
	Identical:  3,
	Cycle:      2,
	Semantic:   4,
	NoProgress: 4,
	HardCap:    25,
}

// LoopType classifies a positive detection.
type LoopType string

const (
	LoopIdenticalAction LoopType = "identical_action"
	LoopErrorCycle      LoopType = "error_cycle"
	LoopSemantic        LoopType = "semantic_loop"
	LoopNoProgress      LoopType = "no_progress"
)

// Detection is a positive loop-detector match.
type Detection struct {
	LoopType    LoopType
	Confidence  float64
	Description string
	Suggestions []string
	Evidence    []string
}

// readOnlyActions are the actions considered "non-mutating" for the
// no-progress detector (reads/checks never change the working tree).
var readOnlyActions = map[string]bool{
	"read_file":   true,
	"run_check":   true,
	"run_tests":   true,
	"search_code": true,
	"load_context": true,
}

// nonMutating reports whether an action name is a read/check action.
func nonMutating(action string) bool { return readOnlyActions[action] }

// Detect runs the four detectors in priority order and returns the first
// positive match, or nil if none fire. recent should be the full action
// history (or at least enough to cover the largest configured threshold);
// activeFacts is the current active-fact view.
func Detect(recent []state.ActionRecord, activeFacts []state.Fact, t Thresholds) *Detection {
	if d := detectIdenticalAction(recent, t); d != nil {
		return d
	}
	if d := detectErrorCycle(recent, t); d != nil {
		return d
	}
	if d := detectSemanticLoop(recent, activeFacts, t); d != nil {
		return d
	}
	if d := detectNoProgress(recent, activeFacts, t); d != nil {
		return d
	}
	return nil
}

func tail(recent []state.ActionRecord, n int) []state.ActionRecord {
	if n <= 0 || len(recent) <= n {
		return recent
	}
	return recent[len(recent)-n:]
}

func detectIdenticalAction(recent []state.ActionRecord, t Thresholds) *Detection {
	window := tail(recent, t.Identical)
	if len(window) < t.Identical {
		return nil
	}
	first := window[0]
	if first.Result != state.ResultFailure {
		return nil
	}
	for _, a := range window[1:] {
		if a.Result != state.ResultFailure || a.Action != first.Action {
			return nil
		}
		if !sameParams(a.Parameters, first.Parameters) && a.Error != first.Error {
			return nil
		}
	}
	return &Detection{
		LoopType:    LoopIdenticalAction,
		Confidence:  0.95,
		Description: fmt.Sprintf("%d consecutive failing attempts of %q with the same parameters or error", len(window), first.Action),
		Suggestions: suggestionsFor(first.Action, first.Error),
		Evidence:    evidenceOf(window),
	}
}

func sameParams(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || fmt.Sprint(bv) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

// detectErrorCycle looks for an A→B→A pattern (different action names,
// same failure) in the failures subsequence, repeated >= t.Cycle times.
func detectErrorCycle(recent []state.ActionRecord, t Thresholds) *Detection {
	var failures []state.ActionRecord
	for _, a := range recent {
		if a.Result == state.ResultFailure {
			failures = append(failures, a)
		}
	}
	need := 2 + 2*(t.Cycle-1) // A,B,A,B,... covering t.Cycle repeats of A
	if len(failures) < need {
		need = 4 // minimal A,B,A,B pattern window to inspect
	}
	if len(failures) < 4 {
		return nil
	}
	window := tail(failures, need)
	if len(window) < 4 {
		return nil
	}
	cycles := 0
	for i := 0; i+3 < len(window); i += 2 {
		a, b, a2, b2 := window[i], window[i+1], window[i+2], window[i+3]
		if a.Action == a2.Action && b.Action == b2.Action && a.Action != b.Action &&
			a.Error == a2.Error && b.Error == b2.Error {
			cycles++
		}
	}
	if cycles >= t.Cycle-1 {
		return &Detection{
			LoopType:    LoopErrorCycle,
			Confidence:  0.9,
			Description: fmt.Sprintf("alternating failures between %q and %q repeated", window[0].Action, window[1].Action),
			Suggestions: suggestionsFor(window[0].Action, window[0].Error),
			Evidence:    evidenceOf(window),
		}
	}
	return nil
}

func detectSemanticLoop(recent []state.ActionRecord, activeFacts []state.Fact, t Thresholds) *Detection {
	window := tail(recent, t.Semantic)
	if len(window) >= t.Semantic {
		allFailed := true
		cat := ""
		mixed := false
		names := map[string]bool{}
		for _, a := range window {
			if a.Result != state.ResultFailure {
				allFailed = false
				break
			}
			names[a.Action] = true
			c := errorCategoryOf(a.Error)
			if cat == "" {
				cat = c
			} else if cat != c {
				mixed = true
			}
		}
		if allFailed && !mixed && cat != "" && len(names) > 1 {
			return &Detection{
				LoopType:    LoopSemantic,
				Confidence:  0.85,
				Description: fmt.Sprintf("%d recent actions with mixed names but identical error category %q", len(window), cat),
				Suggestions: suggestionsFor("", window[len(window)-1].Error),
				Evidence:    evidenceOf(window),
			}
		}
	}

	// identical error fact statement repeated >= 3 times
	counts := map[string]int{}
	for _, f := range activeFacts {
		if f.Category == state.CategoryError {
			counts[f.Statement]++
		}
	}
	for stmt, n := range counts {
		if n >= 3 {
			return &Detection{
				LoopType:    LoopSemantic,
				Confidence:  0.85,
				Description: fmt.Sprintf("identical error fact %q recorded %d times", stmt, n),
				Suggestions: suggestionsFor("", stmt),
				Evidence:    []string{stmt},
			}
		}
	}
	return nil
}

func detectNoProgress(recent []state.ActionRecord, activeFacts []state.Fact, t Thresholds) *Detection {
	window := tail(recent, t.NoProgress)
	if len(window) >= t.NoProgress {
		allReadOnly := true
		for _, a := range window {
			if !nonMutating(a.Action) {
				allReadOnly = false
				break
			}
		}
		if allReadOnly {
			return &Detection{
				LoopType:    LoopNoProgress,
				Confidence:  0.75,
				Description: fmt.Sprintf("%d consecutive non-mutating actions with no verification change", len(window)),
				Suggestions: []string{"attempt a mutating action (edit_file, replace_lines, extract_function)", "re-read precomputed analysis for a concrete target"},
				Evidence:    evidenceOf(window),
			}
		}
	}

	counts := map[string]int{}
	for _, f := range activeFacts {
		if f.Category == state.CategoryVerification {
			counts[f.Statement]++
		}
	}
	for stmt, n := range counts {
		if n >= 3 {
			return &Detection{
				LoopType:    LoopNoProgress,
				Confidence:  0.75,
				Description: fmt.Sprintf("verification fact %q unchanged for %d occurrences", stmt, n),
				Suggestions: []string{"try a different fix strategy", "escalate if the violation may require a design change"},
				Evidence:    []string{stmt},
			}
		}
	}
	return nil
}

func errorCategoryOf(errText string) string {
	if errText == "" {
		return ""
	}
	return errText
}

func evidenceOf(actions []state.ActionRecord) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, fmt.Sprintf("step %d: %s -> %s", a.Step, a.Action, a.Result))
	}
	return out
}

// suggestionsFor returns deterministic, action-specific breakout
// suggestions, looked up from a closed per-action table rather than
// generated free-form, per spec.md §4.4's "action-specific" requirement.
func suggestionsFor(action, errText string) []string {
	switch action {
	case "edit_file":
		return []string{"re-read the file; use line numbers", "use replace_lines instead of edit_file", "check for whitespace/indentation mismatches"}
	case "extract_function":
		return []string{"narrow the selection to avoid crossing control flow", "use simplify_conditional first to reduce nesting"}
	case "simplify_conditional":
		return []string{"re-check the if_line argument against the current file", "inspect the function with read_file before retrying"}
	case "run_check":
		return []string{"read the violating function again before retrying", "verify the edit was actually applied with read_file"}
	case "run_tests":
		return []string{"inspect the failing test with read_file", "revert the last edit and retry with a narrower change"}
	}
	if errText != "" {
		return []string{"re-read the file; use line numbers", "consider escalating with cannot_fix if the approach is fundamentally blocked"}
	}
	return []string{"re-read the file; use line numbers"}
}
