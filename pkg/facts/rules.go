// Package facts implements the Fact Store & Understanding Extractor (C2):
// converting raw tool output into confidence-scored Fact records via a
// two-tier rule-based/fallback strategy, with supersession and
// score-based compaction.
package facts

import (
	"fmt"
	"regexp"

	"github.com/agentforge/fixloop/pkg/state"
)

// Rule is one (pattern, category, builder) entry in a tool's ruleset.
// Rules for a tool are evaluated in order; the first match wins, per
// spec.md's "dispatch by tool name, not by string-matching tool output
// ad hoc" guidance (spec.md §9).
type Rule struct {
	Pattern    *regexp.Regexp
	Category   state.FactCategory
	Confidence float64
	// Subject derives the canonical supersession subject from the match,
	// e.g. "check:complexity:<function>" so a newer verification fact
	// about the same check supersedes the prior one.
	Subject func(match []string) string
	// Statement renders the human-readable fact text from the match.
	Statement func(match []string) string
}

func mustCompile(pattern string) *regexp.Regexp { return regexp.MustCompile(pattern) }

// ruleset maps a tool name to its ordered list of extraction rules. This
// is the rule-engine tier (tier 1) described in spec.md §4.2.
var ruleset = map[string][]Rule{
	"run_check": {
		{
			Pattern:    mustCompile(`(?i)Check PASSED`),
			Category:   state.CategoryVerification,
			Confidence: 1.0,
			Subject:    func(match []string) string { return "check:status" },
			Statement:  func(match []string) string { return "Conformance check passed" },
		},
		{
			Pattern:    mustCompile(`Function '([^']+)' has complexity (\d+)`),
			Category:   state.CategoryVerification,
			Confidence: 1.0,
			Subject:    func(match []string) string { return "check:complexity:" + match[1] },
			Statement: func(match []string) string {
				return fmt.Sprintf("Function '%s' has complexity %s", match[1], match[2])
			},
		},
		{
			Pattern:    mustCompile(`Function '([^']+)' has (\d+) lines`),
			Category:   state.CategoryVerification,
			Confidence: 1.0,
			Subject:    func(match []string) string { return "check:length:" + match[1] },
			Statement: func(match []string) string {
				return fmt.Sprintf("Function '%s' has %s lines", match[1], match[2])
			},
		},
		{
			Pattern:    mustCompile(`Violations \((\d+)\)`),
			Category:   state.CategoryVerification,
			Confidence: 1.0,
			Subject:    func(match []string) string { return "check:status" },
			Statement:  func(match []string) string { return "Conformance check reports " + match[1] + " violation(s)" },
		},
	},
	"run_tests": {
		{
			Pattern:    mustCompile(`(\d+) passed`),
			Category:   state.CategoryVerification,
			Confidence: 1.0,
			Subject:    func(match []string) string { return "tests:passing" },
			Statement:  func(match []string) string { return match[1] + " tests passed" },
		},
		{
			Pattern:    mustCompile(`(\d+) failed`),
			Category:   state.CategoryVerification,
			Confidence: 1.0,
			Subject:    func(match []string) string { return "tests:failing" },
			Statement:  func(match []string) string { return match[1] + " tests failed" },
		},
	},
	"edit_file": {
		{
			Pattern:    mustCompile(`old_text not found`),
			Category:   state.CategoryError,
			Confidence: 1.0,
			Subject:    func(match []string) string { return "error:edit_file:not_found" },
			Statement:  func(match []string) string { return "Edit failed: target text not found in file" },
		},
		{
			Pattern:    mustCompile(`old_text ambiguous`),
			Category:   state.CategoryError,
			Confidence: 1.0,
			Subject:    func(match []string) string { return "error:edit_file:ambiguous" },
			Statement:  func(match []string) string { return "Edit failed: target text is ambiguous" },
		},
	},
	"extract_function": {
		{
			Pattern:    mustCompile(`(?i)control flow`),
			Category:   state.CategoryError,
			Confidence: 0.95,
			Subject:    func(match []string) string { return "error:extract_function:control_flow" },
			Statement:  func(match []string) string { return "Extraction blocked by control flow" },
		},
	},
	"search_code": {
		{
			Pattern:    mustCompile(`(?i)no matches`),
			Category:   state.CategoryInference,
			Confidence: 0.9,
			Subject:    func(match []string) string { return "search:empty" },
			Statement:  func(match []string) string { return "Search returned no results" },
		},
	},
}
