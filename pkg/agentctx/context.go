// Package agentctx implements the Context Builder (C5): one typed,
// token-bounded, schema-validated context object assembled fresh per
// step from task + state + phase + facts + actions.
package agentctx

import (
	"fmt"
	"sort"

	"github.com/agentforge/fixloop/pkg/state"
)

// TaskSection mirrors spec.md §4.5's "task" section.
type TaskSection struct {
	TaskID          string   `json:"task_id"`
	Goal            string   `json:"goal"`
	Step            int      `json:"step"`
	CurrentPhase    state.Phase `json:"current_phase"`
	SuccessCriteria []string `json:"success_criteria"`
}

// FactView is one rendered fact line, "<statement> (conf: X.Y)".
type FactView struct {
	Statement string  `json:"statement"`
	Rendered  string  `json:"rendered"`
	Confidence float64 `json:"confidence"`
}

// UnderstandingSection groups active facts by category.
type UnderstandingSection map[state.FactCategory][]FactView

// VerificationSection mirrors spec.md §4.5's "verification" section.
type VerificationSection struct {
	Passing bool `json:"passing"`
	Failing bool `json:"failing"`
	TestsOK bool `json:"tests_ok"`
	Ready   bool `json:"ready"`
}

// AnalysisSection mirrors spec.md §4.5's "analysis" section, compactable.
type AnalysisSection struct {
	ViolatingFunctionName string                      `json:"violating_function_name"`
	SourceExcerpt         string                      `json:"source_excerpt"`
	Truncated             bool                        `json:"truncated"`
	ExtractionSuggestions []state.ExtractionSuggestion `json:"extraction_suggestions"`
}

// ActionsSection mirrors spec.md §4.5's "actions" section.
type ActionsSection struct {
	Available   []state.ActionDef `json:"available"`
	Recommended string             `json:"recommended,omitempty"`
	Blocked     map[string]string  `json:"blocked,omitempty"`
}

// RecentActionView is one bounded recent-action summary.
type RecentActionView struct {
	Step    int    `json:"step"`
	Action  string `json:"action"`
	Result  string `json:"result"`
	Summary string `json:"summary"`
}

// StepContext is the single typed object the LLM Driver is given.
type StepContext struct {
	Task          TaskSection           `json:"task"`
	Understanding UnderstandingSection  `json:"understanding"`
	Verification  VerificationSection   `json:"verification"`
	Context       map[string]any        `json:"context"`
	Analysis      AnalysisSection       `json:"analysis"`
	Actions       ActionsSection        `json:"actions"`
	Recent        []RecentActionView    `json:"recent"`
}

// Budget configures the token ceiling and source-excerpt truncation size.
type Budget struct {
	MaxTokens        int
	SourceHeadLines  int
}

// DefaultBudget is spec.md §4.5's "e.g., 5,000 tokens".
var DefaultBudget = Budget{MaxTokens: 5000, SourceHeadLines: 40}

// BuildInput bundles everything Build needs from the rest of the system.
type BuildInput struct {
	Task         state.Task
	PhaseState   state.PhaseState
	Verification state.VerificationState
	ActiveFacts  []state.Fact
	Precomputed  state.PrecomputedContext
	ActionDefs   []state.ActionDef
	Recent       []state.ActionRecord
	Step         int
	Budget       Budget
}

// recommendationByPhase is a small, deterministic lookup of the
// phase-dependent "recommended" action hint.
var recommendationByPhase = map[state.Phase]string{
	state.PhaseInit:      "read_file",
	state.PhaseAnalyze:   "search_code",
	state.PhasePlan:      "extract_function",
	state.PhaseImplement: "edit_file",
	state.PhaseVerify:    "run_check",
}

// Build assembles, compacts, and validates one StepContext.
func Build(in BuildInput) (StepContext, error) {
	if in.Budget.MaxTokens == 0 {
		in.Budget = DefaultBudget
	}

	ctx := StepContext{
		Task: TaskSection{
			TaskID:          in.Task.TaskID,
			Goal:            in.Task.Goal,
			Step:            in.Step,
			CurrentPhase:    in.PhaseState.CurrentPhase,
			SuccessCriteria: in.Task.SuccessCriteria,
		},
		Understanding: buildUnderstanding(in.ActiveFacts),
		Verification: VerificationSection{
			Passing: in.Verification.ChecksPassing > 0 && in.Verification.ChecksFailing == 0,
			Failing: in.Verification.ChecksFailing > 0,
			TestsOK: in.Verification.TestsPassing,
			Ready:   in.Verification.ReadyForCompletion,
		},
		Context: map[string]any{
			"violation_id": in.Task.Violation.ID,
			"check_id":     in.Task.Violation.CheckID,
			"severity":     in.Task.Violation.Severity,
			"file_path":    in.Task.Violation.FilePath,
			"message":      in.Task.Violation.Message,
			"fix_hint":     in.Task.Violation.FixHint,
		},
		Analysis: AnalysisSection{
			ViolatingFunctionName: in.Precomputed.ViolatingFunction.Name,
			SourceExcerpt:         in.Precomputed.ViolatingFunction.Source,
			ExtractionSuggestions: in.Precomputed.ExtractionSuggestions,
		},
		Actions: buildActions(in.ActionDefs, in.PhaseState.CurrentPhase, in.Verification),
		Recent:  buildRecent(in.Recent, 3),
	}

	compact(&ctx, in.Budget)

	if err := Validate(ctx); err != nil {
		return StepContext{}, fmt.Errorf("context invalid: %w", err)
	}
	return ctx, nil
}

func buildUnderstanding(active []state.Fact) UnderstandingSection {
	out := UnderstandingSection{}
	for _, f := range active {
		out[f.Category] = append(out[f.Category], FactView{
			Statement:  f.Statement,
			Rendered:   fmt.Sprintf("%s (conf: %.1f)", f.Statement, f.Confidence),
			Confidence: f.Confidence,
		})
	}
	return out
}

func buildActions(defs []state.ActionDef, p state.Phase, v state.VerificationState) ActionsSection {
	var available []state.ActionDef
	blocked := map[string]string{}
	for _, d := range defs {
		legal := false
		for _, ph := range d.Phases {
			if ph == p {
				legal = true
				break
			}
		}
		if !legal {
			continue
		}
		if d.Name == "complete" && !v.ReadyForCompletion {
			blocked["complete"] = "verification.ready_for_completion is false"
			continue
		}
		available = append(available, d)
	}
	sort.SliceStable(available, func(i, j int) bool { return available[i].Priority > available[j].Priority })
	return ActionsSection{
		Available:   available,
		Recommended: recommendationByPhase[p],
		Blocked:     blocked,
	}
}

func buildRecent(recent []state.ActionRecord, n int) []RecentActionView {
	if len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	out := make([]RecentActionView, 0, len(recent))
	for _, a := range recent {
		out = append(out, RecentActionView{Step: a.Step, Action: a.Action, Result: string(a.Result), Summary: a.Summary})
	}
	return out
}
