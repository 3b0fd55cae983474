package agentctx

import (
	"strings"
	"testing"

	"github.com/agentforge/fixloop/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBasic(t *testing.T) {
	in := BuildInput{
		Task: state.Task{
			TaskID: "t1", Goal: "fix it",
			Violation: state.Violation{ID: "v1", CheckID: "complexity", FilePath: "a.py"},
		},
		PhaseState:  state.PhaseState{CurrentPhase: state.PhaseAnalyze},
		ActiveFacts: []state.Fact{{Category: state.CategoryVerification, Statement: "Check PASSED", Confidence: 1.0}},
		ActionDefs: []state.ActionDef{
			{Name: "read_file", Phases: []state.Phase{state.PhaseAnalyze}, Priority: 1},
			{Name: "complete", Phases: []state.Phase{state.PhaseAnalyze}, Priority: 5},
		},
		Step: 1,
	}
	ctx, err := Build(in)
	require.NoError(t, err)
	assert.Equal(t, "t1", ctx.Task.TaskID)
	assert.Len(t, ctx.Actions.Available, 1)
	assert.Contains(t, ctx.Actions.Blocked, "complete")
}

func TestBuildFailsClosedOnMissingTaskID(t *testing.T) {
	_, err := Build(BuildInput{PhaseState: state.PhaseState{CurrentPhase: state.PhaseInit}})
	require.Error(t, err)
}

func TestCompactTruncatesLongSourceExcerpt(t *testing.T) {
	lines := make([]string, 200)
	for i := range lines {
		lines[i] = "line of python source code that is reasonably long to push token count up"
	}
	in := BuildInput{
		Task:       state.Task{TaskID: "t1", Goal: "g"},
		PhaseState: state.PhaseState{CurrentPhase: state.PhaseAnalyze},
		Precomputed: state.PrecomputedContext{
			ViolatingFunction: state.ViolatingFunction{Name: "f", Source: strings.Join(lines, "\n")},
		},
		Budget: Budget{MaxTokens: 50, SourceHeadLines: 10},
	}
	ctx, err := Build(in)
	require.NoError(t, err)
	assert.True(t, ctx.Analysis.Truncated)
}
