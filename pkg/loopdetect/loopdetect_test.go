package loopdetect

import (
	"testing"

	"github.com/agentforge/fixloop/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identicalFailures(n int, action, errText string) []state.ActionRecord {
	var out []state.ActionRecord
	for i := 0; i < n; i++ {
		out = append(out, state.ActionRecord{Step: i + 1, Action: action, Result: state.ResultFailure, Error: errText})
	}
	return out
}

func TestIdenticalActionTriggersAtThreshold(t *testing.T) {
	recent := identicalFailures(DefaultThresholds.Identical, "edit_file", "old_text not found")
	d := Detect(recent, nil, DefaultThresholds)
	require.NotNil(t, d)
	assert.Equal(t, LoopIdenticalAction, d.LoopType)
	assert.Equal(t, "re-read the file; use line numbers", d.Suggestions[0])
}

func TestIdenticalActionDoesNotTriggerBelowThreshold(t *testing.T) {
	recent := identicalFailures(DefaultThresholds.Identical-1, "edit_file", "old_text not found")
	d := Detect(recent, nil, DefaultThresholds)
	assert.Nil(t, d)
}

func TestErrorCycleDetection(t *testing.T) {
	recent := []state.ActionRecord{
		{Step: 1, Action: "extract_function", Result: state.ResultFailure, Error: "control flow"},
		{Step: 2, Action: "simplify_conditional", Result: state.ResultFailure, Error: "nested"},
		{Step: 3, Action: "extract_function", Result: state.ResultFailure, Error: "control flow"},
		{Step: 4, Action: "simplify_conditional", Result: state.ResultFailure, Error: "nested"},
	}
	d := Detect(recent, nil, DefaultThresholds)
	require.NotNil(t, d)
	assert.Equal(t, LoopErrorCycle, d.LoopType)
	assert.GreaterOrEqual(t, d.Confidence, 0.9)
}

func TestNoProgressDetection(t *testing.T) {
	recent := []state.ActionRecord{
		{Step: 1, Action: "read_file", Result: state.ResultSuccess},
		{Step: 2, Action: "run_check", Result: state.ResultSuccess},
		{Step: 3, Action: "search_code", Result: state.ResultSuccess},
		{Step: 4, Action: "run_check", Result: state.ResultSuccess},
	}
	d := Detect(recent, nil, DefaultThresholds)
	require.NotNil(t, d)
	assert.Equal(t, LoopNoProgress, d.LoopType)
}

func TestDetectionDeterministic(t *testing.T) {
	recent := identicalFailures(5, "edit_file", "old_text not found")
	d1 := Detect(recent, nil, DefaultThresholds)
	d2 := Detect(recent, nil, DefaultThresholds)
	assert.Equal(t, d1, d2)
}

func TestBudgetHardCap(t *testing.T) {
	b := NewBudget(DefaultThresholds)
	d := b.Check(nil, nil, DefaultThresholds.HardCap+1)
	require.NotNil(t, d)
	assert.Equal(t, 1.0, d.Confidence)
}

func TestBudgetResetsOnProgress(t *testing.T) {
	b := NewBudget(DefaultThresholds)
	b.Observe("2 checks failing")
	b.Observe("2 checks failing")
	assert.Equal(t, 1, b.noProgressStreak)
	b.Observe("1 check failing")
	assert.Equal(t, 0, b.noProgressStreak)
}
