package facts

import (
	"testing"

	"github.com/agentforge/fixloop/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRuleBased(t *testing.T) {
	e := NewExtractor(nil)

	out := e.Extract("run_check", "Check PASSED", true, 1, nil)
	require.Len(t, out, 1)
	assert.Equal(t, state.CategoryVerification, out[0].Category)
	assert.Equal(t, 1.0, out[0].Confidence)
	assert.Equal(t, "Conformance check passed", out[0].Statement)

	out2 := e.Extract("edit_file", "ERROR: old_text not found", false, 2, nil)
	require.Len(t, out2, 1)
	assert.Equal(t, state.CategoryError, out2[0].Category)
	assert.Contains(t, out2[0].Statement, "not found in file")
}

func TestExtractFallback(t *testing.T) {
	e := NewExtractor(nil)
	out := e.Extract("load_context", "SUCCESS: loaded", true, 1, nil)
	require.Len(t, out, 1)
	assert.Equal(t, fallbackConfidence, out[0].Confidence)
}

func TestSupersession(t *testing.T) {
	e := NewExtractor(nil)
	first := e.Extract("run_check", "Check PASSED", true, 1, nil)
	active := first
	second := e.Extract("run_check", "Violations (2)", false, 3, active)
	require.Equal(t, first[0].ID, second[0].Supersedes)
}

func TestActiveExcludesSuperseded(t *testing.T) {
	all := []state.Fact{
		{ID: "a", Category: state.CategoryVerification, Step: 1},
		{ID: "b", Category: state.CategoryVerification, Step: 2, Supersedes: "a"},
	}
	superseded := map[string]bool{"a": true}
	active := Active(all, superseded)
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].ID)
}

func TestCompactKeepsTopScoring(t *testing.T) {
	var all []state.Fact
	superseded := map[string]bool{}
	for i := 0; i < 20; i++ {
		all = append(all, state.Fact{
			ID:         string(rune('a' + i)),
			Category:   state.CategoryInference,
			Confidence: float64(i) / 20.0,
			Step:       i,
		})
	}
	out, _ := Compact(all, superseded, 20, DefaultMaxActiveFacts, DefaultWeights)
	assert.LessOrEqual(t, len(Active(out, superseded)), DefaultMaxActiveFacts)
	// Highest-confidence fact (id == 't', i=19) must survive.
	found := false
	for _, f := range out {
		if f.ID == "t" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSupersedingTwiceIsIdempotentOnActiveSet(t *testing.T) {
	all := []state.Fact{
		{ID: "a", Category: state.CategoryVerification, Step: 1},
	}
	superseded := map[string]bool{}
	superseded["a"] = true
	superseded["a"] = true
	assert.Len(t, Active(all, superseded), 0)
}
