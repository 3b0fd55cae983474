package tool

import (
	"testing"

	"github.com/agentforge/fixloop/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRegistersAllP0Handlers(t *testing.T) {
	reg := Build(BuildConfig{
		ProjectRoot:        t.TempDir(),
		CheckCmd:           []string{"echo", "Check PASSED"},
		TestCmd:            []string{"echo", "1 passed"},
		ReadyForCompletion: func() bool { return true },
	})

	want := []string{
		"read_file", "write_file", "edit_file", "replace_lines", "insert_lines",
		"extract_function", "simplify_conditional",
		"run_check", "run_tests",
		"search_code", "load_context",
		"complete", "escalate", "cannot_fix",
	}
	for _, name := range want {
		_, ok := reg.Lookup(name)
		assert.True(t, ok, "expected handler %q to be registered", name)
	}
}

func TestCompleteOnlyLegalInVerify(t *testing.T) {
	reg := Build(BuildConfig{ProjectRoot: t.TempDir(), ReadyForCompletion: func() bool { return true }})
	complete, ok := reg.Lookup("complete")
	require.True(t, ok)
	assert.Equal(t, []state.Phase{state.PhaseVerify}, complete.Phases)
}

func TestEditFileNotLegalOutsideImplement(t *testing.T) {
	reg := Build(BuildConfig{ProjectRoot: t.TempDir()})
	edit, ok := reg.Lookup("edit_file")
	require.True(t, ok)
	for _, p := range edit.Phases {
		assert.Equal(t, state.PhaseImplement, p)
	}
}
