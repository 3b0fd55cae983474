package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentforge/fixloop/pkg/phase"
	"github.com/agentforge/fixloop/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FIXLOOP_TEST_MODEL", "claude-sonnet")
	os.Unsetenv("FIXLOOP_TEST_MISSING")

	assert.Equal(t, "claude-sonnet", expandEnvVars("$FIXLOOP_TEST_MODEL"))
	assert.Equal(t, "claude-sonnet", expandEnvVars("${FIXLOOP_TEST_MODEL}"))
	assert.Equal(t, "fallback", expandEnvVars("${FIXLOOP_TEST_MISSING:-fallback}"))
	assert.Equal(t, "claude-sonnet", expandEnvVars("${FIXLOOP_TEST_MODEL:-fallback}"))
	assert.Equal(t, "no vars here", expandEnvVars("no vars here"))
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("FIXLOOP_TEST_KEY", "secret-value")
	dir := t.TempDir()
	path := filepath.Join(dir, "fixloop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
project_root: /repo
model_provider: anthropic
model_name: claude-sonnet-4
model_host: "${FIXLOOP_TEST_KEY}"
check_cmd: ["conformance", "check"]
test_cmd: ["pytest"]
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/repo", cfg.ProjectRoot)
	assert.Equal(t, "anthropic", cfg.ModelProvider)
	assert.Equal(t, "secret-value", cfg.ModelHost)
	assert.Equal(t, DefaultStepCap, cfg.StepCap)
	assert.Equal(t, []string{"conformance", "check"}, cfg.CheckCmd)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.ProjectRoot)
	assert.Equal(t, DefaultStepCap, cfg.StepCap)
}

func TestEnvOverridesAlwaysWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixloop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
project_root: /from-file
model_provider: openai
step_cap: 10
`), 0644))

	t.Setenv("AGENTFORGE_PROJECT_ROOT", "/from-env")
	t.Setenv("AGENTFORGE_MODEL_PROVIDER", "anthropic")
	t.Setenv("AGENTFORGE_STEP_CAP", "99")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from-env", cfg.ProjectRoot)
	assert.Equal(t, "anthropic", cfg.ModelProvider)
	assert.Equal(t, 99, cfg.StepCap)
}

func TestProviderAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "ant-key")
	t.Setenv("OPENAI_API_KEY", "oai-key")

	assert.Equal(t, "ant-key", ProviderAPIKey("anthropic"))
	assert.Equal(t, "oai-key", ProviderAPIKey("openai"))
	assert.Equal(t, "", ProviderAPIKey("ollama"))
}

func TestApplyPhaseCapsOverridesGlobalTable(t *testing.T) {
	original := phase.MaxSteps[state.PhaseImplement]
	defer func() { phase.MaxSteps[state.PhaseImplement] = original }()

	cfg := Config{PhaseCaps: map[string]int{"implement": 7}}
	cfg.ApplyPhaseCaps()
	assert.Equal(t, 7, phase.MaxSteps[state.PhaseImplement])
}
