// Package config loads AgentForge's fix-loop configuration: a YAML
// file with environment-variable interpolation (grounded on the
// teacher's pkg/config env-expansion approach) layered under the
// AGENTFORGE_* environment variables spec.md §6 names, which always
// win over the file so a CI pipeline can override a checked-in config
// without editing it.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/agentforge/fixloop/pkg/phase"
	"github.com/agentforge/fixloop/pkg/state"
	"gopkg.in/yaml.v3"
)

// Config is the fully-resolved configuration for one fixloop invocation.
type Config struct {
	ProjectRoot   string         `yaml:"project_root"`
	ModelProvider string         `yaml:"model_provider"`
	ModelName     string         `yaml:"model_name"`
	ModelHost     string         `yaml:"model_host,omitempty"`
	StepCap       int            `yaml:"step_cap,omitempty"`
	PhaseCaps     map[string]int `yaml:"phase_caps,omitempty"`
	CheckCmd      []string       `yaml:"check_cmd"`
	TestCmd       []string       `yaml:"test_cmd"`

	// MCPCommand, when set, backs search_code's semantic
	// half with an external MCP retrieval server instead of regex-only
	// search (spec.md §4.6's "external retrieval collaborator").
	MCPCommand  string   `yaml:"mcp_command,omitempty"`
	MCPArgs     []string `yaml:"mcp_args,omitempty"`
	MCPToolName string   `yaml:"mcp_tool_name,omitempty"`
}

// DefaultStepCap is used when neither the file nor AGENTFORGE_STEP_CAP
// sets one.
const DefaultStepCap = 50

// Load reads path (if it exists; a missing file is not an error, since
// the environment alone can fully configure a run), expands
// "${VAR}"/"${VAR:-default}" references in every string field, then
// applies AGENTFORGE_* environment overrides, which always take
// precedence over the file.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			expanded := expandEnvVars(string(data))
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if v := os.Getenv("AGENTFORGE_PROJECT_ROOT"); v != "" {
		cfg.ProjectRoot = v
	}
	if v := os.Getenv("AGENTFORGE_MODEL_PROVIDER"); v != "" {
		cfg.ModelProvider = v
	}
	if v := os.Getenv("AGENTFORGE_MODEL_NAME"); v != "" {
		cfg.ModelName = v
	}
	if v := os.Getenv("AGENTFORGE_STEP_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: AGENTFORGE_STEP_CAP: %w", err)
		}
		cfg.StepCap = n
	}
	if cfg.StepCap == 0 {
		cfg.StepCap = DefaultStepCap
	}

	if cfg.PhaseCaps == nil {
		cfg.PhaseCaps = map[string]int{}
	}
	for p := range phase.MaxSteps {
		envName := "AGENTFORGE_PHASE_CAP_" + string(p)
		if v := os.Getenv(envVarName(envName)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return Config{}, fmt.Errorf("config: %s: %w", envName, err)
			}
			cfg.PhaseCaps[string(p)] = n
		}
	}

	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = "."
	}
	return cfg, nil
}

// envVarName upper-cases a phase-cap env var name; AGENTFORGE_PHASE_CAP_<PHASE>
// names phases in upper case (e.g. AGENTFORGE_PHASE_CAP_IMPLEMENT) while
// state.Phase values are lower case, so the two must be bridged here.
func envVarName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// ApplyPhaseCaps overwrites phase.MaxSteps in place with cfg's
// overrides. phase.MaxSteps is process-global, so this is meant to be
// called exactly once at process startup, before any Executor runs.
func (c Config) ApplyPhaseCaps() {
	for name, n := range c.PhaseCaps {
		phase.MaxSteps[state.Phase(name)] = n
	}
}
