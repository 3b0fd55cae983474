package llm

import (
	"gopkg.in/yaml.v3"

	"github.com/agentforge/fixloop/pkg/agentctx"
)

// RenderPrompt serializes the validated StepContext into the YAML
// payload the model sees, mirroring this module's own on-disk
// persistence format (pkg/state's yaml.v3 usage) so the context the
// model reads and the context recorded to outputs/step_<n>.yaml are
// byte-identical in shape.
func RenderPrompt(payload agentctx.StepContext) (string, error) {
	out, err := yaml.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ActionInstructions is appended to every system prompt so the model
// knows the exact strictly-delimited block format the parser expects.
const ActionInstructions = "Respond with exactly one fenced ```action code block containing a YAML document with keys `action`, `parameters` (a flat string map), and optional `reasoning`. Do not include any other fenced block."
