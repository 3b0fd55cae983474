package llm

import (
	"context"

	"github.com/agentforge/fixloop/pkg/agentctx"
)

// Provider is the narrow surface a concrete model backend implements:
// one non-streaming completion call at temperature 0, matching
// spec.md §4.7's determinism requirement ("temperature 0; same inputs
// should produce same outputs within the tolerance of the provider").
// This is deliberately far narrower than the teacher's LLMProvider
// interface (pkg/llms/registry.go), which also covers streaming,
// multi-turn tool-calling, and structured output — none of which the
// single-action-per-step contract here needs.
type Provider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (text string, tokens int, err error)
}

// ProviderDriver adapts any Provider into a Driver by rendering the
// StepContext to YAML, invoking the model, and parsing its response
// for the strictly-delimited action block.
type ProviderDriver struct {
	Provider Provider
}

func NewProviderDriver(p Provider) *ProviderDriver {
	return &ProviderDriver{Provider: p}
}

func (d *ProviderDriver) Invoke(ctx context.Context, systemPrompt string, payload agentctx.StepContext) (AgentResponse, error) {
	rendered, err := RenderPrompt(payload)
	if err != nil {
		return AgentResponse{}, err
	}
	text, _, err := d.Provider.Generate(ctx, systemPrompt+"\n"+ActionInstructions, rendered)
	if err != nil {
		return AgentResponse{}, err
	}
	return ParseActionBlock(text)
}
