// Package llm implements the LLM Driver (C7): a model-agnostic
// Invoke contract with two variants (human-in-the-loop and an
// automated HTTP-API driver), parsing a strictly-delimited action
// block out of the model's raw response. Grounded on the teacher's
// pkg/llms provider set (anthropic.go, openai.go, gemini.go,
// ollama.go) for the HTTP request/response shapes, simplified from
// their full multi-turn tool-calling surface down to the
// single-action-per-step contract spec.md §4.7 defines.
package llm

import (
	"context"
	"fmt"

	"github.com/agentforge/fixloop/pkg/agentctx"
)

// AgentResponse is the parsed result of one model invocation.
type AgentResponse struct {
	Action     string
	Parameters map[string]string
	Reasoning  string
}

// ErrMalformedResponse is returned when the action block cannot be
// parsed; spec.md §4.7: "any parse failure yields ERROR:
// malformed_response and the executor records a fact of category
// error and may retry once per step."
var ErrMalformedResponse = fmt.Errorf("ERROR: malformed_response")

// Driver is the common contract every LLM Driver variant implements.
type Driver interface {
	Invoke(ctx context.Context, systemPrompt string, payload agentctx.StepContext) (AgentResponse, error)
}
