package llm

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var actionBlockRe = regexp.MustCompile("(?s)```action\\s*\\n(.*?)```")

type actionDoc struct {
	Action     string            `yaml:"action"`
	Parameters map[string]string `yaml:"parameters"`
	Reasoning  string            `yaml:"reasoning"`
}

// ParseActionBlock extracts the single ```action fenced YAML block
// from a raw model response and decodes it into an AgentResponse.
// Any deviation — no block, more than one block, invalid YAML, or a
// missing action name — is ErrMalformedResponse, per spec.md §4.7.
func ParseActionBlock(raw string) (AgentResponse, error) {
	matches := actionBlockRe.FindAllStringSubmatch(raw, -1)
	if len(matches) != 1 {
		return AgentResponse{}, ErrMalformedResponse
	}

	var doc actionDoc
	if err := yaml.Unmarshal([]byte(matches[0][1]), &doc); err != nil {
		return AgentResponse{}, ErrMalformedResponse
	}
	if strings.TrimSpace(doc.Action) == "" {
		return AgentResponse{}, ErrMalformedResponse
	}
	if doc.Parameters == nil {
		doc.Parameters = map[string]string{}
	}
	return AgentResponse{Action: doc.Action, Parameters: doc.Parameters, Reasoning: doc.Reasoning}, nil
}
