package llm

import "fmt"

// ProviderConfig mirrors the model-credential shape pkg/config reads
// from fixloop.yaml, one record per configured provider.
type ProviderConfig struct {
	Type      string // "anthropic", "openai", "gemini", "ollama"; NewDriver has no "human" case
	APIKey    string
	Model     string
	Host      string
	MaxTokens int
}

// NewDriver builds the Driver named by cfg.Type, grounded on the
// teacher's llms/registry.go CreateLLMFromConfig type switch.
func NewDriver(cfg ProviderConfig) (Driver, error) {
	switch cfg.Type {
	case "anthropic":
		return NewProviderDriver(NewAnthropicProvider(cfg.APIKey, cfg.Model, cfg.MaxTokens)), nil
	case "openai":
		return NewProviderDriver(NewOpenAIProvider(cfg.APIKey, cfg.Model)), nil
	case "gemini":
		return NewProviderDriver(NewGeminiProvider(cfg.APIKey, cfg.Model)), nil
	case "ollama":
		return NewProviderDriver(NewOllamaProvider(cfg.Host, cfg.Model)), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider type: %s (supported: anthropic, openai, gemini, ollama)", cfg.Type)
	}
}
