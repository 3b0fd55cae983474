package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agentforge/fixloop/pkg/httpclient"
)

// OllamaProvider implements Provider against a local Ollama server's
// /api/chat endpoint, grounded on the teacher's pkg/llms/ollama.go,
// trimmed to a single non-streaming, temperature-0 call.
type OllamaProvider struct {
	model      string
	host       string
	httpClient *httpclient.Client
}

func NewOllamaProvider(host, model string) *OllamaProvider {
	if host == "" {
		host = "http://localhost:11434"
	}
	return &OllamaProvider{
		model: model,
		host:  host,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
		),
	}
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaResponse struct {
	Message        ollamaMessage `json:"message"`
	PromptEvalCount int          `json:"prompt_eval_count"`
	EvalCount       int          `json:"eval_count"`
	Error           string       `json:"error,omitempty"`
}

func (p *OllamaProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, int, error) {
	reqBody := ollamaRequest{
		Model:  p.model,
		Stream: false,
		Options: ollamaOptions{Temperature: 0},
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, err
	}
	if out.Error != "" {
		return "", 0, fmt.Errorf("ollama: %s", out.Error)
	}
	return out.Message.Content, out.PromptEvalCount + out.EvalCount, nil
}
