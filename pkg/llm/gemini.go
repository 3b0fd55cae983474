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

// GeminiProvider implements Provider against the Gemini
// generateContent API, grounded on the teacher's pkg/llms/gemini.go,
// trimmed to a single non-streaming, temperature-0 call.
type GeminiProvider struct {
	apiKey     string
	model      string
	host       string
	httpClient *httpclient.Client
}

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	return &GeminiProvider{
		apiKey: apiKey,
		model:  model,
		host:   "https://generativelanguage.googleapis.com/v1beta",
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
		),
	}
}

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig geminiGenConfig   `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *GeminiProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, int, error) {
	reqBody := geminiRequest{
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: userPrompt}}}},
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		GenerationConfig:  geminiGenConfig{Temperature: 0},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.host, p.model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, err
	}
	if out.Error != nil {
		return "", 0, fmt.Errorf("gemini: %s", out.Error.Message)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", 0, fmt.Errorf("gemini: empty response")
	}
	return out.Candidates[0].Content.Parts[0].Text, out.UsageMetadata.TotalTokenCount, nil
}
