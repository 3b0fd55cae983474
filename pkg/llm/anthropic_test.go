package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(0), req.Temperature)

		resp := anthropicResponse{}
		resp.Content = []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{{Type: "text", Text: "```action\naction: complete\n```"}}
		resp.Usage.InputTokens = 10
		resp.Usage.OutputTokens = 5
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", "claude-3", 1024)
	p.host = srv.URL

	text, tokens, err := p.Generate(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Contains(t, text, "complete")
	assert.Equal(t, 15, tokens)
}
