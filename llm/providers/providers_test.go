package providers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querytrio/querytrio/llm"
)

func TestChatCompletionsURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"empty uses default", "", "https://api.openai.com/v1/chat/completions"},
		{"trailing slash trimmed", "https://example.com/v1/", "https://example.com/v1/chat/completions"},
		{"full path kept", "https://example.com/v1/chat/completions", "https://example.com/v1/chat/completions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chatCompletionsURL(tt.baseURL, "https://api.openai.com/v1")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOllamaDefaultURL(t *testing.T) {
	p := &OllamaProvider{}
	assert.Equal(t, "http://localhost:11434/v1/chat/completions", p.BuildURL(""))
}

func TestBuildRequestBodyOmitsUnsetMaxTokens(t *testing.T) {
	p := &OpenAIProvider{}
	body, err := p.BuildRequestBody("gpt-4o", []llm.Message{{Role: "user", Content: "hi"}}, nil, 0)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.NotContains(t, raw, "max_tokens")
	assert.NotContains(t, raw, "temperature")

	body, err = p.BuildRequestBody("gpt-4o", nil, nil, 256)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Contains(t, raw, "max_tokens")
}

func TestParseResponseFirstChoice(t *testing.T) {
	p := &OpenAIProvider{}
	payload := `{
		"model": "gpt-4o",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "SELECT 1"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`

	resp, err := p.ParseResponse([]byte(payload), "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestParseResponseNoChoices(t *testing.T) {
	p := &OpenAIProvider{}
	_, err := p.ParseResponse([]byte(`{"choices": []}`), "gpt-4o")
	assert.Error(t, err)
}
