package providers

import (
	"net/http"
	"os"

	"github.com/querytrio/querytrio/llm"
)

// OllamaProvider targets Ollama, vLLM, and other servers that expose the
// OpenAI-compatible API. The wire format comes from the embedded
// OpenAIProvider; only the default URL and auth differ.
type OllamaProvider struct {
	OpenAIProvider
}

func init() {
	llm.RegisterProvider(&OllamaProvider{})
}

// Name returns the provider identifier.
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// BuildURL constructs the chat completions endpoint against a local Ollama.
func (o *OllamaProvider) BuildURL(baseURL string) string {
	return chatCompletionsURL(baseURL, "http://localhost:11434/v1")
}

// SetHeaders adds bearer auth when a key is configured. Local servers
// typically need none.
func (o *OllamaProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}
