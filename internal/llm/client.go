package llm

import (
	"context"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"support-dojo/server/internal/config"
)

// CompletionClient is the upstream text-completion contract. The concrete
// *openai.Client satisfies it directly; tests substitute fakes.
type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewClient builds an openai-compatible client against the configured
// completion endpoint.
func NewClient(cfg config.AIConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return openai.NewClientWithConfig(clientCfg)
}
