package generate

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// ModelConfig configures the production OpenAI-compatible chat model.
// BaseURL allows pointing at any compatible endpoint.
type ModelConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewOpenAIModel builds the eino chat model used in production. Tests use
// any other model.BaseChatModel instead.
func NewOpenAIModel(ctx context.Context, cfg ModelConfig) (model.BaseChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generate: OPENAI_API_KEY is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	m, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: openai model: %w", err)
	}
	return m, nil
}
