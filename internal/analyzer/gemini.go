package analyzer

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// GeminiClient 通过 langchaingo 调用 Gemini
type GeminiClient struct {
	model     llms.Model
	maxTokens int
}

// 创建 Gemini 客户端
func NewGeminiClient(ctx context.Context, config LLMConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(config.APIKey),
		googleai.WithDefaultModel(config.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	return &GeminiClient{model: llm, maxTokens: config.MaxTokens}, nil
}

func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	opts := []llms.CallOption{llms.WithTemperature(0)}
	if g.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.maxTokens))
	}

	resp, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp, nil
}

// NewGenerator 根据 provider 选择模型客户端
func NewGenerator(ctx context.Context, provider string, config LLMConfig) (Generator, error) {
	switch provider {
	case "", "gemini":
		g, err := NewGeminiClient(ctx, config)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "openai":
		return NewChatClient(config), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", provider)
	}
}
