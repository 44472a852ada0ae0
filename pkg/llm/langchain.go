package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"homesync-go/internal/config"
)

// langchainClient routes the same chat call through langchaingo's OpenAI-compatible model.
type langchainClient struct {
	model llms.Model
}

func newLangchainClient(cfg config.LLMConfig) (*langchainClient, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize langchaingo openai model: %w", err)
	}
	return &langchainClient{model: m}, nil
}

func (c *langchainClient) Chat(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(messageType(m.Role), m.Content))
	}

	var opts []llms.CallOption
	if gen != nil {
		if gen.Temperature != nil {
			opts = append(opts, llms.WithTemperature(*gen.Temperature))
		}
		if gen.TopP != nil {
			opts = append(opts, llms.WithTopP(*gen.TopP))
		}
		if gen.MaxTokens != nil {
			opts = append(opts, llms.WithMaxTokens(*gen.MaxTokens))
		}
	}

	resp, err := c.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("langchaingo generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("langchaingo returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func messageType(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
