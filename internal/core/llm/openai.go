package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/multiversa/cortex/internal/core"
)

// Chat-completion API base URLs for the OpenAI-compatible providers.
const (
	GroqBaseURL     = "https://api.groq.com/openai/v1"
	MistralBaseURL  = "https://api.mistral.ai/v1"
	DeepSeekBaseURL = "https://api.deepseek.com"
)

// OpenAICompat serves any provider exposing an OpenAI-compatible chat
// completions API (Groq, Mistral, DeepSeek) behind one strategy, configured
// by base URL, key and default model.
type OpenAICompat struct {
	name         string
	defaultModel string
	client       *openai.Client
}

func NewOpenAICompat(name, apiKey, baseURL, defaultModel string) (*OpenAICompat, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("no API key for provider %s", name)
	}
	if defaultModel == "" {
		return nil, fmt.Errorf("no default model for provider %s", name)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}

	return &OpenAICompat{
		name:         name,
		defaultModel: defaultModel,
		client:       openai.NewClientWithConfig(cfg),
	}, nil
}

func (o *OpenAICompat) Complete(ctx context.Context, prompt, systemPrompt, model string, maxTokens int, temperature float32) (string, error) {
	if model == "" {
		model = o.defaultModel
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ core.Completer = (*OpenAICompat)(nil)
