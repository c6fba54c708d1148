package translate

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/apresai/narrator/internal/config"
)

const openAIDefaultModel = "gpt-4o-mini"

// OpenAITranslator uses the OpenAI chat completions API.
type OpenAITranslator struct {
	client *openai.Client
	model  string
	system string
}

func NewOpenAITranslator(t config.Translate, apiKey string, httpClient *http.Client) (*OpenAITranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for the OPENAI engine")
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = httpClient
	return newOpenAITranslator(t, cfg), nil
}

func newOpenAITranslator(t config.Translate, cfg openai.ClientConfig) *OpenAITranslator {
	model := t.OpenAIModel
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAITranslator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		system: systemPrompt(t),
	}
}

func (o *OpenAITranslator) Name() string { return "openai" }

func (o *OpenAITranslator) Translate(ctx context.Context, text string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.system},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
