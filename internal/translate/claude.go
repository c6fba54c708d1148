package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/apresai/narrator/internal/config"
)

const (
	claudeDefaultModel = "claude-sonnet-4-5"
	claudeMaxTokens    = 8192
	temperature        = 0.3
)

// ClaudeTranslator uses the Anthropic Messages API.
type ClaudeTranslator struct {
	client anthropic.Client
	model  string
	system string
}

func NewClaudeTranslator(t config.Translate, apiKey string, opts ...option.RequestOption) (*ClaudeTranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for the CLAUDE engine")
	}
	model := t.ClaudeModel
	if model == "" {
		model = claudeDefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &ClaudeTranslator{
		client: anthropic.NewClient(opts...),
		model:  model,
		system: systemPrompt(t),
	}, nil
}

func (c *ClaudeTranslator) Name() string { return "claude" }

func (c *ClaudeTranslator) Translate(ctx context.Context, text string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   claudeMaxTokens,
		Temperature: anthropic.Float(temperature),
		System: []anthropic.TextBlockParam{
			{Text: c.system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Claude API error: %w", err)
	}
	return extractText(message), nil
}

func extractText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "")
}
