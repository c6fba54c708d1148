package translate

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/apresai/narrator/internal/config"
	"github.com/apresai/narrator/internal/observability"
)

const novaDefaultModel = "us.amazon.nova-pro-v1:0"

// NovaTranslator uses Amazon Nova models through the Bedrock Converse API.
type NovaTranslator struct {
	model  string
	system string
	client *bedrockruntime.Client
}

func NewNovaTranslator(ctx context.Context, t config.Translate) (*NovaTranslator, error) {
	cfg, err := observability.LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	model := t.NovaModel
	if model == "" {
		model = novaDefaultModel
	}
	return &NovaTranslator{
		model:  model,
		system: systemPrompt(t),
		client: bedrockruntime.NewFromConfig(cfg),
	}, nil
}

func (n *NovaTranslator) Name() string { return "nova" }

func (n *NovaTranslator) Translate(ctx context.Context, text string) (string, error) {
	resp, err := n.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(n.model),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: n.system},
		},
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: text},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(claudeMaxTokens),
			Temperature: aws.Float32(temperature),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Bedrock Converse error: %w", err)
	}
	return extractNovaText(resp), nil
}

func extractNovaText(resp *bedrockruntime.ConverseOutput) string {
	if resp.Output == nil {
		return ""
	}
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			return tb.Value
		}
	}
	return ""
}
