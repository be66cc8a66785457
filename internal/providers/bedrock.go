package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/goldbox/relay/pkg/models"
)

// BedrockProvider implements Provider against AWS Bedrock's runtime
// InvokeModel API. Bedrock is the one provider in this catalog
// authenticated through the ambient AWS credential chain rather than a
// KeyStore-resolved bearer key, which is why RequiresAuth is false and
// SuppressBaseURL is true: the AWS SDK resolves the regional endpoint
// itself, and overriding it would defeat that resolution (spec.md §4.4).
type BedrockProvider struct {
	region string
}

func NewBedrockProvider(region string) *BedrockProvider {
	if region == "" {
		region = "us-east-1"
	}
	return &BedrockProvider{region: region}
}

func (p *BedrockProvider) Name() string         { return "bedrock" }
func (p *BedrockProvider) RequiresAuth() bool    { return false }
func (p *BedrockProvider) SuppressBaseURL() bool { return true }

// bedrockAnthropicRequest is the Anthropic-on-Bedrock wire body: the same
// Messages API shape Claude expects directly, wrapped with the
// Bedrock-specific anthropic_version marker.
type bedrockAnthropicRequest struct {
	AnthropicVersion string                 `json:"anthropic_version"`
	MaxTokens        int                    `json:"max_tokens"`
	System           string                 `json:"system,omitempty"`
	Messages         []bedrockMessage       `json:"messages"`
	Tools            []map[string]any       `json:"tools,omitempty"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockAnthropicResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text,omitempty"`
		ID    string          `json:"id,omitempty"`
		Name  string          `json:"name,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *BedrockProvider) Complete(ctx context.Context, messages []models.ConversationMessage, cfg models.CompletionConfig, tools []models.ToolSchema) (models.CompletionResult, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(p.region)}
	if accessKey, secretKey := cfg.CustomHeaders["aws_access_key_id"], cfg.CustomHeaders["aws_secret_access_key"]; accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, cfg.CustomHeaders["aws_session_token"],
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return models.CompletionResult{}, &ProviderError{ProviderID: p.Name(), Message: fmt.Sprintf("load aws config: %v", err)}
	}
	client := bedrockruntime.NewFromConfig(awsCfg)

	var system string
	var converted []bedrockMessage
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			system = msg.Content
		case models.RoleUser, models.RoleAssistant:
			converted = append(converted, bedrockMessage{Role: string(msg.Role), Content: msg.Content})
		case models.RoleTool:
			converted = append(converted, bedrockMessage{Role: "user", Content: msg.Content})
		}
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	body := bedrockAnthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		System:           system,
		Messages:         converted,
	}
	for _, t := range tools {
		body.Tools = append(body.Tools, map[string]any{
			"name":         t.Name,
			"description":  t.Description,
			"input_schema": t.Parameters,
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return models.CompletionResult{}, &ProviderError{ProviderID: p.Name(), Message: err.Error()}
	}

	out, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(cfg.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return models.CompletionResult{}, &ProviderError{ProviderID: p.Name(), Message: err.Error()}
	}

	var resp bedrockAnthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return models.CompletionResult{}, &ProviderError{ProviderID: p.Name(), Message: fmt.Sprintf("decode response: %v", err)}
	}

	result := models.CompletionResult{FinishReason: models.FinishStop}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			result.Content += block.Text
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	if len(result.ToolCalls) > 0 {
		result.FinishReason = models.FinishToolCalls
	}
	result.Usage = models.Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}
	return result, nil
}
