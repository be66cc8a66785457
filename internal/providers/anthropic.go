package providers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/goldbox/relay/pkg/models"
)

// AnthropicProvider implements Provider against Claude's Messages API,
// adapted from a streaming SSE contract to one synchronous Messages.New
// call per spec.md §4.4's complete(...) -> CompletionResult shape.
type AnthropicProvider struct {
	retryDelay time.Duration
	maxRetries int
	baseURL    string
}

func NewAnthropicProvider(baseURL string) *AnthropicProvider {
	return &AnthropicProvider{retryDelay: time.Second, maxRetries: 3, baseURL: baseURL}
}

func (p *AnthropicProvider) Name() string         { return "anthropic" }
func (p *AnthropicProvider) RequiresAuth() bool    { return true }
func (p *AnthropicProvider) SuppressBaseURL() bool { return false }

func (p *AnthropicProvider) client(cfg models.CompletionConfig) anthropic.Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = p.baseURL
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return anthropic.NewClient(opts...)
}

func (p *AnthropicProvider) Complete(ctx context.Context, messages []models.ConversationMessage, cfg models.CompletionConfig, tools []models.ToolSchema) (models.CompletionResult, error) {
	client := p.client(cfg)

	var system []anthropic.TextBlockParam
	converted, systemText := convertAnthropicMessages(messages)
	if systemText != "" {
		system = []anthropic.TextBlockParam{{Text: systemText}}
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(cfg.ModelID),
		Messages:  converted,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		params.Tools = convertAnthropicTools(tools)
	}

	var resp *anthropic.Message
	err := retryWithBackoff(ctx, p.maxRetries, p.retryDelay, isRetryableAnthropicError, func() error {
		var callErr error
		resp, callErr = client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return models.CompletionResult{}, &ProviderError{ProviderID: p.Name(), Message: err.Error()}
	}

	result := models.CompletionResult{FinishReason: models.FinishStop}
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			result.Content += b.Text
		case anthropic.ToolUseBlock:
			args, _ := json.Marshal(b.Input)
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			})
		}
	}
	if len(result.ToolCalls) > 0 {
		result.FinishReason = models.FinishToolCalls
	}
	result.Usage = models.Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}
	return result, nil
}

// convertAnthropicMessages splits out the leading system message (Claude
// takes system as a top-level field, not a message role) and converts the
// rest, including tool_use/tool_result blocks for the assistant/tool
// round-trip.
func convertAnthropicMessages(messages []models.ConversationMessage) ([]anthropic.MessageParam, string) {
	var system string
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			system = msg.Content
		case models.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case models.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input any
				_ = json.Unmarshal(tc.Arguments, &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case models.RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false)))
		}
	}
	return out, system
}

func convertAnthropicTools(tools []models.ToolSchema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{Properties: t.Parameters["properties"]},
			},
		}
	}
	return out
}

func isRetryableAnthropicError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate_limit", "429", "overloaded", "500", "502", "503", "504", "timeout"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
