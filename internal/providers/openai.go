package providers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/goldbox/relay/pkg/models"
)

// OpenAIProvider implements Provider against OpenAI's chat completion API,
// adapted from a streaming chunk contract to the synchronous Complete the
// gateway needs.
type OpenAIProvider struct {
	retryDelay time.Duration
	maxRetries int
	baseURL    string
}

// NewOpenAIProvider constructs an OpenAI backend. baseURL, when set,
// targets an OpenAI-compatible endpoint (e.g. a self-hosted gateway).
func NewOpenAIProvider(baseURL string) *OpenAIProvider {
	return &OpenAIProvider{retryDelay: time.Second, maxRetries: 3, baseURL: baseURL}
}

func (p *OpenAIProvider) Name() string            { return "openai" }
func (p *OpenAIProvider) RequiresAuth() bool       { return true }
func (p *OpenAIProvider) SuppressBaseURL() bool    { return false }

func (p *OpenAIProvider) client(cfg models.CompletionConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	} else if p.baseURL != "" {
		clientCfg.BaseURL = p.baseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

func (p *OpenAIProvider) Complete(ctx context.Context, messages []models.ConversationMessage, cfg models.CompletionConfig, tools []models.ToolSchema) (models.CompletionResult, error) {
	client := p.client(cfg)

	req := openai.ChatCompletionRequest{
		Model:       cfg.ModelID,
		Messages:    convertMessages(messages),
		Temperature: float32(cfg.Temperature),
	}
	if cfg.MaxTokens > 0 {
		req.MaxTokens = cfg.MaxTokens
	}
	if len(tools) > 0 {
		req.Tools = convertTools(tools)
	}

	var resp openai.ChatCompletionResponse
	err := retryWithBackoff(ctx, p.maxRetries, p.retryDelay, isRetryableOpenAIError, func() error {
		var callErr error
		resp, callErr = client.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return models.CompletionResult{}, &ProviderError{ProviderID: p.Name(), Message: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return models.CompletionResult{}, &ProviderError{ProviderID: p.Name(), Message: "no choices returned"}
	}

	choice := resp.Choices[0]
	result := models.CompletionResult{
		Content:      choice.Message.Content,
		FinishReason: mapFinishReason(string(choice.FinishReason)),
		Usage: models.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	if len(result.ToolCalls) > 0 {
		result.FinishReason = models.FinishToolCalls
	}
	return result, nil
}

func convertMessages(messages []models.ConversationMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Content})
		case models.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})
		case models.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, oaiMsg)
		case models.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		}
	}
	return out
}

func convertTools(tools []models.ToolSchema) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

func mapFinishReason(reason string) models.FinishReason {
	switch reason {
	case "tool_calls":
		return models.FinishToolCalls
	case "length":
		return models.FinishLength
	case "":
		return models.FinishStop
	default:
		return models.FinishReason(reason)
	}
}

func isRetryableOpenAIError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "429", "500", "502", "503", "504", "timeout"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
