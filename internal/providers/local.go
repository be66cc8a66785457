package providers

import (
	"context"
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/goldbox/relay/pkg/models"
)

// LocalProvider targets an OpenAI-compatible local model server (Ollama
// and similar), the "not requiring authentication" family spec.md §4.4
// describes: a missing API key substitutes a placeholder and the call
// proceeds. Wraps the OpenAI wire format against a local base URL rather
// than writing its own client.
type LocalProvider struct {
	defaultBaseURL string
}

// NewLocalProvider constructs a local-model backend. defaultBaseURL is used
// when the call's CompletionConfig does not override it (e.g.
// "http://localhost:11434/v1").
func NewLocalProvider(defaultBaseURL string) *LocalProvider {
	if defaultBaseURL == "" {
		defaultBaseURL = "http://localhost:11434/v1"
	}
	return &LocalProvider{defaultBaseURL: defaultBaseURL}
}

func (p *LocalProvider) Name() string         { return "local" }
func (p *LocalProvider) RequiresAuth() bool    { return false }
func (p *LocalProvider) SuppressBaseURL() bool { return false }

func (p *LocalProvider) Complete(ctx context.Context, messages []models.ConversationMessage, cfg models.CompletionConfig, tools []models.ToolSchema) (models.CompletionResult, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = p.defaultBaseURL
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	client := openai.NewClientWithConfig(clientCfg)

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

	resp, err := client.CreateChatCompletion(ctx, req)
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
