package models

// ToolSchema describes one tool the LLM may call, in the provider-neutral
// shape ProviderGateway translates into each vendor's function-calling
// format.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema object
}

// CompletionConfig carries the per-call knobs ProviderGateway.Complete
// needs: which provider/model, how to authenticate, and transport limits.
// APIKey may be left empty; the gateway then resolves it from its KeyStore
// by provider id.
type CompletionConfig struct {
	ProviderID    string
	ModelID       string
	APIKey        string
	BaseURL       string
	CustomHeaders map[string]string
	Temperature   float64
	MaxTokens     int // 0: OpenAI-compatible backends send no limit; Anthropic and Bedrock send 4096
	TimeoutSec    int
	MaxRetries    int
}

// Usage reports token accounting for one completion call, when the
// provider supplies it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// FinishReason is the provider-reported reason a completion stopped.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishError     FinishReason = "error"
)

// CompletionResult is the single success shape ProviderGateway.Complete
// returns; see errors.go for the failure shapes.
type CompletionResult struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason FinishReason
	Usage        Usage
	ProviderID   string
	ModelID      string
}
