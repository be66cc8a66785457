package providers

import (
	"context"

	"github.com/goldbox/relay/pkg/models"
)

// Provider is one LLM vendor's concrete completion backend. Descriptor
// methods (RequiresAuth, SuppressBaseURL) let the Gateway apply key
// resolution and base-URL handling uniformly without a type switch.
type Provider interface {
	Name() string

	// RequiresAuth reports whether a missing API key should fail the call
	// fast. Local/no-auth providers (e.g. Ollama) return false.
	RequiresAuth() bool

	// SuppressBaseURL reports whether this provider infers its endpoint
	// and auth style from the model id itself; when true, the gateway
	// must not override the base URL, as doing so would cancel the
	// provider's own auto-selection (spec.md §4.4).
	SuppressBaseURL() bool

	// Complete performs one completion call. Implementations translate
	// models.ConversationMessage / models.ToolSchema into their SDK's wire
	// shapes and decode tool_calls back without parsing arguments.
	Complete(ctx context.Context, messages []models.ConversationMessage, cfg models.CompletionConfig, tools []models.ToolSchema) (models.CompletionResult, error)
}

// KeyStore resolves an API key by provider id. It is one of the explicit
// external collaborators spec.md §1 leaves interface-only.
type KeyStore interface {
	Key(ctx context.Context, providerID string) (string, bool)
}
