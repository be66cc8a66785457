// Package providers implements the ProviderGateway (C4): a uniform
// "send chat completion with optional tool schema" call over many LLM
// vendors, generalized from a streaming-chunk contract to the synchronous
// complete(messages, config, tools) -> CompletionResult spec.md §4.4
// specifies.
package providers

import "fmt"

// ProviderNotFoundError is returned when CompletionConfig.ProviderID names
// no registered Provider.
type ProviderNotFoundError struct {
	ProviderID string
}

func (e *ProviderNotFoundError) Error() string {
	return fmt.Sprintf("provider not found: %s", e.ProviderID)
}

// MissingAPIKeyError is returned when a provider requiring authentication
// has no key available from the KeyStore.
type MissingAPIKeyError struct {
	ProviderID string
}

func (e *MissingAPIKeyError) Error() string {
	return fmt.Sprintf("missing api key for provider: %s", e.ProviderID)
}

// TimeoutError is returned when a completion call exceeds its configured
// timeout.
type TimeoutError struct {
	ProviderID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider timeout: %s", e.ProviderID)
}

// ProviderError wraps a provider-declared failure (a non-2xx response, a
// malformed payload the SDK rejected, and so on). The gateway itself
// retries only transport-level errors, never these.
type ProviderError struct {
	ProviderID string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (%s): %s", e.ProviderID, e.Message)
}
