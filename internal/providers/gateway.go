package providers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goldbox/relay/pkg/models"
)

// placeholderAPIKey is substituted for providers marked as not requiring
// authentication, so the call proceeds without a real key (spec.md §4.4).
const placeholderAPIKey = "none"

// Gateway is the ProviderGateway (C4): one Complete operation resolved
// against a registry of Provider backends, with an optional fallback chain
// tried on transport-level failure.
type Gateway struct {
	providers     map[string]Provider
	keys          KeyStore
	fallbackChain []string
	logger        *slog.Logger
}

// New constructs a Gateway over the given providers, keyed by their Name().
func New(keys KeyStore, fallbackChain []string, logger *slog.Logger, registered ...Provider) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[string]Provider, len(registered))
	for _, p := range registered {
		m[p.Name()] = p
	}
	return &Gateway{providers: m, keys: keys, fallbackChain: fallbackChain, logger: logger}
}

// Complete implements the C4 contract. It resolves cfg.ProviderID, fills in
// the API key (failing fast for auth-required providers with no key),
// suppresses the base URL for providers that auto-route from the model id,
// applies the call timeout, and on transport failure walks the configured
// fallback chain before giving up.
func (g *Gateway) Complete(ctx context.Context, messages []models.ConversationMessage, cfg models.CompletionConfig, tools []models.ToolSchema) (models.CompletionResult, error) {
	result, err := g.completeOnce(ctx, cfg.ProviderID, messages, cfg, tools)
	if err == nil {
		return result, nil
	}
	if !isTransportFailure(err) {
		return result, err
	}

	for _, fallbackID := range g.fallbackChain {
		if fallbackID == cfg.ProviderID {
			continue
		}
		fallbackCfg := cfg
		fallbackCfg.ProviderID = fallbackID
		g.logger.Warn("provider call failed, trying fallback", "provider", cfg.ProviderID, "fallback", fallbackID, "err", err)
		result, fbErr := g.completeOnce(ctx, fallbackID, messages, fallbackCfg, tools)
		if fbErr == nil {
			return result, nil
		}
		if !isTransportFailure(fbErr) {
			return result, fbErr
		}
		err = fbErr
	}
	return models.CompletionResult{}, err
}

func (g *Gateway) completeOnce(ctx context.Context, providerID string, messages []models.ConversationMessage, cfg models.CompletionConfig, tools []models.ToolSchema) (models.CompletionResult, error) {
	provider, ok := g.providers[providerID]
	if !ok {
		return models.CompletionResult{}, &ProviderNotFoundError{ProviderID: providerID}
	}

	if provider.RequiresAuth() {
		key := cfg.APIKey
		if key == "" && g.keys != nil {
			resolved, found := g.keys.Key(ctx, providerID)
			if !found {
				return models.CompletionResult{}, &MissingAPIKeyError{ProviderID: providerID}
			}
			key = resolved
		}
		if key == "" {
			return models.CompletionResult{}, &MissingAPIKeyError{ProviderID: providerID}
		}
		cfg.APIKey = key
	} else if cfg.APIKey == "" {
		cfg.APIKey = placeholderAPIKey
	}

	if provider.SuppressBaseURL() {
		cfg.BaseURL = ""
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := provider.Complete(callCtx, messages, cfg, tools)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return models.CompletionResult{}, &TimeoutError{ProviderID: providerID}
		}
		return models.CompletionResult{}, err
	}
	result.ProviderID = providerID
	result.ModelID = cfg.ModelID
	return result, nil
}

// isTransportFailure reports whether err is a transport-level failure the
// gateway is allowed to retry against a fallback provider, as opposed to a
// provider-declared error (which spec.md §4.4 says must never be retried).
func isTransportFailure(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}
