// Package ingress implements RequestIngress (C8): the thin entry point that
// pairs an inbound chat_request frame with a Session, merges any inline
// messages into the MessageCollector, and launches a TurnOrchestrator run.
// Generalized from a single-provider chat send to the general/tactical
// family split.
package ingress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/internal/inbox"
	"github.com/goldbox/relay/internal/orchestrator"
	"github.com/goldbox/relay/internal/sessionstore"
	"github.com/goldbox/relay/pkg/models"
)

// Orchestrator is the subset of *orchestrator.Orchestrator RequestIngress
// calls, declared locally so tests can substitute a fake.
type Orchestrator interface {
	Run(ctx context.Context, req orchestrator.TurnRequest) (orchestrator.TurnResult, error)
}

// Ingress is RequestIngress (C8).
type Ingress struct {
	sessions     sessionstore.Store
	collector    *inbox.Collector
	orchestrator Orchestrator
	logger       *slog.Logger
}

// New constructs an Ingress.
func New(sessions sessionstore.Store, collector *inbox.Collector, orch Orchestrator, logger *slog.Logger) *Ingress {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingress{sessions: sessions, collector: collector, orchestrator: orch, logger: logger}
}

// HandleChatRequest validates data, merges any inline messages into the
// client's inbox, resolves (or creates) a Session, and launches the turn in
// a background goroutine, returning immediately per spec.md §4.8 — turn
// results flow back asynchronously through the chat_response frame the
// orchestrator sends, not through this call's return value.
func (ing *Ingress) HandleChatRequest(ctx context.Context, clientID models.ClientId, settings models.Settings, data frames.ChatRequestData) error {
	if data.ContextCount <= 0 {
		return fmt.Errorf("context_count is required and must be positive")
	}

	mergeInlineMessages(ing.collector, clientID, data.Messages)

	family := settings.ResolveFamily(detectInCombat(ing.collector, clientID))

	sessionID := models.SessionId(data.SessionID)
	sess, err := ing.sessions.GetOrCreate(ctx, clientID, family.Provider, family.Model, sessionID)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}

	if len(sess.Conversation) == 0 {
		prompt := buildSystemPrompt(settings, ing.collector, clientID)
		if err := ing.sessions.Append(ctx, sess.ID, models.NewSystemMessage(prompt)); err != nil {
			return fmt.Errorf("seed system prompt: %w", err)
		}
	}

	req := orchestrator.TurnRequest{
		SessionID:    sess.ID,
		ClientID:     clientID,
		Settings:     settings,
		ContextCount: data.ContextCount,
	}

	go func() {
		// Detached from the inbound request's context: the frame that
		// triggered this turn has already been acknowledged by returning
		// from ServeHTTP's read loop, and the turn must survive past it.
		result, err := ing.orchestrator.Run(context.Background(), req)
		if err != nil {
			ing.logger.Error("orchestrator run failed", "session", sess.ID, "client", clientID, "err", err)
			return
		}
		ing.logger.Info("turn complete", "session", sess.ID, "client", clientID,
			"success", result.Success, "partial", result.Partial, "iterations", result.Iterations)
	}()

	return nil
}
