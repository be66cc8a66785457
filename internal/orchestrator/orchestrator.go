// Package orchestrator implements the TurnOrchestrator (C6): the state
// machine that turns one RequestIngress-launched turn into a sequence of
// LLM calls and tool dispatches.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/internal/inbox"
	"github.com/goldbox/relay/internal/sessionstore"
	"github.com/goldbox/relay/internal/toolexec"
	"github.com/goldbox/relay/pkg/models"
)

// DefaultMaxIterations is the step budget spec.md §4.6 and §8 scenario F
// describe: at most this many LLM calls per turn.
const DefaultMaxIterations = 10

// Gateway is the subset of providers.Gateway the orchestrator calls. It is
// declared locally so tests can substitute a fake without importing the
// providers package.
type Gateway interface {
	Complete(ctx context.Context, messages []models.ConversationMessage, cfg models.CompletionConfig, tools []models.ToolSchema) (models.CompletionResult, error)
}

// Executor is the subset of toolexec.Executor the orchestrator calls.
type Executor interface {
	Execute(ctx context.Context, clientID models.ClientId, call models.ToolCall) (json.RawMessage, error)
}

// Config carries the orchestrator's tunables.
type Config struct {
	MaxIterations int
	TokenBudget   int // passed through to SessionStore.History; 0 means unbounded
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	return c
}

// Orchestrator wires SessionStore, MessageCollector, ProviderGateway and
// ToolExecutor together to run one turn to completion.
type Orchestrator struct {
	sessions  sessionstore.Store
	collector *inbox.Collector
	gateway   Gateway
	executor  Executor
	sender    toolexec.Sender
	cfg       Config
	logger    *slog.Logger
}

// New constructs an Orchestrator. sender delivers the turn's final message
// to the frontend directly as a chat_response frame (spec.md §2's "C6
// dispatches final messages via C5/C7 to the frontend" — the orchestrator
// holds the same Sender boundary ToolExecutor uses rather than routing its
// own output back through a tool call).
func New(sessions sessionstore.Store, collector *inbox.Collector, gateway Gateway, executor Executor, sender toolexec.Sender, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sessions:  sessions,
		collector: collector,
		gateway:   gateway,
		executor:  executor,
		sender:    sender,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// sendFinalMessage pushes the turn's closing assistant content to the
// frontend as a chat_response frame. A send failure here is logged, not
// propagated: the conversation state is already durable in SessionStore by
// the time this runs, so a delivery failure should not turn a completed
// turn into an error.
func (o *Orchestrator) sendFinalMessage(clientID models.ClientId, content string) {
	if content == "" || o.sender == nil {
		return
	}
	data, err := json.Marshal(frames.ChatResponseData{Message: frames.ChatResponseMessage{Content: content}})
	if err != nil {
		o.logger.Error("marshal final chat_response", "err", err)
		return
	}
	if err := o.sender.SendFrame(clientID, frames.Frame{Type: frames.TypeChatResponse, Data: data}); err != nil {
		o.logger.Warn("final chat_response delivery failed", "client", clientID, "err", err)
	}
}

// TurnRequest is what RequestIngress hands the orchestrator once it has
// resolved (or created) a Session and merged inbound messages.
type TurnRequest struct {
	SessionID    models.SessionId
	ClientID     models.ClientId
	Settings     models.Settings
	ContextCount int
}

// TurnResult summarizes how a turn ended. Success and Partial are not
// mutually exclusive: a turn that hit the step budget still reports its
// last assistant content as Success, with Partial and ReachedLimit set, per
// spec.md §8 scenario F ("a turn that reaches the limit is not a failure").
type TurnResult struct {
	SessionID     models.SessionId
	Success       bool
	Partial       bool
	ReachedLimit  bool
	Iterations    int
	FinalContent  string
	Error         string
}

// Run executes AssembleContext → CallLLM → (DispatchToolCalls →
// CollectToolResults → CallLLM)* until the model stops requesting tools or
// the step budget (Config.MaxIterations) is reached.
func (o *Orchestrator) Run(ctx context.Context, req TurnRequest) (TurnResult, error) {
	lastTS, err := o.sessions.GetLastContextTimestamp(ctx, req.SessionID)
	if err != nil {
		return TurnResult{SessionID: req.SessionID}, fmt.Errorf("resolve session: %w", err)
	}

	assembled := buildUserContext(o.collector, req.ClientID, lastTS, req.ContextCount)
	if assembled.newestTimestamp == 0 {
		assembled.newestTimestamp = time.Now().UnixMilli()
	}

	delta := o.collector.GetGameDelta(req.ClientID)
	preamble := buildGameDeltaPreamble(delta)
	if delta != nil {
		o.collector.ClearGameDelta(req.ClientID)
	}

	suffix := buildInstructionSuffix(req.Settings.AIRole, assembled.inCombat)
	userMsg := models.NewUserMessage(assembled.content+suffix, assembled.newestTimestamp)
	if err := o.sessions.Append(ctx, req.SessionID, userMsg); err != nil {
		return TurnResult{SessionID: req.SessionID}, fmt.Errorf("append user turn: %w", err)
	}

	family := req.Settings.ResolveFamily(assembled.inCombat)
	cfg := completionConfigFromFamily(family)
	tools := toolexec.Catalog()

	result := TurnResult{SessionID: req.SessionID}

	for iteration := 1; iteration <= o.cfg.MaxIterations; iteration++ {
		history, err := o.sessions.History(ctx, req.SessionID, o.cfg.TokenBudget)
		if err != nil {
			return TurnResult{SessionID: req.SessionID}, fmt.Errorf("load history: %w", err)
		}
		messages := history
		if iteration == 1 && preamble != "" {
			messages = withGameDeltaPreamble(history, preamble)
		}

		completion, err := o.gateway.Complete(ctx, messages, cfg, tools)
		if err != nil {
			o.logger.Error("provider call failed", "session", req.SessionID, "iteration", iteration, "err", err)
			result.Iterations = iteration - 1
			result.Error = err.Error()
			return result, nil
		}

		assistantMsg := models.NewAssistantMessage(completion.Content, completion.ToolCalls)
		if err := o.sessions.Append(ctx, req.SessionID, assistantMsg); err != nil {
			return TurnResult{SessionID: req.SessionID}, fmt.Errorf("append assistant turn: %w", err)
		}

		if len(completion.ToolCalls) == 0 {
			if err := o.sessions.SetLastContextTimestamp(ctx, req.SessionID, assembled.newestTimestamp); err != nil {
				return TurnResult{SessionID: req.SessionID}, fmt.Errorf("advance context cursor: %w", err)
			}
			result.Success = true
			result.Iterations = iteration
			result.FinalContent = completion.Content
			o.sendFinalMessage(req.ClientID, completion.Content)
			return result, nil
		}

		toolMessages, dispatchErr := o.dispatchToolCalls(ctx, req.ClientID, completion.ToolCalls)
		if dispatchErr != nil {
			o.logger.Warn("tool dispatch aborted turn", "session", req.SessionID, "iteration", iteration, "err", dispatchErr)
			result.Iterations = iteration
			result.Error = dispatchErr.Error()
			return result, nil
		}
		if err := o.sessions.AppendTurn(ctx, req.SessionID, toolMessages...); err != nil {
			return TurnResult{SessionID: req.SessionID}, fmt.Errorf("append tool turn: %w", err)
		}

		if iteration == o.cfg.MaxIterations {
			if err := o.sessions.SetLastContextTimestamp(ctx, req.SessionID, assembled.newestTimestamp); err != nil {
				return TurnResult{SessionID: req.SessionID}, fmt.Errorf("advance context cursor: %w", err)
			}
			result.Success = true
			result.Partial = true
			result.ReachedLimit = true
			result.Iterations = iteration
			result.FinalContent = completion.Content
			o.sendFinalMessage(req.ClientID, completion.Content)
			return result, nil
		}
	}

	// Unreachable: the loop above always returns by its last iteration.
	return result, errors.New("orchestrator: step budget loop exited without a result")
}

// withGameDeltaPreamble returns messages with the game-delta "Recent
// changes" text folded into the leading system message for this call only.
// It never mutates the stored conversation (see context.go).
func withGameDeltaPreamble(history []models.ConversationMessage, preamble string) []models.ConversationMessage {
	if len(history) == 0 || history[0].Role != models.RoleSystem {
		augmented := make([]models.ConversationMessage, 0, len(history)+1)
		augmented = append(augmented, models.NewSystemMessage(preamble))
		return append(augmented, history...)
	}
	augmented := make([]models.ConversationMessage, len(history))
	copy(augmented, history)
	augmented[0] = models.NewSystemMessage(augmented[0].Content + "\n\n" + preamble)
	return augmented
}

func completionConfigFromFamily(family models.LLMFamilyConfig) models.CompletionConfig {
	return models.CompletionConfig{
		ProviderID:    family.Provider,
		ModelID:       family.Model,
		BaseURL:       family.BaseURL,
		CustomHeaders: family.CustomHeaders,
		TimeoutSec:    family.TimeoutSec,
		MaxRetries:    family.MaxRetries,
	}
}
