package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/goldbox/relay/internal/inbox"
	"github.com/goldbox/relay/internal/pending"
	"github.com/goldbox/relay/pkg/models"
)

// Executor is the ToolExecutor (C5). One instance serves every client;
// Execute dispatches by tool name to a handler that either answers from
// local state (get_message_history) or performs the uniform skeleton
// spec.md §4.5 describes: validate, register a PendingCall, emit a frame
// through Sender, await with a tool-specific timeout, and shape the result.
type Executor struct {
	collector *inbox.Collector
	pending   *pending.Registry
	sender    Sender
	metrics   *Metrics
	logger    *slog.Logger
}

// New constructs an Executor. collector provides read access to per-client
// state (and the narrow write access delete_encounter's force-cleanup path
// needs); pending is the rendezvous registry; sender delivers frontend
// frames.
func New(collector *inbox.Collector, registry *pending.Registry, sender Sender, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		collector: collector,
		pending:   registry,
		sender:    sender,
		metrics:   NewMetrics(),
		logger:    logger,
	}
}

// Metrics exposes the executor's running per-tool counters.
func (e *Executor) Metrics() *Metrics { return e.metrics }

// result is the JSON-serializable shape every handler returns. Fields
// beyond Success/Error/Warning vary per tool and are carried in Extra,
// flattened into the same object at marshal time.
type result struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Warning string         `json:"warning,omitempty"`
	Extra   map[string]any `json:"-"`
}

func ok(extra map[string]any) result    { return result{Success: true, Extra: extra} }
func fail(format string, a ...any) result {
	return result{Success: false, Error: fmt.Sprintf(format, a...)}
}

func (r result) MarshalJSON() ([]byte, error) {
	m := map[string]any{"success": r.Success}
	if r.Error != "" {
		m["error"] = r.Error
	}
	if r.Warning != "" {
		m["warning"] = r.Warning
	}
	for k, v := range r.Extra {
		m[k] = v
	}
	return json.Marshal(m)
}

// Execute runs one tool call for clientID and returns the JSON content to
// feed back as the matching role:tool message. A non-nil error indicates a
// catastrophic tool-infrastructure failure (spec.md §7) — currently, only
// the frontend link being closed — and the orchestrator aborts the turn
// rather than absorbing it into the conversation.
func (e *Executor) Execute(ctx context.Context, clientID models.ClientId, call models.ToolCall) (json.RawMessage, error) {
	name := models.ToolName(call.Name)
	e.metrics.recordCall(name)

	var res result
	var err error
	switch name {
	case models.ToolGetMessageHistory:
		res = e.getMessageHistory(clientID, call.Arguments)
	case models.ToolPostMessage:
		res, err = e.postMessage(ctx, clientID, call.Arguments)
	case models.ToolRollDice:
		res, err = e.rollDice(ctx, clientID, call.Arguments)
	case models.ToolGetEncounter:
		res, err = e.getEncounter(ctx, clientID, call.Arguments)
	case models.ToolCreateEncounter:
		res, err = e.createEncounter(ctx, clientID, call.Arguments)
	case models.ToolDeleteEncounter:
		res, err = e.deleteEncounter(ctx, clientID, call.Arguments)
	case models.ToolActivateCombat:
		res, err = e.activateCombat(ctx, clientID, call.Arguments)
	case models.ToolAdvanceCombatTurn:
		res, err = e.advanceCombatTurn(ctx, clientID, call.Arguments)
	case models.ToolGetActorDetails:
		res, err = e.getActorDetails(ctx, clientID, call.Arguments)
	case models.ToolModifyTokenAttribute:
		res, err = e.modifyTokenAttribute(ctx, clientID, call.Arguments)
	default:
		res = fail("unknown tool: %s", call.Name)
	}

	if err != nil {
		e.metrics.recordError(name)
		e.logger.Error("tool infrastructure failure", "tool", call.Name, "tool_call_id", call.ID, "err", err)
		return nil, err
	}
	if !res.Success {
		e.metrics.recordError(name)
	}

	payload, marshalErr := json.Marshal(res)
	if marshalErr != nil {
		return nil, marshalErr
	}
	return payload, nil
}

func unmarshalArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing arguments")
	}
	return json.Unmarshal(raw, v)
}
