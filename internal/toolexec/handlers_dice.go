package toolexec

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/internal/pending"
	"github.com/goldbox/relay/pkg/models"
)

type rollDiceArgs struct {
	Rolls []rollDiceEntry `json:"rolls"`
}

type rollDiceEntry struct {
	Formula string `json:"formula"`
	Flavor  string `json:"flavor,omitempty"`
}

// rollDice implements the uniform frontend-round-trip skeleton (spec.md
// §4.5): validate, register a PendingCall, emit execute_roll, await with
// the 30s dice timeout, and on timeout return the exact diagnostic shape
// spec.md §8 scenario C specifies.
func (e *Executor) rollDice(ctx context.Context, clientID models.ClientId, raw json.RawMessage) (result, error) {
	var args rollDiceArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return fail("invalid arguments: %v", err), nil
	}
	if len(args.Rolls) == 0 {
		return fail("rolls must be non-empty"), nil
	}

	handle := e.pending.Register(clientID, models.AwaitDiceResult)

	rolls := make([]frames.RollRequest, len(args.Rolls))
	for i, r := range args.Rolls {
		if r.Formula == "" {
			e.pending.Cancel(handle.RequestID())
			return fail("rolls[%d].formula is required", i), nil
		}
		rolls[i] = frames.RollRequest{Formula: r.Formula, Flavor: r.Flavor}
	}

	data, err := json.Marshal(frames.ExecuteRollData{Rolls: rolls})
	if err != nil {
		return result{}, err
	}
	frame := frames.Frame{Type: frames.TypeExecuteRoll, RequestID: string(handle.RequestID()), Data: data}
	if err := e.sender.SendFrame(clientID, frame); err != nil {
		e.pending.Cancel(handle.RequestID())
		return result{}, err
	}

	res, err := handle.Await(ctx, TimeoutDiceRoll)
	if err != nil {
		e.metrics.recordTimeout(models.ToolRollDice)
		if errors.Is(err, pending.ErrTimeout) {
			return result{
				Success: false,
				Error:   "Timeout waiting for roll results from frontend",
				Extra:   map[string]any{"request_id": handle.RequestID()},
			}, nil
		}
		// Cancelled: the link closed mid-await, spec.md §7's transport
		// error — catastrophic, propagate so the orchestrator aborts.
		return result{}, err
	}
	if res.Err != nil {
		return fail("%v", res.Err), nil
	}

	rollResult, valid := res.Data.(frames.RollResultData)
	if !valid {
		return fail("unexpected roll result payload"), nil
	}
	return ok(map[string]any{"results": rollResult.Results}), nil
}
