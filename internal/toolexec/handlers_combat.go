package toolexec

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/internal/pending"
	"github.com/goldbox/relay/pkg/models"
)

type encounterIDArgs struct {
	EncounterID string `json:"encounter_id"`
}

// getEncounter always refreshes via the frontend before answering, so the
// cache is as fresh as the round trip allows; on timeout it falls back to
// whatever EncounterState is already cached, per spec.md §4.5.
func (e *Executor) getEncounter(ctx context.Context, clientID models.ClientId, raw json.RawMessage) (result, error) {
	var args encounterIDArgs
	if len(raw) > 0 {
		if err := unmarshalArgs(raw, &args); err != nil {
			return fail("invalid arguments: %v", err), nil
		}
	}

	handle := e.pending.Register(clientID, models.AwaitCombatState)
	data, err := json.Marshal(map[string]any{"encounter_id": args.EncounterID})
	if err != nil {
		return result{}, err
	}
	frame := frames.Frame{Type: frames.TypeCombatStateRefresh, RequestID: string(handle.RequestID()), Data: data}
	if err := e.sender.SendFrame(clientID, frame); err != nil {
		e.pending.Cancel(handle.RequestID())
		return result{}, err
	}

	_, waitErr := handle.Await(ctx, TimeoutEncounterRefresh)
	warning := ""
	if waitErr != nil {
		if !errors.Is(waitErr, pending.ErrTimeout) {
			return result{}, waitErr
		}
		e.metrics.recordTimeout(models.ToolGetEncounter)
		warning = "timed out waiting for a fresh combat-state refresh; returning cached state"
	}
	// On success, ClientLink's dual-purpose combat_state handler has
	// already upserted the cache before resolving this handle, so the
	// cache read below is fresh either way.

	if args.EncounterID != "" {
		enc := e.collector.GetEncounter(clientID, models.EncounterId(args.EncounterID))
		if enc == nil {
			return fail("encounter not found: %s", args.EncounterID), nil
		}
		r := ok(map[string]any{"encounter": enc})
		r.Warning = warning
		return r, nil
	}

	all := e.collector.GetAllEncounters(clientID)
	active := make([]*models.EncounterState, 0, len(all))
	for _, enc := range all {
		if enc.IsActive {
			active = append(active, enc)
		}
	}
	r := ok(map[string]any{"active_count": len(active), "encounters": active})
	r.Warning = warning
	return r, nil
}

type createEncounterArgs struct {
	ActorIDs       []string `json:"actor_ids"`
	RollInitiative *bool    `json:"roll_initiative,omitempty"`
}

func (e *Executor) createEncounter(ctx context.Context, clientID models.ClientId, raw json.RawMessage) (result, error) {
	var args createEncounterArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return fail("invalid arguments: %v", err), nil
	}
	if len(args.ActorIDs) == 0 {
		return fail("actor_ids must be non-empty"), nil
	}
	rollInitiative := true
	if args.RollInitiative != nil {
		rollInitiative = *args.RollInitiative
	}

	handle := e.pending.Register(clientID, models.AwaitCombatState)
	data, err := json.Marshal(frames.EncounterActionData{ActorIDs: args.ActorIDs, RollInitiative: &rollInitiative})
	if err != nil {
		return result{}, err
	}
	frame := frames.Frame{Type: frames.TypeCreateEncounter, RequestID: string(handle.RequestID()), Data: data}
	if err := e.sender.SendFrame(clientID, frame); err != nil {
		e.pending.Cancel(handle.RequestID())
		return result{}, err
	}

	res, waitErr := handle.Await(ctx, TimeoutEncounterMutation)
	if waitErr != nil {
		if !errors.Is(waitErr, pending.ErrTimeout) {
			return result{}, waitErr
		}
		e.metrics.recordTimeout(models.ToolCreateEncounter)
		if active := e.anyActiveEncounter(clientID); active != nil {
			r := ok(map[string]any{"in_combat": true, "combat_id": active.EncounterID})
			r.Warning = "timed out waiting for creation ack; an active encounter was found in cache"
			return r, nil
		}
		return result{Success: false, Error: "Timeout waiting for encounter creation", Extra: map[string]any{"request_id": handle.RequestID()}}, nil
	}
	if res.Err != nil {
		return fail("%v", res.Err), nil
	}
	state, valid := res.Data.(frames.CombatStateData)
	if !valid {
		return fail("unexpected combat state payload"), nil
	}
	return ok(map[string]any{"in_combat": state.InCombat, "combat_id": state.CombatID}), nil
}

func (e *Executor) anyActiveEncounter(clientID models.ClientId) *models.EncounterState {
	for _, enc := range e.collector.GetAllEncounters(clientID) {
		if enc.IsActive {
			return enc
		}
	}
	return nil
}

func (e *Executor) deleteEncounter(ctx context.Context, clientID models.ClientId, raw json.RawMessage) (result, error) {
	var args encounterIDArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return fail("invalid arguments: %v", err), nil
	}
	if args.EncounterID == "" {
		return fail("encounter_id is required"), nil
	}

	existing := e.collector.GetEncounter(clientID, models.EncounterId(args.EncounterID))
	if existing == nil || !existing.IsActive {
		return fail("encounter not found or not active: %s", args.EncounterID), nil
	}

	handle := e.pending.Register(clientID, models.AwaitCombatState)
	data, err := json.Marshal(frames.EncounterActionData{EncounterID: args.EncounterID})
	if err != nil {
		return result{}, err
	}
	frame := frames.Frame{Type: frames.TypeDeleteEncounter, RequestID: string(handle.RequestID()), Data: data}
	if err := e.sender.SendFrame(clientID, frame); err != nil {
		e.pending.Cancel(handle.RequestID())
		return result{}, err
	}

	_, waitErr := handle.Await(ctx, TimeoutEncounterMutation)
	if waitErr != nil {
		if !errors.Is(waitErr, pending.ErrTimeout) {
			return result{}, waitErr
		}
		e.metrics.recordTimeout(models.ToolDeleteEncounter)
		// Scenario D: frontend acked out-of-band but left the cache
		// showing the encounter active. Verify via EncounterMap.
		if still := e.collector.GetEncounter(clientID, models.EncounterId(args.EncounterID)); still == nil || !still.IsActive {
			r := ok(map[string]any{"in_combat": false})
			r.Warning = "Encounter ended successfully (assumed; no ack received)"
			return r, nil
		}
		e.collector.DeleteEncounter(clientID, models.EncounterId(args.EncounterID))
		return ok(map[string]any{
			"in_combat": false,
			"message":   "Encounter ended successfully (force removed from cache)",
		}), nil
	}

	return ok(map[string]any{"in_combat": false, "message": "Encounter ended successfully"}), nil
}

func (e *Executor) activateCombat(ctx context.Context, clientID models.ClientId, raw json.RawMessage) (result, error) {
	var args encounterIDArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return fail("invalid arguments: %v", err), nil
	}
	if args.EncounterID == "" {
		return fail("encounter_id is required"), nil
	}

	handle := e.pending.Register(clientID, models.AwaitCombatState)
	data, err := json.Marshal(frames.EncounterActionData{EncounterID: args.EncounterID})
	if err != nil {
		return result{}, err
	}
	frame := frames.Frame{Type: frames.TypeActivateCombat, RequestID: string(handle.RequestID()), Data: data}
	if err := e.sender.SendFrame(clientID, frame); err != nil {
		e.pending.Cancel(handle.RequestID())
		return result{}, err
	}

	_, waitErr := handle.Await(ctx, TimeoutEncounterMutation)
	warning := ""
	if waitErr != nil {
		if !errors.Is(waitErr, pending.ErrTimeout) {
			return result{}, waitErr
		}
		e.metrics.recordTimeout(models.ToolActivateCombat)
		warning = "timed out waiting for activation ack; verified against cache"
	}

	enc := e.collector.GetEncounter(clientID, models.EncounterId(args.EncounterID))
	if enc == nil || !enc.IsActive {
		return fail("encounter did not become active: %s", args.EncounterID), nil
	}
	r := ok(map[string]any{"in_combat": true, "combat_id": args.EncounterID})
	r.Warning = warning
	return r, nil
}

func (e *Executor) advanceCombatTurn(ctx context.Context, clientID models.ClientId, raw json.RawMessage) (result, error) {
	var args encounterIDArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return fail("invalid arguments: %v", err), nil
	}
	if args.EncounterID == "" {
		return fail("encounter_id is required"), nil
	}

	before := e.collector.GetEncounter(clientID, models.EncounterId(args.EncounterID))

	handle := e.pending.Register(clientID, models.AwaitCombatState)
	data, err := json.Marshal(frames.EncounterActionData{EncounterID: args.EncounterID})
	if err != nil {
		return result{}, err
	}
	frame := frames.Frame{Type: frames.TypeAdvanceTurn, RequestID: string(handle.RequestID()), Data: data}
	if err := e.sender.SendFrame(clientID, frame); err != nil {
		e.pending.Cancel(handle.RequestID())
		return result{}, err
	}

	_, waitErr := handle.Await(ctx, TimeoutEncounterMutation)
	warning := ""
	if waitErr != nil {
		if !errors.Is(waitErr, pending.ErrTimeout) {
			return result{}, waitErr
		}
		e.metrics.recordTimeout(models.ToolAdvanceCombatTurn)
		warning = "timed out waiting for turn-advance ack; verified against cache"
	}

	after := e.collector.GetEncounter(clientID, models.EncounterId(args.EncounterID))
	if after == nil {
		return fail("encounter not found after advance: %s", args.EncounterID), nil
	}
	advanced := before == nil || after.Round != before.Round || after.Turn != before.Turn
	r := ok(map[string]any{"round": after.Round, "turn": after.Turn, "advanced": advanced})
	r.Warning = warning
	return r, nil
}
