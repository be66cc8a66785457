package link

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/pkg/models"
)

func (l *Link) handleConnect(frame frames.Frame) error {
	var data frames.ConnectData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		return fmt.Errorf("decode connect: %w", err)
	}
	if data.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}

	clientID := models.ClientId(data.ClientID)
	if !l.hub.tryRegister(clientID, l) {
		return fmt.Errorf("client_id %q is already connected", data.ClientID)
	}
	l.clientID = clientID
	l.connected = true

	if len(data.WorldInfo) > 0 {
		l.hub.collector.SetWorld(l.clientID, models.WorldSnapshot{
			SessionInfo: data.WorldInfo,
			ReceivedAt:  time.Now().UnixMilli(),
		})
	}

	payload, err := json.Marshal(frames.ConnectedData{ClientID: data.ClientID, ServerTime: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	return l.enqueue(frames.Frame{Type: frames.TypeConnected, Data: payload})
}

func (l *Link) dispatch(frame frames.Frame) error {
	switch frame.Type {
	case frames.TypePing:
		return l.handlePing()
	case frames.TypeSettingsSync:
		return l.handleSettingsSync(frame)
	case frames.TypeChatMessage:
		return l.handleChatMessage(frame)
	case frames.TypeDiceRoll:
		return l.handleDiceRoll(frame)
	case frames.TypeCombatContext:
		return l.handleCombatContext(frame)
	case frames.TypeWorldState:
		return l.handleWorldState(frame)
	case frames.TypeChatRequest:
		return l.handleChatRequest(frame)
	case frames.TypeRollResult:
		return l.handleRollResult(frame)
	case frames.TypeCombatState:
		return l.handleCombatState(frame)
	case frames.TypeActorDetailsResult:
		return l.handleActorDetailsResult(frame)
	case frames.TypeModifyAttrResult:
		return l.handleModifyAttrResult(frame)
	default:
		return fmt.Errorf("unknown frame type %q", frame.Type)
	}
}

func (l *Link) handlePing() error {
	payload, err := json.Marshal(map[string]int64{"timestamp": time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	return l.enqueue(frames.Frame{Type: frames.TypePong, Data: payload})
}

func (l *Link) handleSettingsSync(frame frames.Frame) error {
	var data frames.SettingsSyncData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		return fmt.Errorf("decode settings_sync: %w", err)
	}
	settings := settingsFromWire(data.Settings)
	l.settingsMu.Lock()
	l.settings = settings
	l.settingsMu.Unlock()
	return nil
}

func (l *Link) handleChatMessage(frame frames.Frame) error {
	var data frames.ChatMessageData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		return fmt.Errorf("decode chat_message: %w", err)
	}
	kind := models.EntryKindChat
	if data.IsCard {
		kind = models.EntryKindCard
	}
	l.hub.collector.AppendChat(l.clientID, models.InboxEntry{
		Timestamp: data.Timestamp,
		Kind:      kind,
		Payload: map[string]any{
			"content":   data.Content,
			"speaker":   data.Speaker,
			"alias":     data.Alias,
			"flavor":    data.Flavor,
			"card_name": data.CardName,
		},
	})
	return nil
}

func (l *Link) handleDiceRoll(frame frames.Frame) error {
	var data frames.DiceRollData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		return fmt.Errorf("decode dice_roll: %w", err)
	}
	l.hub.collector.AppendRoll(l.clientID, models.InboxEntry{
		Timestamp: data.Timestamp,
		Kind:      models.EntryKindDiceRoll,
		Payload: map[string]any{
			"formula": data.Formula,
			"total":   data.Total,
			"results": data.Results,
			"speaker": data.Speaker,
			"flavor":  data.Flavor,
		},
	})
	return nil
}

func (l *Link) handleCombatContext(frame frames.Frame) error {
	var data frames.CombatContextData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		return fmt.Errorf("decode combat_context: %w", err)
	}
	l.hub.collector.UpsertEncounter(l.clientID, encounterFromWire(data.CombatID, data.InCombat, data.Round, data.Turn, data.Combatants))
	return nil
}

func (l *Link) handleWorldState(frame frames.Frame) error {
	var data frames.WorldStateData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		return fmt.Errorf("decode world_state: %w", err)
	}
	snapshot := models.WorldSnapshot{
		SessionInfo:     data.SessionInfo,
		PartyCompendium: data.PartyCompendium,
		ActiveScene:     data.ActiveScene,
		CompendiumIndex: data.CompendiumIndex,
		ReceivedAt:      time.Now().UnixMilli(),
	}
	if data.ActiveEncounter != "" {
		id := models.EncounterId(data.ActiveEncounter)
		snapshot.ActiveEncounter = &id
	}
	l.hub.collector.SetWorld(l.clientID, snapshot)
	return nil
}

func (l *Link) handleChatRequest(frame frames.Frame) error {
	var data frames.ChatRequestData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		return fmt.Errorf("decode chat_request: %w", err)
	}
	if data.CombatState != nil {
		l.hub.collector.UpsertEncounter(l.clientID, encounterFromWire(
			data.CombatState.CombatID, data.CombatState.InCombat, data.CombatState.Round, data.CombatState.Turn, data.CombatState.Combatants,
		))
	}
	return l.hub.ingress.HandleChatRequest(l.ctx, l.clientID, l.settingsSnapshot(), data)
}

func (l *Link) handleRollResult(frame frames.Frame) error {
	var data frames.RollResultData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		return fmt.Errorf("decode roll_result: %w", err)
	}
	return l.resolvePending(frame.RequestID, data)
}

// handleCombatState is the dual-purpose handler toolexec's getEncounter
// relies on (see handlers_combat.go): it upserts the cache before
// resolving the PendingCall, so a successful round trip always leaves the
// cache fresh regardless of which handler reads it next.
func (l *Link) handleCombatState(frame frames.Frame) error {
	var data frames.CombatStateData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		return fmt.Errorf("decode combat_state: %w", err)
	}
	if data.CombatID != "" {
		l.hub.collector.UpsertEncounter(l.clientID, encounterFromWire(data.CombatID, data.InCombat, data.Round, data.Turn, data.Combatants))
	}
	return l.resolvePending(frame.RequestID, data)
}

func (l *Link) handleActorDetailsResult(frame frames.Frame) error {
	var data frames.ActorDetailsResultData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		return fmt.Errorf("decode actor_details_result: %w", err)
	}
	return l.resolvePending(frame.RequestID, data)
}

func (l *Link) handleModifyAttrResult(frame frames.Frame) error {
	var data frames.ModifyAttributeResultData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		return fmt.Errorf("decode modify_attribute_result: %w", err)
	}
	return l.resolvePending(frame.RequestID, data)
}

func (l *Link) resolvePending(requestID string, data any) error {
	if requestID == "" {
		return fmt.Errorf("missing request_id")
	}
	l.hub.pending.Resolve(models.RequestId(requestID), data)
	return nil
}

func encounterFromWire(combatID string, inCombat bool, round, turn int, combatants []frames.CombatantData) models.EncounterState {
	state := models.EncounterState{
		EncounterID: models.EncounterId(combatID),
		IsActive:    inCombat,
		Round:       round,
		Turn:        turn,
		LastUpdated: time.Now().UnixMilli(),
	}
	state.Combatants = make([]models.Combatant, len(combatants))
	for i, c := range combatants {
		state.Combatants[i] = models.Combatant{
			ID:            c.ID,
			Name:          c.Name,
			Initiative:    c.Initiative,
			IsPlayer:      c.IsPlayer,
			IsCurrentTurn: c.IsCurrentTurn,
			ActorID:       c.ActorID,
		}
	}
	return state
}
