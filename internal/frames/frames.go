// Package frames defines the wire protocol exchanged with the VTT frontend
// over one ClientLink connection: typed JSON frames carrying a discriminator
// `type` and, for frames that participate in a PendingCall rendezvous, a
// `request_id`. Generalized from a req/res/event discriminator to spec.md
// §6's flat `type`-keyed frame catalog.
package frames

import "encoding/json"

// Type enumerates the frame types spec.md §6 names as normative.
type Type string

const (
	// Inbound (frontend -> relay)
	TypeConnect            Type = "connect"
	TypePing               Type = "ping"
	TypeSettingsSync       Type = "settings_sync"
	TypeChatMessage        Type = "chat_message"
	TypeDiceRoll           Type = "dice_roll"
	TypeCombatContext      Type = "combat_context"
	TypeWorldState         Type = "world_state"
	TypeChatRequest        Type = "chat_request"
	TypeRollResult         Type = "roll_result"
	TypeCombatState        Type = "combat_state"
	TypeActorDetailsResult Type = "actor_details_result"
	TypeModifyAttrResult   Type = "modify_attribute_result"

	// Outbound (relay -> frontend)
	TypeConnected           Type = "connected"
	TypePong                Type = "pong"
	TypeError               Type = "error"
	TypeChatResponse        Type = "chat_response"
	TypeExecuteRoll         Type = "execute_roll"
	TypeCombatStateRefresh  Type = "combat_state_refresh"
	TypeCreateEncounter     Type = "create_encounter"
	TypeDeleteEncounter     Type = "delete_encounter"
	TypeActivateCombat      Type = "activate_combat"
	TypeAdvanceTurn         Type = "advance_turn"
	TypeGetActorDetails     Type = "get_actor_details"
	TypeModifyTokenAttr     Type = "modify_token_attribute"
)

// Frame is the envelope every inbound and outbound message shares. Data
// carries the type-specific payload as raw JSON so ClientLink can route on
// Type before deciding how to decode Data.
type Frame struct {
	Type      Type            `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ConnectData is the payload of an inbound `connect` frame.
type ConnectData struct {
	ClientID  string         `json:"client_id"`
	Token     string         `json:"token"`
	WorldInfo map[string]any `json:"world_info,omitempty"`
	UserInfo  map[string]any `json:"user_info,omitempty"`
}

// ConnectedData acknowledges a successful handshake.
type ConnectedData struct {
	ClientID   string `json:"client_id"`
	ServerTime int64  `json:"server_time"`
}

// ErrorData is the payload of an outbound `error` frame.
type ErrorData struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

// SettingsSyncData carries the settings bundle §3 describes, nested one
// level under "settings" as the frame catalog specifies.
type SettingsSyncData struct {
	Settings RawSettings `json:"settings"`
}

// RawSettings is the wire shape of Settings before numeric range validation
// and default substitution (spec.md §3, §6): every numeric field may arrive
// as a JSON string, which settingsFromWire in internal/link tolerates.
type RawSettings struct {
	General               RawLLMFamily `json:"general"`
	Tactical              RawLLMFamily `json:"tactical"`
	MaximumMessageContext json.Number  `json:"maximum_message_context"`
	AIRole                string       `json:"ai_role"`
	ChatProcessingMode    string       `json:"chat_processing_mode"`
}

// RawLLMFamily is the wire shape of one LLMFamilyConfig.
type RawLLMFamily struct {
	Provider      string            `json:"provider"`
	Model         string            `json:"model"`
	BaseURL       string            `json:"base_url,omitempty"`
	APIVersion    string            `json:"api_version,omitempty"`
	TimeoutSec    json.Number       `json:"timeout_sec"`
	MaxRetries    json.Number       `json:"max_retries"`
	CustomHeaders map[string]string `json:"custom_headers_json,omitempty"`
}

// ChatMessageData is the payload of an inbound `chat_message` frame.
type ChatMessageData struct {
	Content      string `json:"content"`
	Speaker      string `json:"speaker,omitempty"`
	Alias        string `json:"alias,omitempty"`
	Flavor       string `json:"flavor,omitempty"`
	Timestamp    int64  `json:"timestamp,omitempty"`
	IsCard       bool   `json:"is_card,omitempty"`
	CardName     string `json:"card_name,omitempty"`
}

// DiceRollData is the payload of an inbound `dice_roll` frame.
type DiceRollData struct {
	Formula   string  `json:"formula"`
	Total     float64 `json:"total"`
	Results   []int   `json:"results,omitempty"`
	Speaker   string  `json:"speaker,omitempty"`
	Flavor    string  `json:"flavor,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// CombatantData is one combatant in an inbound combat_context/combat_state
// frame.
type CombatantData struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Initiative    float64 `json:"initiative"`
	IsPlayer      bool    `json:"is_player"`
	IsCurrentTurn bool    `json:"is_current_turn"`
	ActorID       string  `json:"actor_id,omitempty"`
}

// CombatContextData is the payload of an inbound `combat_context` frame.
type CombatContextData struct {
	InCombat    bool            `json:"in_combat"`
	CombatID    string          `json:"combat_id"`
	Round       int             `json:"round"`
	Turn        int             `json:"turn"`
	Combatants  []CombatantData `json:"combatants"`
}

// CombatStateData is the payload of the inbound `combat_state` frame (a
// tool-call response), also carried inline on an inbound chat_request.
type CombatStateData struct {
	CombatID   string          `json:"combat_id"`
	InCombat   bool            `json:"in_combat"`
	Round      int             `json:"round"`
	Turn       int             `json:"turn"`
	Combatants []CombatantData `json:"combatants"`
}

// WorldStateData is the payload of an inbound `world_state` frame.
type WorldStateData struct {
	SessionInfo      map[string]any `json:"session_info,omitempty"`
	PartyCompendium  map[string]any `json:"party_compendium,omitempty"`
	ActiveScene      map[string]any `json:"active_scene,omitempty"`
	CompendiumIndex  map[string]any `json:"compendium_index,omitempty"`
	ActiveEncounter  string         `json:"active_encounter,omitempty"`
}

// ChatRequestData is the payload of an inbound `chat_request` frame.
type ChatRequestData struct {
	Messages     []ChatMessageData `json:"messages,omitempty"`
	ContextCount int               `json:"context_count"`
	SceneID      string            `json:"scene_id,omitempty"`
	CombatState  *CombatStateData  `json:"combat_state,omitempty"`
	SessionID    string            `json:"session_id,omitempty"`
}

// RollResultData is the payload of an inbound `roll_result` frame.
type RollResultData struct {
	Results []RollResultEntry `json:"results"`
}

// RollResultEntry is one rolled formula's outcome.
type RollResultEntry struct {
	Formula string `json:"formula"`
	Total   int    `json:"total"`
	Rolls   []int  `json:"r,omitempty"`
}

// ActorDetailsResultData is the payload of an inbound
// `actor_details_result` frame.
type ActorDetailsResultData struct {
	TokenID string         `json:"token_id"`
	Fields  map[string]any `json:"fields,omitempty"`
	Matches []string       `json:"matches,omitempty"`
}

// ModifyAttributeResultData is the payload of an inbound
// `modify_attribute_result` frame.
type ModifyAttributeResultData struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ChatResponseData wraps one final assistant message delivered to the
// frontend.
type ChatResponseData struct {
	Message ChatResponseMessage `json:"message"`
}

// ChatResponseMessage is the shape of the message nested in a
// `chat_response` frame.
type ChatResponseMessage struct {
	Content      string `json:"content"`
	Type         string `json:"type,omitempty"`
	Speaker      string `json:"speaker,omitempty"`
	Flavor       string `json:"flavor,omitempty"`
	Whisper      []string `json:"whisper,omitempty"`
	CompactFormat bool   `json:"compact_format,omitempty"`
}

// ExecuteRollData is the payload of an outbound `execute_roll` frame.
type ExecuteRollData struct {
	Rolls []RollRequest `json:"rolls"`
}

// RollRequest is one formula to roll, requested of the frontend.
type RollRequest struct {
	Formula string `json:"formula"`
	Flavor  string `json:"flavor,omitempty"`
}

// EncounterActionData is the payload shared by the outbound
// create_encounter/delete_encounter/activate_combat/advance_turn frames.
type EncounterActionData struct {
	EncounterID    string   `json:"encounter_id,omitempty"`
	ActorIDs       []string `json:"actor_ids,omitempty"`
	RollInitiative *bool    `json:"roll_initiative,omitempty"`
}

// GetActorDetailsData is the payload of an outbound `get_actor_details`
// frame.
type GetActorDetailsData struct {
	TokenID      string `json:"token_id"`
	SearchPhrase string `json:"search_phrase,omitempty"`
}

// ModifyTokenAttributeData is the payload of an outbound
// `modify_token_attribute` frame.
type ModifyTokenAttributeData struct {
	TokenID       string  `json:"token_id"`
	AttributePath string  `json:"attribute_path"`
	Value         float64 `json:"value"`
	IsDelta       bool    `json:"is_delta"`
	IsBar         bool    `json:"is_bar"`
}
