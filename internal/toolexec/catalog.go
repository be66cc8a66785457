// Package toolexec implements the ToolExecutor (C5): concrete handlers for
// the fixed tool catalog spec.md §4.5 lists. Most handlers issue a frontend
// request through a Sender and await the reply via the PendingCallRegistry
// (C1); the uniform skeleton (validate, register, emit, await, recover) is
// generalized from an in-process Execute call to a frontend round trip.
package toolexec

import (
	"time"

	"github.com/goldbox/relay/pkg/models"
)

// Timeouts per tool, as spec.md §3 "Lifecycle" and §4.5 specify.
const (
	TimeoutDiceRoll          = 30 * time.Second
	TimeoutEncounterRefresh  = 5 * time.Second
	TimeoutEncounterMutation = 15 * time.Second
	TimeoutActorSheet        = 5 * time.Second
	TimeoutAttributeMod      = 15 * time.Second
)

// Catalog returns the tool schemas ProviderGateway.Complete advertises to
// the LLM, in the provider-neutral shape spec.md §4.4 describes.
func Catalog() []models.ToolSchema {
	return []models.ToolSchema{
		{
			Name:        string(models.ToolGetMessageHistory),
			Description: "Fetch the last N chat/roll events for this client, bypassing delta filtering.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"count": map[string]any{"type": "integer", "minimum": 1, "maximum": 50},
				},
				"required": []string{"count"},
			},
		},
		{
			Name:        string(models.ToolPostMessage),
			Description: "Post one or more chat messages to the VTT.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"messages": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"content":       map[string]any{"type": "string"},
								"type":          map[string]any{"type": "string"},
								"speaker":       map[string]any{"type": "string"},
								"flavor":        map[string]any{"type": "string"},
								"flags":         map[string]any{"type": "object"},
								"whisper":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
								"compact_format": map[string]any{"type": "boolean"},
							},
							"required": []string{"content"},
						},
					},
				},
				"required": []string{"messages"},
			},
		},
		{
			Name:        string(models.ToolRollDice),
			Description: "Roll one or more dice formulas on the VTT and return the results.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"rolls": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"formula": map[string]any{"type": "string"},
								"flavor":  map[string]any{"type": "string"},
							},
							"required": []string{"formula"},
						},
					},
				},
				"required": []string{"rolls"},
			},
		},
		{
			Name:        string(models.ToolGetEncounter),
			Description: "Get a fresh combat-encounter snapshot, or a summary of all active encounters if no id is given.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"encounter_id": map[string]any{"type": "string"},
				},
			},
		},
		{
			Name:        string(models.ToolCreateEncounter),
			Description: "Create a new combat encounter from a list of actor ids.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"actor_ids":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"roll_initiative": map[string]any{"type": "boolean"},
				},
				"required": []string{"actor_ids"},
			},
		},
		{
			Name:        string(models.ToolDeleteEncounter),
			Description: "Delete an active combat encounter.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"encounter_id": map[string]any{"type": "string"},
				},
				"required": []string{"encounter_id"},
			},
		},
		{
			Name:        string(models.ToolActivateCombat),
			Description: "Activate a combat encounter as the current one.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"encounter_id": map[string]any{"type": "string"},
				},
				"required": []string{"encounter_id"},
			},
		},
		{
			Name:        string(models.ToolAdvanceCombatTurn),
			Description: "Advance the turn (and round, if needed) of an active combat encounter.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"encounter_id": map[string]any{"type": "string"},
				},
				"required": []string{"encounter_id"},
			},
		},
		{
			Name:        string(models.ToolGetActorDetails),
			Description: "Get an actor's sheet data, optionally filtered to fields matching a search phrase.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"token_id":      map[string]any{"type": "string"},
					"search_phrase": map[string]any{"type": "string"},
				},
				"required": []string{"token_id"},
			},
		},
		{
			Name:        string(models.ToolModifyTokenAttribute),
			Description: "Modify a numeric attribute on a token, as a delta or an absolute set.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"token_id":       map[string]any{"type": "string"},
					"attribute_path": map[string]any{"type": "string"},
					"value":          map[string]any{"type": "number"},
					"is_delta":       map[string]any{"type": "boolean"},
					"is_bar":         map[string]any{"type": "boolean"},
				},
				"required": []string{"token_id", "attribute_path", "value"},
			},
		},
	}
}
