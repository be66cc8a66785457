package models

// ToolName identifies one entry in the fixed tool catalog ToolExecutor (C5)
// handles, named as spec.md §4.5 lists them.
type ToolName string

const (
	ToolGetMessageHistory  ToolName = "get_message_history"
	ToolPostMessage        ToolName = "post_message"
	ToolRollDice           ToolName = "roll_dice"
	ToolGetEncounter       ToolName = "get_encounter"
	ToolCreateEncounter    ToolName = "create_encounter"
	ToolDeleteEncounter    ToolName = "delete_encounter"
	ToolActivateCombat     ToolName = "activate_combat"
	ToolAdvanceCombatTurn  ToolName = "advance_combat_turn"
	ToolGetActorDetails    ToolName = "get_actor_details"
	ToolModifyTokenAttribute ToolName = "modify_token_attribute"
)
