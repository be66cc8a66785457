package models

import "time"

// AwaitedType enumerates the kinds of frontend response a PendingCall may
// be rendezvousing on.
type AwaitedType string

const (
	AwaitDiceResult     AwaitedType = "dice_result"
	AwaitCombatState    AwaitedType = "combat_state"
	AwaitActorSheet     AwaitedType = "actor_sheet"
	AwaitAttributeModAck AwaitedType = "attribute_mod_ack"
)

// PendingCallInfo is the read-only view of a registered PendingCall, used
// for diagnostics; the registry itself owns the live completion sink.
type PendingCallInfo struct {
	RequestID  RequestId
	ClientID   ClientId
	AwaitedType AwaitedType
	CreatedAt  time.Time
}
