package lifecycle

import "service-engagement/internal/data/entity"

// Escrow is the escrow hold transition table. Role checks for escrow
// commands happen at the service boundary, since the same edge is taken by
// administrators, the auto-release timer and rectification rulings.
var Escrow = Table[entity.EscrowStatus, entity.EscrowCommand]{
	entity.EscrowStatusHeld: {
		entity.EscrowCmdRelease:       {To: entity.EscrowStatusReleased},
		entity.EscrowCmdFreeze:        {To: entity.EscrowStatusFrozen},
		entity.EscrowCmdRefund:        {To: entity.EscrowStatusRefunded},
		entity.EscrowCmdPartialRefund: {To: entity.EscrowStatusPartiallyRefunded},
	},
	entity.EscrowStatusFrozen: {
		entity.EscrowCmdRelease:       {To: entity.EscrowStatusReleased},
		entity.EscrowCmdRefund:        {To: entity.EscrowStatusRefunded},
		entity.EscrowCmdPartialRefund: {To: entity.EscrowStatusPartiallyRefunded},
	},
}
