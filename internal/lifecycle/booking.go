package lifecycle

import "service-engagement/internal/data/entity"

var (
	partyRoles = roles(entity.RoleClient, entity.RoleProvider)
	cancelRule = Rule[entity.BookingStatus]{To: entity.BookingStatusCancelled, Roles: partyRoles}
)

// Booking is the booking transition table.
var Booking = Table[entity.BookingStatus, entity.BookingCommand]{
	entity.BookingStatusCreated: {
		entity.BookingCmdProviderConfirm: {To: entity.BookingStatusProviderConfirmed, Roles: roles(entity.RoleProvider)},
		entity.BookingCmdCancel:          cancelRule,
	},
	entity.BookingStatusProviderConfirmed: {
		entity.BookingCmdCheckIn: {To: entity.BookingStatusCheckedIn, Roles: roles(entity.RoleProvider)},
		entity.BookingCmdCancel:  cancelRule,
	},
	entity.BookingStatusCheckedIn: {
		entity.BookingCmdCheckOut: {To: entity.BookingStatusCheckedOut, Roles: roles(entity.RoleProvider)},
		entity.BookingCmdCancel:   cancelRule,
	},
	entity.BookingStatusCheckedOut: {
		entity.BookingCmdReportCompletion: {To: entity.BookingStatusCompleted, Roles: roles(entity.RoleProvider)},
		entity.BookingCmdCancel:           cancelRule,
	},
	entity.BookingStatusCompleted: {
		entity.BookingCmdObservationExpiry:  {To: entity.BookingStatusSettled, Roles: roles(entity.RoleSystem)},
		entity.BookingCmdOpenRectification: {To: entity.BookingStatusDisputed, Roles: roles(entity.RoleClient)},
	},
	entity.BookingStatusObservation: {
		entity.BookingCmdObservationExpiry:  {To: entity.BookingStatusSettled, Roles: roles(entity.RoleSystem)},
		entity.BookingCmdOpenRectification: {To: entity.BookingStatusDisputed, Roles: roles(entity.RoleClient)},
		entity.BookingCmdResolveDispute:     {To: entity.BookingStatusSettled, Roles: roles(entity.RoleClient, entity.RoleAdmin, entity.RoleSystem)},
	},
	entity.BookingStatusDisputed: {
		entity.BookingCmdFixComplete:    {To: entity.BookingStatusObservation, Roles: roles(entity.RoleProvider)},
		entity.BookingCmdResolveDispute: {To: entity.BookingStatusSettled, Roles: roles(entity.RoleClient, entity.RoleAdmin, entity.RoleSystem)},
	},
}

// BookingPartyOf returns which side of the booking must issue cmd, or ""
// when any party (or the system) may.
func BookingPartyOf(cmd entity.BookingCommand) entity.ActorRole {
	switch cmd {
	case entity.BookingCmdProviderConfirm, entity.BookingCmdCheckIn, entity.BookingCmdCheckOut,
		entity.BookingCmdReportCompletion, entity.BookingCmdFixComplete:
		return entity.RoleProvider
	case entity.BookingCmdOpenRectification:
		return entity.RoleClient
	}
	return ""
}
