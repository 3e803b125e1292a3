package lifecycle

import "service-engagement/internal/data/entity"

// Rectification is the dispute workflow transition table.
var Rectification = Table[entity.RectificationStatus, entity.RectificationCommand]{
	entity.RectificationStatusReported: {
		entity.RectificationCmdProviderRespond: {To: entity.RectificationStatusFixScheduled, Roles: roles(entity.RoleProvider)},
		entity.RectificationCmdEscalate:        {To: entity.RectificationStatusEscalated, Roles: roles(entity.RoleClient, entity.RoleSystem)},
	},
	entity.RectificationStatusFixScheduled: {
		entity.RectificationCmdConfirmFixComplete: {To: entity.RectificationStatusFixComplete, Roles: roles(entity.RoleProvider)},
		entity.RectificationCmdEscalate:           {To: entity.RectificationStatusEscalated, Roles: roles(entity.RoleClient)},
	},
	entity.RectificationStatusFixComplete: {
		entity.RectificationCmdConfirmResolution: {To: entity.RectificationStatusResolved, Roles: roles(entity.RoleClient)},
		entity.RectificationCmdObservationExpiry: {To: entity.RectificationStatusResolved, Roles: roles(entity.RoleSystem)},
		entity.RectificationCmdEscalate:          {To: entity.RectificationStatusEscalated, Roles: roles(entity.RoleClient)},
	},
	entity.RectificationStatusEscalated: {
		entity.RectificationCmdAdminRule: {To: entity.RectificationStatusResolved, Roles: roles(entity.RoleAdmin)},
	},
}
