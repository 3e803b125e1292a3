package lifecycle

import (
	"testing"

	"service-engagement/internal/data/entity"
	"service-engagement/pkg/apperr"
)

func TestBookingTableRejectsUnlistedPairs(t *testing.T) {
	listed := map[entity.BookingStatus]map[entity.BookingCommand]entity.BookingStatus{
		entity.BookingStatusCreated: {
			entity.BookingCmdProviderConfirm: entity.BookingStatusProviderConfirmed,
			entity.BookingCmdCancel:          entity.BookingStatusCancelled,
		},
		entity.BookingStatusProviderConfirmed: {
			entity.BookingCmdCheckIn: entity.BookingStatusCheckedIn,
			entity.BookingCmdCancel:  entity.BookingStatusCancelled,
		},
		entity.BookingStatusCheckedIn: {
			entity.BookingCmdCheckOut: entity.BookingStatusCheckedOut,
			entity.BookingCmdCancel:   entity.BookingStatusCancelled,
		},
		entity.BookingStatusCheckedOut: {
			entity.BookingCmdReportCompletion: entity.BookingStatusCompleted,
			entity.BookingCmdCancel:           entity.BookingStatusCancelled,
		},
		entity.BookingStatusCompleted: {
			entity.BookingCmdObservationExpiry:  entity.BookingStatusSettled,
			entity.BookingCmdOpenRectification: entity.BookingStatusDisputed,
		},
		entity.BookingStatusObservation: {
			entity.BookingCmdObservationExpiry:  entity.BookingStatusSettled,
			entity.BookingCmdOpenRectification: entity.BookingStatusDisputed,
			entity.BookingCmdResolveDispute:     entity.BookingStatusSettled,
		},
		entity.BookingStatusDisputed: {
			entity.BookingCmdFixComplete:    entity.BookingStatusObservation,
			entity.BookingCmdResolveDispute: entity.BookingStatusSettled,
		},
	}

	for _, from := range entity.BookingStatuses {
		for _, cmd := range entity.BookingCommands {
			rule, ok := Booking.Next(from, cmd)
			want, listedOK := listed[from][cmd]
			if ok != listedOK {
				t.Errorf("%s --%s--> legal=%v, want %v", from, cmd, ok, listedOK)
				continue
			}
			if ok && rule.To != want {
				t.Errorf("%s --%s--> %s, want %s", from, cmd, rule.To, want)
			}
			if !ok {
				_, err := Booking.Check("apply", from, cmd, entity.RoleAdmin)
				if !apperr.Is(err, apperr.KindInvalidTransition) {
					t.Errorf("%s --%s--> error = %v, want invalid transition", from, cmd, err)
				}
			}
		}
	}
}

func TestTerminalBookingStatesHaveNoExits(t *testing.T) {
	for _, s := range entity.BookingStatuses {
		if s.Terminal() && len(Booking.Commands(s)) != 0 {
			t.Errorf("terminal %s has exits %v", s, Booking.Commands(s))
		}
	}
}

func TestCancelIsPartyOnly(t *testing.T) {
	for _, role := range []entity.ActorRole{entity.RoleAdmin, entity.RoleSystem} {
		_, err := Booking.Check("cancel", entity.BookingStatusCreated, entity.BookingCmdCancel, role)
		if !apperr.Is(err, apperr.KindForbidden) {
			t.Errorf("cancel by %s: err = %v, want forbidden", role, err)
		}
	}
	for _, role := range []entity.ActorRole{entity.RoleClient, entity.RoleProvider} {
		to, err := Booking.Check("cancel", entity.BookingStatusCheckedOut, entity.BookingCmdCancel, role)
		if err != nil || to != entity.BookingStatusCancelled {
			t.Errorf("cancel by %s: to=%s err=%v", role, to, err)
		}
	}
}

func TestEscrowTerminalStates(t *testing.T) {
	for _, s := range entity.EscrowStatuses {
		for _, cmd := range entity.EscrowCommands {
			_, ok := Escrow.Next(s, cmd)
			if s.Terminal() && ok {
				t.Errorf("terminal escrow %s accepts %s", s, cmd)
			}
		}
	}
	if _, ok := Escrow.Next(entity.EscrowStatusFrozen, entity.EscrowCmdFreeze); ok {
		t.Error("frozen hold must not be frozen again")
	}
}

func TestRectificationTable(t *testing.T) {
	cases := []struct {
		from entity.RectificationStatus
		cmd  entity.RectificationCommand
		role entity.ActorRole
		to   entity.RectificationStatus
		kind apperr.Kind
	}{
		{entity.RectificationStatusReported, entity.RectificationCmdProviderRespond, entity.RoleProvider, entity.RectificationStatusFixScheduled, ""},
		{entity.RectificationStatusReported, entity.RectificationCmdEscalate, entity.RoleSystem, entity.RectificationStatusEscalated, ""},
		{entity.RectificationStatusFixScheduled, entity.RectificationCmdConfirmFixComplete, entity.RoleProvider, entity.RectificationStatusFixComplete, ""},
		{entity.RectificationStatusFixComplete, entity.RectificationCmdObservationExpiry, entity.RoleSystem, entity.RectificationStatusResolved, ""},
		{entity.RectificationStatusEscalated, entity.RectificationCmdAdminRule, entity.RoleAdmin, entity.RectificationStatusResolved, ""},
		{entity.RectificationStatusEscalated, entity.RectificationCmdAdminRule, entity.RoleClient, "", apperr.KindForbidden},
		{entity.RectificationStatusReported, entity.RectificationCmdAdminRule, entity.RoleAdmin, "", apperr.KindInvalidTransition},
		{entity.RectificationStatusFixScheduled, entity.RectificationCmdEscalate, entity.RoleSystem, "", apperr.KindForbidden},
	}
	for _, tc := range cases {
		to, err := Rectification.Check("rectification", tc.from, tc.cmd, tc.role)
		if tc.kind != "" {
			if !apperr.Is(err, tc.kind) {
				t.Errorf("%s --%s(%s)--> err = %v, want %s", tc.from, tc.cmd, tc.role, err, tc.kind)
			}
			continue
		}
		if err != nil || to != tc.to {
			t.Errorf("%s --%s(%s)--> %s, %v; want %s", tc.from, tc.cmd, tc.role, to, err, tc.to)
		}
	}

	for _, cmd := range entity.RectificationCommands {
		_, err := Rectification.Check("rectification", entity.RectificationStatusResolved, cmd, entity.RoleAdmin)
		if !apperr.Is(err, apperr.KindInvalidTransition) {
			t.Errorf("resolved --%s--> err = %v, want invalid transition", cmd, err)
		}
	}
}
