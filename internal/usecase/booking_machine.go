package usecase

import (
	"context"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/internal/data/repository"
	"service-engagement/internal/lifecycle"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type bookingStep struct {
	cmd      entity.BookingCommand
	actor    entity.Actor
	expected int64
	metadata map[string]any
	// mutate runs after the legality checks and before the write. An error
	// here is a failed guard and aborts the transaction.
	mutate func(b *entity.Booking, now time.Time) error
}

// applyBooking runs one booking transition inside repo's transaction:
// version fence, table lookup, party guard, compare-and-increment write,
// audit and event, then the command's side effects.
func (e *Engine) applyBooking(ctx context.Context, repo *repository.Repository, booking *entity.Booking, step bookingStep) error {
	op := "booking " + string(step.cmd)

	if err := checkVersion(op, booking.StatusVersion, step.expected); err != nil {
		return err
	}
	to, err := lifecycle.Booking.Check(op, booking.Status, step.cmd, step.actor.Role)
	if err != nil {
		return err
	}
	if err := requireParty(op, booking, step.actor); err != nil {
		return err
	}

	now := e.now()
	from := booking.Status
	if step.mutate != nil {
		if err := step.mutate(booking, now); err != nil {
			return err
		}
	}
	booking.Status = to
	booking.UpdatedAt = now
	stampBooking(booking, to, now)

	if err := repo.Booking.Update(ctx, booking, step.expected); err != nil {
		return err
	}

	if err := e.record(ctx, repo, change{
		entityType: entity.EntityBooking,
		entityID:   booking.ID,
		bookingID:  booking.ID,
		command:    string(step.cmd),
		from:       string(from),
		to:         string(to),
		actor:      step.actor,
		metadata:   step.metadata,
	}); err != nil {
		return err
	}

	return e.afterBooking(ctx, repo, booking, step)
}

func stampBooking(b *entity.Booking, to entity.BookingStatus, now time.Time) {
	switch to {
	case entity.BookingStatusProviderConfirmed:
		b.ConfirmedAt = timePtr(now)
	case entity.BookingStatusCheckedIn:
		b.CheckedInAt = timePtr(now)
	case entity.BookingStatusCheckedOut:
		b.CheckedOutAt = timePtr(now)
	case entity.BookingStatusCompleted:
		b.CompletedAt = timePtr(now)
	case entity.BookingStatusCancelled:
		b.CancelledAt = timePtr(now)
	case entity.BookingStatusSettled:
		b.SettledAt = timePtr(now)
	}
}

// afterBooking applies the timer and escrow consequences of an accepted
// booking transition.
func (e *Engine) afterBooking(ctx context.Context, repo *repository.Repository, booking *entity.Booking, step bookingStep) error {
	switch step.cmd {
	case entity.BookingCmdProviderConfirm:
		if e.cfg.HoldOn == "" || e.cfg.HoldOn == holdOnConfirm {
			_, err := e.createHold(ctx, repo, booking, booking.AgreedAmount, booking.Currency, step.actor)
			return err
		}

	case entity.BookingCmdReportCompletion:
		frozen, err := e.holdFrozen(ctx, repo, booking.ID)
		if err != nil {
			return err
		}
		if frozen {
			// an administrator froze the hold; only they can settle it now
			e.log.Info("Auto-release not scheduled for frozen hold", zap.String("booking_id", booking.ID.String()))
			return nil
		}
		return e.scheduleTimer(ctx, repo, booking.ID, booking.ID, entity.TimerAutoRelease, e.cfg.ObservationWindow, booking.StatusVersion)

	case entity.BookingCmdOpenRectification:
		return e.cancelTimer(ctx, repo, booking.ID, entity.TimerAutoRelease)

	case entity.BookingCmdCancel:
		if err := e.cancelTimer(ctx, repo, booking.ID, entity.TimerAutoRelease); err != nil {
			return err
		}
		return e.refundOnCancel(ctx, repo, booking, step.actor)

	case entity.BookingCmdObservationExpiry:
		if err := e.cancelTimer(ctx, repo, booking.ID, entity.TimerAutoRelease); err != nil {
			return err
		}
		hold, err := repo.Escrow.FindByBookingID(ctx, booking.ID)
		if err != nil {
			return err
		}
		if hold == nil {
			e.log.Warn("Booking settled without an escrow hold", zap.String("booking_id", booking.ID.String()))
			return nil
		}
		// already paid out by an administrator
		if hold.Status != entity.EscrowStatusHeld {
			return nil
		}
		_, err = e.releaseHold(ctx, repo, booking, step.actor)
		return err
	}
	return nil
}

func (e *Engine) holdFrozen(ctx context.Context, repo *repository.Repository, bookingID uuid.UUID) (bool, error) {
	hold, err := repo.Escrow.FindByBookingID(ctx, bookingID)
	if err != nil {
		return false, err
	}
	return hold != nil && hold.Status == entity.EscrowStatusFrozen, nil
}

// refundOnCancel returns custody to the client before delivery. No refund
// window applies before check-out.
func (e *Engine) refundOnCancel(ctx context.Context, repo *repository.Repository, booking *entity.Booking, actor entity.Actor) error {
	hold, err := repo.Escrow.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return err
	}
	if hold == nil || hold.Status.Terminal() {
		return nil
	}
	reason := "booking cancelled"
	if booking.CancelReason != nil {
		reason = *booking.CancelReason
	}
	_, err = e.refundHold(ctx, repo, booking, actor, refundSpec{reason: reason, bypassWindow: true})
	return err
}

// settleIfCompleted closes a booking still sitting in its observation window
// once an administrator has paid the hold out directly.
func (e *Engine) settleIfCompleted(ctx context.Context, repo *repository.Repository, booking *entity.Booking, requestedBy entity.Actor) error {
	if booking.Status != entity.BookingStatusCompleted {
		return nil
	}
	return e.applyBooking(ctx, repo, booking, bookingStep{
		cmd:      entity.BookingCmdObservationExpiry,
		actor:    entity.SystemActor(),
		expected: booking.StatusVersion,
		metadata: map[string]any{"requested_by": requestedBy.ID.String()},
	})
}
