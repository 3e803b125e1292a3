package usecase

import (
	"context"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/internal/data/repository"
	"service-engagement/internal/lifecycle"
	"service-engagement/pkg/apperr"
	"service-engagement/pkg/utils"

	"github.com/google/uuid"
)

const (
	holdOnCreate  = utils.HoldOnCreate
	holdOnConfirm = utils.HoldOnConfirm
)

// createHold takes custody for the booking. A second call for the same
// booking returns the existing hold untouched.
func (e *Engine) createHold(ctx context.Context, repo *repository.Repository, booking *entity.Booking, amount int64, currency string, actor entity.Actor) (*entity.EscrowHold, error) {
	now := e.now()
	hold := &entity.EscrowHold{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		BookingID: booking.ID,
		Amount:    amount,
		Currency:  currency,
		Status:    entity.EscrowStatusHeld,
		Version:   1,
	}

	stored, created, err := repo.Escrow.CreateIfAbsent(ctx, hold)
	if err != nil {
		return nil, err
	}
	if !created {
		return stored, nil
	}

	err = e.record(ctx, repo, change{
		entityType: entity.EntityEscrowHold,
		entityID:   stored.ID,
		bookingID:  booking.ID,
		command:    "hold",
		to:         string(entity.EscrowStatusHeld),
		actor:      actor,
		metadata:   map[string]any{"amount": amount, "currency": currency},
	})
	return stored, err
}

func (e *Engine) loadHold(ctx context.Context, repo *repository.Repository, op string, bookingID uuid.UUID) (*entity.EscrowHold, error) {
	hold, err := repo.Escrow.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if hold == nil {
		return nil, apperr.NotFound(op, "no escrow hold for booking %s", bookingID)
	}
	return hold, nil
}

func (e *Engine) transitionHold(ctx context.Context, repo *repository.Repository, hold *entity.EscrowHold, cmd entity.EscrowCommand, actor entity.Actor, metadata map[string]any, mutate func(h *entity.EscrowHold, now time.Time)) error {
	op := "escrow " + string(cmd)
	to, err := lifecycle.Escrow.Check(op, hold.Status, cmd, actor.Role)
	if err != nil {
		return err
	}

	now := e.now()
	from := hold.Status
	expected := hold.Version
	if mutate != nil {
		mutate(hold, now)
	}
	hold.Status = to
	hold.UpdatedAt = now

	if err := repo.Escrow.Update(ctx, hold, expected); err != nil {
		return err
	}

	return e.record(ctx, repo, change{
		entityType: entity.EntityEscrowHold,
		entityID:   hold.ID,
		bookingID:  hold.BookingID,
		command:    string(cmd),
		from:       string(from),
		to:         string(to),
		actor:      actor,
		metadata:   metadata,
	})
}

// releaseHold pays the provider. It refuses while a rectification for the
// booking is open.
func (e *Engine) releaseHold(ctx context.Context, repo *repository.Repository, booking *entity.Booking, actor entity.Actor) (*entity.EscrowHold, error) {
	const op = "escrow release"

	hold, err := e.loadHold(ctx, repo, op, booking.ID)
	if err != nil {
		return nil, err
	}
	if _, err := lifecycle.Escrow.Check(op, hold.Status, entity.EscrowCmdRelease, actor.Role); err != nil {
		return nil, err
	}

	if err := e.requireNoOpenRectification(ctx, repo, op, booking.ID); err != nil {
		return nil, err
	}

	err = e.transitionHold(ctx, repo, hold, entity.EscrowCmdRelease, actor, nil, func(h *entity.EscrowHold, now time.Time) {
		h.ReleasedAt = timePtr(now)
	})
	return hold, err
}

// requireNoOpenRectification keeps money on a disputed booking where it is
// until the rectification is resolved.
func (e *Engine) requireNoOpenRectification(ctx context.Context, repo *repository.Repository, op string, bookingID uuid.UUID) error {
	open, err := repo.Rectification.FindOpenByBookingID(ctx, bookingID)
	if err != nil {
		return err
	}
	if open != nil {
		return apperr.Invariant(op, "booking %s has open rectification %s", bookingID, open.ID)
	}
	return nil
}

// freezeHold suspends custody and stops the booking's auto-release clock.
func (e *Engine) freezeHold(ctx context.Context, repo *repository.Repository, booking *entity.Booking, actor entity.Actor, reason string) (*entity.EscrowHold, error) {
	const op = "escrow freeze"

	hold, err := e.loadHold(ctx, repo, op, booking.ID)
	if err != nil {
		return nil, err
	}
	if err := e.cancelTimer(ctx, repo, booking.ID, entity.TimerAutoRelease); err != nil {
		return nil, err
	}

	err = e.transitionHold(ctx, repo, hold, entity.EscrowCmdFreeze, actor, map[string]any{"reason": reason}, func(h *entity.EscrowHold, now time.Time) {
		h.FreezeReason = strPtr(reason)
		h.FrozenAt = timePtr(now)
	})
	return hold, err
}

type refundSpec struct {
	amount  int64
	reason  string
	partial bool
	// bypassWindow is set on the ruling and cancellation paths.
	bypassWindow bool
	// adminOverride refunds outside a ruling; refused while a rectification
	// is open.
	adminOverride bool
}

func (e *Engine) refundHold(ctx context.Context, repo *repository.Repository, booking *entity.Booking, actor entity.Actor, spec refundSpec) (*entity.EscrowHold, error) {
	cmd := entity.EscrowCmdRefund
	if spec.partial {
		cmd = entity.EscrowCmdPartialRefund
	}
	op := "escrow " + string(cmd)

	hold, err := e.loadHold(ctx, repo, op, booking.ID)
	if err != nil {
		return nil, err
	}
	if _, err := lifecycle.Escrow.Check(op, hold.Status, cmd, actor.Role); err != nil {
		return nil, err
	}

	if spec.adminOverride {
		if err := e.requireNoOpenRectification(ctx, repo, op, booking.ID); err != nil {
			return nil, err
		}
	}

	amount := hold.Amount
	if spec.partial {
		if spec.amount <= 0 || spec.amount >= hold.Amount {
			return nil, apperr.Invariant(op, "partial refund must be above 0 and below the held %d", hold.Amount)
		}
		amount = spec.amount
	}

	if !spec.bypassWindow && booking.CheckedOutAt != nil {
		window := e.cfg.RefundWindow(booking.CategoryTag)
		closes := booking.CheckedOutAt.Add(window)
		if e.now().After(closes) {
			return nil, apperr.Invariant(op, "refund window for %q closed at %s", booking.CategoryTag, closes.Format(time.RFC3339))
		}
	}

	metadata := map[string]any{"amount": amount, "reason": spec.reason}
	err = e.transitionHold(ctx, repo, hold, cmd, actor, metadata, func(h *entity.EscrowHold, now time.Time) {
		h.RefundAmount = &amount
		h.RefundReason = strPtr(spec.reason)
		h.RefundedAt = timePtr(now)
	})
	return hold, err
}
