package usecase

import (
	"context"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/internal/data/repository"
	"service-engagement/internal/lifecycle"
	"service-engagement/pkg/apperr"

	"github.com/google/uuid"
)

type rectStep struct {
	cmd      entity.RectificationCommand
	actor    entity.Actor
	expected int64
	metadata map[string]any
	mutate   func(r *entity.Rectification, now time.Time)
}

func (e *Engine) applyRectification(ctx context.Context, repo *repository.Repository, rect *entity.Rectification, booking *entity.Booking, step rectStep) error {
	op := "rectification " + string(step.cmd)

	if err := checkVersion(op, rect.Version, step.expected); err != nil {
		return err
	}
	to, err := lifecycle.Rectification.Check(op, rect.Status, step.cmd, step.actor.Role)
	if err != nil {
		return err
	}
	switch step.actor.Role {
	case entity.RoleClient:
		if step.actor.ID != rect.ReporterID {
			return apperr.Forbidden(op, "only the reporter may %s", step.cmd)
		}
	case entity.RoleProvider:
		if err := requireParty(op, booking, step.actor); err != nil {
			return err
		}
	}

	now := e.now()
	from := rect.Status
	if step.mutate != nil {
		step.mutate(rect, now)
	}
	rect.Status = to
	rect.UpdatedAt = now
	if to.Terminal() {
		rect.ResolvedAt = timePtr(now)
	}

	if err := repo.Rectification.Update(ctx, rect, step.expected); err != nil {
		return err
	}

	return e.record(ctx, repo, change{
		entityType: entity.EntityRectification,
		entityID:   rect.ID,
		bookingID:  rect.BookingID,
		command:    string(step.cmd),
		from:       string(from),
		to:         string(to),
		actor:      step.actor,
		metadata:   step.metadata,
	})
}

type reportSpec struct {
	category    string
	description string
	photos      []string
}

// openRectification records the dispute, moves the booking to disputed,
// starts the provider's response clock and freezes the hold, in that order.
func (e *Engine) openRectification(ctx context.Context, repo *repository.Repository, booking *entity.Booking, actor entity.Actor, spec reportSpec) (*entity.Rectification, error) {
	const op = "report rectification"

	if booking.Status != entity.BookingStatusCompleted && booking.Status != entity.BookingStatusObservation {
		return nil, apperr.InvalidTransition(op, "booking %s is %s; disputes open only after completion", booking.ID, booking.Status)
	}
	if actor.Role != entity.RoleClient || actor.ID != booking.ClientID {
		return nil, apperr.Forbidden(op, "only the booking's client may report an issue")
	}
	existing, err := repo.Rectification.FindOpenByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Invariant(op, "booking %s already has open rectification %s", booking.ID, existing.ID)
	}

	now := e.now()
	rect := &entity.Rectification{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		BookingID:   booking.ID,
		ReporterID:  actor.ID,
		Category:    spec.category,
		Description: spec.description,
		PhotoRefs:   spec.photos,
		Status:      entity.RectificationStatusReported,
		Version:     1,
	}
	if err := repo.Rectification.Create(ctx, rect); err != nil {
		return nil, err
	}
	if err := e.record(ctx, repo, change{
		entityType: entity.EntityRectification,
		entityID:   rect.ID,
		bookingID:  booking.ID,
		command:    "report",
		to:         string(rect.Status),
		actor:      actor,
		metadata:   map[string]any{"category": spec.category},
	}); err != nil {
		return nil, err
	}

	if err := e.applyBooking(ctx, repo, booking, bookingStep{
		cmd:      entity.BookingCmdOpenRectification,
		actor:    actor,
		expected: booking.StatusVersion,
		metadata: map[string]any{"rectification_id": rect.ID.String()},
	}); err != nil {
		return nil, err
	}

	if err := e.scheduleTimer(ctx, repo, rect.ID, booking.ID, entity.TimerProviderResponseDeadline, e.cfg.ProviderResponseDeadline, rect.Version); err != nil {
		return nil, err
	}

	hold, err := repo.Escrow.FindByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if hold != nil && hold.Status == entity.EscrowStatusHeld {
		if _, err := e.freezeHold(ctx, repo, booking, actor, "rectification "+rect.ID.String()); err != nil {
			return nil, err
		}
	}
	return rect, nil
}

func (e *Engine) providerRespond(ctx context.Context, repo *repository.Repository, rect *entity.Rectification, booking *entity.Booking, actor entity.Actor, expected int64, response string, fixDate time.Time) error {
	if err := e.applyRectification(ctx, repo, rect, booking, rectStep{
		cmd:      entity.RectificationCmdProviderRespond,
		actor:    actor,
		expected: expected,
		metadata: map[string]any{"fix_date": fixDate},
		mutate: func(r *entity.Rectification, _ time.Time) {
			r.ProviderResponse = strPtr(response)
			r.FixDate = timePtr(fixDate)
		},
	}); err != nil {
		return err
	}
	return e.cancelTimer(ctx, repo, rect.ID, entity.TimerProviderResponseDeadline)
}

func (e *Engine) confirmFixComplete(ctx context.Context, repo *repository.Repository, rect *entity.Rectification, booking *entity.Booking, actor entity.Actor, expected int64, notes string, photos []string) error {
	if err := e.applyRectification(ctx, repo, rect, booking, rectStep{
		cmd:      entity.RectificationCmdConfirmFixComplete,
		actor:    actor,
		expected: expected,
		mutate: func(r *entity.Rectification, _ time.Time) {
			r.FixNotes = strPtr(notes)
			r.FixPhotos = photos
		},
	}); err != nil {
		return err
	}

	if err := e.applyBooking(ctx, repo, booking, bookingStep{
		cmd:      entity.BookingCmdFixComplete,
		actor:    actor,
		expected: booking.StatusVersion,
		metadata: map[string]any{"rectification_id": rect.ID.String()},
	}); err != nil {
		return err
	}

	return e.scheduleTimer(ctx, repo, rect.ID, booking.ID, entity.TimerObservationExpiry, e.cfg.FixObservationWindow, rect.Version)
}

// resolveAfterFix closes a fixed rectification, either on the client's
// confirmation or when the mini-observation window lapses, and releases the
// hold in full.
func (e *Engine) resolveAfterFix(ctx context.Context, repo *repository.Repository, rect *entity.Rectification, booking *entity.Booking, actor entity.Actor, expected int64, cmd entity.RectificationCommand) error {
	if err := e.applyRectification(ctx, repo, rect, booking, rectStep{
		cmd:      cmd,
		actor:    actor,
		expected: expected,
	}); err != nil {
		return err
	}
	if err := e.clearRectificationTimers(ctx, repo, rect.ID); err != nil {
		return err
	}

	if err := e.applyBooking(ctx, repo, booking, bookingStep{
		cmd:      entity.BookingCmdResolveDispute,
		actor:    actor,
		expected: booking.StatusVersion,
		metadata: map[string]any{"rectification_id": rect.ID.String()},
	}); err != nil {
		return err
	}

	_, err := e.releaseHold(ctx, repo, booking, actor)
	return err
}

func (e *Engine) escalate(ctx context.Context, repo *repository.Repository, rect *entity.Rectification, booking *entity.Booking, actor entity.Actor, expected int64, reason string) error {
	if err := e.applyRectification(ctx, repo, rect, booking, rectStep{
		cmd:      entity.RectificationCmdEscalate,
		actor:    actor,
		expected: expected,
		metadata: map[string]any{"reason": reason},
		mutate: func(r *entity.Rectification, _ time.Time) {
			r.EscalationReason = strPtr(reason)
		},
	}); err != nil {
		return err
	}
	return e.clearRectificationTimers(ctx, repo, rect.ID)
}

type rulingSpec struct {
	ruling       entity.Ruling
	refundAmount int64
	notes        string
}

// adminRule resolves an escalated rectification and instructs the ledger
// exactly once. The ruling path ignores the category refund window.
func (e *Engine) adminRule(ctx context.Context, repo *repository.Repository, rect *entity.Rectification, booking *entity.Booking, actor entity.Actor, expected int64, spec rulingSpec) error {
	hold, err := e.loadHold(ctx, repo, "rectification admin_rule", booking.ID)
	if err != nil {
		return err
	}

	var refund *int64
	switch spec.ruling {
	case entity.RulingUpheld:
		refund = &hold.Amount
	case entity.RulingPartial:
		refund = &spec.refundAmount
	}

	if err := e.applyRectification(ctx, repo, rect, booking, rectStep{
		cmd:      entity.RectificationCmdAdminRule,
		actor:    actor,
		expected: expected,
		metadata: map[string]any{"ruling": spec.ruling, "refund_amount": refund},
		mutate: func(r *entity.Rectification, _ time.Time) {
			ruling := spec.ruling
			r.Ruling = &ruling
			r.RefundAmount = refund
			r.RuledBy = &actor.ID
			if spec.notes != "" {
				r.RulingNotes = strPtr(spec.notes)
			}
		},
	}); err != nil {
		return err
	}
	if err := e.clearRectificationTimers(ctx, repo, rect.ID); err != nil {
		return err
	}

	if err := e.applyBooking(ctx, repo, booking, bookingStep{
		cmd:      entity.BookingCmdResolveDispute,
		actor:    actor,
		expected: booking.StatusVersion,
		metadata: map[string]any{"rectification_id": rect.ID.String(), "ruling": spec.ruling},
	}); err != nil {
		return err
	}

	reason := "ruling " + string(spec.ruling) + " on rectification " + rect.ID.String()
	switch spec.ruling {
	case entity.RulingUpheld:
		_, err = e.refundHold(ctx, repo, booking, actor, refundSpec{reason: reason, bypassWindow: true})
	case entity.RulingPartial:
		_, err = e.refundHold(ctx, repo, booking, actor, refundSpec{amount: spec.refundAmount, reason: reason, partial: true, bypassWindow: true})
	default:
		_, err = e.releaseHold(ctx, repo, booking, actor)
	}
	return err
}

func (e *Engine) clearRectificationTimers(ctx context.Context, repo *repository.Repository, rectID uuid.UUID) error {
	if err := e.cancelTimer(ctx, repo, rectID, entity.TimerProviderResponseDeadline); err != nil {
		return err
	}
	return e.cancelTimer(ctx, repo, rectID, entity.TimerObservationExpiry)
}
