package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/internal/data/repository"
	"service-engagement/internal/dto/request"
	"service-engagement/pkg/apperr"
)

func TestAutoReleaseAfterObservationWindow(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")

	if got := h.escrow(b.ID); got.Status != entity.EscrowStatusHeld || got.Amount != 45000 {
		t.Fatalf("escrow before window = %s/%d", got.Status, got.Amount)
	}

	h.clock.Advance(d1 - time.Second)
	if res := h.drain(); res.Fired != 0 {
		t.Fatalf("timer fired early: %+v", res)
	}

	h.clock.Advance(time.Second)
	if res := h.drain(); res.Fired != 1 {
		t.Fatalf("drain = %+v, want one fired", res)
	}

	hold := h.escrow(b.ID)
	if hold.Status != entity.EscrowStatusReleased || hold.Amount != 45000 {
		t.Fatalf("escrow = %s/%d, want released/45000", hold.Status, hold.Amount)
	}
	if got := h.booking(b.ID); got.Status != entity.BookingStatusSettled {
		t.Fatalf("booking = %s, want settled", got.Status)
	}

	// fires exactly once
	h.clock.Advance(d1)
	if res := h.drain(); res != (DrainResult{}) {
		t.Fatalf("second drain = %+v, want nothing", res)
	}
}

func TestRectificationDuringWindowFreezesAndSuppressesRelease(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")

	h.clock.Advance(10 * time.Hour)
	rect := h.report(b.ID)
	if rect.Status != entity.RectificationStatusReported {
		t.Fatalf("rectification = %s", rect.Status)
	}

	if got := h.escrow(b.ID); got.Status != entity.EscrowStatusFrozen {
		t.Fatalf("escrow = %s, want frozen", got.Status)
	}
	if got := h.booking(b.ID); got.Status != entity.BookingStatusDisputed {
		t.Fatalf("booking = %s, want disputed", got.Status)
	}
	if left := h.timers(b.ID); len(left) != 0 {
		t.Fatalf("auto-release timer still scheduled: %+v", left)
	}

	// past both the original window and the provider deadline
	h.clock.Advance(d1)
	h.drain()

	if got := h.escrow(b.ID); got.Status != entity.EscrowStatusFrozen {
		t.Fatalf("escrow = %s after window, want frozen", got.Status)
	}
	got, err := h.svc.Rectification.Get(h.ctx, h.client, rect.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != entity.RectificationStatusEscalated {
		t.Fatalf("rectification = %s, want escalated by the response deadline", got.Status)
	}
}

func TestPartialRulingThenReleaseIsRejected(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")
	rect := h.report(b.ID)

	rect, err := h.svc.Rectification.Escalate(h.ctx, h.client, rect.ID, &request.EscalateRequest{
		ExpectedVersion: ver(rect.Version),
		Reason:          "provider did not answer",
	})
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}

	rect, err = h.svc.Rectification.AdminRule(h.ctx, h.admin, rect.ID, &request.AdminRuleRequest{
		ExpectedVersion: ver(rect.Version),
		Ruling:          "partial",
		RefundAmount:    20000,
		Notes:           "half the job redone",
	})
	if err != nil {
		t.Fatalf("admin rule: %v", err)
	}
	if rect.Status != entity.RectificationStatusResolved || rect.Ruling == nil || *rect.Ruling != entity.RulingPartial {
		t.Fatalf("rectification = %+v", rect)
	}

	hold := h.escrow(b.ID)
	if hold.Status != entity.EscrowStatusPartiallyRefunded || hold.RefundAmount == nil || *hold.RefundAmount != 20000 {
		t.Fatalf("escrow = %+v, want partially_refunded 20000", hold)
	}
	if got := h.booking(b.ID); got.Status != entity.BookingStatusSettled {
		t.Fatalf("booking = %s, want settled", got.Status)
	}

	_, err = h.svc.Escrow.Release(h.ctx, h.admin, b.ID)
	wantKind(t, err, apperr.KindInvalidTransition)
}

func TestConcurrentCheckInOnlyOneWins(t *testing.T) {
	h := newHarness(t)
	created := h.create("cleaning")
	confirmed := h.must(h.svc.Booking.Confirm(h.ctx, h.provider, created.ID, &request.VersionRequest{ExpectedVersion: ver(created.StatusVersion)}))

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.Booking.CheckIn(h.ctx, h.provider, created.ID, &request.CheckInRequest{
				ExpectedVersion: ver(confirmed.StatusVersion),
				OTP:             created.CheckInCode,
				Lat:             floatPtr(6.5),
				Lng:             floatPtr(3.4),
			})
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.Is(err, apperr.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("ok=%d conflicts=%d, want 1/1", ok, conflicts)
	}
	if got := h.booking(created.ID); got.Status != entity.BookingStatusCheckedIn || got.StatusVersion != confirmed.StatusVersion+1 {
		t.Fatalf("booking = %s v%d", got.Status, got.StatusVersion)
	}
}

func TestFixPathReleasesAfterMiniObservation(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")
	rect := h.report(b.ID)

	fixDate := h.clock.Now().Add(24 * time.Hour)
	rect, err := h.svc.Rectification.ProviderRespond(h.ctx, h.provider, rect.ID, &request.ProviderRespondRequest{
		ExpectedVersion: ver(rect.Version),
		Response:        "will replace the washer",
		FixDate:         &fixDate,
	})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if left := h.timers(rect.ID); len(left) != 0 {
		t.Fatalf("response deadline still scheduled: %+v", left)
	}

	rect, err = h.svc.Rectification.ConfirmFixComplete(h.ctx, h.provider, rect.ID, &request.FixCompleteRequest{
		ExpectedVersion: ver(rect.Version),
		Notes:           "washer replaced",
		Photos:          []string{"fix-1"},
	})
	if err != nil {
		t.Fatalf("fix complete: %v", err)
	}
	if got := h.booking(b.ID); got.Status != entity.BookingStatusObservation {
		t.Fatalf("booking = %s, want observation", got.Status)
	}

	h.clock.Advance(d3)
	if res := h.drain(); res.Fired != 1 {
		t.Fatalf("drain = %+v", res)
	}

	got, _ := h.svc.Rectification.Get(h.ctx, h.admin, rect.ID)
	if got.Status != entity.RectificationStatusResolved {
		t.Fatalf("rectification = %s", got.Status)
	}
	if hold := h.escrow(b.ID); hold.Status != entity.EscrowStatusReleased {
		t.Fatalf("escrow = %s, want released", hold.Status)
	}
	if bk := h.booking(b.ID); bk.Status != entity.BookingStatusSettled {
		t.Fatalf("booking = %s, want settled", bk.Status)
	}
}

func TestClientConfirmsResolution(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")
	rect := h.report(b.ID)

	fixDate := h.clock.Now()
	rect, _ = h.svc.Rectification.ProviderRespond(h.ctx, h.provider, rect.ID, &request.ProviderRespondRequest{ExpectedVersion: ver(1), Response: "ok", FixDate: &fixDate})
	rect, _ = h.svc.Rectification.ConfirmFixComplete(h.ctx, h.provider, rect.ID, &request.FixCompleteRequest{ExpectedVersion: ver(2)})

	// only the reporter may confirm
	_, err := h.svc.Rectification.ConfirmResolution(h.ctx, h.provider, rect.ID, &request.VersionRequest{ExpectedVersion: ver(rect.Version)})
	wantKind(t, err, apperr.KindForbidden)

	rect, err = h.svc.Rectification.ConfirmResolution(h.ctx, h.client, rect.ID, &request.VersionRequest{ExpectedVersion: ver(rect.Version)})
	if err != nil {
		t.Fatalf("confirm resolution: %v", err)
	}
	if rect.Status != entity.RectificationStatusResolved {
		t.Fatalf("rectification = %s", rect.Status)
	}
	if left := h.timers(rect.ID); len(left) != 0 {
		t.Fatalf("mini-observation timer left behind: %+v", left)
	}
	if hold := h.escrow(b.ID); hold.Status != entity.EscrowStatusReleased {
		t.Fatalf("escrow = %s", hold.Status)
	}

	_, err = h.svc.Rectification.Escalate(h.ctx, h.client, rect.ID, &request.EscalateRequest{ExpectedVersion: ver(rect.Version), Reason: "late"})
	wantKind(t, err, apperr.KindInvalidTransition)
}

func TestNoReleaseWhileRectificationOpen(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")
	h.report(b.ID)

	_, err := h.svc.Escrow.Release(h.ctx, h.admin, b.ID)
	wantKind(t, err, apperr.KindInvariant)
	if hold := h.escrow(b.ID); hold.Status != entity.EscrowStatusFrozen {
		t.Fatalf("escrow = %s", hold.Status)
	}
}

func TestSecondReportRejected(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")
	h.report(b.ID)

	_, err := h.svc.Rectification.Report(h.ctx, h.client, b.ID, &request.ReportRectificationRequest{Category: "quality", Description: "again"})
	if err == nil {
		t.Fatal("second open rectification accepted")
	}
	rects, _ := h.svc.Rectification.ListByBooking(h.ctx, h.client, b.ID)
	if len(rects) != 1 {
		t.Fatalf("rectifications = %d, want 1", len(rects))
	}
}

func TestReportRequiresCompletedBooking(t *testing.T) {
	h := newHarness(t)
	created := h.create("cleaning")

	_, err := h.svc.Rectification.Report(h.ctx, h.client, created.ID, &request.ReportRectificationRequest{Category: "quality", Description: "early"})
	wantKind(t, err, apperr.KindInvalidTransition)
}

func TestStaleTimerIsDiscarded(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")

	// replace the live timer with one stamped at an older version
	err := h.svc.Timer.Schedule(h.ctx, parseUUID(t, b.ID), parseUUID(t, b.ID), entity.TimerAutoRelease, h.clock.Now(), b.StatusVersion-1)
	if err != nil {
		t.Fatal(err)
	}

	res := h.drain()
	if res.Stale != 1 || res.Fired != 0 {
		t.Fatalf("drain = %+v, want one stale", res)
	}
	if got := h.booking(b.ID); got.Status != entity.BookingStatusCompleted || got.StatusVersion != b.StatusVersion {
		t.Fatalf("booking moved on a stale timer: %s v%d", got.Status, got.StatusVersion)
	}
	if hold := h.escrow(b.ID); hold.Status != entity.EscrowStatusHeld {
		t.Fatalf("escrow = %s", hold.Status)
	}
	if left := h.timers(b.ID); len(left) != 0 {
		t.Fatal("stale entry not removed")
	}
}

func TestFreezeCancelsAutoRelease(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")

	hold, err := h.svc.Escrow.Freeze(h.ctx, h.admin, b.ID, &request.FreezeRequest{Reason: "fraud check"})
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if hold.Status != entity.EscrowStatusFrozen {
		t.Fatalf("escrow = %s", hold.Status)
	}

	h.clock.Advance(2 * d1)
	if res := h.drain(); res != (DrainResult{}) {
		t.Fatalf("drain after freeze = %+v", res)
	}
	if got := h.booking(b.ID); got.Status != entity.BookingStatusCompleted {
		t.Fatalf("booking = %s", got.Status)
	}

	hold, err = h.svc.Escrow.Release(h.ctx, h.admin, b.ID)
	if err != nil {
		t.Fatalf("admin release: %v", err)
	}
	if hold.Status != entity.EscrowStatusReleased {
		t.Fatalf("escrow = %s", hold.Status)
	}
	if got := h.booking(b.ID); got.Status != entity.BookingStatusSettled {
		t.Fatalf("booking = %s, want settled after admin release", got.Status)
	}
}

func TestCancelRefundsHeldEscrow(t *testing.T) {
	h := newHarness(t)
	created := h.create("cleaning")
	b := h.must(h.svc.Booking.Confirm(h.ctx, h.provider, created.ID, &request.VersionRequest{ExpectedVersion: ver(created.StatusVersion)}))

	b = h.must(h.svc.Booking.Cancel(h.ctx, h.client, b.ID, &request.CancelBookingRequest{ExpectedVersion: ver(b.StatusVersion), Reason: "changed plans"}))
	if b.Status != entity.BookingStatusCancelled || b.CancelReason == nil {
		t.Fatalf("booking = %+v", b)
	}

	hold := h.escrow(b.ID)
	if hold.Status != entity.EscrowStatusRefunded || *hold.RefundAmount != 45000 {
		t.Fatalf("escrow = %s", hold.Status)
	}

	_, err := h.svc.Booking.Cancel(h.ctx, h.client, b.ID, &request.CancelBookingRequest{ExpectedVersion: ver(b.StatusVersion), Reason: "again"})
	wantKind(t, err, apperr.KindInvalidTransition)
}

func TestRefundWindowPerCategory(t *testing.T) {
	h := newHarness(t)
	b := h.completed("plumbing")

	h.clock.Advance(25 * time.Hour)
	_, err := h.svc.Escrow.Refund(h.ctx, h.admin, b.ID, &request.RefundRequest{Reason: "goodwill"})
	wantKind(t, err, apperr.KindInvariant)

	other := h.completed("cleaning")
	h.clock.Advance(25 * time.Hour)
	hold, err := h.svc.Escrow.Refund(h.ctx, h.admin, other.ID, &request.RefundRequest{Amount: 5000, Reason: "goodwill", Partial: true})
	if err != nil {
		t.Fatalf("refund inside the default window: %v", err)
	}
	if hold.Status != entity.EscrowStatusPartiallyRefunded || *hold.RefundAmount != 5000 {
		t.Fatalf("escrow = %+v", hold)
	}
	if got := h.booking(other.ID); got.Status != entity.BookingStatusSettled {
		t.Fatalf("booking = %s", got.Status)
	}
	if left := h.timers(other.ID); len(left) != 0 {
		t.Fatal("auto-release left behind after refund settled the booking")
	}
}

func TestEscrowFailureRollsBackRuling(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")
	rect := h.report(b.ID)
	rect, err := h.svc.Rectification.Escalate(h.ctx, h.client, rect.ID, &request.EscalateRequest{ExpectedVersion: ver(rect.Version), Reason: "no answer"})
	if err != nil {
		t.Fatal(err)
	}
	before, _ := h.svc.Booking.GetTimeline(h.ctx, h.admin, b.ID, "all")

	h.store.armed.Store(true)
	_, err = h.svc.Rectification.AdminRule(h.ctx, h.admin, rect.ID, &request.AdminRuleRequest{ExpectedVersion: ver(rect.Version), Ruling: "upheld"})
	h.store.armed.Store(false)
	if err == nil {
		t.Fatal("ruling succeeded with a failing ledger")
	}

	got, _ := h.svc.Rectification.Get(h.ctx, h.admin, rect.ID)
	if got.Status != entity.RectificationStatusEscalated || got.Version != rect.Version || got.Ruling != nil {
		t.Fatalf("rectification changed: %+v", got)
	}
	if bk := h.booking(b.ID); bk.Status != entity.BookingStatusDisputed {
		t.Fatalf("booking = %s", bk.Status)
	}
	after, _ := h.svc.Booking.GetTimeline(h.ctx, h.admin, b.ID, "all")
	if len(after) != len(before) {
		t.Fatalf("audit grew from %d to %d on a rolled back ruling", len(before), len(after))
	}
}

func (h *harness) alertKeys() []string {
	h.t.Helper()
	msgs, err := h.store.Repos().Outbox.Claim(h.ctx, 100, time.Minute)
	if err != nil {
		h.t.Fatal(err)
	}
	var keys []string
	for _, m := range msgs {
		if m.RoutingKey == AlertTimerRoutingKey {
			keys = append(keys, m.IdempotencyKey)
		}
	}
	return keys
}

func TestTimerFailureAlertsAndRetries(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")
	h.clock.Advance(d1)

	h.store.armed.Store(true)
	res := h.drain()
	h.store.armed.Store(false)
	if res.Failed != 1 {
		t.Fatalf("drain = %+v, want one failure", res)
	}
	left := h.timers(b.ID)
	if len(left) != 1 {
		t.Fatalf("failed timer removed: %d left", len(left))
	}
	if left[0].Attempts != 1 || left[0].LastError == nil || !left[0].FiresAt.Equal(h.clock.Now().Add(timerRetryBase)) {
		t.Fatalf("failed timer = %+v, want one attempt pushed back by %s", left[0], timerRetryBase)
	}
	if keys := h.alertKeys(); len(keys) != 1 {
		t.Fatalf("alerts = %v, want 1", keys)
	}

	// backing off, not due yet
	if res := h.drain(); res != (DrainResult{}) {
		t.Fatalf("immediate retry drain = %+v, want nothing", res)
	}

	h.clock.Advance(timerRetryBase)
	if res := h.drain(); res.Fired != 1 {
		t.Fatalf("retry drain = %+v", res)
	}
	if hold := h.escrow(b.ID); hold.Status != entity.EscrowStatusReleased {
		t.Fatalf("escrow = %s", hold.Status)
	}
}

func TestRepeatedTimerFailuresBackOff(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")
	h.clock.Advance(d1)

	h.store.armed.Store(true)
	defer h.store.armed.Store(false)

	for attempt := 1; attempt <= 3; attempt++ {
		if res := h.drain(); res.Failed != 1 {
			t.Fatalf("attempt %d drain = %+v, want one failure", attempt, res)
		}
		// one alert per attempt, none while backing off
		if res := h.drain(); res != (DrainResult{}) {
			t.Fatalf("attempt %d re-drain = %+v, want nothing", attempt, res)
		}
		h.clock.Advance(timerRetryDelay(attempt))
	}

	left := h.timers(b.ID)
	if len(left) != 1 || left[0].Attempts != 3 {
		t.Fatalf("timer = %+v, want three attempts", left)
	}

	keys := h.alertKeys()
	if len(keys) != 3 {
		t.Fatalf("alerts = %v, want 3", keys)
	}
	seen := make(map[string]bool)
	for _, k := range keys {
		if seen[k] {
			t.Fatalf("alert key %s repeated", k)
		}
		seen[k] = true
	}
}

func TestTimerRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 30 * time.Second},
		{1, 30 * time.Second},
		{2, time.Minute},
		{5, 8 * time.Minute},
		{8, time.Hour},
		{40, time.Hour},
	}
	for _, tt := range tests {
		if got := timerRetryDelay(tt.attempt); got != tt.want {
			t.Errorf("timerRetryDelay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestFailingTimerDoesNotStarveOthers(t *testing.T) {
	h := newHarness(t)
	first := h.completed("cleaning")
	second := h.completed("cleaning")
	h.clock.Advance(d1)

	h.store.armed.Store(true)
	res, err := h.svc.Timer.Drain(h.ctx, 1)
	h.store.armed.Store(false)
	if err != nil || res.Failed != 1 {
		t.Fatalf("drain = %+v, %v, want one failure", res, err)
	}

	// same instant, one slot: the entry behind the failed one gets it
	res, err = h.svc.Timer.Drain(h.ctx, 1)
	if err != nil || res.Fired != 1 {
		t.Fatalf("drain = %+v, %v, want the other timer fired", res, err)
	}

	settled := 0
	for _, id := range []string{first.ID, second.ID} {
		if h.booking(id).Status == entity.BookingStatusSettled {
			settled++
		}
	}
	if settled != 1 {
		t.Fatalf("settled bookings = %d, want 1", settled)
	}

	h.clock.Advance(timerRetryBase)
	if res := h.drain(); res.Fired != 1 {
		t.Fatalf("retry drain = %+v", res)
	}
	for _, id := range []string{first.ID, second.ID} {
		if got := h.booking(id); got.Status != entity.BookingStatusSettled {
			t.Fatalf("booking %s = %s, want settled", id, got.Status)
		}
	}
}

func TestFreezeBeforeCompletionSuppressesAutoRelease(t *testing.T) {
	h := newHarness(t)
	created := h.create("cleaning")
	id := created.ID

	b := h.must(h.svc.Booking.Confirm(h.ctx, h.provider, id, &request.VersionRequest{ExpectedVersion: ver(created.StatusVersion)}))
	if _, err := h.svc.Escrow.Freeze(h.ctx, h.admin, id, &request.FreezeRequest{Reason: "fraud check"}); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	b = h.must(h.svc.Booking.CheckIn(h.ctx, h.provider, id, &request.CheckInRequest{
		ExpectedVersion: ver(b.StatusVersion),
		OTP:             created.CheckInCode,
		Lat:             floatPtr(6.5244),
		Lng:             floatPtr(3.3792),
	}))
	b = h.must(h.svc.Booking.CheckOut(h.ctx, h.provider, id, &request.EvidenceRequest{ExpectedVersion: ver(b.StatusVersion), Media: []string{"before-1"}}))
	b = h.must(h.svc.Booking.ReportCompletion(h.ctx, h.provider, id, &request.EvidenceRequest{ExpectedVersion: ver(b.StatusVersion), Notes: "done", Media: []string{"after-1"}}))
	if b.Status != entity.BookingStatusCompleted {
		t.Fatalf("booking = %s", b.Status)
	}
	if left := h.timers(id); len(left) != 0 {
		t.Fatalf("auto-release scheduled on a frozen hold: %+v", left)
	}

	h.clock.Advance(d1)
	if res := h.drain(); res != (DrainResult{}) {
		t.Fatalf("drain = %+v, want nothing", res)
	}
	if got := h.booking(id); got.Status != entity.BookingStatusCompleted {
		t.Fatalf("booking = %s, want completed while the hold is frozen", got.Status)
	}
	if hold := h.escrow(id); hold.Status != entity.EscrowStatusFrozen {
		t.Fatalf("escrow = %s", hold.Status)
	}
}

func TestAutoReleaseOnFrozenHoldIsDiscarded(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")

	// freeze behind the scheduler's back, leaving the entry in place
	err := h.store.WithinTx(h.ctx, func(ctx context.Context, repo *repository.Repository) error {
		hold, err := repo.Escrow.FindByBookingID(ctx, parseUUID(t, b.ID))
		if err != nil {
			return err
		}
		prev := hold.Version
		hold.Status = entity.EscrowStatusFrozen
		return repo.Escrow.Update(ctx, hold, prev)
	})
	if err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(d1)
	if res := h.drain(); res.Stale != 1 || res.Fired != 0 {
		t.Fatalf("drain = %+v, want one stale", res)
	}
	if got := h.booking(b.ID); got.Status != entity.BookingStatusCompleted {
		t.Fatalf("booking = %s, want completed", got.Status)
	}
}

func TestAdminRefundRefusedWhileRectificationOpen(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")
	rect := h.report(b.ID)

	_, err := h.svc.Escrow.Refund(h.ctx, h.admin, b.ID, &request.RefundRequest{Reason: "goodwill"})
	wantKind(t, err, apperr.KindInvariant)
	_, err = h.svc.Escrow.Refund(h.ctx, h.admin, b.ID, &request.RefundRequest{Amount: 5000, Reason: "goodwill", Partial: true})
	wantKind(t, err, apperr.KindInvariant)
	if hold := h.escrow(b.ID); hold.Status != entity.EscrowStatusFrozen {
		t.Fatalf("escrow = %s, want frozen", hold.Status)
	}

	// the ruling still settles the dispute
	rect, err = h.svc.Rectification.Escalate(h.ctx, h.client, rect.ID, &request.EscalateRequest{ExpectedVersion: ver(rect.Version), Reason: "no answer"})
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	rect, err = h.svc.Rectification.AdminRule(h.ctx, h.admin, rect.ID, &request.AdminRuleRequest{ExpectedVersion: ver(rect.Version), Ruling: "upheld"})
	if err != nil {
		t.Fatalf("admin rule: %v", err)
	}
	if rect.Status != entity.RectificationStatusResolved {
		t.Fatalf("rectification = %s", rect.Status)
	}
	if hold := h.escrow(b.ID); hold.Status != entity.EscrowStatusRefunded {
		t.Fatalf("escrow = %s, want refunded", hold.Status)
	}
	if got := h.booking(b.ID); got.Status != entity.BookingStatusSettled {
		t.Fatalf("booking = %s, want settled", got.Status)
	}
}

func TestAdminRefundRefusedDuringFixObservation(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")
	rect := h.report(b.ID)

	fixDate := h.clock.Now()
	rect, err := h.svc.Rectification.ProviderRespond(h.ctx, h.provider, rect.ID, &request.ProviderRespondRequest{ExpectedVersion: ver(rect.Version), Response: "ok", FixDate: &fixDate})
	if err != nil {
		t.Fatal(err)
	}
	if _, err = h.svc.Rectification.ConfirmFixComplete(h.ctx, h.provider, rect.ID, &request.FixCompleteRequest{ExpectedVersion: ver(rect.Version)}); err != nil {
		t.Fatal(err)
	}

	_, err = h.svc.Escrow.Refund(h.ctx, h.admin, b.ID, &request.RefundRequest{Reason: "goodwill"})
	wantKind(t, err, apperr.KindInvariant)

	h.clock.Advance(d3)
	if res := h.drain(); res.Fired != 1 || res.Failed != 0 {
		t.Fatalf("drain = %+v, want the mini-observation to resolve", res)
	}
	if hold := h.escrow(b.ID); hold.Status != entity.EscrowStatusReleased {
		t.Fatalf("escrow = %s, want released", hold.Status)
	}
	if got := h.booking(b.ID); got.Status != entity.BookingStatusSettled {
		t.Fatalf("booking = %s, want settled", got.Status)
	}
}

func TestTimelineIsOrdered(t *testing.T) {
	h := newHarness(t)
	b := h.completed("cleaning")

	entries, err := h.svc.Booking.GetTimeline(h.ctx, h.client, b.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"created", "provider_confirmed", "checked_in", "checked_out", "completed"}
	if len(entries) != len(want) {
		t.Fatalf("timeline has %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.ToState != want[i] {
			t.Errorf("entry %d to = %s, want %s", i, e.ToState, want[i])
		}
		if i > 0 && (e.FromState != want[i-1] || e.Seq <= entries[i-1].Seq) {
			t.Errorf("entry %d out of order: %+v", i, e)
		}
	}

	all, _ := h.svc.Booking.GetTimeline(h.ctx, h.client, b.ID, "all")
	if len(all) != len(entries)+1 {
		t.Fatalf("scope=all has %d entries, want booking entries plus the hold", len(all))
	}

	stranger := entity.Actor{ID: parseUUID(t, "7d9f8c1e-3c2b-4f5a-9e61-0a1b2c3d4e5f"), Role: entity.RoleClient}
	_, err = h.svc.Booking.GetTimeline(h.ctx, stranger, b.ID, "")
	wantKind(t, err, apperr.KindForbidden)
}
