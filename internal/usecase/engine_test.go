package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/internal/data/memstore"
	"service-engagement/internal/data/repository"
	"service-engagement/internal/dto/request"
	"service-engagement/internal/dto/response"
	"service-engagement/pkg/apperr"
	"service-engagement/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// failingStore wraps the memory store and, once armed, fails every escrow
// write inside a transaction.
type failingStore struct {
	*memstore.Store
	armed atomic.Bool
}

type failingEscrow struct {
	repository.EscrowRepository
}

func (failingEscrow) Update(context.Context, *entity.EscrowHold, int64) error {
	return errors.New("ledger unavailable")
}

func (s *failingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo *repository.Repository) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, repo *repository.Repository) error {
		if !s.armed.Load() {
			return fn(ctx, repo)
		}
		wrapped := *repo
		wrapped.Escrow = failingEscrow{repo.Escrow}
		return fn(ctx, &wrapped)
	})
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	clock    *testClock
	store    *failingStore
	svc      *Service
	client   entity.Actor
	provider entity.Actor
	admin    entity.Actor
}

const (
	d1 = 72 * time.Hour
	d2 = 48 * time.Hour
	d3 = 24 * time.Hour
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	store := &failingStore{Store: memstore.New(clock.Now)}
	cfg := &utils.Config{
		Engagement: utils.EngagementConfig{
			ObservationWindow:        d1,
			ProviderResponseDeadline: d2,
			FixObservationWindow:     d3,
			RefundWindowDefault:      72 * time.Hour,
			RefundWindows:            map[string]time.Duration{"plumbing": 24 * time.Hour},
			HoldOn:                   utils.HoldOnConfirm,
		},
	}
	return &harness{
		t:        t,
		ctx:      context.Background(),
		clock:    clock,
		store:    store,
		svc:      NewService(store, cfg, zap.NewNop(), WithClock(clock.Now)),
		client:   entity.Actor{ID: uuid.New(), Role: entity.RoleClient},
		provider: entity.Actor{ID: uuid.New(), Role: entity.RoleProvider},
		admin:    entity.Actor{ID: uuid.New(), Role: entity.RoleAdmin},
	}
}

func ver(v int64) *int64 { return &v }

func floatPtr(f float64) *float64 { return &f }

func (h *harness) create(category string) *response.BookingCreatedResponse {
	h.t.Helper()
	created, err := h.svc.Booking.Create(h.ctx, h.client, &request.CreateBookingRequest{
		CategoryTag:  category,
		ProviderID:   h.provider.ID.String(),
		AgreedAmount: 45000,
		Currency:     "NGN",
	})
	if err != nil {
		h.t.Fatalf("create booking: %v", err)
	}
	return created
}

func (h *harness) must(resp *response.BookingResponse, err error) *response.BookingResponse {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("booking command: %v", err)
	}
	return resp
}

// completed walks a booking to completed and returns it.
func (h *harness) completed(category string) *response.BookingResponse {
	h.t.Helper()
	created := h.create(category)
	id := created.ID

	b := h.must(h.svc.Booking.Confirm(h.ctx, h.provider, id, &request.VersionRequest{ExpectedVersion: ver(created.StatusVersion)}))
	b = h.must(h.svc.Booking.CheckIn(h.ctx, h.provider, id, &request.CheckInRequest{
		ExpectedVersion: ver(b.StatusVersion),
		OTP:             created.CheckInCode,
		Lat:             floatPtr(6.5244),
		Lng:             floatPtr(3.3792),
	}))
	b = h.must(h.svc.Booking.CheckOut(h.ctx, h.provider, id, &request.EvidenceRequest{ExpectedVersion: ver(b.StatusVersion), Media: []string{"before-1"}}))
	b = h.must(h.svc.Booking.ReportCompletion(h.ctx, h.provider, id, &request.EvidenceRequest{ExpectedVersion: ver(b.StatusVersion), Notes: "done", Media: []string{"after-1"}}))
	if b.Status != entity.BookingStatusCompleted {
		h.t.Fatalf("status = %s, want completed", b.Status)
	}
	return b
}

func (h *harness) booking(id string) *response.BookingResponse {
	h.t.Helper()
	b, err := h.svc.Booking.Get(h.ctx, h.admin, id)
	if err != nil {
		h.t.Fatalf("get booking: %v", err)
	}
	return b
}

func (h *harness) escrow(id string) *response.EscrowResponse {
	h.t.Helper()
	e, err := h.svc.Escrow.GetStatus(h.ctx, h.admin, id)
	if err != nil {
		h.t.Fatalf("get escrow: %v", err)
	}
	return e
}

func (h *harness) drain() DrainResult {
	h.t.Helper()
	res, err := h.svc.Timer.Drain(h.ctx, 100)
	if err != nil {
		h.t.Fatalf("drain: %v", err)
	}
	return res
}

func (h *harness) report(bookingID string) *response.RectificationResponse {
	h.t.Helper()
	rect, err := h.svc.Rectification.Report(h.ctx, h.client, bookingID, &request.ReportRectificationRequest{
		Category:    "quality",
		Description: "tap still leaking",
		PhotoRefs:   []string{"photo-1"},
	})
	if err != nil {
		h.t.Fatalf("report: %v", err)
	}
	return rect
}

func (h *harness) timers(ownerID string) []*entity.TimerEntry {
	h.t.Helper()
	entries, err := h.store.Repos().Timer.FindByOwner(h.ctx, uuid.MustParse(ownerID))
	if err != nil {
		h.t.Fatal(err)
	}
	return entries
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if !apperr.Is(err, kind) {
		t.Fatalf("error = %v, want kind %s", err, kind)
	}
}
