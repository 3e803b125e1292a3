package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/internal/data/repository"
	"service-engagement/pkg/apperr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TimerService interface {
	Schedule(ctx context.Context, ownerID, bookingID uuid.UUID, kind entity.TimerKind, firesAt time.Time, version int64) error
	Cancel(ctx context.Context, ownerID uuid.UUID, kind entity.TimerKind) error
	// Drain fires every entry due at the engine clock, up to limit.
	Drain(ctx context.Context, limit int) (DrainResult, error)
}

type DrainResult struct {
	Fired    int `json:"fired"`
	Stale    int `json:"stale"`
	Deferred int `json:"deferred"`
	Failed   int `json:"failed"`
}

type timerService struct {
	engine *Engine
	log    *zap.Logger
}

func NewTimerService(engine *Engine, log *zap.Logger) TimerService {
	return &timerService{
		engine: engine,
		log:    log.With(zap.String("service", "timer")),
	}
}

func (s *timerService) Schedule(ctx context.Context, ownerID, bookingID uuid.UUID, kind entity.TimerKind, firesAt time.Time, version int64) error {
	const op = "schedule timer"
	if !kind.Valid() {
		return apperr.Validation(op, map[string]string{"kind": "unknown timer kind"})
	}
	if ownerID == uuid.Nil {
		return apperr.Validation(op, map[string]string{"owner_id": "This field is required"})
	}

	entry := &entity.TimerEntry{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: s.engine.now()},
		OwnerID:    ownerID,
		BookingID:  bookingID,
		Kind:       kind,
		FiresAt:    firesAt,
		Version:    version,
	}
	return s.engine.store.WithinTx(ctx, func(ctx context.Context, repo *repository.Repository) error {
		return repo.Timer.Upsert(ctx, entry)
	})
}

func (s *timerService) Cancel(ctx context.Context, ownerID uuid.UUID, kind entity.TimerKind) error {
	return s.engine.store.WithinTx(ctx, func(ctx context.Context, repo *repository.Repository) error {
		return s.engine.cancelTimer(ctx, repo, ownerID, kind)
	})
}

func (s *timerService) Drain(ctx context.Context, limit int) (DrainResult, error) {
	var result DrainResult

	due, err := s.engine.store.Repos().Timer.FindDue(ctx, s.engine.now(), limit)
	if err != nil {
		s.log.Error("Failed to load due timers", zap.Error(err))
		return result, fmt.Errorf("load due timers: %w", err)
	}

	for _, entry := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		stale, err := s.fire(ctx, entry)
		fields := []zap.Field{
			zap.String("timer_id", entry.ID.String()),
			zap.String("owner_id", entry.OwnerID.String()),
			zap.String("kind", string(entry.Kind)),
			zap.Int64("version", entry.Version),
		}

		switch {
		case err == nil && stale:
			result.Stale++
			s.log.Debug("Stale timer discarded", fields...)
		case err == nil:
			result.Fired++
			s.log.Info("Timer fired", fields...)
		case apperr.Is(err, apperr.KindConflict):
			// lost a race with a human action; the next drain sees the new version
			result.Deferred++
			s.log.Warn("Timer deferred after version conflict", append(fields, zap.Error(err))...)
		default:
			result.Failed++
			attempt, retryAt := s.retryLater(ctx, entry, err)
			s.log.Error("Timer firing failed", append(fields,
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Time("retry_at", retryAt),
			)...)
			s.alert(ctx, entry, attempt, err)
		}
	}

	return result, nil
}

// fire runs one timer in its own transaction. The entry is deleted in the
// same transaction, so a failure leaves it in place for the next drain.
func (s *timerService) fire(ctx context.Context, entry *entity.TimerEntry) (bool, error) {
	var stale bool
	err := s.engine.store.WithinTx(ctx, func(ctx context.Context, repo *repository.Repository) error {
		removed, err := repo.Timer.DeleteEntry(ctx, entry.ID)
		if err != nil {
			return err
		}
		if !removed {
			stale = true
			return nil
		}

		err = s.dispatch(ctx, repo, entry)
		if apperr.Is(err, apperr.KindTimerStale) {
			stale = true
			return nil
		}
		return err
	})
	return stale, err
}

func (s *timerService) dispatch(ctx context.Context, repo *repository.Repository, entry *entity.TimerEntry) error {
	e := s.engine
	op := "fire " + string(entry.Kind)
	system := entity.SystemActor()

	if entry.Kind == entity.TimerAutoRelease {
		booking, err := repo.Booking.FindByID(ctx, entry.OwnerID)
		if err != nil {
			return err
		}
		if booking == nil || booking.StatusVersion != entry.Version {
			return apperr.Stale(op, "booking %s moved past version %d", entry.OwnerID, entry.Version)
		}
		frozen, err := e.holdFrozen(ctx, repo, booking.ID)
		if err != nil {
			return err
		}
		if frozen {
			return apperr.Stale(op, "escrow for booking %s is frozen", booking.ID)
		}
		return e.applyBooking(ctx, repo, booking, bookingStep{
			cmd:      entity.BookingCmdObservationExpiry,
			actor:    system,
			expected: entry.Version,
			metadata: map[string]any{"timer_id": entry.ID.String()},
		})
	}

	rect, err := repo.Rectification.FindByID(ctx, entry.OwnerID)
	if err != nil {
		return err
	}
	if rect == nil || rect.Version != entry.Version {
		return apperr.Stale(op, "rectification %s moved past version %d", entry.OwnerID, entry.Version)
	}
	booking, err := e.loadBooking(ctx, repo, op, rect.BookingID)
	if err != nil {
		return err
	}

	switch entry.Kind {
	case entity.TimerProviderResponseDeadline:
		return e.escalate(ctx, repo, rect, booking, system, entry.Version, "provider response deadline passed")
	case entity.TimerObservationExpiry:
		return e.resolveAfterFix(ctx, repo, rect, booking, system, entry.Version, entity.RectificationCmdObservationExpiry)
	}
	return fmt.Errorf("%s: unknown timer kind", op)
}

const (
	timerRetryBase = 30 * time.Second
	timerRetryMax  = time.Hour
)

// timerRetryDelay starts at thirty seconds and doubles per attempt up to an hour.
func timerRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := timerRetryBase
	for i := 1; i < attempt && d < timerRetryMax; i++ {
		d *= 2
	}
	if d > timerRetryMax {
		return timerRetryMax
	}
	return d
}

// retryLater pushes a failed entry back so it stops occupying the head of
// the due queue. It returns the attempt number just recorded.
func (s *timerService) retryLater(ctx context.Context, entry *entity.TimerEntry, cause error) (int, time.Time) {
	attempt := entry.Attempts + 1
	retryAt := s.engine.now().Add(timerRetryDelay(attempt))

	err := s.engine.store.WithinTx(ctx, func(ctx context.Context, repo *repository.Repository) error {
		n, err := repo.Timer.Reschedule(ctx, entry.ID, retryAt, cause.Error())
		if err == nil && n > 0 {
			attempt = n
		}
		return err
	})
	if err != nil {
		s.log.Error("Failed to reschedule timer",
			zap.Error(err),
			zap.String("timer_id", entry.ID.String()),
		)
	}
	return attempt, retryAt
}

type timerAlert struct {
	TimerID   string           `json:"timer_id"`
	OwnerID   string           `json:"owner_id"`
	BookingID string           `json:"booking_id"`
	Kind      entity.TimerKind `json:"kind"`
	FiresAt   time.Time        `json:"fires_at"`
	Attempt   int              `json:"attempt"`
	Error     string           `json:"error"`
	RaisedAt  time.Time        `json:"raised_at"`
}

// alert queues one operational alert per failed attempt through the outbox.
// Failing to queue it is logged and otherwise ignored so the driver keeps going.
func (s *timerService) alert(ctx context.Context, entry *entity.TimerEntry, attempt int, cause error) {
	now := s.engine.now()
	payload, err := json.Marshal(timerAlert{
		TimerID:   entry.ID.String(),
		OwnerID:   entry.OwnerID.String(),
		BookingID: entry.BookingID.String(),
		Kind:      entry.Kind,
		FiresAt:   entry.FiresAt,
		Attempt:   attempt,
		Error:     cause.Error(),
		RaisedAt:  now,
	})
	if err != nil {
		s.log.Error("Failed to marshal timer alert", zap.Error(err))
		return
	}

	err = s.engine.store.WithinTx(ctx, func(ctx context.Context, repo *repository.Repository) error {
		_, err := repo.Outbox.Enqueue(ctx, &entity.OutboxMessage{
			IdempotencyKey: fmt.Sprintf("alert:%s:%d", entry.ID, attempt),
			RoutingKey:     AlertTimerRoutingKey,
			Payload:        payload,
			CreatedAt:      now,
		})
		return err
	})
	if err != nil {
		s.log.Error("Failed to queue timer alert",
			zap.Error(err),
			zap.String("timer_id", entry.ID.String()),
		)
	}
}
