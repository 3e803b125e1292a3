package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/internal/data/repository"
	"service-engagement/pkg/apperr"
	"service-engagement/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Routing key prefix for domain events. Alerts use AlertTimerRoutingKey.
const (
	EventRoutingPrefix   = "engagement."
	AlertTimerRoutingKey = "ops.alert.timer"
)

// Engine is the engagement orchestrator. It owns no state of its own: every
// mutation runs inside one store transaction that also records the audit
// entry, the outbox event and any timer changes.
type Engine struct {
	store repository.Store
	cfg   utils.EngagementConfig
	now   func() time.Time
	log   *zap.Logger
}

type EngineOption func(*Engine)

// WithClock replaces time.Now. Timers and refund windows read this clock.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store repository.Store, cfg utils.EngagementConfig, log *zap.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		log:   log.With(zap.String("service", "engine")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Event is the outbox payload for one accepted transition.
type Event struct {
	BookingID  string            `json:"booking_id"`
	EntityType entity.EntityType `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Transition string            `json:"transition"`
	From       string            `json:"from"`
	To         string            `json:"to"`
	ActorID    string            `json:"actor_id"`
	ActorRole  entity.ActorRole  `json:"actor_role"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// change describes one accepted transition for record().
type change struct {
	entityType entity.EntityType
	entityID   uuid.UUID
	bookingID  uuid.UUID
	command    string
	from       string
	to         string
	actor      entity.Actor
	metadata   map[string]any
}

// record appends the audit entry and enqueues the domain event. Both live in
// the caller's transaction.
func (e *Engine) record(ctx context.Context, repo *repository.Repository, c change) error {
	now := e.now()

	entry := &entity.AuditEntry{
		ID:         uuid.New(),
		EntityType: c.entityType,
		EntityID:   c.entityID,
		BookingID:  c.bookingID,
		FromState:  c.from,
		ToState:    c.to,
		ActorID:    c.actor.ID,
		ActorRole:  c.actor.Role,
		Metadata:   c.metadata,
		CreatedAt:  now,
	}
	if err := repo.Audit.Append(ctx, entry); err != nil {
		return fmt.Errorf("record %s %s: %w", c.entityType, c.command, err)
	}

	transition := fmt.Sprintf("%s.%s", c.entityType, c.command)
	payload, err := json.Marshal(Event{
		BookingID:  c.bookingID.String(),
		EntityType: c.entityType,
		EntityID:   c.entityID.String(),
		Transition: transition,
		From:       c.from,
		To:         c.to,
		ActorID:    c.actor.ID.String(),
		ActorRole:  c.actor.Role,
		Metadata:   c.metadata,
		OccurredAt: now,
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", transition, err)
	}

	msg := &entity.OutboxMessage{
		IdempotencyKey: fmt.Sprintf("%s:%s", c.bookingID, transition),
		RoutingKey:     EventRoutingPrefix + transition,
		Payload:        payload,
		CreatedAt:      now,
	}
	if _, err := repo.Outbox.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue event %s: %w", transition, err)
	}

	e.log.Info("Transition accepted",
		zap.String("entity", string(c.entityType)),
		zap.String("entity_id", c.entityID.String()),
		zap.String("booking_id", c.bookingID.String()),
		zap.String("from", c.from),
		zap.String("to", c.to),
		zap.String("actor_id", c.actor.ID.String()),
		zap.String("actor_role", string(c.actor.Role)),
	)
	return nil
}

func (e *Engine) scheduleTimer(ctx context.Context, repo *repository.Repository, ownerID, bookingID uuid.UUID, kind entity.TimerKind, after time.Duration, version int64) error {
	now := e.now()
	entry := &entity.TimerEntry{
		BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
		OwnerID:    ownerID,
		BookingID:  bookingID,
		Kind:       kind,
		FiresAt:    now.Add(after),
		Version:    version,
	}
	if err := repo.Timer.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("schedule %s for %s: %w", kind, ownerID, err)
	}

	e.log.Debug("Timer scheduled",
		zap.String("owner_id", ownerID.String()),
		zap.String("kind", string(kind)),
		zap.Time("fires_at", entry.FiresAt),
		zap.Int64("version", version),
	)
	return nil
}

func (e *Engine) cancelTimer(ctx context.Context, repo *repository.Repository, ownerID uuid.UUID, kind entity.TimerKind) error {
	removed, err := repo.Timer.Delete(ctx, ownerID, kind)
	if err != nil {
		return fmt.Errorf("cancel %s for %s: %w", kind, ownerID, err)
	}
	if removed {
		e.log.Debug("Timer cancelled",
			zap.String("owner_id", ownerID.String()),
			zap.String("kind", string(kind)),
		)
	}
	return nil
}

func (e *Engine) loadBooking(ctx context.Context, repo *repository.Repository, op string, id uuid.UUID) (*entity.Booking, error) {
	booking, err := repo.Booking.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: load booking %s: %w", op, id, err)
	}
	if booking == nil {
		return nil, apperr.NotFound(op, "booking %s not found", id)
	}
	return booking, nil
}

func (e *Engine) loadRectification(ctx context.Context, repo *repository.Repository, op string, id uuid.UUID) (*entity.Rectification, error) {
	rect, err := repo.Rectification.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: load rectification %s: %w", op, id, err)
	}
	if rect == nil {
		return nil, apperr.NotFound(op, "rectification %s not found", id)
	}
	return rect, nil
}

func checkVersion(op string, got, expected int64) error {
	if got != expected {
		return apperr.Conflict(op, "version is %d, caller expected %d; reload and retry", got, expected)
	}
	return nil
}

// requireParty checks that a client or provider actor is the matching side of
// the booking. Admins and the system are not party-bound.
func requireParty(op string, booking *entity.Booking, actor entity.Actor) error {
	switch actor.Role {
	case entity.RoleClient:
		if actor.ID != booking.ClientID {
			return apperr.Forbidden(op, "actor is not the client of booking %s", booking.ID)
		}
	case entity.RoleProvider:
		if actor.ID != booking.ProviderID {
			return apperr.Forbidden(op, "actor is not the provider of booking %s", booking.ID)
		}
	}
	return nil
}

func requireAdmin(op string, actor entity.Actor) error {
	if !actor.IsAdmin() {
		return apperr.Forbidden(op, "%s may not %s", actor.Role, op)
	}
	return nil
}

func validateActor(op string, actor entity.Actor) error {
	if !actor.Role.Valid() {
		return apperr.Validation(op, map[string]string{"actor": "unknown role"})
	}
	if actor.Role != entity.RoleSystem && actor.ID == uuid.Nil {
		return apperr.Validation(op, map[string]string{"actor": "missing id"})
	}
	return nil
}

func validate(op string, req any) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return apperr.Validation(op, errs)
	}
	return nil
}

func parseID(op, field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation(op, map[string]string{field: "Must be a valid UUID"})
	}
	return id, nil
}

func timePtr(t time.Time) *time.Time { return &t }

func strPtr(s string) *string { return &s }
