package usecase

import (
	"context"
	"fmt"

	"service-engagement/internal/data/entity"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditService is the read side of the audit log. Entries are written by the
// engine inside each transition's transaction.
type AuditService interface {
	Timeline(ctx context.Context, entityID uuid.UUID) ([]*entity.AuditEntry, error)
	BookingTimeline(ctx context.Context, bookingID uuid.UUID) ([]*entity.AuditEntry, error)
}

type auditService struct {
	engine *Engine
	log    *zap.Logger
}

func NewAuditService(engine *Engine, log *zap.Logger) AuditService {
	return &auditService{
		engine: engine,
		log:    log.With(zap.String("service", "audit")),
	}
}

func (s *auditService) Timeline(ctx context.Context, entityID uuid.UUID) ([]*entity.AuditEntry, error) {
	entries, err := s.engine.store.Repos().Audit.ListByEntity(ctx, entityID)
	if err != nil {
		s.log.Error("Failed to load timeline", zap.Error(err), zap.String("entity_id", entityID.String()))
		return nil, fmt.Errorf("timeline %s: %w", entityID, err)
	}
	return entries, nil
}

func (s *auditService) BookingTimeline(ctx context.Context, bookingID uuid.UUID) ([]*entity.AuditEntry, error) {
	entries, err := s.engine.store.Repos().Audit.ListByBooking(ctx, bookingID)
	if err != nil {
		s.log.Error("Failed to load booking timeline", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("booking timeline %s: %w", bookingID, err)
	}
	return entries, nil
}
