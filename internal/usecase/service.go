package usecase

import (
	"service-engagement/internal/data/repository"
	"service-engagement/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Engine        *Engine
	Booking       BookingService
	Escrow        EscrowService
	Rectification RectificationService
	Timer         TimerService
	Audit         AuditService
}

func NewService(store repository.Store, config *utils.Config, log *zap.Logger, opts ...EngineOption) *Service {
	engine := NewEngine(store, config.Engagement, log, opts...)
	audit := NewAuditService(engine, log)
	return &Service{
		Engine:        engine,
		Booking:       NewBookingService(engine, audit, log),
		Escrow:        NewEscrowService(engine, log),
		Rectification: NewRectificationService(engine, log),
		Timer:         NewTimerService(engine, log),
		Audit:         audit,
	}
}
