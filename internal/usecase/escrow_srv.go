package usecase

import (
	"context"

	"service-engagement/internal/data/entity"
	"service-engagement/internal/data/repository"
	"service-engagement/internal/dto/request"
	"service-engagement/internal/dto/response"
	"service-engagement/pkg/apperr"

	"go.uber.org/zap"
)

type EscrowService interface {
	// CreateHold is idempotent per booking.
	CreateHold(ctx context.Context, actor entity.Actor, bookingID string, req *request.CreateHoldRequest) (*response.EscrowResponse, error)
	GetStatus(ctx context.Context, actor entity.Actor, bookingID string) (*response.EscrowResponse, error)

	// Admin overrides.
	Release(ctx context.Context, actor entity.Actor, bookingID string) (*response.EscrowResponse, error)
	Freeze(ctx context.Context, actor entity.Actor, bookingID string, req *request.FreezeRequest) (*response.EscrowResponse, error)
	Refund(ctx context.Context, actor entity.Actor, bookingID string, req *request.RefundRequest) (*response.EscrowResponse, error)
}

type escrowService struct {
	engine *Engine
	log    *zap.Logger
}

func NewEscrowService(engine *Engine, log *zap.Logger) EscrowService {
	return &escrowService{
		engine: engine,
		log:    log.With(zap.String("service", "escrow")),
	}
}

func (s *escrowService) CreateHold(ctx context.Context, actor entity.Actor, bookingID string, req *request.CreateHoldRequest) (*response.EscrowResponse, error) {
	const op = "create hold"

	if err := validateActor(op, actor); err != nil {
		return nil, err
	}
	if err := validate(op, req); err != nil {
		return nil, err
	}
	id, err := parseID(op, "id", bookingID)
	if err != nil {
		return nil, err
	}

	var hold *entity.EscrowHold
	err = s.engine.store.WithinTx(ctx, func(ctx context.Context, repo *repository.Repository) error {
		booking, err := s.engine.loadBooking(ctx, repo, op, id)
		if err != nil {
			return err
		}
		if actor.Role == entity.RoleProvider || (actor.Role == entity.RoleClient && actor.ID != booking.ClientID) {
			return apperr.Forbidden(op, "only the client or an administrator funds a booking")
		}
		if booking.Status.Terminal() {
			return apperr.InvalidTransition(op, "booking %s is %s", id, booking.Status)
		}
		if req.Currency != booking.Currency {
			return apperr.Invariant(op, "hold currency %s does not match booking currency %s", req.Currency, booking.Currency)
		}
		hold, err = s.engine.createHold(ctx, repo, booking, req.Amount, req.Currency, actor)
		return err
	})
	if err != nil {
		s.log.Warn("Create hold rejected", zap.Error(err), zap.String("booking_id", bookingID))
		return nil, err
	}

	resp := response.EscrowToResponse(hold)
	return &resp, nil
}

func (s *escrowService) GetStatus(ctx context.Context, actor entity.Actor, bookingID string) (*response.EscrowResponse, error) {
	const op = "get escrow"

	if err := validateActor(op, actor); err != nil {
		return nil, err
	}
	id, err := parseID(op, "id", bookingID)
	if err != nil {
		return nil, err
	}

	repo := s.engine.store.Repos()
	booking, err := s.engine.loadBooking(ctx, repo, op, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !booking.IsParty(actor) {
		return nil, apperr.Forbidden(op, "actor is not a party to booking %s", id)
	}
	hold, err := s.engine.loadHold(ctx, repo, op, id)
	if err != nil {
		return nil, err
	}

	resp := response.EscrowToResponse(hold)
	return &resp, nil
}

// adminOp runs fn for an administrator inside one transaction and returns
// the hold it produced.
func (s *escrowService) adminOp(ctx context.Context, op string, actor entity.Actor, bookingID string, fn func(ctx context.Context, repo *repository.Repository, booking *entity.Booking) (*entity.EscrowHold, error)) (*response.EscrowResponse, error) {
	if err := validateActor(op, actor); err != nil {
		return nil, err
	}
	id, err := parseID(op, "id", bookingID)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(op, actor); err != nil {
		return nil, err
	}

	var hold *entity.EscrowHold
	err = s.engine.store.WithinTx(ctx, func(ctx context.Context, repo *repository.Repository) error {
		booking, err := s.engine.loadBooking(ctx, repo, op, id)
		if err != nil {
			return err
		}
		hold, err = fn(ctx, repo, booking)
		return err
	})
	if err != nil {
		s.log.Warn("Escrow override rejected",
			zap.Error(err),
			zap.String("op", op),
			zap.String("booking_id", bookingID),
			zap.String("admin_id", actor.ID.String()),
		)
		return nil, err
	}

	s.log.Info("Escrow override applied",
		zap.String("op", op),
		zap.String("booking_id", bookingID),
		zap.String("status", string(hold.Status)),
	)
	resp := response.EscrowToResponse(hold)
	return &resp, nil
}

func (s *escrowService) Release(ctx context.Context, actor entity.Actor, bookingID string) (*response.EscrowResponse, error) {
	return s.adminOp(ctx, "escrow release", actor, bookingID, func(ctx context.Context, repo *repository.Repository, booking *entity.Booking) (*entity.EscrowHold, error) {
		hold, err := s.engine.releaseHold(ctx, repo, booking, actor)
		if err != nil {
			return nil, err
		}
		return hold, s.engine.settleIfCompleted(ctx, repo, booking, actor)
	})
}

func (s *escrowService) Freeze(ctx context.Context, actor entity.Actor, bookingID string, req *request.FreezeRequest) (*response.EscrowResponse, error) {
	if err := validate("escrow freeze", req); err != nil {
		return nil, err
	}
	return s.adminOp(ctx, "escrow freeze", actor, bookingID, func(ctx context.Context, repo *repository.Repository, booking *entity.Booking) (*entity.EscrowHold, error) {
		return s.engine.freezeHold(ctx, repo, booking, actor, req.Reason)
	})
}

func (s *escrowService) Refund(ctx context.Context, actor entity.Actor, bookingID string, req *request.RefundRequest) (*response.EscrowResponse, error) {
	const op = "escrow refund"

	if err := validate(op, req); err != nil {
		return nil, err
	}
	if req.Partial && req.Amount <= 0 {
		return nil, apperr.Validation(op, map[string]string{"Amount": "Must be greater than 0"})
	}

	return s.adminOp(ctx, op, actor, bookingID, func(ctx context.Context, repo *repository.Repository, booking *entity.Booking) (*entity.EscrowHold, error) {
		hold, err := s.engine.refundHold(ctx, repo, booking, actor, refundSpec{
			amount:        req.Amount,
			reason:        req.Reason,
			partial:       req.Partial,
			adminOverride: true,
		})
		if err != nil {
			return nil, err
		}
		return hold, s.engine.settleIfCompleted(ctx, repo, booking, actor)
	})
}
