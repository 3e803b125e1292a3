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

type RectificationService interface {
	Report(ctx context.Context, actor entity.Actor, bookingID string, req *request.ReportRectificationRequest) (*response.RectificationResponse, error)
	Get(ctx context.Context, actor entity.Actor, id string) (*response.RectificationResponse, error)
	ListByBooking(ctx context.Context, actor entity.Actor, bookingID string) ([]response.RectificationResponse, error)

	ProviderRespond(ctx context.Context, actor entity.Actor, id string, req *request.ProviderRespondRequest) (*response.RectificationResponse, error)
	ConfirmFixComplete(ctx context.Context, actor entity.Actor, id string, req *request.FixCompleteRequest) (*response.RectificationResponse, error)
	ConfirmResolution(ctx context.Context, actor entity.Actor, id string, req *request.VersionRequest) (*response.RectificationResponse, error)
	Escalate(ctx context.Context, actor entity.Actor, id string, req *request.EscalateRequest) (*response.RectificationResponse, error)

	// Admin.
	AdminRule(ctx context.Context, actor entity.Actor, id string, req *request.AdminRuleRequest) (*response.RectificationResponse, error)
	ListAll(ctx context.Context, actor entity.Actor, req *request.ListRectificationsRequest) (*response.PaginatedResponse[response.RectificationResponse], error)
}

type rectificationService struct {
	engine *Engine
	log    *zap.Logger
}

func NewRectificationService(engine *Engine, log *zap.Logger) RectificationService {
	return &rectificationService{
		engine: engine,
		log:    log.With(zap.String("service", "rectification")),
	}
}

func (s *rectificationService) Report(ctx context.Context, actor entity.Actor, bookingID string, req *request.ReportRectificationRequest) (*response.RectificationResponse, error) {
	const op = "report rectification"

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

	var rect *entity.Rectification
	err = s.engine.store.WithinTx(ctx, func(ctx context.Context, repo *repository.Repository) error {
		booking, err := s.engine.loadBooking(ctx, repo, op, id)
		if err != nil {
			return err
		}
		rect, err = s.engine.openRectification(ctx, repo, booking, actor, reportSpec{
			category:    req.Category,
			description: req.Description,
			photos:      append([]string(nil), req.PhotoRefs...),
		})
		return err
	})
	if err != nil {
		s.log.Warn("Report rejected", zap.Error(err), zap.String("booking_id", bookingID))
		return nil, err
	}

	resp := response.RectificationToResponse(rect)
	return &resp, nil
}

func (s *rectificationService) Get(ctx context.Context, actor entity.Actor, id string) (*response.RectificationResponse, error) {
	const op = "get rectification"

	if err := validateActor(op, actor); err != nil {
		return nil, err
	}
	rectID, err := parseID(op, "id", id)
	if err != nil {
		return nil, err
	}

	repo := s.engine.store.Repos()
	rect, err := s.engine.loadRectification(ctx, repo, op, rectID)
	if err != nil {
		return nil, err
	}
	booking, err := s.engine.loadBooking(ctx, repo, op, rect.BookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !booking.IsParty(actor) {
		return nil, apperr.Forbidden(op, "actor is not a party to booking %s", booking.ID)
	}

	resp := response.RectificationToResponse(rect)
	return &resp, nil
}

func (s *rectificationService) ListByBooking(ctx context.Context, actor entity.Actor, bookingID string) ([]response.RectificationResponse, error) {
	const op = "list rectifications"

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

	rects, err := repo.Rectification.ListByBookingID(ctx, id)
	if err != nil {
		s.log.Error("Failed to list rectifications", zap.Error(err), zap.String("booking_id", bookingID))
		return nil, err
	}
	out := make([]response.RectificationResponse, len(rects))
	for i, r := range rects {
		out[i] = response.RectificationToResponse(r)
	}
	return out, nil
}

// mutate loads the rectification and its booking in one transaction and
// hands both to fn.
func (s *rectificationService) mutate(ctx context.Context, op string, actor entity.Actor, id string, fn func(ctx context.Context, repo *repository.Repository, rect *entity.Rectification, booking *entity.Booking) error) (*response.RectificationResponse, error) {
	rectID, err := parseID(op, "id", id)
	if err != nil {
		return nil, err
	}

	var rect *entity.Rectification
	err = s.engine.store.WithinTx(ctx, func(ctx context.Context, repo *repository.Repository) error {
		var err error
		rect, err = s.engine.loadRectification(ctx, repo, op, rectID)
		if err != nil {
			return err
		}
		booking, err := s.engine.loadBooking(ctx, repo, op, rect.BookingID)
		if err != nil {
			return err
		}
		return fn(ctx, repo, rect, booking)
	})
	if err != nil {
		s.log.Warn("Rectification command rejected",
			zap.Error(err),
			zap.String("op", op),
			zap.String("rectification_id", id),
			zap.String("kind", string(apperr.KindOf(err))),
		)
		return nil, err
	}

	resp := response.RectificationToResponse(rect)
	return &resp, nil
}

func (s *rectificationService) ProviderRespond(ctx context.Context, actor entity.Actor, id string, req *request.ProviderRespondRequest) (*response.RectificationResponse, error) {
	const op = "provider respond"
	if err := validateActor(op, actor); err != nil {
		return nil, err
	}
	if err := validate(op, req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, op, actor, id, func(ctx context.Context, repo *repository.Repository, rect *entity.Rectification, booking *entity.Booking) error {
		return s.engine.providerRespond(ctx, repo, rect, booking, actor, *req.ExpectedVersion, req.Response, *req.FixDate)
	})
}

func (s *rectificationService) ConfirmFixComplete(ctx context.Context, actor entity.Actor, id string, req *request.FixCompleteRequest) (*response.RectificationResponse, error) {
	const op = "confirm fix complete"
	if err := validateActor(op, actor); err != nil {
		return nil, err
	}
	if err := validate(op, req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, op, actor, id, func(ctx context.Context, repo *repository.Repository, rect *entity.Rectification, booking *entity.Booking) error {
		return s.engine.confirmFixComplete(ctx, repo, rect, booking, actor, *req.ExpectedVersion, req.Notes, append([]string(nil), req.Photos...))
	})
}

func (s *rectificationService) ConfirmResolution(ctx context.Context, actor entity.Actor, id string, req *request.VersionRequest) (*response.RectificationResponse, error) {
	const op = "confirm resolution"
	if err := validateActor(op, actor); err != nil {
		return nil, err
	}
	if err := validate(op, req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, op, actor, id, func(ctx context.Context, repo *repository.Repository, rect *entity.Rectification, booking *entity.Booking) error {
		return s.engine.resolveAfterFix(ctx, repo, rect, booking, actor, *req.ExpectedVersion, entity.RectificationCmdConfirmResolution)
	})
}

func (s *rectificationService) Escalate(ctx context.Context, actor entity.Actor, id string, req *request.EscalateRequest) (*response.RectificationResponse, error) {
	const op = "escalate"
	if err := validateActor(op, actor); err != nil {
		return nil, err
	}
	if err := validate(op, req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, op, actor, id, func(ctx context.Context, repo *repository.Repository, rect *entity.Rectification, booking *entity.Booking) error {
		return s.engine.escalate(ctx, repo, rect, booking, actor, *req.ExpectedVersion, req.Reason)
	})
}

func (s *rectificationService) AdminRule(ctx context.Context, actor entity.Actor, id string, req *request.AdminRuleRequest) (*response.RectificationResponse, error) {
	const op = "admin rule"
	if err := validateActor(op, actor); err != nil {
		return nil, err
	}
	if err := validate(op, req); err != nil {
		return nil, err
	}
	ruling := entity.Ruling(req.Ruling)
	if ruling == entity.RulingPartial && req.RefundAmount <= 0 {
		return nil, apperr.Validation(op, map[string]string{"RefundAmount": "Must be greater than 0"})
	}
	if err := requireAdmin(op, actor); err != nil {
		return nil, err
	}

	return s.mutate(ctx, op, actor, id, func(ctx context.Context, repo *repository.Repository, rect *entity.Rectification, booking *entity.Booking) error {
		return s.engine.adminRule(ctx, repo, rect, booking, actor, *req.ExpectedVersion, rulingSpec{
			ruling:       ruling,
			refundAmount: req.RefundAmount,
			notes:        req.Notes,
		})
	})
}

func (s *rectificationService) ListAll(ctx context.Context, actor entity.Actor, req *request.ListRectificationsRequest) (*response.PaginatedResponse[response.RectificationResponse], error) {
	const op = "list all rectifications"

	if err := validateActor(op, actor); err != nil {
		return nil, err
	}
	if err := validate(op, req); err != nil {
		return nil, err
	}
	if err := requireAdmin(op, actor); err != nil {
		return nil, err
	}

	repo := s.engine.store.Repos()
	status := entity.RectificationStatus(req.Status)
	rects, err := repo.Rectification.List(ctx, status, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to list rectifications", zap.Error(err))
		return nil, err
	}
	total, err := repo.Rectification.Count(ctx, status)
	if err != nil {
		return nil, err
	}

	out := make([]response.RectificationResponse, len(rects))
	for i, r := range rects {
		out[i] = response.RectificationToResponse(r)
	}
	return response.NewPaginatedResponse(out, req.Page, req.PerPage, total), nil
}
