package usecase

import (
	"context"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/internal/data/repository"
	"service-engagement/internal/dto/request"
	"service-engagement/internal/dto/response"
	"service-engagement/pkg/apperr"
	"service-engagement/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const checkInCodeLength = 6

type BookingService interface {
	Create(ctx context.Context, actor entity.Actor, req *request.CreateBookingRequest) (*response.BookingCreatedResponse, error)
	Get(ctx context.Context, actor entity.Actor, bookingID string) (*response.BookingResponse, error)
	List(ctx context.Context, actor entity.Actor, req *request.ListBookingsRequest) (*response.PaginatedResponse[response.BookingResponse], error)

	// Apply runs a generic status command.
	Apply(ctx context.Context, actor entity.Actor, bookingID string, req *request.BookingCommandRequest) (*response.BookingResponse, error)
	Confirm(ctx context.Context, actor entity.Actor, bookingID string, req *request.VersionRequest) (*response.BookingResponse, error)
	CheckIn(ctx context.Context, actor entity.Actor, bookingID string, req *request.CheckInRequest) (*response.BookingResponse, error)
	CheckOut(ctx context.Context, actor entity.Actor, bookingID string, req *request.EvidenceRequest) (*response.BookingResponse, error)
	ReportCompletion(ctx context.Context, actor entity.Actor, bookingID string, req *request.EvidenceRequest) (*response.BookingResponse, error)
	Cancel(ctx context.Context, actor entity.Actor, bookingID string, req *request.CancelBookingRequest) (*response.BookingResponse, error)

	// GetTimeline returns the booking's own audit entries, or with scope
	// "all" every entry carrying the booking id.
	GetTimeline(ctx context.Context, actor entity.Actor, bookingID, scope string) ([]response.AuditEntryResponse, error)
}

type bookingService struct {
	engine *Engine
	audit  AuditService
	log    *zap.Logger
}

func NewBookingService(engine *Engine, audit AuditService, log *zap.Logger) BookingService {
	return &bookingService{
		engine: engine,
		audit:  audit,
		log:    log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) Create(ctx context.Context, actor entity.Actor, req *request.CreateBookingRequest) (*response.BookingCreatedResponse, error) {
	const op = "create booking"

	if err := validateActor(op, actor); err != nil {
		return nil, err
	}
	if err := validate(op, req); err != nil {
		s.log.Warn("Create booking validation failed", zap.Error(err))
		return nil, err
	}
	providerID, err := parseID(op, "ProviderID", req.ProviderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != entity.RoleClient {
		return nil, apperr.Forbidden(op, "only clients book services")
	}
	if providerID == actor.ID {
		return nil, apperr.Validation(op, map[string]string{"ProviderID": "Provider must differ from client"})
	}

	code, err := utils.GenerateOTP(checkInCodeLength)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashOTP(code)
	if err != nil {
		return nil, err
	}

	now := s.engine.now()
	booking := &entity.Booking{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		CategoryTag:     req.CategoryTag,
		ClientID:        actor.ID,
		ProviderID:      providerID,
		AgreedAmount:    req.AgreedAmount,
		Currency:        req.Currency,
		Status:          entity.BookingStatusCreated,
		StatusVersion:   1,
		CheckInCodeHash: hash,
	}

	var hold *entity.EscrowHold
	err = s.engine.store.WithinTx(ctx, func(ctx context.Context, repo *repository.Repository) error {
		if err := repo.Booking.Create(ctx, booking); err != nil {
			return err
		}
		if err := s.engine.record(ctx, repo, change{
			entityType: entity.EntityBooking,
			entityID:   booking.ID,
			bookingID:  booking.ID,
			command:    "create",
			to:         string(booking.Status),
			actor:      actor,
			metadata:   map[string]any{"amount": booking.AgreedAmount, "currency": booking.Currency},
		}); err != nil {
			return err
		}
		if s.engine.cfg.HoldOn == holdOnCreate {
			var err error
			hold, err = s.engine.createHold(ctx, repo, booking, booking.AgreedAmount, booking.Currency, actor)
			return err
		}
		return nil
	})
	if err != nil {
		s.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("client_id", actor.ID.String()),
			zap.String("provider_id", req.ProviderID),
		)
		return nil, err
	}

	resp := &response.BookingCreatedResponse{
		BookingResponse: response.BookingToResponse(booking),
		CheckInCode:     code,
	}
	if hold != nil {
		h := response.EscrowToResponse(hold)
		resp.Escrow = &h
	}
	return resp, nil
}

// readableBooking loads a booking the actor is allowed to see.
func (s *bookingService) readableBooking(ctx context.Context, op string, actor entity.Actor, bookingID string) (*entity.Booking, error) {
	if err := validateActor(op, actor); err != nil {
		return nil, err
	}
	id, err := parseID(op, "id", bookingID)
	if err != nil {
		return nil, err
	}
	booking, err := s.engine.loadBooking(ctx, s.engine.store.Repos(), op, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !booking.IsParty(actor) {
		return nil, apperr.Forbidden(op, "actor is not a party to booking %s", id)
	}
	return booking, nil
}

func (s *bookingService) Get(ctx context.Context, actor entity.Actor, bookingID string) (*response.BookingResponse, error) {
	booking, err := s.readableBooking(ctx, "get booking", actor, bookingID)
	if err != nil {
		return nil, err
	}
	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) List(ctx context.Context, actor entity.Actor, req *request.ListBookingsRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	const op = "list bookings"

	if err := validateActor(op, actor); err != nil {
		return nil, err
	}
	if err := validate(op, req); err != nil {
		return nil, err
	}

	filter := entity.BookingFilter{
		Status:      entity.BookingStatus(req.Status),
		CategoryTag: req.CategoryTag,
	}
	if !actor.IsAdmin() {
		as := req.As
		if as == "" {
			as = string(actor.Role)
		}
		if as == string(entity.RoleProvider) {
			filter.ProviderID = actor.ID
		} else {
			filter.ClientID = actor.ID
		}
	}

	repo := s.engine.store.Repos()
	bookings, err := repo.Booking.List(ctx, filter, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to list bookings", zap.Error(err), zap.Any("filter", filter))
		return nil, err
	}
	total, err := repo.Booking.Count(ctx, filter)
	if err != nil {
		s.log.Error("Failed to count bookings", zap.Error(err))
		return nil, err
	}

	out := make([]response.BookingResponse, len(bookings))
	for i, b := range bookings {
		out[i] = response.BookingToResponse(b)
	}
	return response.NewPaginatedResponse(out, req.Page, req.PerPage, total), nil
}

func (s *bookingService) Apply(ctx context.Context, actor entity.Actor, bookingID string, req *request.BookingCommandRequest) (*response.BookingResponse, error) {
	op := "apply " + req.Command

	if err := validateActor(op, actor); err != nil {
		return nil, err
	}
	if err := validate(op, req); err != nil {
		s.log.Warn("Booking command validation failed", zap.Error(err))
		return nil, err
	}
	id, err := parseID(op, "id", bookingID)
	if err != nil {
		return nil, err
	}

	cmd := entity.BookingCommand(req.Command)
	if err := requireCommandFields(op, cmd, req); err != nil {
		return nil, err
	}

	step := bookingStep{
		cmd:      cmd,
		actor:    actor,
		expected: *req.ExpectedVersion,
		mutate:   commandMutation(op, cmd, req),
	}
	if cmd == entity.BookingCmdCancel {
		step.metadata = map[string]any{"reason": req.Reason}
	}

	var booking *entity.Booking
	err = s.engine.store.WithinTx(ctx, func(ctx context.Context, repo *repository.Repository) error {
		var err error
		booking, err = s.engine.loadBooking(ctx, repo, op, id)
		if err != nil {
			return err
		}
		return s.engine.applyBooking(ctx, repo, booking, step)
	})
	if err != nil {
		s.log.Warn("Booking command rejected",
			zap.Error(err),
			zap.String("booking_id", bookingID),
			zap.String("command", req.Command),
			zap.String("kind", string(apperr.KindOf(err))),
		)
		return nil, err
	}

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// requireCommandFields checks the per-command inputs the shared request
// cannot express in tags.
func requireCommandFields(op string, cmd entity.BookingCommand, req *request.BookingCommandRequest) error {
	fields := map[string]string{}
	switch cmd {
	case entity.BookingCmdCheckIn:
		if req.OTP == "" {
			fields["OTP"] = "This field is required"
		}
		if req.Lat == nil {
			fields["Lat"] = "This field is required"
		}
		if req.Lng == nil {
			fields["Lng"] = "This field is required"
		}
	case entity.BookingCmdCancel:
		if req.Reason == "" {
			fields["Reason"] = "This field is required"
		}
	}
	if len(fields) > 0 {
		return apperr.Validation(op, fields)
	}
	return nil
}

func commandMutation(op string, cmd entity.BookingCommand, req *request.BookingCommandRequest) func(*entity.Booking, time.Time) error {
	switch cmd {
	case entity.BookingCmdCheckIn:
		return func(b *entity.Booking, _ time.Time) error {
			if !utils.VerifyOTP(b.CheckInCodeHash, req.OTP) {
				return apperr.InvalidTransition(op, "check-in code does not match")
			}
			b.OTPVerified = true
			lat, lng := *req.Lat, *req.Lng
			b.CheckInLat = &lat
			b.CheckInLng = &lng
			return nil
		}
	case entity.BookingCmdCheckOut:
		return func(b *entity.Booking, _ time.Time) error {
			if req.Notes != "" {
				b.CompletionNotes = req.Notes
			}
			if len(req.Media) > 0 {
				b.BeforeMedia = append([]string(nil), req.Media...)
			}
			return nil
		}
	case entity.BookingCmdReportCompletion:
		return func(b *entity.Booking, _ time.Time) error {
			if req.Notes != "" {
				b.CompletionNotes = req.Notes
			}
			if len(req.Media) > 0 {
				b.AfterMedia = append([]string(nil), req.Media...)
			}
			return nil
		}
	case entity.BookingCmdCancel:
		return func(b *entity.Booking, _ time.Time) error {
			reason := req.Reason
			b.CancelReason = &reason
			return nil
		}
	}
	return nil
}

func (s *bookingService) Confirm(ctx context.Context, actor entity.Actor, bookingID string, req *request.VersionRequest) (*response.BookingResponse, error) {
	return s.Apply(ctx, actor, bookingID, &request.BookingCommandRequest{
		Command:         string(entity.BookingCmdProviderConfirm),
		ExpectedVersion: req.ExpectedVersion,
	})
}

func (s *bookingService) CheckIn(ctx context.Context, actor entity.Actor, bookingID string, req *request.CheckInRequest) (*response.BookingResponse, error) {
	if err := validate("check in", req); err != nil {
		return nil, err
	}
	return s.Apply(ctx, actor, bookingID, &request.BookingCommandRequest{
		Command:         string(entity.BookingCmdCheckIn),
		ExpectedVersion: req.ExpectedVersion,
		OTP:             req.OTP,
		Lat:             req.Lat,
		Lng:             req.Lng,
	})
}

func (s *bookingService) CheckOut(ctx context.Context, actor entity.Actor, bookingID string, req *request.EvidenceRequest) (*response.BookingResponse, error) {
	return s.Apply(ctx, actor, bookingID, &request.BookingCommandRequest{
		Command:         string(entity.BookingCmdCheckOut),
		ExpectedVersion: req.ExpectedVersion,
		Notes:           req.Notes,
		Media:           req.Media,
	})
}

func (s *bookingService) ReportCompletion(ctx context.Context, actor entity.Actor, bookingID string, req *request.EvidenceRequest) (*response.BookingResponse, error) {
	return s.Apply(ctx, actor, bookingID, &request.BookingCommandRequest{
		Command:         string(entity.BookingCmdReportCompletion),
		ExpectedVersion: req.ExpectedVersion,
		Notes:           req.Notes,
		Media:           req.Media,
	})
}

func (s *bookingService) Cancel(ctx context.Context, actor entity.Actor, bookingID string, req *request.CancelBookingRequest) (*response.BookingResponse, error) {
	return s.Apply(ctx, actor, bookingID, &request.BookingCommandRequest{
		Command:         string(entity.BookingCmdCancel),
		ExpectedVersion: req.ExpectedVersion,
		Reason:          req.Reason,
	})
}

func (s *bookingService) GetTimeline(ctx context.Context, actor entity.Actor, bookingID, scope string) ([]response.AuditEntryResponse, error) {
	const op = "get timeline"

	if scope != "" && scope != "booking" && scope != "all" {
		return nil, apperr.Validation(op, map[string]string{"scope": "Must be one of: booking, all"})
	}
	booking, err := s.readableBooking(ctx, op, actor, bookingID)
	if err != nil {
		return nil, err
	}

	var entries []*entity.AuditEntry
	if scope == "all" {
		entries, err = s.audit.BookingTimeline(ctx, booking.ID)
	} else {
		entries, err = s.audit.Timeline(ctx, booking.ID)
	}
	if err != nil {
		return nil, err
	}
	return response.AuditEntriesToResponse(entries), nil
}
