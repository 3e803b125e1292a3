package adaptor

import (
	"net/http"

	"service-engagement/internal/dto/request"
	"service-engagement/internal/usecase"
	"service-engagement/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type EscrowHandler struct {
	service usecase.EscrowService
	log     *zap.Logger
}

func NewEscrowHandler(service usecase.EscrowService, log *zap.Logger) *EscrowHandler {
	return &EscrowHandler{
		service: service,
		log:     log.With(zap.String("handler", "escrow")),
	}
}

// CreateHold handles POST /api/bookings/{id}/escrow
func (h *EscrowHandler) CreateHold(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.CreateHoldRequest
	if !decodeBody(w, r, &req) {
		return
	}

	hold, err := h.service.CreateHold(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, h.log, err, "create hold")
		return
	}

	utils.ResponseCreated(w, "success", hold)
}

// GetStatus handles GET /api/bookings/{id}/escrow
func (h *EscrowHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	hold, err := h.service.GetStatus(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err, "get escrow status")
		return
	}

	utils.ResponseSuccess(w, "success", hold)
}

// ==================== ADMIN METHODS ====================

// Release handles POST /api/admin/bookings/{id}/escrow/release
func (h *EscrowHandler) Release(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	hold, err := h.service.Release(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err, "release escrow")
		return
	}

	utils.ResponseSuccess(w, "success", hold)
}

// Freeze handles POST /api/admin/bookings/{id}/escrow/freeze
func (h *EscrowHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.FreezeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	hold, err := h.service.Freeze(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, h.log, err, "freeze escrow")
		return
	}

	utils.ResponseSuccess(w, "success", hold)
}

// Refund handles POST /api/admin/bookings/{id}/escrow/refund
func (h *EscrowHandler) Refund(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.RefundRequest
	if !decodeBody(w, r, &req) {
		return
	}

	hold, err := h.service.Refund(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, h.log, err, "refund escrow")
		return
	}

	utils.ResponseSuccess(w, "success", hold)
}
