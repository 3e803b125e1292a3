package adaptor

import (
	"net/http"

	"service-engagement/internal/dto/request"
	"service-engagement/internal/usecase"
	"service-engagement/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RectificationHandler struct {
	service usecase.RectificationService
	log     *zap.Logger
}

func NewRectificationHandler(service usecase.RectificationService, log *zap.Logger) *RectificationHandler {
	return &RectificationHandler{
		service: service,
		log:     log.With(zap.String("handler", "rectification")),
	}
}

// Report handles POST /api/bookings/{id}/rectifications
func (h *RectificationHandler) Report(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.ReportRectificationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rect, err := h.service.Report(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, h.log, err, "report rectification")
		return
	}

	utils.ResponseCreated(w, "success", rect)
}

// ListByBooking handles GET /api/bookings/{id}/rectifications
func (h *RectificationHandler) ListByBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	rects, err := h.service.ListByBooking(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err, "list rectifications")
		return
	}

	utils.ResponseSuccess(w, "success", rects)
}

// Get handles GET /api/rectifications/{id}
func (h *RectificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	rect, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err, "get rectification")
		return
	}

	utils.ResponseSuccess(w, "success", rect)
}

// Respond handles POST /api/rectifications/{id}/respond
func (h *RectificationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.ProviderRespondRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rect, err := h.service.ProviderRespond(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, h.log, err, "provider respond")
		return
	}

	utils.ResponseSuccess(w, "success", rect)
}

// FixComplete handles POST /api/rectifications/{id}/fix-complete
func (h *RectificationHandler) FixComplete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.FixCompleteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rect, err := h.service.ConfirmFixComplete(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, h.log, err, "confirm fix complete")
		return
	}

	utils.ResponseSuccess(w, "success", rect)
}

// Resolve handles POST /api/rectifications/{id}/resolve
func (h *RectificationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.VersionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rect, err := h.service.ConfirmResolution(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, h.log, err, "confirm resolution")
		return
	}

	utils.ResponseSuccess(w, "success", rect)
}

// Escalate handles POST /api/rectifications/{id}/escalate
func (h *RectificationHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.EscalateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rect, err := h.service.Escalate(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, h.log, err, "escalate rectification")
		return
	}

	utils.ResponseSuccess(w, "success", rect)
}

// ==================== ADMIN METHODS ====================

// Rule handles POST /api/admin/rectifications/{id}/rule
func (h *RectificationHandler) Rule(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.AdminRuleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rect, err := h.service.AdminRule(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, h.log, err, "admin rule")
		return
	}

	utils.ResponseSuccess(w, "success", rect)
}

// ListAll handles GET /api/admin/rectifications
func (h *RectificationHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	req := &request.ListRectificationsRequest{
		PaginatedRequest: request.PaginatedRequest{
			Page:    utils.ParseInt(query.Get("page"), 1),
			PerPage: utils.ParseInt(query.Get("per_page"), 10),
		},
		Status: query.Get("status"),
	}

	rects, err := h.service.ListAll(r.Context(), actor, req)
	if err != nil {
		writeError(w, h.log, err, "list rectifications")
		return
	}

	utils.ResponseSuccess(w, "success", rects)
}
