package adaptor

import (
	"net/http"

	"service-engagement/internal/dto/request"
	"service-engagement/internal/usecase"
	"service-engagement/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service usecase.BookingService
	log     *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log.With(zap.String("handler", "booking")),
	}
}

// Create handles POST /api/bookings
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.CreateBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	booking, err := h.service.Create(r.Context(), actor, &req)
	if err != nil {
		writeError(w, h.log, err, "create booking")
		return
	}

	utils.ResponseCreated(w, "success", booking)
}

// List handles GET /api/bookings
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	req := &request.ListBookingsRequest{
		PaginatedRequest: request.PaginatedRequest{
			Page:    utils.ParseInt(query.Get("page"), 1),
			PerPage: utils.ParseInt(query.Get("per_page"), 10),
		},
		Status:      query.Get("status"),
		CategoryTag: query.Get("category"),
		As:          query.Get("as"),
	}

	bookings, err := h.service.List(r.Context(), actor, req)
	if err != nil {
		writeError(w, h.log, err, "list bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// Get handles GET /api/bookings/{id}
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	booking, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err, "get booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// Apply handles POST /api/bookings/{id}/status
func (h *BookingHandler) Apply(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.BookingCommandRequest
	if !decodeBody(w, r, &req) {
		return
	}

	booking, err := h.service.Apply(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, h.log, err, "apply booking command")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// Confirm handles POST /api/bookings/{id}/confirm
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.VersionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	booking, err := h.service.Confirm(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, h.log, err, "confirm booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// CheckIn handles POST /api/bookings/{id}/check-in
func (h *BookingHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.CheckInRequest
	if !decodeBody(w, r, &req) {
		return
	}

	booking, err := h.service.CheckIn(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, h.log, err, "check in")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// CheckOut handles POST /api/bookings/{id}/check-out
func (h *BookingHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.EvidenceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	booking, err := h.service.CheckOut(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, h.log, err, "check out")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// ReportCompletion handles POST /api/bookings/{id}/complete
func (h *BookingHandler) ReportCompletion(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.EvidenceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	booking, err := h.service.ReportCompletion(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, h.log, err, "report completion")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// Cancel handles POST /api/bookings/{id}/cancel
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.CancelBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	booking, err := h.service.Cancel(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, h.log, err, "cancel booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// Timeline handles GET /api/bookings/{id}/timeline?scope=all
func (h *BookingHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	entries, err := h.service.GetTimeline(r.Context(), actor, chi.URLParam(r, "id"), r.URL.Query().Get("scope"))
	if err != nil {
		writeError(w, h.log, err, "get timeline")
		return
	}

	utils.ResponseSuccess(w, "success", entries)
}
