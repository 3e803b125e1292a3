package wire

import (
	"service-engagement/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

// wireBooking expects r to be behind Auth. Escrow and rectification routes
// share the /api/bookings/{id} prefix, so nothing here is mounted.
func wireBooking(r chi.Router, h *adaptor.BookingHandler) {
	r.Post("/api/bookings", h.Create)
	r.Get("/api/bookings", h.List)
	r.Get("/api/bookings/{id}", h.Get)
	r.Get("/api/bookings/{id}/timeline", h.Timeline)

	// generic command endpoint; the named routes below are shorthands
	r.Post("/api/bookings/{id}/status", h.Apply)
	r.Post("/api/bookings/{id}/confirm", h.Confirm)
	r.Post("/api/bookings/{id}/check-in", h.CheckIn)
	r.Post("/api/bookings/{id}/check-out", h.CheckOut)
	r.Post("/api/bookings/{id}/complete", h.ReportCompletion)
	r.Post("/api/bookings/{id}/cancel", h.Cancel)
}
