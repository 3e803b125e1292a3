package wire

import (
	"service-engagement/internal/adaptor"
	"service-engagement/internal/data/entity"
	"service-engagement/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireEscrow(r chi.Router, h *adaptor.EscrowHandler, log *zap.Logger) {
	r.Post("/api/bookings/{id}/escrow", h.CreateHold)
	r.Get("/api/bookings/{id}/escrow", h.GetStatus)

	// ==================== ADMIN ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(log, entity.RoleAdmin))

		r.Post("/api/admin/bookings/{id}/escrow/release", h.Release)
		r.Post("/api/admin/bookings/{id}/escrow/freeze", h.Freeze)
		r.Post("/api/admin/bookings/{id}/escrow/refund", h.Refund)
	})
}
