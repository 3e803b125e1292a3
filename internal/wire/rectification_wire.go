package wire

import (
	"service-engagement/internal/adaptor"
	"service-engagement/internal/data/entity"
	"service-engagement/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireRectification(r chi.Router, h *adaptor.RectificationHandler, log *zap.Logger) {
	r.Post("/api/bookings/{id}/rectifications", h.Report)
	r.Get("/api/bookings/{id}/rectifications", h.ListByBooking)

	r.Get("/api/rectifications/{id}", h.Get)
	r.Post("/api/rectifications/{id}/respond", h.Respond)
	r.Post("/api/rectifications/{id}/fix-complete", h.FixComplete)
	r.Post("/api/rectifications/{id}/resolve", h.Resolve)
	r.Post("/api/rectifications/{id}/escalate", h.Escalate)

	// ==================== ADMIN ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(log, entity.RoleAdmin))

		r.Get("/api/admin/rectifications", h.ListAll)
		r.Post("/api/admin/rectifications/{id}/rule", h.Rule)
	})
}
