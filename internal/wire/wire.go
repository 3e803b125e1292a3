package wire

import (
	"net/http"

	"service-engagement/internal/adaptor"
	"service-engagement/internal/data/repository"
	"service-engagement/internal/usecase"
	"service-engagement/internal/worker"
	"service-engagement/pkg/middleware"
	"service-engagement/pkg/mq"
	"service-engagement/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// App holds the assembled dependencies.
type App struct {
	Router    *chi.Mux
	Service   *usecase.Service
	Scheduler *worker.Scheduler
}

// Wiring builds the engine, its HTTP surface and the background scheduler.
func Wiring(store repository.Store, publisher mq.Publisher, config *utils.Config, logger *zap.Logger, opts ...usecase.EngineOption) *App {
	service := usecase.NewService(store, config, logger, opts...)
	handler := adaptor.NewHandler(service, logger)

	dispatcher := worker.NewOutboxDispatcher(store.Repos().Outbox, publisher, config.Worker.OutboxBatch, logger)
	scheduler := worker.NewScheduler(service.Timer, dispatcher, config.Worker, logger)

	return &App{
		Router:    setupRouter(handler, config, logger),
		Service:   service,
		Scheduler: scheduler,
	}
}

func setupRouter(handler *adaptor.Handler, config *utils.Config, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(config.App.CORSOrigins))
	r.Use(middleware.RateLimit(config.RateLimit.RPS, config.RateLimit.Burst, config.RateLimit.TrustedProxies, logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(config.JWT.Secret, config.JWT.Issuer, logger))

		wireBooking(r, handler.Booking)
		wireEscrow(r, handler.Escrow, logger)
		wireRectification(r, handler.Rectification, logger)
	})

	return r
}
