package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"service-engagement/cmd"
	"service-engagement/internal/data/memstore"
	"service-engagement/internal/data/repository"
	"service-engagement/internal/wire"
	"service-engagement/pkg/database"
	"service-engagement/pkg/mq"
	"service-engagement/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.String("store", config.App.StoreDriver),
		zap.Bool("debug", config.App.Debug),
	)

	if config.JWT.Secret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store repository.Store
	switch config.App.StoreDriver {
	case utils.StoreDriverMemory:
		logger.Warn("Using in-memory store; state is lost on restart")
		store = memstore.New(nil)
	default:
		db, err := database.InitDB(config.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		logger.Info("Database connected successfully")

		if config.Database.AutoMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				logger.Fatal("Failed to apply migrations", zap.Error(err))
			}
			logger.Info("Migrations applied")
		}
		store = repository.NewPostgresStore(db, logger)
	}

	var publisher mq.Publisher
	if config.AMQP.URL != "" {
		p, err := mq.NewAMQPPublisher(config.AMQP.URL, config.AMQP.Exchange, logger)
		if err != nil {
			logger.Fatal("Failed to connect to broker", zap.Error(err))
		}
		publisher = p
	} else {
		logger.Warn("AMQP_URL not set; events are written to the log")
		publisher = mq.NewLogPublisher(logger)
	}
	defer publisher.Close()

	app := wire.Wiring(store, publisher, config, logger)

	if err := app.Scheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	if err := cmd.APIServer(ctx, app.Router, config.App.Port, logger); err != nil {
		logger.Error("HTTP server stopped", zap.Error(err))
	}

	<-app.Scheduler.Stop().Done()
	logger.Info("Shutdown complete")
}
