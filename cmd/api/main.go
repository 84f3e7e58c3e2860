// cmd/api is the HTTP server entry point. It wires together the repositories,
// services, dispatch pipeline, outbox processor, and retention job.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"eventbooking/config"
	_ "eventbooking/docs"
	"eventbooking/internal/adapters/auth"
	"eventbooking/internal/adapters/email"
	"eventbooking/internal/adapters/queue"
	"eventbooking/internal/delivery/http/controllers"
	"eventbooking/internal/delivery/http/middleware"
	"eventbooking/internal/dispatch"
	"eventbooking/internal/jobs"
	"eventbooking/internal/outbox"
	"eventbooking/internal/repository/postgres"
	"eventbooking/internal/services"

	httpdelivery "eventbooking/internal/delivery/http"
)

const bcryptCost = 10

// @title Event Booking API
// @version 1.0
// @description Event registration platform with capacity-bounded admission and FIFO waitlists.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}
	logger := config.NewLogger()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Error("ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Repositories
	eventRepo := postgres.NewEventRepository(db)
	regRepo := postgres.NewEventRegistrationRepository(db)
	userRepo := postgres.NewUserRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	txManager := postgres.NewTxManager(db)

	// Adapters
	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Mailer.Provider,
		FromAddress: cfg.Mailer.FromAddress,
		FromName:    cfg.Mailer.FromName,
		SES: email.SESConfig{
			Region:             cfg.Mailer.SESRegion,
			AccessKeyID:        cfg.Mailer.SESAccessKeyID,
			SecretAccessKey:    cfg.Mailer.SESSecretAccessKey,
			InsecureSkipVerify: cfg.Mailer.SESInsecureTLS,
		},
	}, logger)
	if err != nil {
		logger.Error("create mailer", "error", err)
		os.Exit(1)
	}
	renderer := email.NewTemplateRenderer()
	jwtManager := auth.NewJWTManager(cfg.JWTSecret)
	hasher := auth.NewBcryptHasher(bcryptCost)

	// Dispatch pipeline
	dispatcher := dispatch.New(logger)
	waitlistSvc := services.NewWaitlistService(eventRepo, regRepo, outboxRepo, txManager, dispatcher)
	notifier := services.NewEmailNotifier(mailer, renderer, userRepo, logger)
	handlers := &dispatch.Handlers{
		Notifier: notifier,
		Waitlist: waitlistSvc,
		RegRepo:  regRepo,
		Logger:   logger,
	}
	handlers.RegisterAll(dispatcher)

	// Services
	authSvc := services.NewAuthService(userRepo, roleRepo, hasher, jwtManager, cfg.JWTExpiry)
	eventSvc := services.NewEventService(eventRepo, outboxRepo, txManager, dispatcher, cfg.ContextTimeout)
	regSvc := services.NewRegistrationService(eventRepo, regRepo, userRepo, outboxRepo, txManager, dispatcher, cfg.ContextTimeout)

	// HTTP
	mux := httpdelivery.NewRouter(
		controllers.NewAuthController(authSvc),
		controllers.NewEventController(logger, eventSvc),
		controllers.NewRegistrationController(logger, regSvc),
		jwtManager,
	)
	handler := middleware.CORS(cfg.AllowedOrigins, middleware.LoggingMiddleware(logger, mux))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background workers
	publisher := queue.NewPublisher(queue.SQSConfig{
		Region:          cfg.Queue.Region,
		AccessKeyID:     cfg.Queue.AccessKeyID,
		SecretAccessKey: cfg.Queue.SecretAccessKey,
		Endpoint:        cfg.Queue.Endpoint,
		QueuePrefix:     cfg.Queue.QueuePrefix,
	}, logger)
	processor := outbox.NewProcessor(outboxRepo, publisher, "api-"+uuid.NewString(), logger,
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithMaxRetries(cfg.Outbox.MaxRetries),
		outbox.WithPollInterval(cfg.Outbox.PollInterval),
	)
	go processor.Run(ctx)

	retention := jobs.NewRetention(regRepo, outboxRepo, logger,
		cfg.Retention.Interval, cfg.Retention.CancelledTTL, cfg.Retention.ProcessedOutboxTTL)
	go retention.Run(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
