// cmd/consumer drains the per-event-type queues and runs the domain event
// handlers out of process, so notification and promotion work keeps flowing
// even when the API replica that produced the events is gone.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/lib/pq"

	"eventbooking/config"
	"eventbooking/internal/adapters/email"
	"eventbooking/internal/adapters/queue"
	"eventbooking/internal/dispatch"
	"eventbooking/internal/domain"
	"eventbooking/internal/outbox"
	"eventbooking/internal/repository/postgres"
	"eventbooking/internal/services"
)

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

	eventRepo := postgres.NewEventRepository(db)
	regRepo := postgres.NewEventRegistrationRepository(db)
	userRepo := postgres.NewUserRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	txManager := postgres.NewTxManager(db)

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

	dispatcher := dispatch.New(logger)
	waitlistSvc := services.NewWaitlistService(eventRepo, regRepo, outboxRepo, txManager, dispatcher)
	notifier := services.NewEmailNotifier(mailer, email.NewTemplateRenderer(), userRepo, logger)
	handlers := &dispatch.Handlers{
		Notifier: notifier,
		Waitlist: waitlistSvc,
		RegRepo:  regRepo,
		Logger:   logger,
	}
	handlers.RegisterAll(dispatcher)

	sqsCfg := queue.SQSConfig{
		Region:          cfg.Queue.Region,
		AccessKeyID:     cfg.Queue.AccessKeyID,
		SecretAccessKey: cfg.Queue.SecretAccessKey,
		Endpoint:        cfg.Queue.Endpoint,
		QueuePrefix:     cfg.Queue.QueuePrefix,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One long-polling consumer per event type queue.
	var wg sync.WaitGroup
	for _, eventType := range domain.AllEventTypes() {
		receiver := queue.NewReceiver(sqsCfg, eventType)
		consumer := outbox.NewConsumer(receiver, dispatcher, logger.With("queue", queue.QueueName(sqsCfg, eventType)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(ctx)
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
	logger.Info("consumer stopped")
}
