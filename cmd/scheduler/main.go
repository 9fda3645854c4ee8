/**
 * @description
 * This is the main entry point for the payments scheduler.
 * This process is a non-HTTP, long-running worker that executes scheduled
 * tasks (cron jobs): payment reminders, the split payment expiry sweep, and
 * the drip campaign runner. It initializes the configuration, database
 * connection, and the cron scheduler, then starts it.
 */
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/ticketrack/payments-service/internal/app"
	"github.com/ticketrack/payments-service/internal/config"
	"github.com/ticketrack/payments-service/internal/store"
	"github.com/ticketrack/payments-service/pkg/messaging"
	"github.com/ticketrack/payments-service/pkg/messaging/resendclient"
	"github.com/ticketrack/payments-service/pkg/messaging/termiiclient"
	"github.com/ticketrack/payments-service/pkg/messaging/whatsappclient"
	"github.com/ticketrack/payments-service/pkg/payments"
	"github.com/ticketrack/payments-service/pkg/rabbitmq"
	"github.com/ticketrack/payments-service/pkg/ticketing"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, reading environment")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Establish database connection with connection pool configuration
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	var producer rabbitmq.Publisher
	eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		logger.Warn("rabbitmq producer unavailable, using fallback", "error", err)
		producer = &rabbitmq.NoOpProducer{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
	}

	dispatcher := messaging.NewDispatcher()
	if cfg.ResendAPIKey != "" {
		dispatcher.Register(resendclient.NewClient(cfg.ResendAPIKey, cfg.EmailFromAddress))
	} else {
		logger.Warn("resend api key missing, email channel disabled")
	}
	if cfg.TermiiAPIKey != "" {
		dispatcher.Register(termiiclient.NewClient(cfg.TermiiAPIKey, cfg.TermiiSenderID))
	}
	if cfg.WhatsAppAccessToken != "" && cfg.WhatsAppPhoneNumberID != "" {
		dispatcher.Register(whatsappclient.NewClient(cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneNumberID))
	}

	// Initialize dependencies
	repository := store.NewPostgresRepository(dbpool)
	ticketingClient := ticketing.NewClient(cfg.TicketingServiceURL, cfg.InternalAPIKey)
	// The scheduler never creates checkout sessions, so the registry stays empty.
	service := app.NewService(repository, payments.NewRegistry(), ticketingClient, dispatcher, producer, cfg.StorefrontBaseURL)
	jobs := app.NewJobs(service, logger)
	scheduler := app.NewScheduler(jobs, logger, cfg)

	// Start the cron scheduler in the background
	scheduler.Start()
	logger.Info("scheduler started")

	// Wait for termination signal to gracefully shut down
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping scheduler")
	stopCtx := scheduler.Stop()
	<-stopCtx.Done() // Wait for scheduler to fully stop
	logger.Info("scheduler stopped gracefully")
}
