/**
 * @description
 * This is the main entry point for the payments service HTTP server. It wires
 * together the configuration, the database pool, the gateway provider
 * registry, the messaging channels, the RabbitMQ producer, and the HTTP
 * router, then starts listening.
 *
 * @dependencies
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/payments and its gateway clients: Hosted checkout integrations.
 * - pkg/messaging and its channel clients: Outbound notifications.
 * - github.com/jackc/pgx/v5/pgxpool: PostgreSQL connection pooling.
 * - github.com/joho/godotenv: For loading .env files during local development.
 */
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ticketrack/payments-service/internal/api"
	"github.com/ticketrack/payments-service/internal/app"
	"github.com/ticketrack/payments-service/internal/config"
	"github.com/ticketrack/payments-service/internal/store"
	"github.com/ticketrack/payments-service/pkg/messaging"
	"github.com/ticketrack/payments-service/pkg/messaging/resendclient"
	"github.com/ticketrack/payments-service/pkg/messaging/telegramclient"
	"github.com/ticketrack/payments-service/pkg/messaging/termiiclient"
	"github.com/ticketrack/payments-service/pkg/messaging/whatsappclient"
	"github.com/ticketrack/payments-service/pkg/payments"
	"github.com/ticketrack/payments-service/pkg/payments/flutterwaveclient"
	"github.com/ticketrack/payments-service/pkg/payments/paypalclient"
	"github.com/ticketrack/payments-service/pkg/payments/paystackclient"
	"github.com/ticketrack/payments-service/pkg/payments/stripeclient"
	"github.com/ticketrack/payments-service/pkg/rabbitmq"
	"github.com/ticketrack/payments-service/pkg/ticketing"
)

func main() {
	// Load .env file for local development. In production, variables are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found, reading environment\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting payments-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish events. The service degrades
	// to a no-op producer when the broker is unavailable.
	var producer rabbitmq.Publisher
	eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rabbitmq.NoOpProducer{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Register the hosted checkout providers. Gateway secret keys live in the
	// database per country; the registry builds a client per request.
	registry := payments.NewRegistry()
	registry.Register("stripe", func(secretKey string) payments.CheckoutProvider {
		return stripeclient.NewClient(secretKey)
	})
	registry.Register("paystack", func(secretKey string) payments.CheckoutProvider {
		return paystackclient.NewClient(secretKey)
	})
	registry.Register("flutterwave", func(secretKey string) payments.CheckoutProvider {
		return flutterwaveclient.NewClient(secretKey)
	})
	registry.Register("paypal", func(secretKey string) payments.CheckoutProvider {
		if cfg.PayPalUseSandbox {
			return paypalclient.NewSandboxClient(secretKey)
		}
		return paypalclient.NewClient(secretKey)
	})

	// Multi-channel messaging dispatcher.
	dispatcher := messaging.NewDispatcher()
	if cfg.ResendAPIKey != "" {
		dispatcher.Register(resendclient.NewClient(cfg.ResendAPIKey, cfg.EmailFromAddress))
	} else {
		log.Println("level=warn component=bootstrap msg=\"resend api key missing; email channel disabled\" env=RESEND_API_KEY")
	}
	if cfg.TermiiAPIKey != "" {
		dispatcher.Register(termiiclient.NewClient(cfg.TermiiAPIKey, cfg.TermiiSenderID))
	}
	if cfg.WhatsAppAccessToken != "" && cfg.WhatsAppPhoneNumberID != "" {
		dispatcher.Register(whatsappclient.NewClient(cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneNumberID))
	}
	if cfg.TelegramBotToken != "" {
		dispatcher.Register(telegramclient.NewClient(cfg.TelegramBotToken))
	}
	log.Printf("level=info component=bootstrap msg=\"messaging channels registered\" channels=%v", dispatcher.Channels())

	ticketingClient := ticketing.NewClient(cfg.TicketingServiceURL, cfg.InternalAPIKey)

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	paymentService := app.NewService(repository, registry, ticketingClient, dispatcher, producer, cfg.StorefrontBaseURL)

	// Redis-backed checkout rate limiting degrades gracefully when Redis is
	// unreachable.
	var rateLimiter api.RateLimiter
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; checkout rate limiting disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; checkout rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; checkout rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				rateLimiter = app.NewRedisCheckoutRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the API handlers.
	paymentHandlers := api.NewPaymentHandlers(paymentService, rateLimiter)

	var paypalVerifier *paypalclient.Client
	if cfg.PayPalCredentials != "" {
		if cfg.PayPalUseSandbox {
			paypalVerifier = paypalclient.NewSandboxClient(cfg.PayPalCredentials)
		} else {
			paypalVerifier = paypalclient.NewClient(cfg.PayPalCredentials)
		}
	}
	webhookHandlers := api.NewWebhookHandlers(paymentService, api.WebhookSecrets{
		StripeSigningSecret: cfg.StripeWebhookSecret,
		PaystackSecretKey:   cfg.PaystackSecretKey,
		FlutterwaveHash:     cfg.FlutterwaveVerifHash,
		PayPalWebhookID:     cfg.PayPalWebhookID,
	}, paypalVerifier)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/payments", api.PaymentRoutes(paymentHandlers, webhookHandlers, cfg.AuthJWKSURL, cfg.InternalAPIKey))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		log.Fatalf("level=fatal component=http msg=\"server stopped\" err=%v", err)
	}
}
