/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payments service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	AuthJWKSURL          string `mapstructure:"AUTH_JWKS_URL"`

	StorefrontBaseURL   string `mapstructure:"STOREFRONT_BASE_URL"`
	TicketingServiceURL string `mapstructure:"TICKETING_SERVICE_URL"`
	InternalAPIKey      string `mapstructure:"INTERNAL_API_KEY"`

	StripeWebhookSecret  string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	PaystackSecretKey    string `mapstructure:"PAYSTACK_SECRET_KEY"`
	FlutterwaveVerifHash string `mapstructure:"FLUTTERWAVE_VERIF_HASH"`
	PayPalCredentials    string `mapstructure:"PAYPAL_CREDENTIALS"`
	PayPalWebhookID      string `mapstructure:"PAYPAL_WEBHOOK_ID"`
	PayPalUseSandbox     bool   `mapstructure:"PAYPAL_USE_SANDBOX"`

	ResendAPIKey          string `mapstructure:"RESEND_API_KEY"`
	EmailFromAddress      string `mapstructure:"EMAIL_FROM_ADDRESS"`
	TermiiAPIKey          string `mapstructure:"TERMII_API_KEY"`
	TermiiSenderID        string `mapstructure:"TERMII_SENDER_ID"`
	WhatsAppAccessToken   string `mapstructure:"WHATSAPP_ACCESS_TOKEN"`
	WhatsAppPhoneNumberID string `mapstructure:"WHATSAPP_PHONE_NUMBER_ID"`
	TelegramBotToken      string `mapstructure:"TELEGRAM_BOT_TOKEN"`

	ReminderCronSpec string `mapstructure:"REMINDER_CRON_SPEC"`
	ExpiryCronSpec   string `mapstructure:"EXPIRY_CRON_SPEC"`
	DripCronSpec     string `mapstructure:"DRIP_CRON_SPEC"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "ticketrack:rate_limit")
	viper.SetDefault("STOREFRONT_BASE_URL", "https://ticketrack.app")
	viper.SetDefault("EMAIL_FROM_ADDRESS", "Ticketrack <tickets@mg.ticketrack.app>")
	viper.SetDefault("TERMII_SENDER_ID", "Ticketrack")
	viper.SetDefault("PAYPAL_USE_SANDBOX", false)
	viper.SetDefault("REMINDER_CRON_SPEC", "0 * * * *")
	viper.SetDefault("EXPIRY_CRON_SPEC", "*/10 * * * *")
	viper.SetDefault("DRIP_CRON_SPEC", "*/5 * * * *")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "PAYMENTS_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("STOREFRONT_BASE_URL")
	_ = viper.BindEnv("TICKETING_SERVICE_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "PAYMENTS_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("STRIPE_WEBHOOK_SECRET")
	_ = viper.BindEnv("PAYSTACK_SECRET_KEY")
	_ = viper.BindEnv("FLUTTERWAVE_VERIF_HASH")
	_ = viper.BindEnv("PAYPAL_CREDENTIALS")
	_ = viper.BindEnv("PAYPAL_WEBHOOK_ID")
	_ = viper.BindEnv("PAYPAL_USE_SANDBOX")
	_ = viper.BindEnv("RESEND_API_KEY")
	_ = viper.BindEnv("EMAIL_FROM_ADDRESS")
	_ = viper.BindEnv("TERMII_API_KEY")
	_ = viper.BindEnv("TERMII_SENDER_ID")
	_ = viper.BindEnv("WHATSAPP_ACCESS_TOKEN")
	_ = viper.BindEnv("WHATSAPP_PHONE_NUMBER_ID")
	_ = viper.BindEnv("TELEGRAM_BOT_TOKEN")
	_ = viper.BindEnv("REMINDER_CRON_SPEC")
	_ = viper.BindEnv("EXPIRY_CRON_SPEC")
	_ = viper.BindEnv("DRIP_CRON_SPEC")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("PAYMENTS_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "ticketrack:rate_limit"
	}
	config.StorefrontBaseURL = strings.TrimRight(strings.TrimSpace(config.StorefrontBaseURL), "/")

	return
}
