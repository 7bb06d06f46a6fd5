package config

import (
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

var loadEnvOnce sync.Once

// Config reads a single key from .env / the environment.
func Config(key string) string {
	loadEnvOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})
	return os.Getenv(key)
}

// AppConfig is the typed snapshot the wired services receive, so the core
// never reaches into the environment itself.
type AppConfig struct {
	Port                   string
	DatabaseURL            string
	JWTSecret              string
	RedisAddr              string
	RedisPassword          string
	StripeKey              string
	StripeWebhookSecret    string
	CheckoutSuccessURL     string
	CheckoutCancelURL      string
	PlatformCommissionRate float64
}

func Load() AppConfig {
	rate, err := strconv.ParseFloat(Config("PLATFORM_COMMISSION_RATE"), 64)
	if err != nil || rate < 0 || rate >= 1 {
		log.Println("Warning: invalid PLATFORM_COMMISSION_RATE, defaulting to 0.15")
		rate = 0.15
	}

	port := Config("PORT")
	if port == "" {
		port = "8080"
	}

	return AppConfig{
		Port:                   port,
		DatabaseURL:            Config("DATABASE_URL"),
		JWTSecret:              Config("JWT_SECRET"),
		RedisAddr:              Config("REDIS_ADDR"),
		RedisPassword:          Config("REDIS_PASSWORD"),
		StripeKey:              Config("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:    Config("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:     Config("CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:      Config("CHECKOUT_CANCEL_URL"),
		PlatformCommissionRate: rate,
	}
}
