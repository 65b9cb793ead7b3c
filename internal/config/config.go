package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// API is the main backend configuration.
type API struct {
	Port          string
	MongoURI      string
	MongoDatabase string

	AuthJWTSecret string
	AuthAPIURL    string
	AuthSecretKey string

	PaymentServiceURL    string
	InternalServiceToken string

	GroqAPIKey  string
	GroqBaseURL string
	GroqModel   string
	HFAPIToken  string
	HFAPIURL    string

	HotelMLURL    string
	HospitalMLURL string
	YogaMLURL     string

	RedisURL       string
	TextbeltAPIKey string
	CORSOrigins    []string

	HTTPTimeout       time.Duration
	ReconcileInterval time.Duration
	PendingBookingTTL time.Duration
	LogLevel          string

	// per client IP, requests per minute on chat and payment routes
	RateLimitPerMinute int
	RateLimitBurst     int
}

// Payment is the payment microservice configuration.
type Payment struct {
	Port string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string

	StripeSecretKey      string
	StripePublishableKey string
	StripeWebhookSecret  string

	BackendURL           string
	InternalServiceToken string
	DatabaseURL          string

	HTTPTimeout time.Duration
	CORSOrigins []string
	LogLevel    string
}

func loadDotenv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}
}

func LoadAPI() (*API, error) {
	loadDotenv()
	cfg := &API{
		Port:                 env("API_PORT", "5000"),
		MongoURI:             env("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:        env("MONGO_DATABASE", "healtrip"),
		AuthJWTSecret:        os.Getenv("AUTH_JWT_SECRET"),
		AuthAPIURL:           env("AUTH_API_URL", "https://api.clerk.com"),
		AuthSecretKey:        os.Getenv("AUTH_SECRET_KEY"),
		PaymentServiceURL:    env("PAYMENT_SERVICE_URL", "http://localhost:5001"),
		InternalServiceToken: os.Getenv("INTERNAL_SERVICE_TOKEN"),
		GroqAPIKey:           os.Getenv("GROQ_API_KEY"),
		GroqBaseURL:          env("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqModel:            env("GROQ_MODEL", "llama-3.3-70b-versatile"),
		HFAPIToken:           os.Getenv("HF_API_TOKEN"),
		HFAPIURL:             env("HF_API_URL", "https://api-inference.huggingface.co/models/mistralai/Mistral-7B-Instruct-v0.2"),
		HotelMLURL:           env("HOTEL_ML_URL", "http://localhost:8000"),
		HospitalMLURL:        env("HOSPITAL_ML_URL", "http://localhost:8001"),
		YogaMLURL:            env("YOGA_ML_URL", "http://localhost:8002"),
		RedisURL:             os.Getenv("REDIS_URL"),
		TextbeltAPIKey:       os.Getenv("TEXTBELT_API_KEY"),
		CORSOrigins:          splitList(env("CORS_ORIGINS", "http://localhost:5173")),
		LogLevel:             env("LOG_LEVEL", "info"),
	}
	if cfg.AuthJWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if cfg.InternalServiceToken == "" {
		return nil, fmt.Errorf("INTERNAL_SERVICE_TOKEN is required")
	}

	var err error
	if cfg.HTTPTimeout, err = duration("HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = duration("RECONCILE_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PendingBookingTTL, err = duration("PENDING_BOOKING_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = integer("RATE_LIMIT_PER_MINUTE", 30); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = integer("RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadPayment() (*Payment, error) {
	loadDotenv()
	cfg := &Payment{
		Port:                  env("PORT", "5001"),
		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		StripeSecretKey:       os.Getenv("STRIPE_SECRET_KEY"),
		StripePublishableKey:  os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		StripeWebhookSecret:   os.Getenv("STRIPE_WEBHOOK_SECRET"),
		BackendURL:            env("BACKEND_URL", "http://localhost:5000"),
		InternalServiceToken:  os.Getenv("INTERNAL_SERVICE_TOKEN"),
		DatabaseURL:           os.Getenv("PAYMENT_DATABASE_URL"),
		CORSOrigins:           splitList(env("CORS_ORIGINS", "http://localhost:5173")),
		LogLevel:              env("LOG_LEVEL", "info"),
	}
	if cfg.InternalServiceToken == "" {
		return nil, fmt.Errorf("INTERNAL_SERVICE_TOKEN is required")
	}
	var err error
	if cfg.HTTPTimeout, err = duration("HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	return cfg, nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func integer(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
