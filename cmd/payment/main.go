package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/config"
	"github.com/healtrip/healtrip-api/internal/logging"
	"github.com/healtrip/healtrip-api/internal/middleware"
	"github.com/healtrip/healtrip-api/internal/payment"
)

func main() {
	cfg, err := config.LoadPayment()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ledger, closeLedger := openLedger(cfg, logger)
	defer closeLedger()

	h := &payment.Handler{
		Ledger: ledger,
		Relay:  payment.NewBackendNotifier(cfg.BackendURL, cfg.InternalServiceToken, cfg.HTTPTimeout, logger),
		Keys: payment.Keys{
			RazorpayKeyID:         cfg.RazorpayKeyID,
			RazorpayKeySecret:     cfg.RazorpayKeySecret,
			RazorpayWebhookSecret: cfg.RazorpayWebhookSecret,
			StripePublishableKey:  cfg.StripePublishableKey,
			StripeWebhookSecret:   cfg.StripeWebhookSecret,
		},
		Log: logger,
	}
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		h.Razorpay = payment.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	} else {
		logger.Warn("Razorpay credentials missing, Razorpay endpoints disabled")
	}
	if cfg.StripeSecretKey != "" {
		h.Stripe = payment.NewStripe(cfg.StripeSecretKey)
	} else {
		logger.Warn("Stripe credentials missing, Stripe endpoints disabled")
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Idempotency-Key", "X-Service-Token", "X-Request-ID"},
	}))
	r.GET("/health", h.Health)
	h.RegisterRoutes(r, cfg.InternalServiceToken)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("payment service listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}

// openLedger uses Postgres when PAYMENT_DATABASE_URL is set, else memory.
func openLedger(cfg *config.Payment, logger *zap.Logger) (payment.Ledger, func()) {
	if cfg.DatabaseURL == "" {
		logger.Info("payment ledger kept in memory")
		return payment.NewMemoryLedger(), func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open payment database", zap.Error(err))
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("payment database unreachable", zap.Error(err))
	}
	ledger := payment.NewPostgresLedger(pool)
	if err := ledger.Migrate(ctx); err != nil {
		logger.Fatal("ledger migration failed", zap.Error(err))
	}
	logger.Info("payment ledger on Postgres")
	return ledger, pool.Close
}
