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
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/clients"
	"github.com/healtrip/healtrip-api/internal/config"
	"github.com/healtrip/healtrip-api/internal/handlers"
	"github.com/healtrip/healtrip-api/internal/idempotency"
	"github.com/healtrip/healtrip-api/internal/logging"
	"github.com/healtrip/healtrip-api/internal/middleware"
	"github.com/healtrip/healtrip-api/internal/services"
	"github.com/healtrip/healtrip-api/internal/store"
)

const idempotencyTTL = 24 * time.Hour

func main() {
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// --- Database Connection ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer client.Disconnect(context.Background())
	st := store.New(client.Database(cfg.MongoDatabase))
	if err := st.Ping(ctx); err != nil {
		logger.Fatal("MongoDB unreachable", zap.Error(err))
	}
	if err := st.EnsureIndexes(ctx); err != nil {
		logger.Warn("index creation failed", zap.Error(err))
	}
	logger.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))

	idem := idempotencyStore(cfg, logger)

	// --- Collaborators ---
	identity := clients.NewIdentityClient(cfg.AuthAPIURL, cfg.AuthSecretKey, cfg.HTTPTimeout)
	payments := clients.NewPaymentService(cfg.PaymentServiceURL, cfg.InternalServiceToken, cfg.HTTPTimeout)
	groq := clients.NewGroq(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel, cfg.HTTPTimeout)
	hf := clients.NewHuggingFace(cfg.HFAPIURL, cfg.HFAPIToken, cfg.HTTPTimeout)
	recs := clients.NewRecommender(cfg.HotelMLURL, cfg.HospitalMLURL, cfg.YogaMLURL, cfg.HTTPTimeout)

	// --- Services ---
	notifications := services.NewNotificationService(cfg.TextbeltAPIKey, cfg.HTTPTimeout, logger)
	sync := services.NewUserSync(st.Users, identity, logger)
	bookings := services.NewBookingService(services.BookingDeps{
		Bookings: st.Bookings,
		Users:    st.Users,
		Wellness: st.Wellness,
		Sync:     sync,
		Payments: payments,
		Notify:   notifications,
		Log:      logger,
	})
	assistant := services.NewAssistant(services.AssistantDeps{
		LLM:       groq,
		HF:        hf,
		Recs:      recs,
		Chats:     st.Chats,
		Histories: st.ChatHistories,
		Records:   st.MedicalRecords,
		Log:       logger,
	})

	diagnosis := services.NewDiagnosis(st.Hospitals, logger)

	scheduler, err := services.NewReconciler(st.Bookings, st.Wellness, cfg.PendingBookingTTL, logger).Start(cfg.ReconcileInterval)
	if err != nil {
		logger.Fatal("failed to start reconciler", zap.Error(err))
	}
	defer scheduler.Stop()

	chatLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	defer chatLimiter.Close()
	payLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	defer payLimiter.Close()

	h := handlers.NewHandler(st, bookings, assistant, diagnosis, sync, idem, logger)

	// --- Gin Router ---
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/health", h.Health)
	h.RegisterRoutes(r, handlers.Options{
		JWTSecret:    []byte(cfg.AuthJWTSecret),
		ServiceToken: cfg.InternalServiceToken,
		ChatLimiter:  chatLimiter,
		PayLimiter:   payLimiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}

// idempotencyStore prefers redis so replicas share keys, and falls back to
// process memory when REDIS_URL is unset or unreachable.
func idempotencyStore(cfg *config.API, logger *zap.Logger) idempotency.Store {
	if cfg.RedisURL == "" {
		logger.Info("idempotency keys kept in memory")
		return idempotency.NewMemory(idempotencyTTL)
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, keeping idempotency keys in memory", zap.Error(err))
		return idempotency.NewMemory(idempotencyTTL)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, keeping idempotency keys in memory", zap.Error(err))
		_ = rdb.Close()
		return idempotency.NewMemory(idempotencyTTL)
	}
	return idempotency.NewRedis(rdb, idempotencyTTL)
}
