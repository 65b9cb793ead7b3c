package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/idempotency"
	"github.com/healtrip/healtrip-api/internal/middleware"
	"github.com/healtrip/healtrip-api/internal/services"
	"github.com/healtrip/healtrip-api/internal/store"
	"github.com/healtrip/healtrip-api/internal/utils"
)

// Handler carries everything the HTTP endpoints need.
type Handler struct {
	Store       *store.Store
	Bookings    *services.BookingService
	Assistant   *services.Assistant
	Diagnosis   *services.Diagnosis
	Sync        *services.UserSync
	Idempotency idempotency.Store
	Log         *zap.Logger
}

type Options struct {
	JWTSecret    []byte
	ServiceToken string
	ChatLimiter  *middleware.RateLimiter
	PayLimiter   *middleware.RateLimiter
}

func NewHandler(st *store.Store, bookings *services.BookingService, assistant *services.Assistant,
	diagnosis *services.Diagnosis, sync *services.UserSync, idem idempotency.Store, log *zap.Logger) *Handler {
	return &Handler{
		Store:       st,
		Bookings:    bookings,
		Assistant:   assistant,
		Diagnosis:   diagnosis,
		Sync:        sync,
		Idempotency: idem,
		Log:         log,
	}
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r gin.IRouter, o Options) {
	auth := middleware.Auth(o.JWTSecret)

	pay := r.Group("/api/payment")
	{
		pay.POST("/webhook-update", middleware.ServiceToken(o.ServiceToken), h.WebhookUpdate)

		authed := pay.Group("", auth)
		if o.PayLimiter != nil {
			authed.Use(middleware.RateLimit(o.PayLimiter))
		}
		authed.POST("/create-order", middleware.Idempotent(h.Idempotency, "create-order", h.Log), h.CreatePaymentOrder)
		authed.POST("/verify", middleware.Idempotent(h.Idempotency, "verify", h.Log), h.VerifyPayment)
		authed.POST("/book-package", h.BookPackage)
		authed.GET("/booking/:id", h.GetBooking)
		authed.GET("/my-bookings", h.MyBookings)
		authed.GET("/my-bookings/export", h.ExportBookings)
		authed.POST("/cancel/:id", h.CancelBooking)
	}

	profile := r.Group("/api/auth")
	{
		profile.POST("/register", h.Register)
		profile.GET("/profile", auth, h.GetProfile)
		profile.PUT("/profile", auth, h.UpdateProfile)
		profile.POST("/medical-history", auth, h.AddMedicalHistory)
		profile.POST("/medications", auth, h.AddMedication)
		profile.POST("/documents", auth, h.AddDocument)
	}

	hospitals := r.Group("/api/hospitals")
	{
		hospitals.GET("", h.ListHospitals)
		hospitals.GET("/search/treatment", h.SearchHospitalsByTreatment)
		hospitals.GET("/nearby", h.NearbyHospitals)
		hospitals.GET("/:id", h.GetHospital)
		hospitals.POST("/:id/review", auth, h.ReviewHospital)
		hospitals.POST("", h.CreateHospital)
		hospitals.PUT("/:id", h.UpdateHospital)
	}

	hotels := r.Group("/api/hotels")
	{
		hotels.GET("", h.ListHotels)
		hotels.GET("/recovery-friendly", h.RecoveryFriendlyHotels)
		hotels.GET("/near-hospital/:hospitalId", h.HotelsNearHospital)
		hotels.GET("/:id", h.GetHotel)
		hotels.POST("/:id/review", auth, h.ReviewHotel)
		hotels.POST("", h.CreateHotel)
		hotels.PUT("/:id", h.UpdateHotel)
	}

	wellness := r.Group("/api/wellness")
	{
		wellness.GET("", h.ListWellness)
		wellness.GET("/:id", h.GetWellness)
		wellness.POST("/:id/book", auth, h.BookWellness)
		wellness.POST("/:id/review", auth, h.ReviewWellness)
		wellness.POST("", h.CreateWellness)
		wellness.PUT("/:id", h.UpdateWellness)
	}

	diagnosis := r.Group("/api/diagnosis")
	{
		diagnosis.POST("/recommend", h.RecommendHospitals)
		diagnosis.POST("/estimate-cost", h.EstimateCost)
		diagnosis.POST("/compare", h.CompareHospitals)
	}

	r.GET("/api/flights/search", h.SearchFlights)
	r.GET("/api/flights/:id", h.GetFlight)
	r.GET("/api/cabs/search", h.SearchCabs)
	r.GET("/api/cabs/:id", h.GetCab)

	chat := r.Group("/api")
	if o.ChatLimiter != nil {
		chat.Use(middleware.RateLimit(o.ChatLimiter))
	}
	{
		chat.POST("/ai/chat", h.AIChat)
		chat.POST("/buddy/chat", h.BuddyChat)
		chat.GET("/buddy/history", h.BuddyHistory)
		chat.POST("/chat/message", h.ChatMessage)
		chat.GET("/chat/history/:userId", h.ChatHistory)
		chat.DELETE("/chat/history/:userId", h.DeleteChatHistory)
		chat.POST("/chat/report", h.GenerateReport)
	}
}

// identity returns the authenticated caller or renders 401.
func identity(c *gin.Context) (utils.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		utils.Fail(c, utils.Unauthorized("User not authenticated"))
	}
	return id, ok
}

// bind decodes the JSON body or renders 400.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		utils.Fail(c, utils.Validation("Invalid request body", err.Error()))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, fallback int64) int64 {
	n, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func queryFloat(c *gin.Context, key string) float64 {
	f, _ := strconv.ParseFloat(c.Query(key), 64)
	return f
}

func page(c *gin.Context, defLimit int64) store.Page {
	p := store.Page{Page: queryInt(c, "page", 1), Limit: queryInt(c, "limit", defLimit)}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 || p.Limit > 100 {
		p.Limit = defLimit
	}
	return p
}

type listResult[T any] struct {
	Items      []T                 `json:"items"`
	Pagination services.Pagination `json:"pagination"`
}

func paged[T any](items []T, total int64, p store.Page) listResult[T] {
	if items == nil {
		items = []T{}
	}
	return listResult[T]{
		Items:      items,
		Pagination: services.Pagination{Total: total, Page: p.Page, Limit: p.Limit, Pages: p.Pages(total)},
	}
}

func (h *Handler) Health(c *gin.Context) {
	if h.Store != nil {
		if err := h.Store.Ping(c.Request.Context()); err != nil {
			utils.Fail(c, utils.Internal("database unreachable", err))
			return
		}
	}
	utils.Success(c, http.StatusOK, gin.H{"status": "ok"}, "HealTrip API is running")
}
