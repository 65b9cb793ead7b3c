package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/middleware"
	"github.com/healtrip/healtrip-api/internal/utils"
)

const maxWebhookBody = 65536

// Relay forwards provider events to the backend.
type Relay interface {
	Notify(ctx context.Context, u Update)
}

type Keys struct {
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	StripePublishableKey  string
	StripeWebhookSecret   string
}

type Handler struct {
	Razorpay RazorpayGateway // nil when not configured
	Stripe   StripeGateway   // nil when not configured
	Ledger   Ledger
	Relay    Relay
	Keys     Keys
	Log      *zap.Logger
}

// RegisterRoutes mounts the provider endpoints. Order and verify calls come
// from the backend and carry the service token; webhooks come from providers
// and are authenticated by signature.
func (h *Handler) RegisterRoutes(r gin.IRouter, serviceToken string) {
	internal := middleware.ServiceToken(serviceToken)

	rz := r.Group("/api/razorpay")
	rz.POST("/create-order", internal, h.CreateRazorpayOrder)
	rz.POST("/verify", internal, h.VerifyRazorpay)
	rz.POST("/webhook", h.RazorpayWebhook)

	st := r.Group("/api/stripe")
	st.POST("/create-payment-intent", internal, h.CreateStripeIntent)
	st.POST("/verify", internal, h.VerifyStripe)
	st.POST("/webhook", h.StripeWebhook)
}

type orderRequest struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	BookingID string  `json:"bookingId"`
	UserID    string  `json:"userId"`
}

func (h *Handler) bindOrder(c *gin.Context, defCurrency string) (orderRequest, bool) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Fail(c, utils.Validation("Invalid request body", err.Error()))
		return req, false
	}
	if req.Amount <= 0 || req.BookingID == "" {
		utils.Fail(c, utils.Validation("Amount and booking ID are required"))
		return req, false
	}
	if req.Currency == "" {
		req.Currency = defCurrency
	}
	return req, true
}

// replay answers a retried create call from the ledger.
func (h *Handler) replay(c *gin.Context, provider, key string) bool {
	if key == "" {
		return false
	}
	o, err := h.Ledger.OrderByKey(c.Request.Context(), provider, key)
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			h.Log.Warn("ledger lookup failed", zap.String("provider", provider), zap.Error(err))
		}
		return false
	}
	var data map[string]any
	if err := json.Unmarshal(o.Response, &data); err != nil {
		return false
	}
	c.Header("Idempotent-Replayed", "true")
	utils.Success(c, http.StatusOK, data, "Order already created")
	return true
}

func (h *Handler) record(ctx context.Context, o OrderRecord, data any) {
	raw, err := json.Marshal(data)
	if err == nil {
		o.Response = raw
	}
	if err := h.Ledger.RecordOrder(ctx, o); err != nil {
		h.Log.Warn("failed to record order", zap.String("provider", o.Provider), zap.String("id", o.ProviderID), zap.Error(err))
	}
}

// --- razorpay ---

type razorpayOrderData struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
}

func (h *Handler) CreateRazorpayOrder(c *gin.Context) {
	if h.Razorpay == nil {
		utils.Fail(c, utils.Gateway("Razorpay is not configured", ErrNotConfigured))
		return
	}
	req, ok := h.bindOrder(c, "INR")
	if !ok {
		return
	}
	key := c.GetHeader(middleware.IdempotencyHeader)
	if h.replay(c, "razorpay", key) {
		return
	}
	ctx := c.Request.Context()
	order, err := h.Razorpay.CreateOrder(ctx, toMinor(req.Amount), req.Currency, "booking_"+req.BookingID,
		map[string]string{"bookingId": req.BookingID, "userId": req.UserID})
	if err != nil {
		h.Log.Error("razorpay order failed", zap.String("bookingId", req.BookingID), zap.Error(err))
		utils.Fail(c, utils.Gateway("Failed to create Razorpay order", err))
		return
	}
	data := razorpayOrderData{OrderID: order.ID, Amount: order.Amount, Currency: order.Currency, KeyID: h.Keys.RazorpayKeyID}
	h.record(ctx, OrderRecord{
		Provider: "razorpay", ProviderID: order.ID, BookingID: req.BookingID, UserID: req.UserID,
		Amount: order.Amount, Currency: order.Currency, IdempotencyKey: key,
	}, data)
	h.Log.Info("razorpay order created", zap.String("orderId", order.ID), zap.String("bookingId", req.BookingID))
	utils.Success(c, http.StatusOK, data, "Razorpay order created successfully")
}

type razorpayVerifyRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
	BookingID string `json:"bookingId"`
}

func (h *Handler) VerifyRazorpay(c *gin.Context) {
	var req razorpayVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Fail(c, utils.Validation("Invalid request body", err.Error()))
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		utils.Fail(c, utils.Validation("Order ID, payment ID, and signature are required"))
		return
	}
	if !VerifySignature(req.OrderID, req.PaymentID, req.Signature, h.Keys.RazorpayKeySecret) {
		h.Log.Warn("invalid razorpay signature", zap.String("orderId", req.OrderID), zap.String("paymentId", req.PaymentID))
		utils.Fail(c, utils.Validation("Invalid payment signature"))
		return
	}
	if h.Razorpay == nil {
		utils.Fail(c, utils.Gateway("Razorpay is not configured", ErrNotConfigured))
		return
	}
	p, err := h.Razorpay.FetchPayment(c.Request.Context(), req.PaymentID)
	if err != nil {
		utils.Fail(c, utils.Gateway("Failed to verify payment", err))
		return
	}
	utils.Success(c, http.StatusOK, gin.H{
		"paymentId": p.ID,
		"orderId":   p.OrderID,
		"status":    p.Status,
		"amount":    toMajor(p.Amount),
		"currency":  p.Currency,
		"method":    p.Method,
	}, "Payment verified successfully")
}

type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string          `json:"id"`
				OrderID string          `json:"order_id"`
				Status  string          `json:"status"`
				Amount  int64           `json:"amount"`
				Notes   json.RawMessage `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// notes decodes Razorpay notes, which arrive as an empty array when unset.
func notes(raw json.RawMessage) map[string]string {
	out := map[string]string{}
	var m map[string]any
	if json.Unmarshal(raw, &m) != nil {
		return out
	}
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func (h *Handler) RazorpayWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.Fail(c, utils.Validation("Unreadable webhook body"))
		return
	}
	if !VerifyWebhookSignature(body, c.GetHeader("X-Razorpay-Signature"), h.Keys.RazorpayWebhookSecret) {
		utils.Fail(c, utils.Validation("Invalid webhook signature"))
		return
	}
	var ev razorpayEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		utils.Fail(c, utils.Validation("Invalid webhook payload"))
		return
	}
	entity := ev.Payload.Payment.Entity
	var status string
	switch ev.Event {
	case "payment.captured":
		status = "captured"
	case "payment.failed":
		status = "failed"
	default:
		h.Log.Info("unhandled razorpay event", zap.String("event", ev.Event))
		utils.Success(c, http.StatusOK, nil, "Event ignored")
		return
	}

	eventID := c.GetHeader("X-Razorpay-Event-Id")
	if eventID == "" {
		eventID = ev.Event + ":" + entity.ID
	}
	h.dispatch(c, "razorpay", eventID, Update{
		PaymentID: entity.ID,
		OrderID:   entity.OrderID,
		Status:    status,
		Amount:    toMajor(entity.Amount),
		Metadata:  notes(entity.Notes),
	})
}

// dispatch relays an event once; redeliveries are acknowledged silently.
func (h *Handler) dispatch(c *gin.Context, provider, eventID string, u Update) {
	ctx := c.Request.Context()
	first, err := h.Ledger.MarkEvent(ctx, provider, eventID)
	if err != nil {
		h.Log.Error("failed to record webhook event", zap.String("eventId", eventID), zap.Error(err))
		utils.Fail(c, utils.Internal("Webhook processing failed", err))
		return
	}
	if !first {
		h.Log.Info("duplicate webhook event", zap.String("provider", provider), zap.String("eventId", eventID))
		utils.Success(c, http.StatusOK, nil, "Event already processed")
		return
	}
	h.Log.Info("webhook received", zap.String("provider", provider), zap.String("eventId", eventID),
		zap.String("paymentId", u.PaymentID), zap.String("status", u.Status))
	h.Relay.Notify(context.WithoutCancel(ctx), u)
	utils.Success(c, http.StatusOK, nil, "Webhook processed")
}

// --- stripe ---

func (h *Handler) CreateStripeIntent(c *gin.Context) {
	if h.Stripe == nil {
		utils.Fail(c, utils.Gateway("Stripe is not configured", ErrNotConfigured))
		return
	}
	req, ok := h.bindOrder(c, "usd")
	if !ok {
		return
	}
	key := c.GetHeader(middleware.IdempotencyHeader)
	if h.replay(c, "stripe", key) {
		return
	}
	ctx := c.Request.Context()
	pi, err := h.Stripe.CreateIntent(ctx, toMinor(req.Amount), req.Currency,
		map[string]string{"bookingId": req.BookingID, "userId": req.UserID}, key)
	if err != nil {
		h.Log.Error("stripe intent failed", zap.String("bookingId", req.BookingID), zap.Error(err))
		utils.Fail(c, utils.Gateway("Failed to create payment intent", err))
		return
	}
	data := gin.H{
		"clientSecret":    pi.ClientSecret,
		"paymentIntentId": pi.ID,
		"amount":          toMajor(pi.Amount),
		"currency":        pi.Currency,
		"publishableKey":  h.Keys.StripePublishableKey,
	}
	h.record(ctx, OrderRecord{
		Provider: "stripe", ProviderID: pi.ID, BookingID: req.BookingID, UserID: req.UserID,
		Amount: pi.Amount, Currency: pi.Currency, IdempotencyKey: key,
	}, data)
	h.Log.Info("stripe intent created", zap.String("paymentIntentId", pi.ID), zap.String("bookingId", req.BookingID))
	utils.Success(c, http.StatusOK, data, "Payment intent created successfully")
}

func (h *Handler) VerifyStripe(c *gin.Context) {
	var req struct {
		PaymentIntentID string `json:"paymentIntentId"`
		BookingID       string `json:"bookingId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Fail(c, utils.Validation("Invalid request body", err.Error()))
		return
	}
	if req.PaymentIntentID == "" {
		utils.Fail(c, utils.Validation("Payment intent ID is required"))
		return
	}
	if h.Stripe == nil {
		utils.Fail(c, utils.Gateway("Stripe is not configured", ErrNotConfigured))
		return
	}
	pi, err := h.Stripe.GetIntent(c.Request.Context(), req.PaymentIntentID)
	if err != nil {
		utils.Fail(c, utils.Gateway("Failed to verify payment", err))
		return
	}
	if pi.Status != string(stripe.PaymentIntentStatusSucceeded) {
		utils.Fail(c, utils.Validation("Payment not completed", pi.Status))
		return
	}
	utils.Success(c, http.StatusOK, gin.H{
		"paymentIntentId": pi.ID,
		"status":          pi.Status,
		"amount":          toMajor(pi.Amount),
		"currency":        pi.Currency,
		"metadata":        pi.Metadata,
	}, "Payment verified successfully")
}

func (h *Handler) StripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.Fail(c, utils.Validation("Unreadable webhook body"))
		return
	}
	event, err := webhook.ConstructEventWithOptions(body, c.GetHeader("Stripe-Signature"), h.Keys.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.Log.Warn("invalid stripe webhook", zap.Error(err))
		utils.Fail(c, utils.Validation("Invalid webhook signature"))
		return
	}

	var status string
	switch string(event.Type) {
	case "payment_intent.succeeded":
		status = "succeeded"
	case "payment_intent.payment_failed":
		status = "failed"
	default:
		h.Log.Info("unhandled stripe event", zap.String("type", string(event.Type)))
		utils.Success(c, http.StatusOK, nil, "Event ignored")
		return
	}
	var pi stripe.PaymentIntent
	if event.Data == nil || json.Unmarshal(event.Data.Raw, &pi) != nil {
		utils.Fail(c, utils.Validation("Invalid webhook payload"))
		return
	}
	h.dispatch(c, "stripe", event.ID, Update{
		PaymentID: pi.ID,
		OrderID:   pi.ID,
		Status:    status,
		Amount:    toMajor(pi.Amount),
		Metadata:  pi.Metadata,
	})
}

// Health reports which providers are configured.
func (h *Handler) Health(c *gin.Context) {
	utils.Success(c, http.StatusOK, gin.H{
		"status":   "ok",
		"razorpay": h.Razorpay != nil,
		"stripe":   h.Stripe != nil,
		"time":     time.Now().UTC().Format(time.RFC3339),
	}, "Payment service is running")
}

