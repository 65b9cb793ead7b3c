package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// UpstreamError is a non-2xx answer from a collaborator service.
type UpstreamError struct {
	Status  int
	Message string
	Errors  []string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned %d", e.Status)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
}

// PaymentService talks to the payment microservice.
type PaymentService struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewPaymentService(baseURL, serviceToken string, timeout time.Duration) *PaymentService {
	return &PaymentService{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   serviceToken,
		http:    &http.Client{Timeout: timeout},
	}
}

type OrderRequest struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	BookingID string  `json:"bookingId"`
	UserID    string  `json:"userId"`
}

// OrderResult is the union of the Razorpay order and Stripe intent payloads.
type OrderResult struct {
	OrderID         string  `json:"orderId,omitempty"`
	Amount          float64 `json:"amount,omitempty"`
	Currency        string  `json:"currency,omitempty"`
	KeyID           string  `json:"keyId,omitempty"`
	ClientSecret    string  `json:"clientSecret,omitempty"`
	PaymentIntentID string  `json:"paymentIntentId,omitempty"`
	PublishableKey  string  `json:"publishableKey,omitempty"`
}

// ProviderOrderID is the id the provider will report back on verify and webhooks.
func (r *OrderResult) ProviderOrderID() string {
	if r.OrderID != "" {
		return r.OrderID
	}
	return r.PaymentIntentID
}

type VerifyRequest struct {
	OrderID         string `json:"orderId,omitempty"`
	PaymentID       string `json:"paymentId,omitempty"`
	Signature       string `json:"signature,omitempty"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
	BookingID       string `json:"bookingId"`
}

type VerifyResult struct {
	Success   bool
	Message   string
	PaymentID string
	Status    string
	Amount    float64
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Errors  []string        `json:"errors"`
}

func orderPath(gateway string) string {
	if gateway == "razorpay" {
		return "/api/razorpay/create-order"
	}
	return "/api/stripe/create-payment-intent"
}

func verifyPath(gateway string) string {
	if gateway == "razorpay" {
		return "/api/razorpay/verify"
	}
	return "/api/stripe/verify"
}

// CreateOrder asks the gateway ("razorpay" or "stripe") for an order or intent.
// idemKey, when set, is forwarded as Idempotency-Key.
func (s *PaymentService) CreateOrder(ctx context.Context, gateway string, req OrderRequest, idemKey string) (*OrderResult, error) {
	status, env, err := s.post(ctx, orderPath(gateway), req, idemKey)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 || !env.Success {
		return nil, upstream(status, env)
	}
	var out OrderResult
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &out, nil
}

// Verify never returns an error for a rejected payment; that is Success=false.
// Errors are transport failures only.
func (s *PaymentService) Verify(ctx context.Context, gateway string, req VerifyRequest, idemKey string) (*VerifyResult, error) {
	if gateway == "stripe" && req.PaymentIntentID == "" {
		req.PaymentIntentID = req.PaymentID
	}
	status, env, err := s.post(ctx, verifyPath(gateway), req, idemKey)
	if err != nil {
		return nil, err
	}
	res := &VerifyResult{Success: status >= 200 && status <= 299 && env.Success, Message: env.Message}
	if !res.Success || len(env.Data) == 0 {
		return res, nil
	}
	var data struct {
		PaymentID       string  `json:"paymentId"`
		PaymentIntentID string  `json:"paymentIntentId"`
		Status          string  `json:"status"`
		Amount          float64 `json:"amount"`
	}
	if err := json.Unmarshal(env.Data, &data); err == nil {
		res.PaymentID = data.PaymentID
		if res.PaymentID == "" {
			res.PaymentID = data.PaymentIntentID
		}
		res.Status = data.Status
		res.Amount = data.Amount
	}
	return res, nil
}

func (s *PaymentService) post(ctx context.Context, path string, body any, idemKey string) (int, *envelope, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	if s.token != "" {
		req.Header.Set("X-Service-Token", s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("payment service: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read payment service response: %w", err)
	}
	env := &envelope{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, env); err != nil {
			env.Message = strings.TrimSpace(string(b))
		}
	}
	return resp.StatusCode, env, nil
}

func upstream(status int, env *envelope) *UpstreamError {
	e := &UpstreamError{Status: status, Message: env.Message, Errors: env.Errors}
	if env.Error != "" {
		e.Errors = append(e.Errors, env.Error)
	}
	return e
}
