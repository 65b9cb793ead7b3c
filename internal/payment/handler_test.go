package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/utils"
)

const serviceToken = "svc-token"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRazorpay struct {
	orders  int
	notes   map[string]string
	payment *ProviderPayment
	err     error
}

func (f *fakeRazorpay) CreateOrder(_ context.Context, amount int64, currency, receipt string, notes map[string]string) (*ProviderOrder, error) {
	f.orders++
	f.notes = notes
	if f.err != nil {
		return nil, f.err
	}
	return &ProviderOrder{ID: fmt.Sprintf("order_%d", f.orders), Amount: amount, Currency: currency}, nil
}

func (f *fakeRazorpay) FetchPayment(_ context.Context, id string) (*ProviderPayment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.payment, nil
}

type fakeStripe struct {
	intents  int
	idemKeys []string
	intent   *Intent
}

func (f *fakeStripe) CreateIntent(_ context.Context, amount int64, currency string, metadata map[string]string, idemKey string) (*Intent, error) {
	f.intents++
	f.idemKeys = append(f.idemKeys, idemKey)
	return &Intent{ID: "pi_1", ClientSecret: "pi_1_secret_x", Amount: amount, Currency: currency, Metadata: metadata}, nil
}

func (f *fakeStripe) GetIntent(context.Context, string) (*Intent, error) {
	return f.intent, nil
}

type fakeRelay struct {
	mu      sync.Mutex
	updates []Update
}

func (f *fakeRelay) Notify(_ context.Context, u Update) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
}

type fixture struct {
	h      *Handler
	r      *gin.Engine
	rz     *fakeRazorpay
	stripe *fakeStripe
	relay  *fakeRelay
}

func newFixture() *fixture {
	f := &fixture{rz: &fakeRazorpay{}, stripe: &fakeStripe{}, relay: &fakeRelay{}}
	f.h = &Handler{
		Razorpay: f.rz,
		Stripe:   f.stripe,
		Ledger:   NewMemoryLedger(),
		Relay:    f.relay,
		Keys: Keys{
			RazorpayKeyID:         "rzp_test_key",
			RazorpayKeySecret:     "rzp_secret",
			RazorpayWebhookSecret: "rzp_whsec",
			StripePublishableKey:  "pk_test",
			StripeWebhookSecret:   "whsec_test",
		},
		Log: zap.NewNop(),
	}
	f.r = gin.New()
	f.h.RegisterRoutes(f.r, serviceToken)
	return f
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	f.r.ServeHTTP(w, req)
	return w
}

func internal(extra ...string) map[string]string {
	h := map[string]string{"X-Service-Token": serviceToken}
	for i := 0; i+1 < len(extra); i += 2 {
		h[extra[i]] = extra[i+1]
	}
	return h
}

func envelopeData(t *testing.T, w *httptest.ResponseRecorder) (utils.Envelope, map[string]any) {
	t.Helper()
	var env utils.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	data, _ := env.Data.(map[string]any)
	return env, data
}

func TestCreateRazorpayOrder(t *testing.T) {
	f := newFixture()
	body := `{"amount":1500,"bookingId":"b1","userId":"u1"}`

	w := f.do(http.MethodPost, "/api/razorpay/create-order", body, internal("Idempotency-Key", "k1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	env, data := envelopeData(t, w)
	if !env.Success || data["orderId"] != "order_1" || data["amount"] != 150000.0 || data["currency"] != "INR" || data["keyId"] != "rzp_test_key" {
		t.Errorf("response = %+v", env)
	}
	if f.rz.notes["bookingId"] != "b1" {
		t.Errorf("notes = %v", f.rz.notes)
	}

	again := f.do(http.MethodPost, "/api/razorpay/create-order", body, internal("Idempotency-Key", "k1"))
	_, replayed := envelopeData(t, again)
	if again.Code != http.StatusOK || replayed["orderId"] != "order_1" || again.Header().Get("Idempotent-Replayed") != "true" {
		t.Errorf("replay = %d %v", again.Code, replayed)
	}
	if f.rz.orders != 1 {
		t.Errorf("provider called %d times, want 1", f.rz.orders)
	}

	f.do(http.MethodPost, "/api/razorpay/create-order", body, internal())
	if f.rz.orders != 2 {
		t.Errorf("request without key not executed")
	}
}

func TestCreateOrderRejections(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		headers map[string]string
		setup   func(f *fixture)
		want    int
	}{
		{"no service token", "/api/razorpay/create-order", `{"amount":10,"bookingId":"b1"}`, nil, nil, http.StatusUnauthorized},
		{"zero amount", "/api/razorpay/create-order", `{"amount":0,"bookingId":"b1"}`, internal(), nil, http.StatusBadRequest},
		{"no booking", "/api/stripe/create-payment-intent", `{"amount":10}`, internal(), nil, http.StatusBadRequest},
		{"malformed", "/api/stripe/create-payment-intent", `{"amount":`, internal(), nil, http.StatusBadRequest},
		{"provider error", "/api/razorpay/create-order", `{"amount":10,"bookingId":"b1"}`, internal(),
			func(f *fixture) { f.rz.err = errors.New("BAD_REQUEST_ERROR: currency not supported") }, http.StatusInternalServerError},
		{"not configured", "/api/stripe/create-payment-intent", `{"amount":10,"bookingId":"b1"}`, internal(),
			func(f *fixture) { f.h.Stripe = nil }, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			w := f.do(http.MethodPost, tt.path, tt.body, tt.headers)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body)
			}
			if env, _ := envelopeData(t, w); env.Success {
				t.Error("success envelope on rejection")
			}
		})
	}
}

func TestCreateStripeIntent(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/api/stripe/create-payment-intent", `{"amount":19.99,"bookingId":"b1","userId":"u1"}`, internal("Idempotency-Key", "k9"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	_, data := envelopeData(t, w)
	if data["clientSecret"] != "pi_1_secret_x" || data["amount"] != 19.99 || data["currency"] != "usd" || data["publishableKey"] != "pk_test" {
		t.Errorf("data = %v", data)
	}
	if f.stripe.idemKeys[0] != "k9" {
		t.Errorf("idempotency key not passed to provider: %v", f.stripe.idemKeys)
	}
}

func TestVerifyRazorpay(t *testing.T) {
	f := newFixture()
	f.rz.payment = &ProviderPayment{ID: "pay_1", OrderID: "order_1", Status: "captured", Amount: 150000, Currency: "INR", Method: "upi"}
	good := sign("rzp_secret", "order_1|pay_1")

	w := f.do(http.MethodPost, "/api/razorpay/verify",
		`{"orderId":"order_1","paymentId":"pay_1","signature":"`+good+`","bookingId":"b1"}`, internal())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	_, data := envelopeData(t, w)
	if data["paymentId"] != "pay_1" || data["amount"] != 1500.0 || data["method"] != "upi" {
		t.Errorf("data = %v", data)
	}

	w = f.do(http.MethodPost, "/api/razorpay/verify",
		`{"orderId":"order_1","paymentId":"pay_1","signature":"`+strings.Repeat("0", 64)+`"}`, internal())
	if env, _ := envelopeData(t, w); w.Code != http.StatusBadRequest || env.Message != "Invalid payment signature" {
		t.Errorf("forged signature = %d %q", w.Code, env.Message)
	}

	w = f.do(http.MethodPost, "/api/razorpay/verify", `{"orderId":"order_1"}`, internal())
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing fields = %d", w.Code)
	}
}

func TestVerifyStripe(t *testing.T) {
	f := newFixture()
	f.stripe.intent = &Intent{ID: "pi_1", Status: "processing", Amount: 2000, Currency: "usd"}
	w := f.do(http.MethodPost, "/api/stripe/verify", `{"paymentIntentId":"pi_1"}`, internal())
	if env, _ := envelopeData(t, w); w.Code != http.StatusBadRequest || env.Message != "Payment not completed" {
		t.Errorf("processing intent = %d %q", w.Code, env.Message)
	}

	f.stripe.intent.Status = "succeeded"
	w = f.do(http.MethodPost, "/api/stripe/verify", `{"paymentIntentId":"pi_1"}`, internal())
	_, data := envelopeData(t, w)
	if w.Code != http.StatusOK || data["status"] != "succeeded" || data["amount"] != 20.0 {
		t.Errorf("succeeded intent = %d %v", w.Code, data)
	}
}

func razorpayEventBody(event, paymentID, notesJSON string) string {
	return `{"event":"` + event + `","payload":{"payment":{"entity":{"id":"` + paymentID +
		`","order_id":"order_1","status":"captured","amount":150000,"notes":` + notesJSON + `}}}}`
}

func TestRazorpayWebhook(t *testing.T) {
	f := newFixture()
	body := razorpayEventBody("payment.captured", "pay_1", `{"bookingId":"b1","userId":"u1"}`)
	signed := map[string]string{"X-Razorpay-Signature": sign("rzp_whsec", body)}

	w := f.do(http.MethodPost, "/api/razorpay/webhook", body, signed)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if len(f.relay.updates) != 1 {
		t.Fatalf("relayed %d updates, want 1", len(f.relay.updates))
	}
	u := f.relay.updates[0]
	if u.PaymentID != "pay_1" || u.OrderID != "order_1" || u.Status != "captured" || u.Amount != 1500 || u.Metadata["bookingId"] != "b1" {
		t.Errorf("update = %+v", u)
	}

	// redelivery is acknowledged but not relayed again
	w = f.do(http.MethodPost, "/api/razorpay/webhook", body, signed)
	if w.Code != http.StatusOK || len(f.relay.updates) != 1 {
		t.Errorf("redelivery = %d, updates %d", w.Code, len(f.relay.updates))
	}

	tampered := strings.Replace(body, "150000", "100", 1)
	w = f.do(http.MethodPost, "/api/razorpay/webhook", tampered, signed)
	if w.Code != http.StatusBadRequest {
		t.Errorf("tampered body = %d", w.Code)
	}

	failed := razorpayEventBody("payment.failed", "pay_2", `[]`)
	w = f.do(http.MethodPost, "/api/razorpay/webhook", failed, map[string]string{"X-Razorpay-Signature": sign("rzp_whsec", failed)})
	if w.Code != http.StatusOK || len(f.relay.updates) != 2 {
		t.Fatalf("failed event = %d, updates %d", w.Code, len(f.relay.updates))
	}
	if u := f.relay.updates[1]; u.Status != "failed" || len(u.Metadata) != 0 {
		t.Errorf("failed update = %+v", u)
	}

	other := razorpayEventBody("order.paid", "pay_3", `{}`)
	w = f.do(http.MethodPost, "/api/razorpay/webhook", other, map[string]string{"X-Razorpay-Signature": sign("rzp_whsec", other)})
	if w.Code != http.StatusOK || len(f.relay.updates) != 2 {
		t.Errorf("ignored event = %d, updates %d", w.Code, len(f.relay.updates))
	}
}

// stripeSignature builds a Stripe-Signature header for payload.
func stripeSignature(secret, payload string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + sign(secret, ts+"."+payload)
}

func TestStripeWebhook(t *testing.T) {
	f := newFixture()
	payload := `{"id":"evt_1","object":"event","api_version":"2020-08-27","type":"payment_intent.succeeded",
		"data":{"object":{"id":"pi_1","object":"payment_intent","amount":2000,"currency":"usd","status":"succeeded",
		"metadata":{"bookingId":"b1"}}}}`

	w := f.do(http.MethodPost, "/api/stripe/webhook", payload,
		map[string]string{"Stripe-Signature": stripeSignature("whsec_test", payload, time.Now())})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if len(f.relay.updates) != 1 {
		t.Fatalf("relayed %d updates", len(f.relay.updates))
	}
	if u := f.relay.updates[0]; u.PaymentID != "pi_1" || u.Status != "succeeded" || u.Amount != 20 || u.Metadata["bookingId"] != "b1" {
		t.Errorf("update = %+v", u)
	}

	f.do(http.MethodPost, "/api/stripe/webhook", payload,
		map[string]string{"Stripe-Signature": stripeSignature("whsec_test", payload, time.Now())})
	if len(f.relay.updates) != 1 {
		t.Error("duplicate event relayed")
	}

	tests := []struct {
		name   string
		header string
	}{
		{"wrong secret", stripeSignature("whsec_other", payload, time.Now())},
		{"stale timestamp", stripeSignature("whsec_test", payload, time.Now().Add(-time.Hour))},
		{"missing header", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/api/stripe/webhook", payload, map[string]string{"Stripe-Signature": tt.header})
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d", w.Code)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	f := newFixture()
	f.h.Stripe = nil
	f.r.GET("/health", f.h.Health)
	w := f.do(http.MethodGet, "/health", "", nil)
	_, data := envelopeData(t, w)
	if w.Code != http.StatusOK || data["razorpay"] != true || data["stripe"] != false {
		t.Errorf("health = %d %v", w.Code, data)
	}
}
