// Package payment is the payment microservice: provider adapters, the order
// and webhook ledger, and the HTTP surface the backend talks to.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
)

var ErrNotConfigured = errors.New("payment provider is not configured")

// ProviderOrder is a Razorpay order.
type ProviderOrder struct {
	ID       string
	Amount   int64 // minor units
	Currency string
}

// ProviderPayment is a Razorpay payment as fetched after checkout.
type ProviderPayment struct {
	ID       string
	OrderID  string
	Status   string
	Amount   int64
	Currency string
	Method   string
}

// Intent is a Stripe PaymentIntent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
	Metadata     map[string]string
}

type RazorpayGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*ProviderOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*ProviderPayment, error)
}

type StripeGateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string, idemKey string) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
}

// toMinor converts a major-unit amount to paise or cents.
func toMinor(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func toMajor(amount int64) float64 {
	return float64(amount) / 100
}

func sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func signatureMatches(secret, message, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(sign(secret, message)), []byte(signature))
}

// VerifySignature checks a Razorpay checkout signature, an HMAC-SHA256 of
// "orderId|paymentId" under the key secret.
func VerifySignature(orderID, paymentID, signature, secret string) bool {
	return signatureMatches(secret, orderID+"|"+paymentID, signature)
}

// VerifyWebhookSignature checks X-Razorpay-Signature against the raw body.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	return signatureMatches(secret, string(body), signature)
}
