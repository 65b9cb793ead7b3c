package payment

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

// Razorpay adapts the razorpay-go SDK. The SDK takes no context, so
// cancellation is only observed before each call.
type Razorpay struct {
	client *razorpay.Client
}

func NewRazorpay(keyID, keySecret string) *Razorpay {
	return &Razorpay{client: razorpay.NewClient(keyID, keySecret)}
}

func (r *Razorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*ProviderOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := make(map[string]interface{}, len(notes))
	for k, v := range notes {
		n[k] = v
	}
	body, err := r.client.Order.Create(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
		"notes":    n,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}
	return &ProviderOrder{
		ID:       str(body["id"]),
		Amount:   minor(body["amount"]),
		Currency: str(body["currency"]),
	}, nil
}

func (r *Razorpay) FetchPayment(ctx context.Context, paymentID string) (*ProviderPayment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := r.client.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay fetch payment: %w", err)
	}
	return &ProviderPayment{
		ID:       str(body["id"]),
		OrderID:  str(body["order_id"]),
		Status:   str(body["status"]),
		Amount:   minor(body["amount"]),
		Currency: str(body["currency"]),
		Method:   str(body["method"]),
	}, nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

// minor reads a JSON number decoded by the SDK into a map.
func minor(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
