package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Update is the body of the backend's webhook-update endpoint.
type Update struct {
	PaymentID string            `json:"paymentId"`
	OrderID   string            `json:"orderId,omitempty"`
	Status    string            `json:"status"`
	Amount    float64           `json:"amount"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// BackendNotifier relays provider events to the main backend. Delivery is a
// single attempt; failures are logged and dropped.
type BackendNotifier struct {
	url   string
	token string
	http  *http.Client
	log   *zap.Logger
}

func NewBackendNotifier(backendURL, token string, timeout time.Duration, log *zap.Logger) *BackendNotifier {
	return &BackendNotifier{
		url:   strings.TrimRight(backendURL, "/") + "/api/payment/webhook-update",
		token: token,
		http:  &http.Client{Timeout: timeout},
		log:   log,
	}
}

func (n *BackendNotifier) Notify(ctx context.Context, u Update) {
	if err := n.post(ctx, u); err != nil {
		n.log.Error("failed to notify backend",
			zap.String("paymentId", u.PaymentID), zap.String("status", u.Status), zap.Error(err))
		return
	}
	n.log.Info("backend notified", zap.String("paymentId", u.PaymentID), zap.String("status", u.Status))
}

func (n *BackendNotifier) post(ctx context.Context, u Update) error {
	body, err := json.Marshal(u)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("X-Service-Token", n.token)
	}
	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	return nil
}
