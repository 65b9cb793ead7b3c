package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBackendNotifier(t *testing.T) {
	var got Update
	var path, token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, token = r.URL.Path, r.Header.Get("X-Service-Token")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	n := NewBackendNotifier(srv.URL+"/", "svc-token", time.Second, zap.New(core))
	n.Notify(context.Background(), Update{PaymentID: "pay_1", OrderID: "order_1", Status: "captured", Amount: 1500})

	if path != "/api/payment/webhook-update" || token != "svc-token" {
		t.Errorf("request = %s token=%q", path, token)
	}
	if got.PaymentID != "pay_1" || got.Status != "captured" || got.Amount != 1500 {
		t.Errorf("update = %+v", got)
	}
	if logs.FilterMessage("backend notified").Len() != 1 {
		t.Error("success not logged")
	}
}

func TestBackendNotifierFailureIsLogged(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	n := NewBackendNotifier(srv.URL, "", time.Second, zap.New(core))
	n.Notify(context.Background(), Update{PaymentID: "pay_1", Status: "failed"})

	if calls != 1 {
		t.Errorf("attempts = %d, want a single attempt", calls)
	}
	if logs.FilterMessage("failed to notify backend").Len() != 1 {
		t.Error("failure not logged")
	}
}
