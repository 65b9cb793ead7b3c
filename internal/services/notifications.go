package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/models"
)

const textbeltURL = "https://textbelt.com/text"

// NotificationService sends booking confirmations by SMS through Textbelt.
type NotificationService struct {
	apiKey string
	url    string
	http   *http.Client
	log    *zap.Logger
}

func NewNotificationService(apiKey string, timeout time.Duration, log *zap.Logger) *NotificationService {
	return &NotificationService{
		apiKey: apiKey,
		url:    textbeltURL,
		http:   &http.Client{Timeout: timeout},
		log:    log,
	}
}

// BookingConfirmed texts the user when they opted into SMS and have a phone number.
func (s *NotificationService) BookingConfirmed(u *models.User, b *models.Booking) {
	if s.apiKey == "" || !u.Preferences.Notifications.SMS {
		return
	}
	if u.Phone == "" {
		s.log.Debug("SMS not sent: user has no phone number", zap.String("userId", u.ID.Hex()))
		return
	}

	smsBody := fmt.Sprintf(
		"HealTrip booking confirmed: %s (%s). Total %.2f %s.",
		bookingItem(b),
		b.ConfirmationCode,
		b.Pricing.Total,
		b.Pricing.Currency,
	)

	// off the request path
	go s.send(u.Phone, smsBody)
}

func (s *NotificationService) send(phone, message string) {
	postBody, _ := json.Marshal(map[string]string{
		"phone":   phone,
		"message": message,
		"key":     s.apiKey,
	})

	resp, err := s.http.Post(s.url, "application/json", bytes.NewBuffer(postBody))
	if err != nil {
		s.log.Warn("textbelt request failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || !result.Success {
		s.log.Warn("textbelt rejected SMS", zap.String("reason", result.Error), zap.Error(err))
		return
	}
	s.log.Info("booking confirmation SMS sent")
}
