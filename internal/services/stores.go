package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/healtrip/healtrip-api/internal/clients"
	"github.com/healtrip/healtrip-api/internal/models"
	"github.com/healtrip/healtrip-api/internal/store"
	"github.com/healtrip/healtrip-api/internal/utils"
)

// The interfaces below are satisfied by the Mongo repositories in package
// store and by in-memory fakes in tests.

type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Insert(ctx context.Context, u *models.User) error
	AttachExternalID(ctx context.Context, id primitive.ObjectID, externalID string) error
	AddBooking(ctx context.Context, userID, bookingID primitive.ObjectID) error
}

type BookingStore interface {
	Insert(ctx context.Context, b *models.Booking) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.Booking, error)
	Update(ctx context.Context, b *models.Booking) error
	ListByUser(ctx context.Context, userID primitive.ObjectID, status models.BookingStatus, p store.Page) ([]models.Booking, int64, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int64) ([]models.Booking, error)
}

type WellnessStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.WellnessSession, error)
	ReserveSeats(ctx context.Context, id primitive.ObjectID, n int, p models.Participant) (*models.WellnessSession, error)
	ReleaseSeats(ctx context.Context, id, bookingID primitive.ObjectID, n int) error
}

type ChatStore interface {
	FindByUser(ctx context.Context, userID string) (*models.Chat, error)
	Append(ctx context.Context, userID string, msgs ...models.ChatMessage) (*models.Chat, error)
	Delete(ctx context.Context, userID string) error
}

type ChatHistoryStore interface {
	Append(ctx context.Context, userID string, msgs ...models.HistoryMessage) error
}

type MedicalRecordStore interface {
	FindByUser(ctx context.Context, userID string) (*models.MedicalRecord, error)
	Save(ctx context.Context, m *models.MedicalRecord) error
}

// PaymentGateway is the payment microservice as seen by the backend.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, gateway string, req clients.OrderRequest, idemKey string) (*clients.OrderResult, error)
	Verify(ctx context.Context, gateway string, req clients.VerifyRequest, idemKey string) (*clients.VerifyResult, error)
}

type IdentityLookup interface {
	Lookup(ctx context.Context, externalID string) (*utils.Identity, error)
}

// Notifier is told about bookings that became confirmed.
type Notifier interface {
	BookingConfirmed(u *models.User, b *models.Booking)
}

type LLM interface {
	Complete(ctx context.Context, msgs []clients.Message, opts clients.CompletionOptions) (string, error)
}

type TextGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

type Recommendations interface {
	HospitalsByCity(ctx context.Context, city string) ([]clients.RecommendedHospital, error)
	YogaSessions(ctx context.Context, city string) ([]clients.YogaCenter, error)
	Hotels(ctx context.Context, location string) (*clients.HotelRecommendations, error)
}
