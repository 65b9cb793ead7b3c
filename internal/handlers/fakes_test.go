package handlers

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/healtrip/healtrip-api/internal/clients"
	"github.com/healtrip/healtrip-api/internal/models"
	"github.com/healtrip/healtrip-api/internal/store"
)

type memUsers struct {
	mu    sync.Mutex
	users []*models.User
}

func (m *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *memUsers) FindByExternalID(_ context.Context, ext string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ClerkID == ext })
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == models.NormalizeEmail(email) })
}

func (m *memUsers) Insert(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users = append(m.users, &cp)
	return nil
}

func (m *memUsers) AttachExternalID(_ context.Context, id primitive.ObjectID, ext string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			u.ClerkID = ext
		}
	}
	return nil
}

func (m *memUsers) AddBooking(context.Context, primitive.ObjectID, primitive.ObjectID) error {
	return nil
}

type memBookings struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Booking
}

func (m *memBookings) Insert(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[b.ID] = *b
	return nil
}

func (m *memBookings) FindByID(_ context.Context, id primitive.ObjectID) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (m *memBookings) FindByOrderID(_ context.Context, orderID string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.byID {
		if b.Payment.OrderID == orderID {
			return &b, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memBookings) Update(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.byID[b.ID]; !ok || cur.Version != b.Version {
		return store.ErrConflict
	}
	b.Version++
	m.byID[b.ID] = *b
	return nil
}

func (m *memBookings) ListByUser(_ context.Context, userID primitive.ObjectID, status models.BookingStatus, p store.Page) ([]models.Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.Booking
	for _, b := range m.byID {
		if b.UserID == userID && (status == "" || b.Status == status) {
			all = append(all, b)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	start := min(p.Skip(), total)
	return all[start:min(start+p.Limit, total)], total, nil
}

func (m *memBookings) ListStalePending(context.Context, time.Time, int64) ([]models.Booking, error) {
	return nil, nil
}

type noWellness struct{}

func (noWellness) FindByID(context.Context, primitive.ObjectID) (*models.WellnessSession, error) {
	return nil, store.ErrNotFound
}

func (noWellness) ReserveSeats(context.Context, primitive.ObjectID, int, models.Participant) (*models.WellnessSession, error) {
	return nil, store.ErrNotFound
}

func (noWellness) ReleaseSeats(context.Context, primitive.ObjectID, primitive.ObjectID, int) error {
	return nil
}

type fakePayments struct {
	mu     sync.Mutex
	orders int
	verify *clients.VerifyResult
}

func (f *fakePayments) CreateOrder(_ context.Context, _ string, req clients.OrderRequest, _ string) (*clients.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders++
	return &clients.OrderResult{OrderID: "order_" + req.BookingID, Amount: req.Amount * 100, Currency: req.Currency}, nil
}

func (f *fakePayments) Verify(context.Context, string, clients.VerifyRequest, string) (*clients.VerifyResult, error) {
	return f.verify, nil
}

type memHospitals struct {
	list []models.Hospital
}

func (m *memHospitals) SearchByTreatment(_ context.Context, treatment, _, _ string, _ float64) ([]models.Hospital, error) {
	var out []models.Hospital
	for _, h := range m.list {
		if h.TreatmentMatching(treatment) != nil {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memHospitals) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Hospital, error) {
	var out []models.Hospital
	for _, h := range m.list {
		if slices.Contains(ids, h.ID) {
			out = append(out, h)
		}
	}
	return out, nil
}
