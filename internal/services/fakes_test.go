package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/clients"
	"github.com/healtrip/healtrip-api/internal/models"
	"github.com/healtrip/healtrip-api/internal/store"
	"github.com/healtrip/healtrip-api/internal/utils"
)

var testNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

// --- users ---

type memUsers struct {
	mu        sync.Mutex
	byID      map[primitive.ObjectID]*models.User
	insertErr []error // consumed one per Insert call
	inserts   int
}

func newMemUsers(users ...*models.User) *memUsers {
	m := &memUsers{byID: map[primitive.ObjectID]*models.User{}}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) FindByExternalID(_ context.Context, externalID string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ClerkID == externalID })
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == models.NormalizeEmail(email) })
}

func (m *memUsers) Insert(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if len(m.insertErr) > 0 {
		err := m.insertErr[0]
		m.insertErr = m.insertErr[1:]
		if err != nil {
			return err
		}
	}
	for _, existing := range m.byID {
		if existing.Email == u.Email || existing.ClerkID == u.ClerkID {
			return store.ErrDuplicate
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) AttachExternalID(_ context.Context, id primitive.ObjectID, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	u.ClerkID = externalID
	return nil
}

func (m *memUsers) AddBooking(_ context.Context, userID, bookingID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.Bookings = append(u.Bookings, bookingID)
	return nil
}

func (m *memUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// --- bookings ---

type memBookings struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Booking
	// beforeUpdate runs once before the next Update, to simulate a concurrent writer.
	beforeUpdate func(m *memBookings)
}

func newMemBookings() *memBookings {
	return &memBookings{byID: map[primitive.ObjectID]models.Booking{}}
}

func (m *memBookings) Insert(_ context.Context, b *models.Booking) error {
	if err := b.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.byID {
		if other.ConfirmationCode == b.ConfirmationCode {
			return store.ErrDuplicate
		}
	}
	m.byID[b.ID] = *b
	return nil
}

func (m *memBookings) put(b *models.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[b.ID] = *b
}

func (m *memBookings) get(id primitive.ObjectID) models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
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
	if hook := m.beforeUpdate; hook != nil {
		m.beforeUpdate = nil
		hook(m)
	}
	if err := b.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[b.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != b.Version {
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
	end := min(start+p.Limit, total)
	return all[start:end], total, nil
}

func (m *memBookings) ListStalePending(_ context.Context, cutoff time.Time, limit int64) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.byID {
		if b.Status == models.StatusPending && b.Payment.Status != models.PaymentCompleted && b.CreatedAt.Before(cutoff) {
			out = append(out, b)
		}
	}
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- wellness ---

type memWellness struct {
	mu       sync.Mutex
	sessions map[primitive.ObjectID]*models.WellnessSession
	released int
}

func (m *memWellness) FindByID(_ context.Context, id primitive.ObjectID) (*models.WellnessSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memWellness) ReserveSeats(_ context.Context, id primitive.ObjectID, n int, p models.Participant) (*models.WellnessSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.Capacity.Available < n {
		return nil, store.ErrNoCapacity
	}
	s.Capacity.Booked += n
	s.Capacity.Available -= n
	s.Participants = append(s.Participants, p)
	cp := *s
	return &cp, nil
}

func (m *memWellness) ReleaseSeats(_ context.Context, id, bookingID primitive.ObjectID, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	kept := s.Participants[:0]
	for _, p := range s.Participants {
		if p.BookingID != bookingID {
			kept = append(kept, p)
		}
	}
	s.Participants = kept
	s.Capacity.Booked -= n
	s.Capacity.Available += n
	m.released++
	return nil
}

// --- collaborators ---

type fakeIdentity struct {
	profile *utils.Identity
	err     error
}

func (f *fakeIdentity) Lookup(_ context.Context, externalID string) (*utils.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := *f.profile
	return &p, nil
}

type fakePayments struct {
	mu          sync.Mutex
	order       *clients.OrderResult
	orderErr    error
	verify      *clients.VerifyResult
	verifyErr   error
	orders      []clients.OrderRequest
	verifies    []clients.VerifyRequest
	idemKeys    []string
	lastGateway string
}

func (f *fakePayments) CreateOrder(_ context.Context, gateway string, req clients.OrderRequest, idemKey string) (*clients.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastGateway = gateway
	f.orders = append(f.orders, req)
	f.idemKeys = append(f.idemKeys, idemKey)
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	return f.order, nil
}

func (f *fakePayments) Verify(_ context.Context, gateway string, req clients.VerifyRequest, idemKey string) (*clients.VerifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastGateway = gateway
	f.verifies = append(f.verifies, req)
	f.idemKeys = append(f.idemKeys, idemKey)
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verify, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	confirmed []primitive.ObjectID
}

func (f *fakeNotifier) BookingConfirmed(_ *models.User, b *models.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, b.ID)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.confirmed)
}

// --- conversations ---

type memChats struct {
	mu    sync.Mutex
	chats map[string]*models.Chat
	err   error
}

func newMemChats() *memChats { return &memChats{chats: map[string]*models.Chat{}} }

func (m *memChats) FindByUser(_ context.Context, userID string) (*models.Chat, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[userID]
	if !ok {
		return &models.Chat{UserID: userID, Messages: []models.ChatMessage{}}, nil
	}
	cp := *c
	cp.Messages = append([]models.ChatMessage(nil), c.Messages...)
	return &cp, nil
}

func (m *memChats) Append(_ context.Context, userID string, msgs ...models.ChatMessage) (*models.Chat, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[userID]
	if !ok {
		c = &models.Chat{UserID: userID}
		m.chats[userID] = c
	}
	c.Messages = append(c.Messages, msgs...)
	cp := *c
	cp.Messages = append([]models.ChatMessage(nil), c.Messages...)
	return &cp, nil
}

func (m *memChats) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, userID)
	return nil
}

type memHistories struct {
	mu   sync.Mutex
	msgs map[string][]models.HistoryMessage
}

func (m *memHistories) Append(_ context.Context, userID string, msgs ...models.HistoryMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.msgs == nil {
		m.msgs = map[string][]models.HistoryMessage{}
	}
	m.msgs[userID] = append(m.msgs[userID], msgs...)
	return nil
}

type memRecords struct {
	mu      sync.Mutex
	records map[string]models.MedicalRecord
}

func newMemRecords() *memRecords { return &memRecords{records: map[string]models.MedicalRecord{}} }

func (m *memRecords) FindByUser(_ context.Context, userID string) (*models.MedicalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (m *memRecords) Save(_ context.Context, r *models.MedicalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.UserID] = *r
	return nil
}

// fakeLLM answers completions in order; JSON requests get intent.
type fakeLLM struct {
	mu     sync.Mutex
	intent string
	reply  string
	err    error
	calls  [][]clients.Message
}

func (f *fakeLLM) Complete(_ context.Context, msgs []clients.Message, opts clients.CompletionOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msgs)
	if f.err != nil {
		return "", f.err
	}
	if opts.JSON {
		return f.intent, nil
	}
	return f.reply, nil
}

type fakeHF struct {
	reply string
	err   error
}

func (f *fakeHF) Generate(context.Context, string, string) (string, error) {
	return f.reply, f.err
}

type fakeRecs struct {
	mu        sync.Mutex
	hospitals map[string][]clients.RecommendedHospital
	yoga      map[string][]clients.YogaCenter
	hotels    *clients.HotelRecommendations
	err       error
	cities    []string
}

func (f *fakeRecs) HospitalsByCity(_ context.Context, city string) ([]clients.RecommendedHospital, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cities = append(f.cities, city)
	if f.err != nil {
		return nil, f.err
	}
	return f.hospitals[city], nil
}

func (f *fakeRecs) YogaSessions(_ context.Context, city string) ([]clients.YogaCenter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cities = append(f.cities, city)
	if f.err != nil {
		return nil, f.err
	}
	return f.yoga[city], nil
}

func (f *fakeRecs) Hotels(_ context.Context, location string) (*clients.HotelRecommendations, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cities = append(f.cities, location)
	if f.err != nil {
		return nil, f.err
	}
	return f.hotels, nil
}

var errDown = errors.New("connection refused")

// --- fixture ---

type bookingFixture struct {
	svc      *BookingService
	users    *memUsers
	bookings *memBookings
	wellness *memWellness
	payments *fakePayments
	notify   *fakeNotifier
	owner    *models.User
	ownerID  utils.Identity
}

func newBookingFixture() *bookingFixture {
	owner := models.NewUser("user_owner", "owner@example.com", "Asha", "Rao", testNow)
	f := &bookingFixture{
		users:    newMemUsers(owner),
		bookings: newMemBookings(),
		wellness: &memWellness{sessions: map[primitive.ObjectID]*models.WellnessSession{}},
		payments: &fakePayments{},
		notify:   &fakeNotifier{},
		owner:    owner,
		ownerID:  utils.Identity{ExternalID: "user_owner", Email: "owner@example.com"},
	}
	log := zap.NewNop()
	f.svc = NewBookingService(BookingDeps{
		Bookings: f.bookings,
		Users:    f.users,
		Wellness: f.wellness,
		Sync:     NewUserSync(f.users, nil, log),
		Payments: f.payments,
		Notify:   f.notify,
		Log:      log,
	})
	f.svc.now = func() time.Time { return testNow }
	return f
}

// pending stores a pending booking of the given type owned by userID.
func (f *bookingFixture) pending(userID primitive.ObjectID, t models.BookingType, total float64) *models.Booking {
	b := models.NewBooking(userID, t, models.Pricing{Subtotal: total, Total: total, Currency: "INR"}, testNow)
	switch t {
	case models.BookingWellness:
		b.Wellness = &models.WellnessBooking{SessionID: primitive.NewObjectID(), Name: "Sunrise Hatha", Participants: 1}
	case models.BookingHotel:
		b.Hotel = &models.HotelBooking{}
	case models.BookingHospital:
		b.Hospital = &models.HospitalBooking{}
	default:
		b.Package = &models.PackageBooking{PackageName: "Knee Care"}
	}
	f.bookings.put(b)
	return b
}
