package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/clients"
	"github.com/healtrip/healtrip-api/internal/models"
	"github.com/healtrip/healtrip-api/internal/store"
	"github.com/healtrip/healtrip-api/internal/utils"
)

// BookingService drives bookings from creation through payment to
// confirmation or cancellation. Booking creation, order creation and payment
// verification are separate round trips; a booking abandoned between them
// stays pending until the Reconciler expires it.
type BookingService struct {
	bookings BookingStore
	users    UserStore
	wellness WellnessStore
	sync     *UserSync
	payments PaymentGateway
	notify   Notifier
	log      *zap.Logger
	now      func() time.Time
}

type BookingDeps struct {
	Bookings BookingStore
	Users    UserStore
	Wellness WellnessStore
	Sync     *UserSync
	Payments PaymentGateway
	Notify   Notifier // optional
	Log      *zap.Logger
}

func NewBookingService(d BookingDeps) *BookingService {
	return &BookingService{
		bookings: d.Bookings,
		users:    d.Users,
		wellness: d.Wellness,
		sync:     d.Sync,
		payments: d.Payments,
		notify:   d.Notify,
		log:      d.Log,
		now:      time.Now,
	}
}

// PackageData is a bundled hospital, hotel and flight offer as assembled by
// the assistant or the package builder.
type PackageData struct {
	PackageName  string                  `json:"packageName"`
	Includes     []string                `json:"includes"`
	StartDate    *time.Time              `json:"startDate"`
	EndDate      *time.Time              `json:"endDate"`
	DurationDays int                     `json:"durationDays"`
	Travelers    int                     `json:"travelers"`
	Hospital     *models.PackageHospital `json:"hospital"`
	Hotel        *models.PackageHotel    `json:"hotel"`
	Flight       *models.PackageFlight   `json:"flight"`
	Pricing      *models.Pricing         `json:"pricing"`
	TotalCost    float64                 `json:"totalCost"`
	Currency     string                  `json:"currency"`
	Notes        string                  `json:"notes"`
}

// pricing keeps a caller-supplied total. Missing parts are derived: the
// subtotal from the leg costs, the total from subtotal, tax and discount.
func (p *PackageData) pricing() models.Pricing {
	var pr models.Pricing
	if p.Pricing != nil {
		pr = *p.Pricing
	}
	if pr.Currency == "" {
		pr.Currency = p.Currency
	}
	if pr.Subtotal == 0 {
		pr.Subtotal = p.legCost()
		if pr.Subtotal == 0 {
			pr.Subtotal = p.TotalCost
		}
	}
	if pr.Total == 0 {
		if p.TotalCost > 0 {
			pr.Total = p.TotalCost
		} else {
			pr.Recompute()
		}
	}
	return pr
}

func (p *PackageData) legCost() float64 {
	var sum float64
	if p.Hospital != nil {
		sum += p.Hospital.Cost
	}
	if p.Hotel != nil {
		sum += p.Hotel.Cost
	}
	if p.Flight != nil {
		sum += p.Flight.Cost
	}
	return sum
}

func (p *PackageData) details() *models.PackageBooking {
	name := p.PackageName
	if name == "" && p.Hospital != nil {
		name = p.Hospital.Name + " Care Package"
	}
	if name == "" {
		name = "HealTrip Package"
	}
	includes := p.Includes
	if len(includes) == 0 {
		includes = []string{}
		if p.Hospital != nil {
			includes = append(includes, "hospital")
		}
		if p.Hotel != nil {
			includes = append(includes, "hotel")
		}
		if p.Flight != nil {
			includes = append(includes, "flight")
		}
	}
	return &models.PackageBooking{
		PackageName:  name,
		Includes:     includes,
		StartDate:    p.StartDate,
		EndDate:      p.EndDate,
		DurationDays: p.DurationDays,
		Travelers:    p.Travelers,
		Hospital:     p.Hospital,
		Hotel:        p.Hotel,
		Flight:       p.Flight,
	}
}

func parseMethod(s string, gatewayOnly bool) (models.PaymentMethod, error) {
	m := models.PaymentMethod(s)
	switch {
	case s == "":
		return "", utils.Validation("Payment method is required")
	case m.Gateway():
		return m, nil
	case m == models.MethodOther && !gatewayOnly:
		return m, nil
	}
	return "", utils.Validation("Unsupported payment method", s)
}

func parseID(s, what string) (primitive.ObjectID, error) {
	if s == "" {
		return primitive.NilObjectID, utils.Validation(what + " is required")
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, utils.Validation("Invalid " + what)
	}
	return id, nil
}

// storeErr classifies a repository error for the HTTP layer.
func storeErr(err error, notFound string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return utils.NotFound(notFound)
	case errors.Is(err, store.ErrConflict):
		return utils.Conflict("Booking was modified concurrently, please retry")
	case errors.Is(err, models.ErrVariantMismatch):
		return utils.Validation(err.Error())
	}
	var ae *utils.AppError
	if errors.As(err, &ae) {
		return err
	}
	return utils.Internal("database error", err)
}

func gatewayErr(msg string, err error) error {
	var ue *clients.UpstreamError
	if errors.As(err, &ue) {
		details := append([]string{}, ue.Errors...)
		if ue.Message != "" {
			details = append(details, ue.Message)
		}
		return &utils.AppError{Kind: utils.KindGateway, Message: msg, Errors: details}
	}
	return utils.Gateway(msg, err)
}

// CreatePackageBooking stores a bundled package as already paid and
// confirmed. Package checkout is settled outside the gateway flow.
func (s *BookingService) CreatePackageBooking(ctx context.Context, id utils.Identity, data *PackageData, method string) (*models.Booking, error) {
	if data == nil {
		return nil, utils.Validation("Package data is required")
	}
	if method == "" {
		method = string(models.MethodOther)
	}
	m, err := parseMethod(method, false)
	if err != nil {
		return nil, err
	}
	pricing := data.pricing()
	if err := pricing.Validate(); err != nil {
		return nil, utils.Validation(err.Error())
	}

	user, err := s.sync.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	b := models.NewBooking(user.ID, models.BookingPackage, pricing, now)
	b.Package = data.details()
	b.Notes = data.Notes
	b.Payment.Method = m
	b.CompletePayment("", now)

	if err := s.bookings.Insert(ctx, b); err != nil {
		return nil, storeErr(err, "Booking not found")
	}
	s.attach(ctx, user.ID, b.ID)
	s.log.Info("package booked",
		zap.String("bookingId", b.ID.Hex()),
		zap.String("confirmationCode", b.ConfirmationCode),
		zap.Float64("total", b.Pricing.Total))
	s.confirmed(user, b)
	return b, nil
}

// attach records the booking on the user; the booking itself is the source
// of truth so a failure here is only logged.
func (s *BookingService) attach(ctx context.Context, userID, bookingID primitive.ObjectID) {
	if err := s.users.AddBooking(ctx, userID, bookingID); err != nil {
		s.log.Warn("failed to add booking to user",
			zap.String("userId", userID.Hex()), zap.String("bookingId", bookingID.Hex()), zap.Error(err))
	}
}

func (s *BookingService) confirmed(u *models.User, b *models.Booking) {
	if s.notify == nil {
		return
	}
	if u == nil {
		var err error
		if u, err = s.users.FindByID(context.Background(), b.UserID); err != nil {
			s.log.Warn("no user for confirmation notice", zap.String("bookingId", b.ID.Hex()), zap.Error(err))
			return
		}
	}
	s.notify.BookingConfirmed(u, b)
}

// owned loads a booking and checks that the caller owns it.
func (s *BookingService) owned(ctx context.Context, id utils.Identity, bookingID string) (*models.Booking, *models.User, error) {
	oid, err := parseID(bookingID, "booking ID")
	if err != nil {
		return nil, nil, err
	}
	b, err := s.bookings.FindByID(ctx, oid)
	if err != nil {
		return nil, nil, storeErr(err, "Booking not found")
	}
	user, err := s.sync.Resolve(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !b.OwnedBy(user.ID) {
		return nil, nil, utils.Forbidden("Unauthorized access to booking")
	}
	return b, user, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id utils.Identity, bookingID string) (*models.Booking, error) {
	b, _, err := s.owned(ctx, id, bookingID)
	return b, err
}

// CreatePaymentOrder asks the payment service for a provider order (Razorpay)
// or payment intent (Stripe) covering the booking total.
func (s *BookingService) CreatePaymentOrder(ctx context.Context, id utils.Identity, bookingID, method, idemKey string) (*clients.OrderResult, error) {
	if bookingID == "" || method == "" {
		return nil, utils.Validation("Booking ID and payment method are required")
	}
	m, err := parseMethod(method, true)
	if err != nil {
		return nil, err
	}
	b, user, err := s.owned(ctx, id, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Payment.Status == models.PaymentCompleted {
		return nil, utils.Validation("Payment already completed")
	}
	if b.Status == models.StatusCancelled {
		return nil, utils.Validation("Booking is cancelled")
	}

	order, err := s.payments.CreateOrder(ctx, string(m), clients.OrderRequest{
		Amount:    b.Pricing.Total,
		Currency:  b.Pricing.Currency,
		BookingID: b.ID.Hex(),
		UserID:    user.ID.Hex(),
	}, idemKey)
	if err != nil {
		s.log.Error("payment order failed", zap.String("bookingId", b.ID.Hex()), zap.String("method", method), zap.Error(err))
		return nil, gatewayErr("Payment service error", err)
	}

	if err := b.MarkOrdered(m, order.ProviderOrderID(), s.now()); err != nil {
		return nil, utils.Validation("Payment already completed")
	}
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, storeErr(err, "Booking not found")
	}
	s.log.Info("payment order created",
		zap.String("bookingId", b.ID.Hex()), zap.String("method", method), zap.String("orderId", order.ProviderOrderID()))
	return order, nil
}

type VerifyInput struct {
	BookingID     string `json:"bookingId"`
	PaymentID     string `json:"paymentId"`
	OrderID       string `json:"orderId"`
	Signature     string `json:"signature"`
	PaymentMethod string `json:"paymentMethod"`
}

var ErrVerificationFailed = utils.Validation("Payment verification failed")

// VerifyPayment confirms the booking when the provider accepts the payment
// and marks the payment failed when it rejects it. Transport failures leave
// the booking untouched.
func (s *BookingService) VerifyPayment(ctx context.Context, id utils.Identity, in VerifyInput, idemKey string) (*models.Booking, error) {
	if in.BookingID == "" || in.PaymentID == "" {
		return nil, utils.Validation("Booking ID and payment ID are required")
	}
	m, err := parseMethod(in.PaymentMethod, true)
	if err != nil {
		return nil, err
	}
	b, user, err := s.owned(ctx, id, in.BookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == models.StatusCancelled {
		return nil, utils.Validation("Booking is cancelled")
	}
	if b.Payment.Status == models.PaymentCompleted {
		return b, nil
	}

	orderID := in.OrderID
	if orderID == "" {
		orderID = b.Payment.OrderID
	}
	res, err := s.payments.Verify(ctx, string(m), clients.VerifyRequest{
		OrderID:   orderID,
		PaymentID: in.PaymentID,
		Signature: in.Signature,
		BookingID: b.ID.Hex(),
	}, idemKey)
	if err != nil {
		s.log.Error("payment verification unreachable", zap.String("bookingId", b.ID.Hex()), zap.Error(err))
		return nil, gatewayErr("Failed to verify payment", err)
	}

	now := s.now()
	if !res.Success {
		b.FailPayment(now)
		b.Payment.Method = m
		if err := s.bookings.Update(ctx, b); err != nil {
			return nil, storeErr(err, "Booking not found")
		}
		s.log.Warn("payment rejected", zap.String("bookingId", b.ID.Hex()), zap.String("reason", res.Message))
		return nil, ErrVerificationFailed
	}

	txn := res.PaymentID
	if txn == "" {
		txn = in.PaymentID
	}
	b.Payment.Method = m
	b.CompletePayment(txn, now)
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, storeErr(err, "Booking not found")
	}
	s.log.Info("payment verified", zap.String("bookingId", b.ID.Hex()), zap.String("transactionId", txn))
	s.confirmed(user, b)
	return b, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, id utils.Identity, bookingID, reason string) (*models.Booking, error) {
	b, _, err := s.owned(ctx, id, bookingID)
	if err != nil {
		return nil, err
	}
	if err := b.Cancel("user", reason, models.RefundPending, s.now()); err != nil {
		return nil, utils.Validation("Booking already cancelled")
	}
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, storeErr(err, "Booking not found")
	}
	s.log.Info("booking cancelled", zap.String("bookingId", b.ID.Hex()))
	return b, nil
}

type Pagination struct {
	Total int64 `json:"total"`
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
	Pages int64 `json:"pages"`
}

type BookingPage struct {
	Bookings   []models.Booking `json:"bookings"`
	Pagination Pagination       `json:"pagination"`
}

// GetUserBookings lists the caller's bookings newest first. An identity
// that cannot be resolved yields an empty page rather than an error.
func (s *BookingService) GetUserBookings(ctx context.Context, id utils.Identity, status string, p store.Page) (*BookingPage, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	st := models.BookingStatus(status)
	if status != "" && !st.Valid() {
		return nil, utils.Validation("Invalid status filter", status)
	}
	empty := &BookingPage{Bookings: []models.Booking{}, Pagination: Pagination{Page: p.Page, Limit: p.Limit}}

	user, err := s.sync.Resolve(ctx, id)
	if err != nil {
		if utils.KindOf(err) != utils.KindUnauthorized {
			return nil, err
		}
		s.log.Warn("bookings requested for unresolved identity",
			zap.String("externalId", id.ExternalID), zap.Error(err))
		return empty, nil
	}
	list, total, err := s.bookings.ListByUser(ctx, user.ID, st, p)
	if err != nil {
		return nil, storeErr(err, "Bookings not found")
	}
	return &BookingPage{
		Bookings:   list,
		Pagination: Pagination{Total: total, Page: p.Page, Limit: p.Limit, Pages: p.Pages(total)},
	}, nil
}

// WebhookUpdate is the payment service's report of a provider event.
type WebhookUpdate struct {
	PaymentID string            `json:"paymentId"`
	OrderID   string            `json:"orderId"`
	Status    string            `json:"status"`
	Amount    float64           `json:"amount"`
	Metadata  map[string]string `json:"metadata"`
}

func (u WebhookUpdate) captured() (bool, error) {
	switch u.Status {
	case "captured", "succeeded":
		return true, nil
	case "failed":
		return false, nil
	}
	return false, utils.Validation("Unknown payment status", u.Status)
}

func (s *BookingService) locate(ctx context.Context, u WebhookUpdate) (*models.Booking, error) {
	if id := u.Metadata["bookingId"]; id != "" {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			return s.bookings.FindByID(ctx, oid)
		}
	}
	for _, ref := range []string{u.OrderID, u.PaymentID} {
		if ref == "" {
			continue
		}
		b, err := s.bookings.FindByOrderID(ctx, ref)
		if !errors.Is(err, store.ErrNotFound) {
			return b, err
		}
	}
	return nil, fmt.Errorf("webhook booking: %w", store.ErrNotFound)
}

// ApplyWebhookUpdate reconciles a booking with a provider event. It never
// overrides a completed payment or a cancelled booking.
func (s *BookingService) ApplyWebhookUpdate(ctx context.Context, u WebhookUpdate) (*models.Booking, error) {
	captured, err := u.captured()
	if err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		b, err := s.locate(ctx, u)
		if err != nil {
			return nil, storeErr(err, "Booking not found")
		}
		if b.Status == models.StatusCancelled || b.Payment.Status == models.PaymentCompleted {
			if captured && b.Status == models.StatusCancelled {
				s.log.Warn("payment captured for cancelled booking",
					zap.String("bookingId", b.ID.Hex()), zap.String("paymentId", u.PaymentID))
			}
			return b, nil
		}
		now := s.now()
		if captured {
			b.CompletePayment(u.PaymentID, now)
		} else {
			b.FailPayment(now)
		}
		err = s.bookings.Update(ctx, b)
		if errors.Is(err, store.ErrConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, storeErr(err, "Booking not found")
		}
		s.log.Info("webhook applied",
			zap.String("bookingId", b.ID.Hex()), zap.String("status", u.Status), zap.String("paymentId", u.PaymentID))
		if captured {
			s.confirmed(nil, b)
		}
		return b, nil
	}
}

type SessionSummary struct {
	Name     string          `json:"name"`
	Schedule models.Schedule `json:"schedule"`
	Location models.Location `json:"location"`
}

type WellnessBookingResult struct {
	Booking *models.Booking `json:"booking"`
	Session SessionSummary  `json:"session"`
}

// BookWellnessSession reserves seats and creates a pending wellness booking
// priced per participant from the session.
func (s *BookingService) BookWellnessSession(ctx context.Context, id utils.Identity, sessionID string, participants int, notes string) (*WellnessBookingResult, error) {
	if participants == 0 {
		participants = 1
	}
	if participants < 0 {
		return nil, utils.Validation("Number of participants must be positive")
	}
	sid, err := parseID(sessionID, "session ID")
	if err != nil {
		return nil, err
	}
	user, err := s.sync.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	session, err := s.wellness.FindByID(ctx, sid)
	if err != nil {
		return nil, storeErr(err, "Wellness session not found")
	}
	if !session.IsActive {
		return nil, utils.NotFound("Wellness session not found")
	}
	if session.Capacity.Available < participants {
		return nil, utils.Validation("Not enough seats available")
	}

	now := s.now()
	total := session.Pricing.PerPerson * float64(participants)
	b := models.NewBooking(user.ID, models.BookingWellness, models.Pricing{
		Subtotal: total,
		Total:    total,
		Currency: session.Pricing.Currency,
	}, now)
	b.Wellness = &models.WellnessBooking{SessionID: session.ID, Name: session.Name, Participants: participants}
	b.Notes = notes

	session, err = s.wellness.ReserveSeats(ctx, sid, participants, models.Participant{
		UserID: user.ID, BookingID: b.ID, Count: participants, JoinedAt: now,
	})
	if errors.Is(err, store.ErrNoCapacity) {
		return nil, utils.Validation("Not enough seats available")
	}
	if err != nil {
		return nil, storeErr(err, "Wellness session not found")
	}
	if err := s.bookings.Insert(ctx, b); err != nil {
		if rerr := s.wellness.ReleaseSeats(ctx, sid, b.ID, participants); rerr != nil {
			s.log.Error("failed to release seats", zap.String("sessionId", sid.Hex()), zap.Error(rerr))
		}
		return nil, storeErr(err, "Booking not found")
	}
	s.attach(ctx, user.ID, b.ID)
	s.log.Info("wellness session booked",
		zap.String("bookingId", b.ID.Hex()), zap.String("sessionId", sid.Hex()), zap.Int("participants", participants))
	return &WellnessBookingResult{
		Booking: b,
		Session: SessionSummary{Name: session.Name, Schedule: session.Schedule, Location: session.Location},
	}, nil
}

// AllUserBookings returns every booking of the caller, newest first.
func (s *BookingService) AllUserBookings(ctx context.Context, id utils.Identity) ([]models.Booking, error) {
	user, err := s.sync.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	list, _, err := s.bookings.ListByUser(ctx, user.ID, "", store.Page{Page: 1, Limit: 1000})
	if err != nil {
		return nil, storeErr(err, "Bookings not found")
	}
	return list, nil
}
