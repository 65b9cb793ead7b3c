package services

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/models"
)

func TestSweepExpiresStalePending(t *testing.T) {
	f := newBookingFixture()
	r := NewReconciler(f.bookings, f.wellness, 30*time.Minute, zap.NewNop())
	r.now = func() time.Time { return testNow.Add(time.Hour) }

	stale := f.pending(f.owner.ID, models.BookingHotel, 100)
	fresh := f.pending(f.owner.ID, models.BookingHotel, 100)
	fresh.CreatedAt = testNow.Add(45 * time.Minute)
	f.bookings.put(fresh)
	paid := f.pending(f.owner.ID, models.BookingHotel, 100)
	paid.CompletePayment("pay_1", testNow)
	f.bookings.put(paid)

	n, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired %d bookings, want 1", n)
	}
	got := f.bookings.get(stale.ID)
	if got.Status != models.StatusCancelled || got.Cancellation.CancelledBy != "system" {
		t.Errorf("stale booking = %s by %q", got.Status, got.Cancellation.CancelledBy)
	}
	if got.Cancellation.RefundStatus != models.RefundNone {
		t.Errorf("refund status = %s, want none", got.Cancellation.RefundStatus)
	}
	if s := f.bookings.get(fresh.ID).Status; s != models.StatusPending {
		t.Errorf("fresh booking = %s", s)
	}
	if s := f.bookings.get(paid.ID).Status; s != models.StatusConfirmed {
		t.Errorf("paid booking = %s", s)
	}

	n, err = r.Sweep(context.Background())
	if err != nil || n != 0 {
		t.Errorf("second sweep = %d, %v; want 0", n, err)
	}
}

func TestSweepReleasesWellnessSeats(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	sid := primitive.NewObjectID()
	f.wellness.sessions[sid] = &models.WellnessSession{
		ID: sid, Name: "Himalayan Yoga Retreat", IsActive: true,
		Capacity: models.Capacity{Total: 4, Booked: 0, Available: 4},
		Pricing:  models.SessionPricing{PerPerson: 500, Currency: "INR"},
	}
	abandoned, err := f.svc.BookWellnessSession(ctx, f.ownerID, sid.Hex(), 3, "")
	if err != nil {
		t.Fatalf("BookWellnessSession: %v", err)
	}
	kept, err := f.svc.BookWellnessSession(ctx, f.ownerID, sid.Hex(), 1, "")
	if err != nil {
		t.Fatalf("BookWellnessSession: %v", err)
	}
	kept.Booking.CompletePayment("pay_1", testNow)
	f.bookings.put(kept.Booking)

	r := NewReconciler(f.bookings, f.wellness, 30*time.Minute, zap.NewNop())
	r.now = func() time.Time { return testNow.Add(time.Hour) }
	n, err := r.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v; want 1", n, err)
	}

	if got := f.bookings.get(abandoned.Booking.ID); got.Status != models.StatusCancelled {
		t.Errorf("abandoned booking = %s", got.Status)
	}
	s := f.wellness.sessions[sid]
	if s.Capacity.Booked != 1 || s.Capacity.Available != 3 {
		t.Errorf("capacity = %+v, want 1 booked / 3 available", s.Capacity)
	}
	if len(s.Participants) != 1 || s.Participants[0].BookingID != kept.Booking.ID {
		t.Errorf("participants = %+v, want only the paid booking", s.Participants)
	}
}

func TestSweepLeavesSeatsOfHotelBookings(t *testing.T) {
	f := newBookingFixture()
	f.pending(f.owner.ID, models.BookingHotel, 100)
	r := NewReconciler(f.bookings, f.wellness, time.Minute, zap.NewNop())
	r.now = func() time.Time { return testNow.Add(time.Hour) }
	if n, err := r.Sweep(context.Background()); err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v", n, err)
	}
	if f.wellness.released != 0 {
		t.Errorf("released seats %d times for a hotel booking", f.wellness.released)
	}
}

func TestSweepSkipsConcurrentChange(t *testing.T) {
	f := newBookingFixture()
	r := NewReconciler(f.bookings, f.wellness, time.Minute, zap.NewNop())
	r.now = func() time.Time { return testNow.Add(time.Hour) }

	b := f.pending(f.owner.ID, models.BookingHotel, 100)
	f.bookings.beforeUpdate = func(m *memBookings) {
		cur := m.byID[b.ID]
		cur.CompletePayment("pay_late", testNow.Add(time.Hour))
		cur.Version++
		m.byID[b.ID] = cur
	}

	n, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("expired %d, want 0", n)
	}
	if got := f.bookings.get(b.ID); got.Status != models.StatusConfirmed {
		t.Errorf("late payment overwritten: %s", got.Status)
	}
}

func TestReconcilerStart(t *testing.T) {
	f := newBookingFixture()
	r := NewReconciler(f.bookings, f.wellness, time.Minute, zap.NewNop())
	s, err := r.Start(time.Hour)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()
	if !s.IsRunning() {
		t.Error("scheduler not running")
	}
}
