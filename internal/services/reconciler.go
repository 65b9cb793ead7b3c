package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/models"
	"github.com/healtrip/healtrip-api/internal/store"
)

const sweepBatch = 200

// Reconciler expires bookings whose payment was never completed and hands
// reserved wellness seats back to their session.
type Reconciler struct {
	bookings BookingStore
	wellness WellnessStore
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewReconciler(bookings BookingStore, wellness WellnessStore, ttl time.Duration, log *zap.Logger) *Reconciler {
	return &Reconciler{bookings: bookings, wellness: wellness, ttl: ttl, log: log, now: time.Now}
}

// Start runs Sweep every interval until the returned scheduler is stopped.
func (r *Reconciler) Start(interval time.Duration) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		n, err := r.Sweep(ctx)
		if err != nil {
			r.log.Error("stale booking sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			r.log.Info("expired stale bookings", zap.Int("count", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule reconciler: %w", err)
	}
	scheduler.StartAsync()
	r.log.Info("booking reconciler started", zap.Duration("interval", interval), zap.Duration("ttl", r.ttl))
	return scheduler, nil
}

// Sweep cancels pending, unpaid bookings older than the TTL and reports how
// many it cancelled. A booking changed concurrently is skipped.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	now := r.now()
	stale, err := r.bookings.ListStalePending(ctx, now.Add(-r.ttl), sweepBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range stale {
		b := &stale[i]
		reason := fmt.Sprintf("payment not completed within %s", r.ttl)
		if err := b.Cancel("system", reason, models.RefundNone, now); err != nil {
			continue
		}
		err := r.bookings.Update(ctx, b)
		switch {
		case errors.Is(err, store.ErrConflict):
			r.log.Debug("stale booking changed during sweep", zap.String("bookingId", b.ID.Hex()))
			continue
		case err != nil:
			return n, err
		}
		n++
		r.releaseSeats(ctx, b)
	}
	return n, nil
}

// releaseSeats frees the seats held by an expired wellness booking. The
// booking is already cancelled, so a failure is logged for manual repair.
func (r *Reconciler) releaseSeats(ctx context.Context, b *models.Booking) {
	if b.BookingType != models.BookingWellness || b.Wellness == nil {
		return
	}
	err := r.wellness.ReleaseSeats(ctx, b.Wellness.SessionID, b.ID, b.Wellness.Participants)
	if err != nil {
		r.log.Error("failed to release seats of expired booking",
			zap.String("bookingId", b.ID.Hex()),
			zap.String("sessionId", b.Wellness.SessionID.Hex()),
			zap.Error(err))
	}
}
