package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/healtrip/healtrip-api/internal/models"
)

type BookingRepo struct {
	col *mongo.Collection
}

func (r *BookingRepo) Insert(ctx context.Context, b *models.Booking) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := r.col.InsertOne(ctx, b)
	return wrap(err, "insert booking")
}

func (r *BookingRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	return findByID[models.Booking](ctx, r.col, id, "find booking")
}

func (r *BookingRepo) FindByOrderID(ctx context.Context, orderID string) (*models.Booking, error) {
	var b models.Booking
	if err := r.col.FindOne(ctx, bson.M{"payment.orderId": orderID}).Decode(&b); err != nil {
		return nil, wrap(err, "find booking by order id")
	}
	return &b, nil
}

// Update replaces b only if the stored version still equals b.Version, then
// bumps b.Version. A stale write returns ErrConflict.
func (r *BookingRepo) Update(ctx context.Context, b *models.Booking) error {
	if err := b.Validate(); err != nil {
		return err
	}
	expected := b.Version
	next := *b
	next.Version = expected + 1
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": b.ID, "version": expected}, &next)
	if err != nil {
		return wrap(err, "update booking")
	}
	if res.MatchedCount == 0 {
		n, err := r.col.CountDocuments(ctx, bson.M{"_id": b.ID})
		if err != nil {
			return wrap(err, "update booking")
		}
		if n == 0 {
			return wrap(mongo.ErrNoDocuments, "update booking")
		}
		return ErrConflict
	}
	b.Version = next.Version
	return nil
}

func (r *BookingRepo) ListByUser(ctx context.Context, userID primitive.ObjectID, status models.BookingStatus, p Page) ([]models.Booking, int64, error) {
	filter := bson.M{"userId": userID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(p.Skip()).
		SetLimit(p.Limit)
	out, err := findAll[models.Booking](ctx, r.col, filter, opts)
	if err != nil {
		return nil, 0, wrap(err, "list bookings")
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, wrap(err, "count bookings")
	}
	return out, total, nil
}

// ListStalePending returns pending, unpaid bookings created before cutoff.
func (r *BookingRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int64) ([]models.Booking, error) {
	filter := bson.M{
		"status":         models.StatusPending,
		"payment.status": bson.M{"$ne": models.PaymentCompleted},
		"createdAt":      bson.M{"$lt": cutoff},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(limit)
	out, err := findAll[models.Booking](ctx, r.col, filter, opts)
	return out, wrap(err, "list stale bookings")
}
