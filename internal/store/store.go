package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate key")
	ErrConflict   = errors.New("concurrent modification")
	ErrNoCapacity = errors.New("not enough seats available")
)

// Store groups the Mongo repositories of the backend.
type Store struct {
	db *mongo.Database

	Users          *UserRepo
	Bookings       *BookingRepo
	Hospitals      *HospitalRepo
	Hotels         *HotelRepo
	Wellness       *WellnessRepo
	Flights        *FlightRepo
	Cabs           *CabRepo
	Chats          *ChatRepo
	ChatHistories  *ChatHistoryRepo
	MedicalRecords *MedicalRecordRepo
}

func New(db *mongo.Database) *Store {
	return &Store{
		db:             db,
		Users:          &UserRepo{col: db.Collection("users")},
		Bookings:       &BookingRepo{col: db.Collection("bookings")},
		Hospitals:      &HospitalRepo{col: db.Collection("hospitals")},
		Hotels:         &HotelRepo{col: db.Collection("hotels")},
		Wellness:       &WellnessRepo{col: db.Collection("wellnesssessions")},
		Flights:        &FlightRepo{col: db.Collection("flights")},
		Cabs:           &CabRepo{col: db.Collection("cabs")},
		Chats:          &ChatRepo{col: db.Collection("chats")},
		ChatHistories:  &ChatHistoryRepo{col: db.Collection("chathistories")},
		MedicalRecords: &MedicalRecordRepo{col: db.Collection("medicalrecords")},
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	sets := map[*mongo.Collection][]mongo.IndexModel{
		s.Users.col: {
			{Keys: bson.D{{Key: "clerkId", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		s.Bookings.col: {
			{Keys: bson.D{{Key: "confirmationCode", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "payment.status", Value: 1}}},
			{Keys: bson.D{{Key: "payment.orderId", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		s.Hospitals.col: {
			{Keys: bson.D{{Key: "location.geo", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "location.city", Value: 1}, {Key: "ratings.overall", Value: -1}}},
		},
		s.Hotels.col: {
			{Keys: bson.D{{Key: "location.geo", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "nearbyHospitals.hospitalId", Value: 1}}},
		},
		s.Wellness.col: {
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "schedule.startDate", Value: 1}}},
		},
		s.Chats.col: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: unique},
		},
		s.ChatHistories.col: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "messages.timestamp", Value: -1}}},
		},
		s.MedicalRecords.col: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: unique},
		},
	}
	for col, models := range sets {
		if _, err := col.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("indexes on %s: %w", col.Name(), err)
		}
	}
	return nil
}

// Page is a 1-based page request.
type Page struct {
	Page  int64
	Limit int64
}

func (p Page) Skip() int64 {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Pages returns the number of pages needed for total items.
func (p Page) Pages(total int64) int64 {
	if p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

func wrap(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w: %v", what, ErrDuplicate, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// contains builds a case-insensitive substring match on user input.
func contains(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// patch strips fields callers must not overwrite through a generic update.
func patch(fields map[string]any, now time.Time) bson.M {
	set := bson.M{}
	for k, v := range fields {
		switch k {
		case "_id", "id", "reviews", "ratings", "participants", "createdAt":
			continue
		}
		set[k] = v
	}
	set["updatedAt"] = now
	return set
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findByID[T any](ctx context.Context, col *mongo.Collection, id primitive.ObjectID, what string) (*T, error) {
	var out T
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&out); err != nil {
		return nil, wrap(err, what)
	}
	return &out, nil
}

// addReview appends r and recomputes the rating mean inside one update
// pipeline, then returns the updated document.
func addReview[T any](ctx context.Context, col *mongo.Collection, id primitive.ObjectID, r any, now time.Time, what string) (*T, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "reviews", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$reviews", bson.A{}}}},
				bson.A{bson.D{{Key: "$literal", Value: r}}},
			}}}},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "ratings.overall", Value: bson.D{{Key: "$avg", Value: "$reviews.rating"}}},
			{Key: "ratings.totalReviews", Value: bson.D{{Key: "$size", Value: "$reviews"}}},
			{Key: "updatedAt", Value: now},
		}}},
	}
	var out T
	err := col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, returnAfter()).Decode(&out)
	if err != nil {
		return nil, wrap(err, what)
	}
	return &out, nil
}

func updateFields[T any](ctx context.Context, col *mongo.Collection, id primitive.ObjectID, set bson.M, what string) (*T, error) {
	var out T
	err := col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, returnAfter()).Decode(&out)
	if err != nil {
		return nil, wrap(err, what)
	}
	return &out, nil
}

func returnAfter() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}
