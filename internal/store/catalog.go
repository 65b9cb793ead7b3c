package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/healtrip/healtrip-api/internal/models"
)

var byRating = bson.D{{Key: "ratings.overall", Value: -1}}

// recoveryAny matches hotels with at least one recovery amenity.
func recoveryAny(withElevator bool) bson.A {
	or := bson.A{
		bson.M{"recoveryFriendly.wheelchairAccessible": true},
		bson.M{"recoveryFriendly.medicalBeds": true},
		bson.M{"recoveryFriendly.nurseOnCall": true},
	}
	if withElevator {
		or = append(or, bson.M{"recoveryFriendly.elevatorAccess": true})
	}
	return or
}

func locationFilter(filter bson.M, city, country string) {
	if city != "" {
		filter["location.city"] = contains(city)
	}
	if country != "" {
		filter["location.country"] = contains(country)
	}
}

func listPage[T any](ctx context.Context, col *mongo.Collection, filter bson.M, sort bson.D, p Page, what string) ([]T, int64, error) {
	opts := options.Find().SetSort(sort).SetSkip(p.Skip()).SetLimit(p.Limit)
	out, err := findAll[T](ctx, col, filter, opts)
	if err != nil {
		return nil, 0, wrap(err, what)
	}
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, wrap(err, what)
	}
	return out, total, nil
}

// --- hospitals ---

type HospitalRepo struct {
	col *mongo.Collection
}

type HospitalQuery struct {
	City      string
	Country   string
	Treatment string // treatment category
	MinRating float64
}

func (r *HospitalRepo) List(ctx context.Context, q HospitalQuery, p Page) ([]models.Hospital, int64, error) {
	filter := bson.M{"isActive": true}
	locationFilter(filter, q.City, q.Country)
	if q.Treatment != "" {
		filter["treatments.category"] = contains(q.Treatment)
	}
	if q.MinRating > 0 {
		filter["ratings.overall"] = bson.M{"$gte": q.MinRating}
	}
	sort := bson.D{{Key: "ratings.overall", Value: -1}, {Key: "isFeatured", Value: -1}}
	return listPage[models.Hospital](ctx, r.col, filter, sort, p, "list hospitals")
}

func (r *HospitalRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Hospital, error) {
	return findByID[models.Hospital](ctx, r.col, id, "find hospital")
}

func (r *HospitalRepo) SearchByTreatment(ctx context.Context, treatment, city, country string, maxPrice float64) ([]models.Hospital, error) {
	filter := bson.M{"isActive": true, "treatments.name": contains(treatment)}
	locationFilter(filter, city, country)
	if maxPrice > 0 {
		filter["treatments.pricing.max"] = bson.M{"$lte": maxPrice}
	}
	out, err := findAll[models.Hospital](ctx, r.col, filter, options.Find().SetSort(byRating))
	return out, wrap(err, "search hospitals")
}

// FindByIDs returns the hospitals among ids that exist, in no particular order.
func (r *HospitalRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Hospital, error) {
	out, err := findAll[models.Hospital](ctx, r.col, bson.M{"_id": bson.M{"$in": ids}})
	return out, wrap(err, "find hospitals")
}

// Nearby returns active hospitals within maxKm of the point, nearest first.
func (r *HospitalRepo) Nearby(ctx context.Context, lat, lng, maxKm float64) ([]models.Hospital, error) {
	filter := bson.M{
		"isActive": true,
		"location.geo": bson.M{"$near": bson.M{
			"$geometry":    bson.M{"type": "Point", "coordinates": bson.A{lng, lat}},
			"$maxDistance": maxKm * 1000,
		}},
	}
	out, err := findAll[models.Hospital](ctx, r.col, filter)
	return out, wrap(err, "nearby hospitals")
}

func (r *HospitalRepo) AddReview(ctx context.Context, id primitive.ObjectID, rv models.Review) (*models.Hospital, error) {
	return addReview[models.Hospital](ctx, r.col, id, rv, time.Now(), "review hospital")
}

func (r *HospitalRepo) Create(ctx context.Context, h *models.Hospital) error {
	now := time.Now()
	h.ID = primitive.NewObjectID()
	h.CreatedAt, h.UpdatedAt = now, now
	h.Location.SyncGeo()
	h.Ratings.Recompute(h.Reviews)
	if h.Reviews == nil {
		h.Reviews = []models.Review{}
	}
	_, err := r.col.InsertOne(ctx, h)
	return wrap(err, "create hospital")
}

func (r *HospitalRepo) Update(ctx context.Context, id primitive.ObjectID, fields map[string]any) (*models.Hospital, error) {
	return updateFields[models.Hospital](ctx, r.col, id, patch(fields, time.Now()), "update hospital")
}

// --- hotels ---

type HotelRepo struct {
	col *mongo.Collection
}

type HotelQuery struct {
	City                 string
	Country              string
	MinRating            float64
	WheelchairAccessible bool
}

func (r *HotelRepo) List(ctx context.Context, q HotelQuery, p Page) ([]models.Hotel, int64, error) {
	filter := bson.M{"isActive": true}
	locationFilter(filter, q.City, q.Country)
	if q.MinRating > 0 {
		filter["ratings.overall"] = bson.M{"$gte": q.MinRating}
	}
	if q.WheelchairAccessible {
		filter["recoveryFriendly.wheelchairAccessible"] = true
	}
	return listPage[models.Hotel](ctx, r.col, filter, byRating, p, "list hotels")
}

func (r *HotelRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Hotel, error) {
	return findByID[models.Hotel](ctx, r.col, id, "find hotel")
}

func (r *HotelRepo) NearHospital(ctx context.Context, hospitalID primitive.ObjectID, recoveryOnly bool) ([]models.Hotel, error) {
	filter := bson.M{"isActive": true, "nearbyHospitals.hospitalId": hospitalID}
	if recoveryOnly {
		filter["$or"] = recoveryAny(false)
	}
	out, err := findAll[models.Hotel](ctx, r.col, filter, options.Find().SetSort(byRating))
	return out, wrap(err, "hotels near hospital")
}

func (r *HotelRepo) RecoveryFriendly(ctx context.Context, city, country string) ([]models.Hotel, error) {
	filter := bson.M{"isActive": true, "$or": recoveryAny(true)}
	locationFilter(filter, city, country)
	out, err := findAll[models.Hotel](ctx, r.col, filter, options.Find().SetSort(byRating))
	return out, wrap(err, "recovery-friendly hotels")
}

func (r *HotelRepo) AddReview(ctx context.Context, id primitive.ObjectID, rv models.Review) (*models.Hotel, error) {
	return addReview[models.Hotel](ctx, r.col, id, rv, time.Now(), "review hotel")
}

func (r *HotelRepo) Create(ctx context.Context, h *models.Hotel) error {
	now := time.Now()
	h.ID = primitive.NewObjectID()
	h.CreatedAt, h.UpdatedAt = now, now
	h.Location.SyncGeo()
	h.Ratings.Recompute(h.Reviews)
	if h.Reviews == nil {
		h.Reviews = []models.Review{}
	}
	_, err := r.col.InsertOne(ctx, h)
	return wrap(err, "create hotel")
}

func (r *HotelRepo) Update(ctx context.Context, id primitive.ObjectID, fields map[string]any) (*models.Hotel, error) {
	return updateFields[models.Hotel](ctx, r.col, id, patch(fields, time.Now()), "update hotel")
}

// --- wellness sessions ---

type WellnessRepo struct {
	col *mongo.Collection
}

type WellnessQuery struct {
	Type    models.WellnessType
	City    string
	Country string
	From    *time.Time
}

func (r *WellnessRepo) List(ctx context.Context, q WellnessQuery, p Page) ([]models.WellnessSession, int64, error) {
	filter := bson.M{"isActive": true}
	if q.Type != "" {
		filter["type"] = q.Type
	}
	locationFilter(filter, q.City, q.Country)
	if q.From != nil {
		filter["schedule.startDate"] = bson.M{"$gte": *q.From}
	}
	sort := bson.D{{Key: "schedule.startDate", Value: 1}, {Key: "isFeatured", Value: -1}}
	return listPage[models.WellnessSession](ctx, r.col, filter, sort, p, "list wellness sessions")
}

func (r *WellnessRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.WellnessSession, error) {
	return findByID[models.WellnessSession](ctx, r.col, id, "find wellness session")
}

// ReserveSeats books n seats only while at least n remain, in one update.
func (r *WellnessRepo) ReserveSeats(ctx context.Context, id primitive.ObjectID, n int, p models.Participant) (*models.WellnessSession, error) {
	filter := bson.M{"_id": id, "isActive": true, "capacity.available": bson.M{"$gte": n}}
	update := bson.M{
		"$inc":  bson.M{"capacity.booked": n, "capacity.available": -n},
		"$push": bson.M{"participants": p},
		"$set":  bson.M{"updatedAt": time.Now()},
	}
	var s models.WellnessSession
	err := r.col.FindOneAndUpdate(ctx, filter, update, returnAfter()).Decode(&s)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, wrap(err, "reserve seats")
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrNoCapacity
}

// ReleaseSeats undoes ReserveSeats for a booking that could not be stored.
func (r *WellnessRepo) ReleaseSeats(ctx context.Context, id, bookingID primitive.ObjectID, n int) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id, "participants.bookingId": bookingID}, bson.M{
		"$inc":  bson.M{"capacity.booked": -n, "capacity.available": n},
		"$pull": bson.M{"participants": bson.M{"bookingId": bookingID}},
		"$set":  bson.M{"updatedAt": time.Now()},
	})
	return wrap(err, "release seats")
}

func (r *WellnessRepo) AddReview(ctx context.Context, id primitive.ObjectID, rv models.Review) (*models.WellnessSession, error) {
	return addReview[models.WellnessSession](ctx, r.col, id, rv, time.Now(), "review wellness session")
}

func (r *WellnessRepo) Create(ctx context.Context, s *models.WellnessSession) error {
	now := time.Now()
	s.ID = primitive.NewObjectID()
	s.CreatedAt, s.UpdatedAt = now, now
	s.Location.SyncGeo()
	s.Capacity.Finalize()
	s.Ratings.Recompute(s.Reviews)
	if s.Reviews == nil {
		s.Reviews = []models.Review{}
	}
	if s.Participants == nil {
		s.Participants = []models.Participant{}
	}
	_, err := r.col.InsertOne(ctx, s)
	return wrap(err, "create wellness session")
}

// Update applies fields and, when capacity changed, re-derives available seats.
func (r *WellnessRepo) Update(ctx context.Context, id primitive.ObjectID, fields map[string]any) (*models.WellnessSession, error) {
	s, err := updateFields[models.WellnessSession](ctx, r.col, id, patch(fields, time.Now()), "update wellness session")
	if err != nil {
		return nil, err
	}
	want := s.Capacity
	want.Finalize()
	if want.Available == s.Capacity.Available {
		return s, nil
	}
	return updateFields[models.WellnessSession](ctx, r.col, id, bson.M{"capacity.available": want.Available}, "finalize capacity")
}

// --- flights and cabs ---

type FlightRepo struct {
	col *mongo.Collection
}

// Search matches origin and destination by substring; a zero date matches any day.
func (r *FlightRepo) Search(ctx context.Context, from, to string, date time.Time) ([]models.Flight, error) {
	filter := bson.M{}
	if from != "" {
		filter["origin"] = contains(from)
	}
	if to != "" {
		filter["destination"] = contains(to)
	}
	if !date.IsZero() {
		start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		filter["departureTime"] = bson.M{"$gte": start, "$lt": start.AddDate(0, 0, 1)}
	}
	out, err := findAll[models.Flight](ctx, r.col, filter, options.Find().SetSort(bson.D{{Key: "price", Value: 1}}))
	return out, wrap(err, "search flights")
}

func (r *FlightRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Flight, error) {
	return findByID[models.Flight](ctx, r.col, id, "find flight")
}

type CabRepo struct {
	col *mongo.Collection
}

func (r *CabRepo) Search(ctx context.Context, location, vehicleType string) ([]models.Cab, error) {
	filter := bson.M{"isAvailable": true}
	if location != "" {
		filter["location"] = contains(location)
	}
	if vehicleType != "" {
		filter["vehicleType"] = vehicleType
	}
	out, err := findAll[models.Cab](ctx, r.col, filter, options.Find().SetSort(bson.D{{Key: "rating", Value: -1}}))
	return out, wrap(err, "search cabs")
}

func (r *CabRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Cab, error) {
	return findByID[models.Cab](ctx, r.col, id, "find cab")
}
