package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/healtrip/healtrip-api/internal/models"
)

type UserRepo struct {
	col *mongo.Collection
}

func (r *UserRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findByID[models.User](ctx, r.col, id, "find user")
}

func (r *UserRepo) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"clerkId": externalID}).Decode(&u); err != nil {
		return nil, wrap(err, "find user by external id")
	}
	return &u, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"email": models.NormalizeEmail(email)}).Decode(&u); err != nil {
		return nil, wrap(err, "find user by email")
	}
	return &u, nil
}

func (r *UserRepo) Insert(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, u)
	return wrap(err, "insert user")
}

// AttachExternalID links an existing local user to a new provider identity.
func (r *UserRepo) AttachExternalID(ctx context.Context, id primitive.ObjectID, externalID string) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"clerkId": externalID, "updatedAt": time.Now()}})
	if err != nil {
		return wrap(err, "attach external id")
	}
	if res.MatchedCount == 0 {
		return wrap(mongo.ErrNoDocuments, "attach external id")
	}
	return nil
}

func (r *UserRepo) AddBooking(ctx context.Context, userID, bookingID primitive.ObjectID) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$addToSet": bson.M{"bookings": bookingID},
		"$set":      bson.M{"updatedAt": time.Now()},
	})
	return wrap(err, "add booking to user")
}

// ProfileUpdate holds the user-editable profile fields; nil fields are left alone.
type ProfileUpdate struct {
	FirstName    *string             `json:"firstName"`
	LastName     *string             `json:"lastName"`
	Phone        *string             `json:"phone"`
	Country      *string             `json:"country"`
	ProfileImage *string             `json:"profileImage"`
	BloodGroup   *string             `json:"bloodGroup"`
	Allergies    []string            `json:"allergies"`
	Preferences  *models.Preferences `json:"preferences"`
}

func (p ProfileUpdate) set() bson.M {
	set := bson.M{}
	if p.FirstName != nil {
		set["firstName"] = *p.FirstName
	}
	if p.LastName != nil {
		set["lastName"] = *p.LastName
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Country != nil {
		set["country"] = *p.Country
	}
	if p.ProfileImage != nil {
		set["profileImage"] = *p.ProfileImage
	}
	if p.BloodGroup != nil {
		set["bloodGroup"] = *p.BloodGroup
	}
	if p.Allergies != nil {
		set["allergies"] = p.Allergies
	}
	if p.Preferences != nil {
		set["preferences"] = *p.Preferences
	}
	return set
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id primitive.ObjectID, p ProfileUpdate) (*models.User, error) {
	set := p.set()
	set["updatedAt"] = time.Now()
	return updateFields[models.User](ctx, r.col, id, set, "update profile")
}

func (r *UserRepo) push(ctx context.Context, id primitive.ObjectID, field string, v any) (*models.User, error) {
	var u models.User
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{field: v},
		"$set":  bson.M{"updatedAt": time.Now()},
	}, returnAfter()).Decode(&u)
	if err != nil {
		return nil, wrap(err, "push "+field)
	}
	return &u, nil
}

func (r *UserRepo) AddMedicalHistory(ctx context.Context, id primitive.ObjectID, item models.MedicalHistoryItem) (*models.User, error) {
	return r.push(ctx, id, "medicalHistory", item)
}

func (r *UserRepo) AddMedication(ctx context.Context, id primitive.ObjectID, m models.Medication) (*models.User, error) {
	return r.push(ctx, id, "medications", m)
}

func (r *UserRepo) AddDocument(ctx context.Context, id primitive.ObjectID, d models.Document) (*models.User, error) {
	return r.push(ctx, id, "documents", d)
}
