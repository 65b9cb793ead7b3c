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

type ChatRepo struct {
	col *mongo.Collection
}

// FindByUser returns the transcript for userID, or an empty one if none exists yet.
func (r *ChatRepo) FindByUser(ctx context.Context, userID string) (*models.Chat, error) {
	var c models.Chat
	err := r.col.FindOne(ctx, bson.M{"userId": userID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.Chat{UserID: userID, Messages: []models.ChatMessage{}}, nil
	}
	if err != nil {
		return nil, wrap(err, "find chat")
	}
	return &c, nil
}

// Append pushes msgs onto the user's transcript, creating it on first use.
func (r *ChatRepo) Append(ctx context.Context, userID string, msgs ...models.ChatMessage) (*models.Chat, error) {
	now := time.Now()
	var c models.Chat
	err := r.col.FindOneAndUpdate(ctx, bson.M{"userId": userID}, bson.M{
		"$push":        bson.M{"messages": bson.M{"$each": msgs}},
		"$set":         bson.M{"lastUpdated": now},
		"$setOnInsert": bson.M{"createdAt": now},
	}, options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)).Decode(&c)
	if err != nil {
		return nil, wrap(err, "append chat")
	}
	return &c, nil
}

// Delete removes the transcript; deleting a missing one is not an error.
func (r *ChatRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"userId": userID})
	return wrap(err, "delete chat")
}

type ChatHistoryRepo struct {
	col *mongo.Collection
}

func (r *ChatHistoryRepo) Append(ctx context.Context, userID string, msgs ...models.HistoryMessage) error {
	now := time.Now()
	_, err := r.col.UpdateOne(ctx, bson.M{"userId": userID}, bson.M{
		"$push":        bson.M{"messages": bson.M{"$each": msgs}},
		"$set":         bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{"createdAt": now},
	}, options.Update().SetUpsert(true))
	return wrap(err, "append chat history")
}

func (r *ChatHistoryRepo) FindByUser(ctx context.Context, userID string) (*models.ChatHistory, error) {
	var h models.ChatHistory
	if err := r.col.FindOne(ctx, bson.M{"userId": userID}).Decode(&h); err != nil {
		return nil, wrap(err, "find chat history")
	}
	return &h, nil
}

type MedicalRecordRepo struct {
	col *mongo.Collection
}

func (r *MedicalRecordRepo) FindByUser(ctx context.Context, userID string) (*models.MedicalRecord, error) {
	var m models.MedicalRecord
	if err := r.col.FindOne(ctx, bson.M{"userId": userID}).Decode(&m); err != nil {
		return nil, wrap(err, "find medical record")
	}
	return &m, nil
}

// Save upserts the record keyed by its user id.
func (r *MedicalRecordRepo) Save(ctx context.Context, m *models.MedicalRecord) error {
	m.UpdatedAt = time.Now()
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	// an existing record keeps its stored _id
	_, err := r.col.UpdateOne(ctx, bson.M{"userId": m.UserID}, bson.M{
		"$set": bson.M{
			"symptoms":        m.Symptoms,
			"history":         m.History,
			"vitals":          m.Vitals,
			"files":           m.Files,
			"generatedReport": m.GeneratedReport,
			"isProcessed":     m.IsProcessed,
			"updatedAt":       m.UpdatedAt,
		},
		"$setOnInsert": bson.M{"_id": m.ID, "createdAt": m.CreatedAt},
	}, options.Update().SetUpsert(true))
	return wrap(err, "save medical record")
}
