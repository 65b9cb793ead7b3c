package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleBot       ChatRole = "bot"
	RoleAssistant ChatRole = "assistant"
)

// Chat is the transcript used by the buddy and chat assistants, one per user.
type Chat struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      string             `bson:"userId" json:"userId"`
	Messages    []ChatMessage      `bson:"messages" json:"messages"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	LastUpdated time.Time          `bson:"lastUpdated" json:"lastUpdated"`
}

type ChatMessage struct {
	Role      ChatRole      `bson:"role" json:"role"` // user or bot
	Content   string        `bson:"content" json:"content"`
	Type      string        `bson:"type" json:"type"` // text, packages
	Packages  []PackageCard `bson:"packages,omitempty" json:"packages,omitempty"`
	Timestamp time.Time     `bson:"timestamp" json:"timestamp"`
}

// PackageCard is a recommendation card shown next to a reply.
type PackageCard struct {
	ID       string  `bson:"id" json:"id"`
	Type     string  `bson:"type" json:"type"` // medical, wellness
	Title    string  `bson:"title" json:"title"`
	Subtitle string  `bson:"subtitle" json:"subtitle"`
	Location string  `bson:"location" json:"location"`
	Rating   float64 `bson:"rating,omitempty" json:"rating,omitempty"`
	Price    string  `bson:"price" json:"price"`
	Image    string  `bson:"image,omitempty" json:"image,omitempty"`
}

// ChatHistory backs the general AI assistant; roles are user and assistant.
type ChatHistory struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"userId" json:"userId"`
	Messages  []HistoryMessage   `bson:"messages" json:"messages"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type HistoryMessage struct {
	Role      ChatRole         `bson:"role" json:"role"`
	Content   string           `bson:"content" json:"content"`
	Timestamp time.Time        `bson:"timestamp" json:"timestamp"`
	Metadata  *HistoryMetadata `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

type HistoryMetadata struct {
	Hospitals []HospitalMatch `bson:"hospitals,omitempty" json:"hospitals,omitempty"`
	Packages  []PackageSketch `bson:"packages,omitempty" json:"packages,omitempty"`
}

type HospitalMatch struct {
	Name       string  `bson:"name" json:"name"`
	City       string  `bson:"city" json:"city"`
	Rating     float64 `bson:"rating" json:"rating"`
	Specialty  string  `bson:"specialty" json:"specialty"`
	MatchScore float64 `bson:"matchScore" json:"matchScore"`
}

type PackageSketch struct {
	Hospital  string  `bson:"hospital" json:"hospital"`
	Hotel     string  `bson:"hotel" json:"hotel"`
	Flight    string  `bson:"flight" json:"flight"`
	TotalCost float64 `bson:"totalCost" json:"totalCost"`
}

// LastN returns at most n trailing messages.
func (c *Chat) LastN(n int) []ChatMessage {
	if len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}
