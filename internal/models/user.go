package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	ClerkID        string               `bson:"clerkId" json:"clerkId"` // external auth provider id
	Email          string               `bson:"email" json:"email"`
	FirstName      string               `bson:"firstName" json:"firstName"`
	LastName       string               `bson:"lastName" json:"lastName"`
	Phone          string               `bson:"phone,omitempty" json:"phone,omitempty"`
	Country        string               `bson:"country,omitempty" json:"country,omitempty"`
	ProfileImage   string               `bson:"profileImage,omitempty" json:"profileImage,omitempty"`
	MedicalHistory []MedicalHistoryItem `bson:"medicalHistory" json:"medicalHistory"`
	Allergies      []string             `bson:"allergies" json:"allergies"`
	Medications    []Medication         `bson:"medications" json:"medications"`
	BloodGroup     string               `bson:"bloodGroup" json:"bloodGroup"`
	Documents      []Document           `bson:"documents" json:"documents"`
	Bookings       []primitive.ObjectID `bson:"bookings" json:"bookings"`
	Preferences    Preferences          `bson:"preferences" json:"preferences"`
	IsActive       bool                 `bson:"isActive" json:"isActive"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt" json:"updatedAt"`
}

type MedicalHistoryItem struct {
	Condition     string     `bson:"condition" json:"condition"`
	DiagnosedDate *time.Time `bson:"diagnosedDate,omitempty" json:"diagnosedDate,omitempty"`
	Treatment     string     `bson:"treatment,omitempty" json:"treatment,omitempty"`
	Notes         string     `bson:"notes,omitempty" json:"notes,omitempty"`
}

type Medication struct {
	Name      string `bson:"name" json:"name"`
	Dosage    string `bson:"dosage,omitempty" json:"dosage,omitempty"`
	Frequency string `bson:"frequency,omitempty" json:"frequency,omitempty"`
}

type Document struct {
	Name       string    `bson:"name" json:"name"`
	URL        string    `bson:"url" json:"url"`
	Type       string    `bson:"type" json:"type"` // prescription, report, scan, other
	UploadedAt time.Time `bson:"uploadedAt" json:"uploadedAt"`
}

type Preferences struct {
	Language      string        `bson:"language" json:"language"`
	Currency      string        `bson:"currency" json:"currency"`
	Notifications Notifications `bson:"notifications" json:"notifications"`
}

type Notifications struct {
	Email bool `bson:"email" json:"email"`
	SMS   bool `bson:"sms" json:"sms"`
}

var bloodGroups = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true, "": true,
}

// ValidBloodGroup reports whether g is one of the accepted ABO/Rh groups or empty.
func ValidBloodGroup(g string) bool {
	return bloodGroups[g]
}

// NewUser builds a user with the default preferences applied.
func NewUser(clerkID, email, firstName, lastName string, now time.Time) *User {
	return &User{
		ID:             primitive.NewObjectID(),
		ClerkID:        clerkID,
		Email:          NormalizeEmail(email),
		FirstName:      strings.TrimSpace(firstName),
		LastName:       strings.TrimSpace(lastName),
		MedicalHistory: []MedicalHistoryItem{},
		Allergies:      []string{},
		Medications:    []Medication{},
		Documents:      []Document{},
		Bookings:       []primitive.ObjectID{},
		Preferences: Preferences{
			Language:      "en",
			Currency:      "USD",
			Notifications: Notifications{Email: true},
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
