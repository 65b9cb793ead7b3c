package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MedicalRecord struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          string             `bson:"userId" json:"userId"`
	Symptoms        []string           `bson:"symptoms" json:"symptoms"`
	History         []string           `bson:"history" json:"history"`
	Vitals          map[string]string  `bson:"vitals,omitempty" json:"vitals,omitempty"`
	Files           []RecordFile       `bson:"files" json:"files"`
	GeneratedReport string             `bson:"generatedReport,omitempty" json:"generatedReport,omitempty"`
	IsProcessed     bool               `bson:"isProcessed" json:"isProcessed"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type RecordFile struct {
	FileName   string    `bson:"fileName" json:"fileName"`
	FileType   string    `bson:"fileType,omitempty" json:"fileType,omitempty"`
	URL        string    `bson:"url,omitempty" json:"url,omitempty"`
	UploadDate time.Time `bson:"uploadDate" json:"uploadDate"`
}

func NewMedicalRecord(userID string, now time.Time) *MedicalRecord {
	return &MedicalRecord{
		UserID:    userID,
		Symptoms:  []string{},
		History:   []string{},
		Files:     []RecordFile{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Merge appends symptoms and history entries not already recorded.
// It reports whether anything changed.
func (r *MedicalRecord) Merge(symptoms, history []string) bool {
	before := len(r.Symptoms) + len(r.History)
	r.Symptoms = appendUnique(r.Symptoms, symptoms)
	r.History = appendUnique(r.History, history)
	return len(r.Symptoms)+len(r.History) != before
}

func appendUnique(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range src {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}

// Report renders the plain-text medical summary.
func (r *MedicalRecord) Report(now time.Time) string {
	var b strings.Builder
	b.WriteString("MEDICAL SUMMARY REPORT\n")
	b.WriteString("----------------------\n")
	fmt.Fprintf(&b, "Date: %s\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "Patient ID: %s\n\n", r.UserID)
	writeSection(&b, "SYMPTOMS", r.Symptoms, "None recorded")
	writeSection(&b, "MEDICAL HISTORY", r.History, "None recorded")
	names := make([]string, 0, len(r.Files))
	for _, f := range r.Files {
		names = append(names, f.FileName)
	}
	writeSection(&b, "ATTACHMENTS", names, "None")
	b.WriteString("Generated by HealTrip AI\n")
	return b.String()
}

func writeSection(b *strings.Builder, title string, items []string, empty string) {
	b.WriteString(title + ":\n")
	if len(items) == 0 {
		b.WriteString(empty + "\n\n")
		return
	}
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
	b.WriteString("\n")
}
