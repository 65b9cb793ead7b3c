package models

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Location struct {
	Address     string      `bson:"address" json:"address"`
	City        string      `bson:"city" json:"city"`
	State       string      `bson:"state,omitempty" json:"state,omitempty"`
	Country     string      `bson:"country" json:"country"`
	ZipCode     string      `bson:"zipCode,omitempty" json:"zipCode,omitempty"`
	Coordinates Coordinates `bson:"coordinates" json:"coordinates"`
	Geo         *GeoPoint   `bson:"geo,omitempty" json:"-"`
}

type Coordinates struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// GeoPoint is the GeoJSON form indexed with 2dsphere.
type GeoPoint struct {
	Type        string     `bson:"type" json:"type"`
	Coordinates [2]float64 `bson:"coordinates" json:"coordinates"` // lng, lat
}

// SyncGeo derives the indexed point from the plain coordinates.
func (l *Location) SyncGeo() {
	l.Geo = &GeoPoint{Type: "Point", Coordinates: [2]float64{l.Coordinates.Longitude, l.Coordinates.Latitude}}
}

type Contact struct {
	Phone          string `bson:"phone" json:"phone"`
	Email          string `bson:"email" json:"email"`
	Website        string `bson:"website,omitempty" json:"website,omitempty"`
	EmergencyPhone string `bson:"emergencyPhone,omitempty" json:"emergencyPhone,omitempty"`
}

type Review struct {
	UserID    string    `bson:"userId" json:"userId"`
	Rating    float64   `bson:"rating" json:"rating"`
	Comment   string    `bson:"comment,omitempty" json:"comment,omitempty"`
	Treatment string    `bson:"treatment,omitempty" json:"treatment,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

var ErrInvalidRating = errors.New("rating must be between 1 and 5")

func (r Review) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return ErrInvalidRating
	}
	return nil
}

type Ratings struct {
	Overall      float64 `bson:"overall" json:"overall"`
	TotalReviews int     `bson:"totalReviews" json:"totalReviews"`
}

// Recompute sets the running mean over all embedded reviews.
func (r *Ratings) Recompute(reviews []Review) {
	r.TotalReviews = len(reviews)
	if len(reviews) == 0 {
		r.Overall = 0
		return
	}
	var sum float64
	for _, rv := range reviews {
		sum += rv.Rating
	}
	r.Overall = sum / float64(len(reviews))
}

type PriceRange struct {
	Min      float64 `bson:"min" json:"min"`
	Max      float64 `bson:"max" json:"max"`
	Currency string  `bson:"currency" json:"currency"`
}

type Doctor struct {
	Name           string `bson:"name" json:"name"`
	Specialization string `bson:"specialization,omitempty" json:"specialization,omitempty"`
	Experience     int    `bson:"experience,omitempty" json:"experience,omitempty"`
}

type Treatment struct {
	Name             string     `bson:"name" json:"name" binding:"required"`
	Category         string     `bson:"category" json:"category" binding:"required"`
	Description      string     `bson:"description,omitempty" json:"description,omitempty"`
	Pricing          PriceRange `bson:"pricing" json:"pricing"`
	Duration         string     `bson:"duration,omitempty" json:"duration,omitempty"`
	SuccessRate      float64    `bson:"successRate,omitempty" json:"successRate,omitempty"`
	AvailableDoctors []Doctor   `bson:"availableDoctors,omitempty" json:"availableDoctors,omitempty"`
}

type Hospital struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name" binding:"required"`
	Description   string             `bson:"description" json:"description" binding:"required"`
	Location      Location           `bson:"location" json:"location"`
	Contact       Contact            `bson:"contact" json:"contact"`
	Treatments    []Treatment        `bson:"treatments" json:"treatments"`
	Accreditation []string           `bson:"accreditation,omitempty" json:"accreditation,omitempty"`
	Facilities    []string           `bson:"facilities,omitempty" json:"facilities,omitempty"`
	Languages     []string           `bson:"languages,omitempty" json:"languages,omitempty"`
	Ratings       Ratings            `bson:"ratings" json:"ratings"`
	Reviews       []Review           `bson:"reviews" json:"reviews"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	IsFeatured    bool               `bson:"isFeatured" json:"isFeatured"`
	IsVerified    bool               `bson:"isVerified" json:"isVerified"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// TreatmentMatching returns the first treatment whose name contains name,
// ignoring case.
func (h *Hospital) TreatmentMatching(name string) *Treatment {
	needle := strings.ToLower(name)
	for i := range h.Treatments {
		if strings.Contains(strings.ToLower(h.Treatments[i].Name), needle) {
			return &h.Treatments[i]
		}
	}
	return nil
}

type RecoveryFriendly struct {
	WheelchairAccessible bool `bson:"wheelchairAccessible" json:"wheelchairAccessible"`
	MedicalBeds          bool `bson:"medicalBeds" json:"medicalBeds"`
	NurseOnCall          bool `bson:"nurseOnCall" json:"nurseOnCall"`
	ElevatorAccess       bool `bson:"elevatorAccess" json:"elevatorAccess"`
	SpecialDiet          bool `bson:"specialDiet" json:"specialDiet"`
}

type NearbyHospital struct {
	HospitalID primitive.ObjectID `bson:"hospitalId" json:"hospitalId"`
	DistanceKm float64            `bson:"distance" json:"distance"`
}

type RoomType struct {
	Type          string   `bson:"type" json:"type"`
	PricePerNight float64  `bson:"pricePerNight" json:"pricePerNight"`
	Currency      string   `bson:"currency" json:"currency"`
	Capacity      int      `bson:"capacity" json:"capacity"`
	Amenities     []string `bson:"amenities,omitempty" json:"amenities,omitempty"`
}

type Hotel struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string             `bson:"name" json:"name" binding:"required"`
	Description      string             `bson:"description" json:"description" binding:"required"`
	Location         Location           `bson:"location" json:"location"`
	Contact          Contact            `bson:"contact" json:"contact"`
	StarRating       int                `bson:"starRating,omitempty" json:"starRating,omitempty"`
	RoomTypes        []RoomType         `bson:"roomTypes" json:"roomTypes"`
	RecoveryFriendly RecoveryFriendly   `bson:"recoveryFriendly" json:"recoveryFriendly"`
	NearbyHospitals  []NearbyHospital   `bson:"nearbyHospitals" json:"nearbyHospitals"`
	Ratings          Ratings            `bson:"ratings" json:"ratings"`
	Reviews          []Review           `bson:"reviews" json:"reviews"`
	IsActive         bool               `bson:"isActive" json:"isActive"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type WellnessType string

const (
	WellnessYoga       WellnessType = "yoga"
	WellnessMeditation WellnessType = "meditation"
	WellnessAyurveda   WellnessType = "ayurveda"
	WellnessSpa        WellnessType = "spa"
	WellnessFitness    WellnessType = "fitness"
	WellnessRetreat    WellnessType = "retreat"
)

type Instructor struct {
	Name          string `bson:"name" json:"name"`
	Qualification string `bson:"qualification,omitempty" json:"qualification,omitempty"`
	Experience    int    `bson:"experience,omitempty" json:"experience,omitempty"`
	Bio           string `bson:"bio,omitempty" json:"bio,omitempty"`
}

type Schedule struct {
	StartDate time.Time `bson:"startDate" json:"startDate"`
	EndDate   time.Time `bson:"endDate" json:"endDate"`
	Duration  string    `bson:"duration,omitempty" json:"duration,omitempty"`
	Timings   string    `bson:"timings,omitempty" json:"timings,omitempty"`
}

type Capacity struct {
	Total     int `bson:"total" json:"total"`
	Booked    int `bson:"booked" json:"booked"`
	Available int `bson:"available" json:"available"`
}

// Finalize derives Available; call it before persisting a session.
func (c *Capacity) Finalize() {
	c.Available = c.Total - c.Booked
	if c.Available < 0 {
		c.Available = 0
	}
}

type SessionPricing struct {
	PerPerson float64  `bson:"perPerson" json:"perPerson"`
	Currency  string   `bson:"currency" json:"currency"`
	Includes  []string `bson:"includes,omitempty" json:"includes,omitempty"`
}

type Participant struct {
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	BookingID primitive.ObjectID `bson:"bookingId" json:"bookingId"`
	Count     int                `bson:"count" json:"count"`
	JoinedAt  time.Time          `bson:"joinedAt" json:"joinedAt"`
}

type WellnessSession struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name" binding:"required"`
	Description  string             `bson:"description" json:"description" binding:"required"`
	Type         WellnessType       `bson:"type" json:"type" binding:"required"`
	Location     Location           `bson:"location" json:"location"`
	Instructor   Instructor         `bson:"instructor" json:"instructor"`
	Schedule     Schedule           `bson:"schedule" json:"schedule"`
	Capacity     Capacity           `bson:"capacity" json:"capacity"`
	Pricing      SessionPricing     `bson:"pricing" json:"pricing"`
	Includes     []string           `bson:"includes,omitempty" json:"includes,omitempty"`
	Requirements []string           `bson:"requirements,omitempty" json:"requirements,omitempty"`
	Benefits     []string           `bson:"benefits,omitempty" json:"benefits,omitempty"`
	Ratings      Ratings            `bson:"ratings" json:"ratings"`
	Reviews      []Review           `bson:"reviews" json:"reviews"`
	Participants []Participant      `bson:"participants" json:"participants"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	IsFeatured   bool               `bson:"isFeatured" json:"isFeatured"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type Flight struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Airline        string             `bson:"airline" json:"airline"`
	FlightNumber   string             `bson:"flightNumber" json:"flightNumber"`
	Origin         string             `bson:"origin" json:"origin"`
	Destination    string             `bson:"destination" json:"destination"`
	DepartureTime  time.Time          `bson:"departureTime" json:"departureTime"`
	ArrivalTime    time.Time          `bson:"arrivalTime" json:"arrivalTime"`
	Price          float64            `bson:"price" json:"price"`
	Duration       string             `bson:"duration" json:"duration"`
	Stops          int                `bson:"stops" json:"stops"`
	AvailableSeats int                `bson:"availableSeats" json:"availableSeats"`
}

type Cab struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DriverName   string             `bson:"driverName" json:"driverName"`
	VehicleModel string             `bson:"vehicleModel" json:"vehicleModel"`
	VehicleType  string             `bson:"vehicleType" json:"vehicleType"` // Sedan, SUV, Hatchback, Luxury
	LicensePlate string             `bson:"licensePlate" json:"licensePlate"`
	Location     string             `bson:"location" json:"location"`
	PricePerKm   float64            `bson:"pricePerKm" json:"pricePerKm"`
	Rating       float64            `bson:"rating" json:"rating"`
	IsAvailable  bool               `bson:"isAvailable" json:"isAvailable"`
}
