package models

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingType string

const (
	BookingHospital BookingType = "hospital"
	BookingHotel    BookingType = "hotel"
	BookingPackage  BookingType = "package"
	BookingWellness BookingType = "wellness"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	// PaymentRefunded is part of the stored schema; nothing transitions to it yet.
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	MethodRazorpay PaymentMethod = "razorpay"
	MethodStripe   PaymentMethod = "stripe"
	MethodOther    PaymentMethod = "other"
)

// Gateway reports whether the method is brokered by the payment service.
func (m PaymentMethod) Gateway() bool {
	return m == MethodRazorpay || m == MethodStripe
}

type RefundStatus string

const (
	RefundNone      RefundStatus = "none"
	RefundPending   RefundStatus = "pending"
	RefundProcessed RefundStatus = "processed"
	RefundRejected  RefundStatus = "rejected"
)

var (
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	ErrAlreadyPaid      = errors.New("payment already completed")
	ErrVariantMismatch  = errors.New("booking details do not match booking type")
)

// Booking is one purchasable unit. Exactly one of Hospital, Hotel, Package
// or Wellness is set, selected by BookingType.
type Booking struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID           primitive.ObjectID `bson:"userId" json:"userId"`
	BookingType      BookingType        `bson:"bookingType" json:"bookingType"`
	Hospital         *HospitalBooking   `bson:"hospital,omitempty" json:"hospital,omitempty"`
	Hotel            *HotelBooking      `bson:"hotel,omitempty" json:"hotel,omitempty"`
	Package          *PackageBooking    `bson:"package,omitempty" json:"package,omitempty"`
	Wellness         *WellnessBooking   `bson:"wellnessSession,omitempty" json:"wellnessSession,omitempty"`
	Pricing          Pricing            `bson:"pricing" json:"pricing"`
	Payment          Payment            `bson:"payment" json:"payment"`
	Status           BookingStatus      `bson:"status" json:"status"`
	Cancellation     Cancellation       `bson:"cancellation" json:"cancellation"`
	Notes            string             `bson:"notes,omitempty" json:"notes,omitempty"`
	ConfirmationCode string             `bson:"confirmationCode" json:"confirmationCode"`
	Version          int64              `bson:"version" json:"version"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type HospitalBooking struct {
	HospitalID        *primitive.ObjectID `bson:"hospitalId,omitempty" json:"hospitalId,omitempty"`
	Name              string              `bson:"name" json:"name"`
	Location          string              `bson:"location,omitempty" json:"location,omitempty"`
	Treatment         string              `bson:"treatment" json:"treatment"`
	Doctor            string              `bson:"doctor,omitempty" json:"doctor,omitempty"`
	AppointmentDate   *time.Time          `bson:"appointmentDate,omitempty" json:"appointmentDate,omitempty"`
	EstimatedDuration string              `bson:"estimatedDuration,omitempty" json:"estimatedDuration,omitempty"`
	SpecialRequests   string              `bson:"specialRequests,omitempty" json:"specialRequests,omitempty"`
}

type HotelBooking struct {
	HotelID         *primitive.ObjectID `bson:"hotelId,omitempty" json:"hotelId,omitempty"`
	Name            string              `bson:"name" json:"name"`
	RoomType        string              `bson:"roomType,omitempty" json:"roomType,omitempty"`
	CheckInDate     *time.Time          `bson:"checkInDate,omitempty" json:"checkInDate,omitempty"`
	CheckOutDate    *time.Time          `bson:"checkOutDate,omitempty" json:"checkOutDate,omitempty"`
	NumberOfGuests  int                 `bson:"numberOfGuests,omitempty" json:"numberOfGuests,omitempty"`
	SpecialRequests string              `bson:"specialRequests,omitempty" json:"specialRequests,omitempty"`
}

// PackageBooking bundles hospital, hotel and flight legs priced as one total.
type PackageBooking struct {
	PackageName  string           `bson:"packageName" json:"packageName"`
	Includes     []string         `bson:"includes" json:"includes"`
	StartDate    *time.Time       `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate      *time.Time       `bson:"endDate,omitempty" json:"endDate,omitempty"`
	DurationDays int              `bson:"durationDays,omitempty" json:"durationDays,omitempty"`
	Travelers    int              `bson:"travelers,omitempty" json:"travelers,omitempty"`
	Hospital     *PackageHospital `bson:"hospital,omitempty" json:"hospital,omitempty"`
	Hotel        *PackageHotel    `bson:"hotel,omitempty" json:"hotel,omitempty"`
	Flight       *PackageFlight   `bson:"flight,omitempty" json:"flight,omitempty"`
}

type PackageHospital struct {
	HospitalID *primitive.ObjectID `bson:"hospitalId,omitempty" json:"hospitalId,omitempty"`
	Name       string              `bson:"name" json:"name"`
	City       string              `bson:"city,omitempty" json:"city,omitempty"`
	Specialty  string              `bson:"specialty,omitempty" json:"specialty,omitempty"`
	Rating     float64             `bson:"rating,omitempty" json:"rating,omitempty"`
	Cost       float64             `bson:"cost,omitempty" json:"cost,omitempty"`
}

type PackageHotel struct {
	HotelID       *primitive.ObjectID `bson:"hotelId,omitempty" json:"hotelId,omitempty"`
	Name          string              `bson:"name" json:"name"`
	PricePerNight float64             `bson:"pricePerNight,omitempty" json:"pricePerNight,omitempty"`
	Rating        float64             `bson:"rating,omitempty" json:"rating,omitempty"`
	Cost          float64             `bson:"cost,omitempty" json:"cost,omitempty"`
}

type PackageFlight struct {
	Airline         string  `bson:"airline" json:"airline"`
	Origin          string  `bson:"origin" json:"origin"`
	Destination     string  `bson:"destination" json:"destination"`
	Price           float64 `bson:"price,omitempty" json:"price,omitempty"`
	DurationMinutes int     `bson:"durationMinutes,omitempty" json:"durationMinutes,omitempty"`
	Cost            float64 `bson:"cost,omitempty" json:"cost,omitempty"`
}

type WellnessBooking struct {
	SessionID    primitive.ObjectID `bson:"sessionId" json:"sessionId"`
	Name         string             `bson:"name" json:"name"`
	Participants int                `bson:"participants" json:"participants"`
}

// Pricing.Total is stored as given; see Pricing.Recompute for the derived form.
type Pricing struct {
	Subtotal float64 `bson:"subtotal" json:"subtotal"`
	Tax      float64 `bson:"tax" json:"tax"`
	Discount float64 `bson:"discount" json:"discount"`
	Total    float64 `bson:"total" json:"total"`
	Currency string  `bson:"currency" json:"currency"`
}

// Recompute sets Total from the components.
func (p *Pricing) Recompute() {
	p.Total = p.Subtotal - p.Discount + p.Tax
}

func (p Pricing) Validate() error {
	if p.Subtotal < 0 || p.Tax < 0 || p.Discount < 0 || p.Total < 0 {
		return errors.New("pricing amounts must not be negative")
	}
	return nil
}

type Payment struct {
	Status        PaymentStatus `bson:"status" json:"status"`
	Method        PaymentMethod `bson:"method,omitempty" json:"method,omitempty"`
	OrderID       string        `bson:"orderId,omitempty" json:"orderId,omitempty"` // razorpay order or stripe intent
	TransactionID string        `bson:"transactionId,omitempty" json:"transactionId,omitempty"`
	PaidAt        *time.Time    `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	RefundedAt    *time.Time    `bson:"refundedAt,omitempty" json:"refundedAt,omitempty"`
	RefundAmount  float64       `bson:"refundAmount,omitempty" json:"refundAmount,omitempty"`
}

type Cancellation struct {
	IsCancelled  bool         `bson:"isCancelled" json:"isCancelled"`
	CancelledAt  *time.Time   `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CancelledBy  string       `bson:"cancelledBy,omitempty" json:"cancelledBy,omitempty"` // user, admin, system
	Reason       string       `bson:"reason,omitempty" json:"reason,omitempty"`
	RefundStatus RefundStatus `bson:"refundStatus" json:"refundStatus"`
}

// NewBooking assigns identity, confirmation code and initial states. The
// caller sets exactly one details variant before persisting.
func NewBooking(userID primitive.ObjectID, t BookingType, pricing Pricing, now time.Time) *Booking {
	if pricing.Currency == "" {
		pricing.Currency = "USD"
	}
	return &Booking{
		ID:               primitive.NewObjectID(),
		UserID:           userID,
		BookingType:      t,
		Pricing:          pricing,
		Payment:          Payment{Status: PaymentPending},
		Status:           StatusPending,
		Cancellation:     Cancellation{RefundStatus: RefundNone},
		ConfirmationCode: NewConfirmationCode(now),
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// NewConfirmationCode returns HT<unix millis><9 uppercase base36 chars>.
func NewConfirmationCode(now time.Time) string {
	u := uuid.New()
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(u[:8]), 36)
	for len(suffix) < 9 {
		suffix = "0" + suffix
	}
	return fmt.Sprintf("HT%d%s", now.UnixMilli(), strings.ToUpper(suffix[:9]))
}

// Validate checks that the populated variant matches BookingType.
func (b *Booking) Validate() error {
	set := 0
	for _, ok := range []bool{b.Hospital != nil, b.Hotel != nil, b.Package != nil, b.Wellness != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return ErrVariantMismatch
	}
	var ok bool
	switch b.BookingType {
	case BookingHospital:
		ok = b.Hospital != nil
	case BookingHotel:
		ok = b.Hotel != nil
	case BookingPackage:
		ok = b.Package != nil
	case BookingWellness:
		ok = b.Wellness != nil
	}
	if !ok {
		return ErrVariantMismatch
	}
	if b.ConfirmationCode == "" {
		return errors.New("confirmation code missing")
	}
	return b.Pricing.Validate()
}

func (b *Booking) OwnedBy(userID primitive.ObjectID) bool {
	return b.UserID == userID
}

func (b *Booking) touch(now time.Time) {
	b.UpdatedAt = now
}

// MarkOrdered records the gateway chosen for payment and the provider order id.
func (b *Booking) MarkOrdered(method PaymentMethod, orderID string, now time.Time) error {
	if b.Payment.Status == PaymentCompleted {
		return ErrAlreadyPaid
	}
	b.Payment.Method = method
	if orderID != "" {
		b.Payment.OrderID = orderID
	}
	b.touch(now)
	return nil
}

// CompletePayment moves the booking to paid and confirmed.
func (b *Booking) CompletePayment(transactionID string, now time.Time) {
	b.Payment.Status = PaymentCompleted
	if transactionID != "" {
		b.Payment.TransactionID = transactionID
	}
	paid := now
	b.Payment.PaidAt = &paid
	b.Status = StatusConfirmed
	b.touch(now)
}

// FailPayment marks the payment failed and leaves the booking status alone.
func (b *Booking) FailPayment(now time.Time) {
	b.Payment.Status = PaymentFailed
	b.touch(now)
}

func (b *Booking) Cancel(by, reason string, refund RefundStatus, now time.Time) error {
	if b.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	at := now
	b.Status = StatusCancelled
	b.Cancellation = Cancellation{
		IsCancelled:  true,
		CancelledAt:  &at,
		CancelledBy:  by,
		Reason:       reason,
		RefundStatus: refund,
	}
	b.touch(now)
	return nil
}
