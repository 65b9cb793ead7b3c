package services

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/healtrip/healtrip-api/internal/models"
)

func TestBookingStatement(t *testing.T) {
	pkg := models.NewBooking(primitive.NewObjectID(), models.BookingPackage, models.Pricing{Total: 5200, Currency: "USD"}, testNow)
	pkg.Package = &models.PackageBooking{PackageName: "Knee Care"}
	pkg.CompletePayment("pay_1", testNow)

	hotel := models.NewBooking(primitive.NewObjectID(), models.BookingHotel, models.Pricing{Total: 80, Currency: "INR"}, testNow)
	hotel.Hotel = &models.HotelBooking{Name: "Lotus Stay"}

	f, err := BookingStatement([]models.Booking{*pkg, *hotel})
	if err != nil {
		t.Fatalf("BookingStatement: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != statementSheet {
		t.Fatalf("sheets = %v", sheets)
	}
	rows, err := f.GetRows(statementSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "Confirmation Code" || len(rows[0]) != len(statementHeaders) {
		t.Errorf("header = %v", rows[0])
	}
	want := []string{pkg.ConfirmationCode, "package", "Knee Care", "confirmed", "completed"}
	for i, w := range want {
		if rows[1][i] != w {
			t.Errorf("row 1 col %d = %q, want %q", i, rows[1][i], w)
		}
	}
	if rows[1][9] != "2025-03-14 10:00" {
		t.Errorf("paid column = %q", rows[1][9])
	}
	if rows[2][2] != "Lotus Stay" || rows[2][6] != "80" {
		t.Errorf("hotel row = %v", rows[2])
	}
}
