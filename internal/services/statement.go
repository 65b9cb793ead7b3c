package services

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/healtrip/healtrip-api/internal/models"
)

const statementSheet = "Bookings"

var statementHeaders = []string{
	"Confirmation Code", "Type", "Item", "Status", "Payment Status",
	"Payment Method", "Total", "Currency", "Created", "Paid",
}

// BookingStatement renders bookings as a one-sheet workbook.
func BookingStatement(bookings []models.Booking) (*excelize.File, error) {
	file := excelize.NewFile()
	if _, err := file.NewSheet(statementSheet); err != nil {
		return nil, err
	}
	if err := file.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	for i, h := range statementHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(statementSheet, cell, h); err != nil {
			return nil, err
		}
	}
	for i := range bookings {
		if err := appendStatementRow(file, i+2, &bookings[i]); err != nil {
			return nil, err
		}
	}
	return file, nil
}

func appendStatementRow(file *excelize.File, row int, b *models.Booking) error {
	paid := ""
	if b.Payment.PaidAt != nil {
		paid = b.Payment.PaidAt.Format("2006-01-02 15:04")
	}
	values := []any{
		b.ConfirmationCode,
		string(b.BookingType),
		bookingItem(b),
		string(b.Status),
		string(b.Payment.Status),
		string(b.Payment.Method),
		b.Pricing.Total,
		b.Pricing.Currency,
		b.CreatedAt.Format("2006-01-02 15:04"),
		paid,
	}
	for col, v := range values {
		if err := file.SetCellValue(statementSheet, fmt.Sprintf("%c%d", 'A'+col, row), v); err != nil {
			return err
		}
	}
	return nil
}

func bookingItem(b *models.Booking) string {
	switch {
	case b.Package != nil:
		return b.Package.PackageName
	case b.Hospital != nil:
		return b.Hospital.Name
	case b.Hotel != nil:
		return b.Hotel.Name
	case b.Wellness != nil:
		return b.Wellness.Name
	}
	return ""
}
