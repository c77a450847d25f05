// Package export renders booking lists as CSV or XLSX downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/eventhub/eventhub-api/internal/models"
)

// BookingHeader is the column order of every export format.
var BookingHeader = []string{
	"Ticket Code",
	"User Email",
	"User Name",
	"Event Title",
	"Event Date",
	"Event Location",
	"Seats",
	"Total Amount",
	"Status",
	"Payment Status",
	"Booking Date",
}

// BookingRecord flattens a booking (with User and Event preloaded) into
// one export row, columns matching BookingHeader.
func BookingRecord(booking models.Booking) []string {
	userName, userEmail := "", ""
	if booking.User != nil {
		userName = booking.User.Name
		userEmail = booking.User.Email
	}
	eventTitle, eventDate, eventLocation := "", "", ""
	if booking.Event != nil {
		eventTitle = booking.Event.Title
		eventDate = booking.Event.Date.Format("2006-01-02")
		eventLocation = booking.Event.Location
	}
	return []string{
		booking.TicketCode,
		userEmail,
		userName,
		eventTitle,
		eventDate,
		eventLocation,
		fmt.Sprintf("%d", booking.Seats),
		fmt.Sprintf("%.2f", booking.TotalAmount),
		booking.Status,
		booking.PaymentStatus,
		booking.CreatedAt.Format("2006-01-02"),
	}
}

// WriteCSV writes a header row plus one row per booking. encoding/csv
// handles quoting, so embedded commas and quotes round-trip correctly.
func WriteCSV(w io.Writer, bookings []models.Booking) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(BookingHeader); err != nil {
		return err
	}
	for _, booking := range bookings {
		if err := writer.Write(BookingRecord(booking)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes the same table as a single-sheet workbook.
func WriteXLSX(w io.Writer, bookings []models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Bookings"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	writeRow := func(row int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = v
		}
		return f.SetSheetRow(sheet, cell, &cells)
	}

	if err := writeRow(1, BookingHeader); err != nil {
		return err
	}
	for i, booking := range bookings {
		if err := writeRow(i+2, BookingRecord(booking)); err != nil {
			return err
		}
	}

	return f.Write(w)
}
