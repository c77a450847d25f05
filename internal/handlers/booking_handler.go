package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/eventhub/eventhub-api/internal/helpers"
	"github.com/eventhub/eventhub-api/internal/metrics"
	"github.com/eventhub/eventhub-api/internal/middleware"
	"github.com/eventhub/eventhub-api/internal/models"
)

type BookingRequest struct {
	EventID uuid.UUID `json:"eventId" binding:"required"`
	Seats   int       `json:"seats" binding:"required,min=1"`
}

var errInsufficientSeats = errors.New("insufficient seats")

// reserveSeats claims n seats on the event with a single conditional
// update. Zero rows affected means the event is gone, inactive, or the
// claim would push booked_seats past capacity. Two concurrent requests
// can never both succeed past the ceiling because the check and the
// increment are one statement.
func reserveSeats(tx *gorm.DB, eventID uuid.UUID, n int) error {
	result := tx.Model(&models.Event{}).
		Where("id = ? AND status = ? AND booked_seats + ? <= capacity", eventID, models.EventStatusActive, n).
		UpdateColumn("booked_seats", gorm.Expr("booked_seats + ?", n))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errInsufficientSeats
	}
	return nil
}

// releaseSeats is the mirror of reserveSeats, used on cancellation.
func releaseSeats(tx *gorm.DB, eventID uuid.UUID, n int) error {
	return tx.Model(&models.Event{}).
		Where("id = ?", eventID).
		UpdateColumn("booked_seats", gorm.Expr("booked_seats - ?", n)).Error
}

func CreateBooking(c *gin.Context) {
	var req BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var event models.Event
	if err := gormDB.Where("id = ?", req.EventID).First(&event).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.RespondWithError(c, http.StatusNotFound, "Event not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving event.")
		return
	}

	booking := models.Booking{
		ID:          uuid.New(),
		UserID:      userID.(uuid.UUID),
		EventID:     event.ID,
		Seats:       req.Seats,
		TotalAmount: event.Price * float64(req.Seats),
		Status:      models.BookingStatusBooked,
	}

	err := gormDB.Transaction(func(tx *gorm.DB) error {
		if err := reserveSeats(tx, event.ID, req.Seats); err != nil {
			return err
		}
		return tx.Create(&booking).Error
	})
	if err != nil {
		if errors.Is(err, errInsufficientSeats) {
			// Re-read for an accurate availability figure in the message.
			var current models.Event
			available := 0
			if gormDB.Where("id = ?", event.ID).First(&current).Error == nil {
				available = current.Capacity - current.BookedSeats
			}
			helpers.RespondWithError(c, http.StatusBadRequest, fmt.Sprintf("Only %d seats available", available))
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create booking.")
		return
	}

	metrics.IncBookingCreated()

	var populated models.Booking
	if err := gormDB.Preload("Event").Preload("User").First(&populated, "id = ?", booking.ID).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving booking.")
		return
	}

	if m := middleware.GetMailer(c); m != nil && populated.User != nil {
		var qrPNG []byte
		if png, err := qrcode.Encode(buildQRPayload(&populated), qrcode.Medium, 256); err == nil {
			qrPNG = png
		}
		if err := m.SendBookingConfirmation(populated.User.Email, &populated, populated.Event, qrPNG); err != nil {
			log.Printf("Error sending booking confirmation to %s: %v", populated.User.Email, err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"booking": populated,
	})
}

func ListUserBookings(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var bookings []models.Booking
	if err := gormDB.Preload("Event").Where("user_id = ?", userID).Order("created_at DESC").Find(&bookings).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving bookings.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"bookings": bookings,
	})
}

func GetBooking(c *gin.Context) {
	bookingID := c.Param("id")

	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return
	}
	role, _ := c.Get("user_role")

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var booking models.Booking
	if err := gormDB.Preload("Event").Preload("User").Where("id = ?", bookingID).First(&booking).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.RespondWithError(c, http.StatusNotFound, "Booking not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving booking.")
		return
	}

	if booking.UserID != userID && role != models.RoleAdmin {
		helpers.RespondWithError(c, http.StatusForbidden, "Not authorized to access this booking.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"booking": booking,
	})
}

func CancelBooking(c *gin.Context) {
	bookingID := c.Param("id")

	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return
	}

	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	gormDB := db.(*gorm.DB)

	var booking models.Booking
	if err := gormDB.Where("id = ?", bookingID).First(&booking).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.RespondWithError(c, http.StatusNotFound, "Booking not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving booking.")
		return
	}

	if booking.UserID != userID {
		helpers.RespondWithError(c, http.StatusForbidden, "Not authorized to cancel this booking.")
		return
	}

	if booking.Status == models.BookingStatusCancelled {
		helpers.RespondWithError(c, http.StatusBadRequest, "Booking is already cancelled.")
		return
	}
	if booking.Status == models.BookingStatusCompleted {
		helpers.RespondWithError(c, http.StatusBadRequest, "Booking is already completed.")
		return
	}

	err := gormDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&booking).Update("status", models.BookingStatusCancelled).Error; err != nil {
			return err
		}
		return releaseSeats(tx, booking.EventID, booking.Seats)
	})
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to cancel booking.")
		return
	}

	metrics.IncBookingCancelled("user")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"booking": booking,
	})
}
